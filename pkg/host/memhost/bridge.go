package memhost

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
	"github.com/ebaauw/homebridge-lib-go/pkg/persistence"
)

// Bridge errors.
var (
	ErrForeignAccessory  = errors.New("memhost: accessory not created by this bridge")
	ErrAlreadyRegistered = errors.New("memhost: accessory already registered")
	ErrNotRegistered     = errors.New("memhost: accessory not registered")
	ErrUnknownAccessory  = errors.New("memhost: unknown accessory")
	ErrUnknownIID        = errors.New("memhost: unknown characteristic iid")
	ErrNotReadable       = errors.New("memhost: characteristic not readable")
	ErrNotWritable       = errors.New("memhost: characteristic not writable")
)

// Notification is a value pushed to subscribed clients.
type Notification struct {
	AccessoryUUID string
	IID           uint64
	Value         any
}

// Bridge is an in-memory host.Bridge.
type Bridge struct {
	mu          sync.RWMutex
	store       persistence.Store
	logger      *slog.Logger
	accessories map[string]*Accessory

	subMu       sync.RWMutex
	subscribers map[int]func(Notification)
	nextSub     int
}

// New creates an empty bridge. A nil store disables persistence and a nil
// logger discards log output.
func New(store persistence.Store, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{
		store:       store,
		logger:      logger,
		accessories: make(map[string]*Accessory),
		subscribers: make(map[int]func(Notification)),
	}
}

// Accessory returns the restored or registered accessory with the given UUID.
func (b *Bridge) Accessory(uuid string) host.Accessory {
	if a := b.lookup(uuid); a != nil {
		return a
	}
	return nil
}

func (b *Bridge) lookup(uuid string) *Accessory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accessories[strings.ToUpper(uuid)]
}

// Accessories returns the known accessories sorted by display name.
func (b *Bridge) Accessories() []*Accessory {
	b.mu.RLock()
	out := make([]*Accessory, 0, len(b.accessories))
	for _, a := range b.accessories {
		out = append(out, a)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].DisplayName(), out[j].DisplayName()
		if ni != nj {
			return ni < nj
		}
		return out[i].UUID() < out[j].UUID()
	})
	return out
}

// NewAccessory creates an unregistered accessory with an AccessoryInformation
// service holding the Identify and Name characteristics.
func (b *Bridge) NewAccessory(name, uuid string, category hap.Category) host.Accessory {
	a := newAccessory(b, name, strings.ToUpper(uuid), category, nil)
	info := a.addService(hap.ServiceAccessoryInformation.UUID, name, "")
	info.AddCharacteristic(hap.CharIdentify)
	info.AddCharacteristic(hap.CharName).UpdateValue(name)
	return a
}

// RegisterAccessory adds the accessory to the registry.
func (b *Bridge) RegisterAccessory(ha host.Accessory) error {
	a, ok := ha.(*Accessory)
	if !ok || a.bridge != b {
		return ErrForeignAccessory
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accessories[a.uuid]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, a.uuid)
	}
	b.accessories[a.uuid] = a
	b.logger.Debug("registered accessory", "name", a.DisplayName(), "uuid", a.uuid)
	return nil
}

// UnregisterAccessory removes the accessory from the registry.
func (b *Bridge) UnregisterAccessory(ha host.Accessory) error {
	a, ok := ha.(*Accessory)
	if !ok || a.bridge != b {
		return ErrForeignAccessory
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessories[a.uuid] != a {
		return fmt.Errorf("%w: %s", ErrNotRegistered, a.uuid)
	}
	delete(b.accessories, a.uuid)
	b.logger.Debug("unregistered accessory", "name", a.DisplayName(), "uuid", a.uuid)
	return nil
}

// Subscribe registers fn for value notifications and returns a function
// that cancels the subscription.
func (b *Bridge) Subscribe(fn func(Notification)) func() {
	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subscribers[id] = fn
	b.subMu.Unlock()
	return func() {
		b.subMu.Lock()
		delete(b.subscribers, id)
		b.subMu.Unlock()
	}
}

func (b *Bridge) notify(n Notification) {
	b.subMu.RLock()
	subs := make([]func(Notification), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.subMu.RUnlock()
	for _, fn := range subs {
		fn(n)
	}
}

var _ host.Bridge = (*Bridge)(nil)
