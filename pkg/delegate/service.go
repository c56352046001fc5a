package delegate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
)

// contextKey is the reserved key for plugin-private data in every scope.
const contextKey = "context"

// ServiceParams configures a ServiceDelegate.
type ServiceParams struct {
	// Name is the service name. Defaults to the accessory name.
	Name string

	Type    *hap.ServiceType
	Subtype string

	// Primary marks the service as the accessory's primary service. Its
	// configured name is mirrored into the accessory name.
	Primary bool

	// Linked is a service delegate that links to this service.
	Linked *ServiceDelegate

	Hidden bool
}

// ServiceDelegate owns the characteristic delegates of a host service.
type ServiceDelegate struct {
	delegate

	accessory *AccessoryDelegate
	host      host.Service
	stype     *hap.ServiceType
	key       string
	primary   bool
	store     *host.Context
	values    *Values

	charMu sync.RWMutex
	chars  map[string]*CharacteristicDelegate

	destroyed atomic.Bool
}

// NewServiceDelegate creates a service on the accessory delegate, adopting
// the host service with the same type and subtype if the restored accessory
// has one. Every service gets a name characteristic; all but
// AccessoryInformation also get a configuredName characteristic.
func NewServiceDelegate(a *AccessoryDelegate, p ServiceParams) (*ServiceDelegate, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: service parent is not an accessory delegate", ErrInvalidType)
	}
	if p.Type == nil {
		return nil, fmt.Errorf("%w: service type", ErrMissing)
	}
	if p.Name == "" {
		p.Name = a.Name()
	}
	key := hap.ServiceKey(p.Type.UUID, p.Subtype)
	s := &ServiceDelegate{
		accessory: a,
		stype:     p.Type,
		key:       key,
		primary:   p.Primary,
		values:    newValues(),
		chars:     make(map[string]*CharacteristicDelegate),
	}
	s.delegate = delegate{platform: a.platform, level: a.LogLevel, name: p.Name}
	if err := a.addService(s); err != nil {
		return nil, err
	}

	s.host = a.host.Service(p.Type.UUID, p.Subtype)
	if s.host == nil {
		s.host = a.host.AddService(p.Type, p.Name, p.Subtype)
		s.Debugf("created %s service", p.Type.Name)
	}
	if p.Primary {
		s.host.SetPrimary(true)
	}
	if p.Hidden {
		s.host.SetHidden(true)
	}
	if p.Linked != nil {
		p.Linked.host.AddLinkedService(s.host)
	}
	s.store = a.host.Context().Sub(key)

	if _, err := NewCharacteristicDelegate(s, CharacteristicParams{
		Key:    "name",
		Type:   hap.CharName,
		Value:  p.Name,
		Silent: true,
	}); err != nil {
		return nil, err
	}
	if !strings.EqualFold(p.Type.UUID, hap.ServiceAccessoryInformation.UUID) {
		cn, err := NewCharacteristicDelegate(s, CharacteristicParams{
			Key:    "configuredName",
			Type:   hap.CharConfiguredName,
			Value:  p.Name,
			Setter: rejectEmptyName,
		})
		if err != nil {
			return nil, err
		}
		if v, ok := cn.Value().(string); ok && v != "" {
			s.setName(v)
		}
		cn.OnDidSet(func(e SetEvent) {
			name, _ := e.Value.(string)
			if name == "" {
				return
			}
			s.setName(name)
			if s.primary {
				if err := a.values.Set("name", name); err != nil {
					s.Warnf("set accessory name: %v", err)
				}
			}
		})
	}
	return s, nil
}

func rejectEmptyName(_ context.Context, v any) (any, error) {
	if s, _ := v.(string); s == "" {
		return nil, ErrEmptyName
	}
	return nil, nil
}

// Key returns the service key: the type UUID, with ".subtype" if set.
func (s *ServiceDelegate) Key() string { return s.key }

// Type returns the service type.
func (s *ServiceDelegate) Type() *hap.ServiceType { return s.stype }

// Accessory returns the owning accessory delegate.
func (s *ServiceDelegate) Accessory() *AccessoryDelegate { return s.accessory }

// Host returns the host service.
func (s *ServiceDelegate) Host() host.Service { return s.host }

// Values returns the characteristic values by key.
func (s *ServiceDelegate) Values() *Values { return s.values }

// Context returns the plugin-private persisted data of the service.
func (s *ServiceDelegate) Context() *host.Context { return s.store.Sub(contextKey) }

// Characteristic returns the characteristic delegate for key, or nil.
func (s *ServiceDelegate) Characteristic(key string) *CharacteristicDelegate {
	s.charMu.RLock()
	defer s.charMu.RUnlock()
	return s.chars[key]
}

// Characteristics returns the characteristic delegates sorted by key.
func (s *ServiceDelegate) Characteristics() []*CharacteristicDelegate {
	s.charMu.RLock()
	out := make([]*CharacteristicDelegate, 0, len(s.chars))
	for _, c := range s.chars {
		out = append(out, c)
	}
	s.charMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (s *ServiceDelegate) addCharacteristic(c *CharacteristicDelegate) {
	s.charMu.Lock()
	s.chars[c.key] = c
	s.charMu.Unlock()
}

func (s *ServiceDelegate) removeCharacteristic(c *CharacteristicDelegate) {
	s.charMu.Lock()
	if s.chars[c.key] == c {
		delete(s.chars, c.key)
	}
	s.charMu.Unlock()
}

// cleanup removes host characteristics and persisted values that have no
// characteristic delegate.
func (s *ServiceDelegate) cleanup() {
	types := make(map[string]bool)
	keys := make(map[string]bool)
	for _, c := range s.Characteristics() {
		keys[c.key] = true
		if c.ctype != nil {
			types[strings.ToUpper(c.ctype.UUID)] = true
		}
	}
	for _, hc := range s.host.Characteristics() {
		if types[strings.ToUpper(hc.TypeUUID())] {
			continue
		}
		s.Logf("remove stale characteristic %s", s.characteristicName(hc.TypeUUID()))
		s.host.RemoveCharacteristic(hc)
	}
	for _, key := range s.store.Keys() {
		if key == contextKey || keys[key] {
			continue
		}
		s.Logf("remove stale value %s", key)
		s.store.Delete(key)
	}
}

func (s *ServiceDelegate) characteristicName(typeUUID string) string {
	if ct, ok := s.platform.catalog.CharacteristicByUUID(typeUUID); ok {
		return ct.Name
	}
	return typeUUID
}

// Destroy destroys the characteristic delegates and removes the delegate
// from its accessory. Unless delegateOnly is set, the host service and its
// persisted values are removed as well.
func (s *ServiceDelegate) Destroy(delegateOnly bool) {
	if s.destroyed.Swap(true) {
		return
	}
	for _, c := range s.Characteristics() {
		c.Destroy(delegateOnly)
	}
	s.accessory.removeService(s)
	if !delegateOnly {
		s.accessory.host.RemoveService(s.host)
		s.accessory.host.Context().Delete(s.key)
	}
}
