package delegate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
	"github.com/ebaauw/homebridge-lib-go/pkg/log"
	"github.com/ebaauw/homebridge-lib-go/pkg/version"
)

// AccessoryParams configures an AccessoryDelegate.
type AccessoryParams struct {
	// ID is the stable plugin id of the device. The host UUID derives from it.
	ID string

	Name     string
	Category hap.Category

	Manufacturer string
	Model        string
	Firmware     string
	Hardware     string
	Software     string

	// LogLevel sets an accessory-owned log level. Nil follows the platform.
	LogLevel *int

	// ClassName is reported by the className property.
	ClassName string
}

// AccessoryDelegate owns a host accessory: its properties, its services and
// the persisted top-level context.
type AccessoryDelegate struct {
	delegate

	id     string
	host   host.Accessory
	values *Values
	info   *ServiceDelegate

	treeMu     sync.RWMutex
	properties map[string]*PropertyDelegate
	services   map[string]*ServiceDelegate

	levelMu  sync.RWMutex
	local    *int
	inherit  *AccessoryDelegate
	managed  ValueDelegate
	levelOff func()

	identify    listeners[struct{}]
	heartbeat   listeners[int]
	shutdown    listeners[struct{}]
	initialised atomic.Bool
	destroyed   atomic.Bool
}

// NewAccessoryDelegate creates the delegate for device id, adopting the
// restored host accessory for id when there is one.
func NewAccessoryDelegate(p *Platform, params AccessoryParams) (*AccessoryDelegate, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: accessory parent is not a platform", ErrInvalidType)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("%w: accessory name", ErrMissing)
	}
	if params.ID == "" {
		return nil, fmt.Errorf("%w: empty accessory id", ErrOutOfRange)
	}
	if params.LogLevel != nil && (*params.LogLevel < LevelInfo || *params.LogLevel > LevelVVDebug) {
		return nil, fmt.Errorf("%w: log level %d", ErrOutOfRange, *params.LogLevel)
	}
	if params.Category == 0 {
		params.Category = hap.CategoryOther
	}
	if params.ClassName == "" {
		params.ClassName = "AccessoryDelegate"
	}
	if params.Manufacturer == "" {
		params.Manufacturer = "homebridge-lib-go"
	}
	if params.Model == "" {
		params.Model = params.ClassName
	}
	if params.Firmware == "" {
		params.Firmware = version.Current
	}

	a := &AccessoryDelegate{
		id:         params.ID,
		values:     newValues(),
		properties: make(map[string]*PropertyDelegate),
		services:   make(map[string]*ServiceDelegate),
		local:      params.LogLevel,
	}
	a.delegate = delegate{platform: p, level: a.LogLevel, name: params.Name}
	if err := p.register(a); err != nil {
		return nil, err
	}

	uuid := hap.AccessoryUUID(params.ID)
	a.host = p.bridge.Accessory(uuid)
	restored := a.host != nil
	if !restored {
		a.host = p.bridge.NewAccessory(params.Name, uuid, params.Category)
	}
	// A failed build drops the partial delegate tree. A restored context
	// keeps whatever the build already wrote to it.
	if err := a.build(params); err != nil {
		a.Destroy(true)
		return nil, err
	}
	a.host.OnIdentify(a.onIdentify)

	if restored {
		a.Debugf("restored accessory %s", a.id)
	} else {
		if err := p.bridge.RegisterAccessory(a.host); err != nil {
			a.Destroy(true)
			return nil, fmt.Errorf("register accessory %s: %w", a.id, err)
		}
		a.Logf("created accessory %s", a.id)
	}
	if p.Initialised() {
		a.Initialise()
	}
	return a, nil
}

func (a *AccessoryDelegate) build(params AccessoryParams) error {
	props := []PropertyParams{
		{Key: "className", Value: params.ClassName, Silent: true},
		{Key: "version", Value: version.Current, Silent: true},
		{Key: "id", Value: params.ID, Silent: true},
		{Key: "logLevel", Value: a.LogLevel()},
		{Key: "name", Value: params.Name, Silent: true},
	}
	if port := a.platform.UIPort(); port != 0 {
		props = append(props, PropertyParams{Key: "uiPort", Value: port, Silent: true})
	}
	for _, pp := range props {
		if _, err := NewPropertyDelegate(a, pp); err != nil {
			return err
		}
	}
	if prev, ok := a.property("version").Value().(string); ok {
		a.checkVersion(prev)
	}
	// The class and version always reflect the running code.
	for key, v := range map[string]any{"className": params.ClassName, "version": version.Current} {
		if err := a.values.Set(key, v); err != nil {
			return err
		}
	}
	if params.LogLevel != nil {
		if err := a.values.Set("logLevel", *params.LogLevel); err != nil {
			return err
		}
	}
	if name, ok := a.property("name").Value().(string); ok && name != "" {
		a.setName(name)
		a.host.SetDisplayName(name)
	}

	info, err := NewServiceDelegate(a, ServiceParams{
		Name: a.Name(),
		Type: hap.ServiceAccessoryInformation,
	})
	if err != nil {
		return err
	}
	a.info = info
	chars := []CharacteristicParams{
		{Key: "id", Type: hap.CharSerialNumber, Value: params.ID, Silent: true},
		{Key: "identify", Type: hap.CharIdentify},
		{Key: "manufacturer", Type: hap.CharManufacturer, Value: params.Manufacturer, Silent: true},
		{Key: "model", Type: hap.CharModel, Value: params.Model, Silent: true},
		{Key: "firmware", Type: hap.CharFirmwareRevision, Value: params.Firmware, Silent: true},
		{Key: "configuredName", Type: hap.CharConfiguredName, Value: a.Name(), Silent: true, Setter: rejectEmptyName},
	}
	if params.Hardware != "" {
		chars = append(chars, CharacteristicParams{Key: "hardware", Type: hap.CharHardwareRevision, Value: params.Hardware, Silent: true})
	}
	if params.Software != "" {
		chars = append(chars, CharacteristicParams{Key: "software", Type: hap.CharSoftwareRevision, Value: params.Software, Silent: true})
	}
	for _, cp := range chars {
		if _, err := NewCharacteristicDelegate(info, cp); err != nil {
			return err
		}
	}
	// Devices report their firmware on every start.
	if err := info.values.Set("firmware", params.Firmware); err != nil {
		return err
	}

	a.property("name").OnDidSet(func(e SetEvent) {
		name, _ := e.Value.(string)
		if name == "" {
			return
		}
		a.setName(name)
		a.host.SetDisplayName(name)
		for _, key := range []string{"name", "configuredName"} {
			if err := info.values.Set(key, name); err != nil {
				a.Warnf("%s: %v", key, err)
			}
		}
	})
	info.Characteristic("configuredName").OnDidSet(func(e SetEvent) {
		if e.FromHost {
			if err := a.values.Set("name", e.Value); err != nil {
				a.Warnf("name: %v", err)
			}
		}
	})
	a.property("logLevel").OnDidSet(func(e SetEvent) {
		if level, ok := toInt(e.Value); ok {
			a.Debugf("log level %d", level)
		}
	})
	return nil
}

// checkVersion logs when the accessory was persisted by another version.
func (a *AccessoryDelegate) checkVersion(prev string) {
	if prev == version.Current {
		return
	}
	old, err := version.Parse(prev)
	if err != nil {
		a.Warnf("restored version: %v", err)
		return
	}
	cur := version.MustParse(version.Current)
	switch c := cur.Compare(old); {
	case c < 0:
		a.Warnf("downgraded from v%s to v%s", old, cur)
	case c > 0 && cur.Satisfies(old):
		a.Logf("upgraded from v%s to v%s", old, cur)
	case c > 0:
		a.Warnf("upgraded from v%s to v%s across major version", old, cur)
	}
}

// ID returns the device id.
func (a *AccessoryDelegate) ID() string { return a.id }

// Host returns the host accessory.
func (a *AccessoryDelegate) Host() host.Accessory { return a.host }

// Values returns the property values by key.
func (a *AccessoryDelegate) Values() *Values { return a.values }

// Context returns the plugin-private persisted data of the accessory.
func (a *AccessoryDelegate) Context() *host.Context { return a.host.Context().Sub(contextKey) }

// Info returns the AccessoryInformation service delegate.
func (a *AccessoryDelegate) Info() *ServiceDelegate { return a.info }

// Service returns the service delegate for key, or nil.
func (a *AccessoryDelegate) Service(key string) *ServiceDelegate {
	a.treeMu.RLock()
	defer a.treeMu.RUnlock()
	return a.services[key]
}

// Services returns the service delegates sorted by key.
func (a *AccessoryDelegate) Services() []*ServiceDelegate {
	a.treeMu.RLock()
	out := make([]*ServiceDelegate, 0, len(a.services))
	for _, s := range a.services {
		out = append(out, s)
	}
	a.treeMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Properties returns the property delegates sorted by key.
func (a *AccessoryDelegate) Properties() []*PropertyDelegate {
	a.treeMu.RLock()
	out := make([]*PropertyDelegate, 0, len(a.properties))
	for _, d := range a.properties {
		out = append(out, d)
	}
	a.treeMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (a *AccessoryDelegate) property(key string) *PropertyDelegate {
	a.treeMu.RLock()
	defer a.treeMu.RUnlock()
	return a.properties[key]
}

func (a *AccessoryDelegate) addProperty(d *PropertyDelegate) {
	a.treeMu.Lock()
	a.properties[d.key] = d
	a.treeMu.Unlock()
}

func (a *AccessoryDelegate) removeProperty(d *PropertyDelegate) {
	a.treeMu.Lock()
	if a.properties[d.key] == d {
		delete(a.properties, d.key)
	}
	a.treeMu.Unlock()
}

func (a *AccessoryDelegate) addService(s *ServiceDelegate) error {
	a.treeMu.Lock()
	defer a.treeMu.Unlock()
	if _, ok := a.services[s.key]; ok {
		return fmt.Errorf("%w: service %s", ErrDuplicateKey, s.key)
	}
	a.services[s.key] = s
	return nil
}

func (a *AccessoryDelegate) removeService(s *ServiceDelegate) {
	a.treeMu.Lock()
	if a.services[s.key] == s {
		delete(a.services, s.key)
	}
	a.treeMu.Unlock()
}

// LogLevel returns the effective log level: the accessory's own level,
// else the level of the delegate it inherits from or manages, else the
// platform level.
func (a *AccessoryDelegate) LogLevel() int {
	a.levelMu.RLock()
	local, managed, inherit := a.local, a.managed, a.inherit
	a.levelMu.RUnlock()
	switch {
	case local != nil:
		return *local
	case managed != nil:
		if level, ok := toInt(managed.Value()); ok {
			return level
		}
	case inherit != nil:
		return inherit.LogLevel()
	}
	return a.platform.LogLevel()
}

// SetLogLevel sets the accessory-owned log level.
func (a *AccessoryDelegate) SetLogLevel(level int) error {
	if level < LevelInfo || level > LevelVVDebug {
		return fmt.Errorf("%w: log level %d", ErrOutOfRange, level)
	}
	a.levelMu.Lock()
	a.local = &level
	a.levelMu.Unlock()
	return a.values.Set("logLevel", level)
}

// InheritLogLevel makes the accessory follow the log level of other.
func (a *AccessoryDelegate) InheritLogLevel(other *AccessoryDelegate) error {
	if other == nil {
		return fmt.Errorf("%w: inherit log level from a non-accessory delegate", ErrInvalidType)
	}
	for d := other; d != nil; {
		if d == a {
			return fmt.Errorf("%w: %s cannot inherit its own log level", ErrInvalidType, a.id)
		}
		d.levelMu.RLock()
		next := d.inherit
		d.levelMu.RUnlock()
		d = next
	}
	a.levelMu.Lock()
	a.local, a.inherit = nil, other
	a.levelMu.Unlock()
	return nil
}

// ManageLogLevel makes the accessory follow the value of vd, typically a
// writable characteristic exposing the log level. With forPlatform set,
// changes to vd also change the platform level.
func (a *AccessoryDelegate) ManageLogLevel(vd ValueDelegate, forPlatform bool) error {
	if vd == nil {
		return fmt.Errorf("%w: manage log level with a nil delegate", ErrInvalidType)
	}
	off := vd.OnDidSet(func(e SetEvent) {
		level, ok := toInt(e.Value)
		if !ok {
			return
		}
		if err := a.values.Set("logLevel", level); err != nil {
			a.Warnf("logLevel: %v", err)
		}
		if forPlatform {
			if err := a.platform.SetLogLevel(level); err != nil {
				a.Warnf("platform log level: %v", err)
			}
		}
	})
	a.levelMu.Lock()
	if a.levelOff != nil {
		a.levelOff()
	}
	a.local, a.managed, a.levelOff = nil, vd, off
	a.levelMu.Unlock()
	return nil
}

// OnIdentify registers fn for identify requests from the host.
func (a *AccessoryDelegate) OnIdentify(fn func()) func() {
	return a.identify.add(func(struct{}) { fn() })
}

// OnHeartbeat registers fn for the platform heartbeat.
func (a *AccessoryDelegate) OnHeartbeat(fn func(beat int)) func() {
	return a.heartbeat.add(fn)
}

// OnShutdown registers fn for platform shutdown.
func (a *AccessoryDelegate) OnShutdown(fn func()) func() {
	return a.shutdown.add(func(struct{}) { fn() })
}

func (a *AccessoryDelegate) emitHeartbeat(beat int) {
	a.heartbeat.emit(&a.delegate, "heartbeat", beat)
}

func (a *AccessoryDelegate) emitShutdown() {
	a.shutdown.emit(&a.delegate, "shutdown", struct{}{})
}

func (a *AccessoryDelegate) onIdentify() {
	if a.destroyed.Load() {
		return
	}
	start := time.Now()
	a.Logf("identify")
	a.identify.emit(&a.delegate, "identify", struct{}{})
	if a.LogLevel() >= LevelVVDebug {
		if b, err := json.Marshal(a.host.Context()); err == nil {
			a.VVDebugf("context: %s", b)
		}
	}
	a.platform.record(log.Event{
		AccessoryID: a.id,
		Op:          log.OpIdentify,
		Outcome:     log.OutcomeOK,
		Duration:    time.Since(start),
	})
}

// Initialised reports whether the cleanup pass has run.
func (a *AccessoryDelegate) Initialised() bool { return a.initialised.Load() }

// Initialise removes host services, host characteristics and persisted
// values that have no delegate. It runs once.
func (a *AccessoryDelegate) Initialise() {
	if a.destroyed.Load() || !a.initialised.CompareAndSwap(false, true) {
		return
	}
	for _, hs := range a.host.Services() {
		if strings.EqualFold(hs.TypeUUID(), hap.ServiceProtocolInformation.UUID) {
			continue
		}
		key := hap.ServiceKey(hs.TypeUUID(), hs.Subtype())
		if a.Service(key) != nil {
			continue
		}
		a.Logf("remove stale service %s", a.serviceName(hs))
		a.host.RemoveService(hs)
	}
	for _, s := range a.Services() {
		s.cleanup()
	}
	ctx := a.host.Context()
	for _, key := range ctx.Keys() {
		switch {
		case key == contextKey:
			continue
		case hap.LooksLikeUUID(key):
			if a.Service(key) != nil {
				continue
			}
		case a.values.Has(key):
			continue
		}
		a.Logf("remove stale value %s", key)
		ctx.Delete(key)
	}
	a.Debugf("initialised")
}

func (a *AccessoryDelegate) serviceName(hs host.Service) string {
	name := hs.TypeUUID()
	if st, ok := a.platform.catalog.ServiceByUUID(hs.TypeUUID()); ok {
		name = st.Name
	}
	if hs.Subtype() != "" {
		name += "." + hs.Subtype()
	}
	return name
}

// Destroy destroys the service and property delegates and releases the
// accessory id. Unless delegateOnly is set, the host accessory is
// unregistered and its cached state removed.
func (a *AccessoryDelegate) Destroy(delegateOnly bool) {
	if a.destroyed.Swap(true) {
		return
	}
	a.identify.clear()
	a.heartbeat.clear()
	a.shutdown.clear()
	a.levelMu.Lock()
	if a.levelOff != nil {
		a.levelOff()
		a.levelOff = nil
	}
	a.levelMu.Unlock()
	for _, s := range a.Services() {
		s.Destroy(delegateOnly)
	}
	for _, d := range a.Properties() {
		d.Destroy(delegateOnly)
	}
	a.platform.unregister(a)
	if !delegateOnly {
		if err := a.platform.bridge.UnregisterAccessory(a.host); err != nil {
			a.Warnf("unregister: %v", err)
		}
		a.Logf("removed accessory %s", a.id)
	}
}
