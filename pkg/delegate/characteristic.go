package delegate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

// Getter returns the current value of a characteristic for a host read.
type Getter func(ctx context.Context) (any, error)

// Setter applies a host write. Its result is returned to the host for
// characteristics with a write response.
type Setter func(ctx context.Context, value any) (any, error)

// CharacteristicParams configures a CharacteristicDelegate.
type CharacteristicParams struct {
	// Key identifies the value within the service.
	Key string

	// Type is the host characteristic type. Without a type the delegate
	// only persists its value.
	Type *hap.CharacteristicType

	// Value is the initial value, used when nothing is persisted yet.
	Value any

	// Unit is appended to the value in log messages.
	Unit string

	// Props overrides the type's properties; zero fields are kept.
	Props hap.Props

	Getter Getter
	Setter Setter

	// Timeout bounds getter and setter calls. Zero means DefaultTimeout;
	// other values are clamped to [MinTimeout, MaxTimeout].
	Timeout time.Duration

	// Silent suppresses the log message on change.
	Silent bool
}

// CharacteristicDelegate owns a persisted value mirrored to a host
// characteristic.
type CharacteristicDelegate struct {
	service *ServiceDelegate
	store   *host.Context
	char    host.Characteristic
	ctype   *hap.CharacteristicType
	key     string
	unit    string
	props   hap.Props
	getter  Getter
	setter  Setter
	timeout time.Duration
	silent  bool

	lifetime context.Context
	cancel   context.CancelFunc

	// exchangeMu serializes host exchanges.
	exchangeMu sync.Mutex

	didSet    listeners[SetEvent]
	didTouch  listeners[any]
	destroyed atomic.Bool
}

// NewCharacteristicDelegate creates a characteristic on the service
// delegate, adopting the host characteristic of the same type if the
// restored service has one. A value restored from the service context wins
// over p.Value.
func NewCharacteristicDelegate(s *ServiceDelegate, p CharacteristicParams) (*CharacteristicDelegate, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: characteristic parent is not a service delegate", ErrInvalidType)
	}
	if p.Key == "" {
		return nil, fmt.Errorf("%w: characteristic key", ErrMissing)
	}
	if s.values.Has(p.Key) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, p.Key)
	}
	c := &CharacteristicDelegate{
		service: s,
		store:   s.store,
		ctype:   p.Type,
		key:     p.Key,
		unit:    p.Unit,
		getter:  p.Getter,
		setter:  p.Setter,
		timeout: clampTimeout(p.Timeout),
		silent:  p.Silent,
	}
	c.lifetime, c.cancel = context.WithCancel(context.Background())

	if p.Type != nil {
		c.props = p.Type.Props.Merge(p.Props)
		c.char = s.host.Characteristic(p.Type.UUID)
		if c.char == nil {
			c.char = s.host.AddCharacteristic(p.Type)
			s.VDebugf("%s: created %s characteristic", p.Key, p.Type.Name)
		}
		c.char.SetProps(c.props)
	} else {
		c.props = p.Props
	}

	value := c.initialValue(p.Value)
	if err := s.values.add(c); err != nil {
		c.cancel()
		return nil, err
	}
	s.addCharacteristic(c)
	if value != nil {
		c.store.Set(c.key, value)
		if c.char != nil {
			c.char.UpdateValue(value)
		}
	}

	if c.char != nil {
		if c.getter != nil && c.props.Readable() {
			c.char.OnGet(c.onGet)
		}
		if c.props.Writable() && !strings.EqualFold(p.Type.UUID, hap.CharIdentify.UUID) {
			if n := c.char.OnSet(c.onSet); n > 1 {
				s.Warnf("%s: %d set handlers on characteristic", c.key, n)
			}
		}
	}
	return c, nil
}

// initialValue returns the restored value, else def, else the value cached
// by an adopted host characteristic.
func (c *CharacteristicDelegate) initialValue(def any) any {
	if v, ok := c.store.Get(c.key); ok && v != nil {
		nv, _, err := c.props.Normalize(v)
		if err == nil {
			return nv
		}
		c.service.Warnf("%s: ignore restored value %v: %v", c.key, v, err)
	}
	if def == nil && c.char != nil {
		def = c.char.Value()
	}
	if def == nil {
		return nil
	}
	nv, _, err := c.props.Normalize(def)
	if err != nil {
		c.service.Warnf("%s: ignore initial value %v: %v", c.key, def, err)
		return nil
	}
	return nv
}

// Key returns the characteristic key.
func (c *CharacteristicDelegate) Key() string { return c.key }

// Type returns the host characteristic type, nil for value-only delegates.
func (c *CharacteristicDelegate) Type() *hap.CharacteristicType { return c.ctype }

// Props returns the effective characteristic properties.
func (c *CharacteristicDelegate) Props() hap.Props { return c.props }

// Timeout returns the getter and setter timeout.
func (c *CharacteristicDelegate) Timeout() time.Duration { return c.timeout }

// Host returns the host characteristic, nil for value-only delegates.
func (c *CharacteristicDelegate) Host() host.Characteristic { return c.char }

// Service returns the owning service delegate.
func (c *CharacteristicDelegate) Service() *ServiceDelegate { return c.service }

// IID returns the host instance id, 0 for value-only delegates.
func (c *CharacteristicDelegate) IID() uint64 {
	if c.char == nil {
		return 0
	}
	return c.char.IID()
}

// Value returns the persisted value.
func (c *CharacteristicDelegate) Value() any {
	v, _ := c.store.Get(c.key)
	return v
}

// SetValue normalizes v, persists it and pushes it to the host.
// Setting the current value is a no-op unless the type is stateless.
func (c *CharacteristicDelegate) SetValue(v any) error {
	if c.destroyed.Load() {
		return fmt.Errorf("%w: characteristic %s", ErrDestroyed, c.key)
	}
	nv, clamp, err := c.props.Normalize(v)
	if err != nil {
		return fmt.Errorf("%s: %w", c.key, err)
	}
	old := c.Value()
	if equal(nv, old) && !c.stateless() {
		return nil
	}
	c.logChange(old, nv, clamp)
	c.store.Set(c.key, nv)
	if c.char != nil {
		c.char.UpdateValue(nv)
		c.record(log.OpUpdate, log.OutcomeOK, nv, clamp, time.Now(), nil)
	}
	c.changed(nv, false)
	return nil
}

// OnDidSet registers fn for value changes and returns a function that
// removes it.
func (c *CharacteristicDelegate) OnDidSet(fn func(SetEvent)) func() {
	return c.didSet.add(fn)
}

// OnDidTouch registers fn for host writes of the current value.
func (c *CharacteristicDelegate) OnDidTouch(fn func(any)) func() {
	return c.didTouch.add(fn)
}

// Destroy detaches from the host characteristic and removes the delegate
// from its service. Unless delegateOnly is set, the host characteristic and
// the persisted value are removed as well.
func (c *CharacteristicDelegate) Destroy(delegateOnly bool) {
	if c.destroyed.Swap(true) {
		return
	}
	c.cancel()
	c.didSet.clear()
	c.didTouch.clear()
	c.service.values.remove(c.key)
	c.service.removeCharacteristic(c)
	if c.char != nil {
		c.char.ClearHandlers()
	}
	if !delegateOnly {
		if c.char != nil {
			c.service.host.RemoveCharacteristic(c.char)
		}
		c.store.Delete(c.key)
	}
}

func (c *CharacteristicDelegate) stateless() bool {
	return c.ctype != nil && c.ctype.Stateless
}

func (c *CharacteristicDelegate) onGet(ctx context.Context) (any, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	start := time.Now()
	fallback := c.Value()
	o, err := guard(ctx, c.lifetime, c.timeout, c.getter, func(o outcome) {
		if o.err != nil {
			c.service.Warnf("%s: late get failed: %v", c.key, o.err)
			c.record(log.OpGet, log.OutcomeLate, nil, hap.ClampNone, start, o.err)
			return
		}
		v, _, err := c.props.Normalize(o.value)
		if err != nil {
			c.service.Warnf("%s: late get: %v", c.key, err)
			return
		}
		c.service.Debugf("%s: late get returned %v%s", c.key, v, c.unit)
		c.record(log.OpGet, log.OutcomeLate, v, hap.ClampNone, start, nil)
		if c.destroyed.Load() || equal(v, c.Value()) {
			return
		}
		c.logChange(c.Value(), v, hap.ClampNone)
		c.store.Set(c.key, v)
		c.char.UpdateValue(v)
		c.changed(v, false)
	})
	if err != nil {
		c.service.Warnf("%s: get: %v, returning %v%s", c.key, err, fallback, c.unit)
		c.record(log.OpGet, log.OutcomeTimeout, fallback, hap.ClampNone, start, err)
		if ctx.Err() != nil {
			return fallback, ctx.Err()
		}
		return fallback, nil
	}
	if o.err != nil {
		c.service.Errorf("%s: get: %v", c.key, o.err)
		c.record(log.OpGet, log.OutcomeError, nil, hap.ClampNone, start, o.err)
		return nil, o.err
	}
	v, clamp, err := c.props.Normalize(o.value)
	if err != nil {
		c.service.Errorf("%s: get: %v", c.key, err)
		c.record(log.OpGet, log.OutcomeError, nil, hap.ClampNone, start, err)
		return nil, err
	}
	c.record(log.OpGet, log.OutcomeOK, v, clamp, start, nil)
	if old := c.Value(); !equal(v, old) {
		c.logChange(old, v, clamp)
		c.store.Set(c.key, v)
		c.changed(v, false)
	}
	return v, nil
}

func (c *CharacteristicDelegate) onSet(ctx context.Context, value any) (any, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	start := time.Now()
	v, clamp, err := c.props.Normalize(value)
	if err != nil {
		c.service.Errorf("%s: set: %v", c.key, err)
		c.record(log.OpSet, log.OutcomeError, value, hap.ClampNone, start, err)
		return nil, err
	}
	old := c.Value()
	if equal(v, old) && !c.stateless() {
		if clamp != hap.ClampNone {
			c.char.UpdateValue(v)
		}
		c.service.VDebugf("%s: set to %v%s: unchanged", c.key, v, c.unit)
		c.record(log.OpSet, log.OutcomeTouch, v, clamp, start, nil)
		c.didTouch.emit(&c.service.delegate, "didTouch", v)
		return nil, nil
	}

	c.logChange(old, v, clamp)
	var result any
	if c.setter != nil {
		o, err := guard(ctx, c.lifetime, c.timeout, func(ctx context.Context) (any, error) {
			return c.setter(ctx, v)
		}, func(o outcome) {
			c.service.Warnf("%s: ignore late set to %v%s", c.key, v, c.unit)
			c.record(log.OpSet, log.OutcomeLate, v, clamp, start, o.err)
		})
		if err != nil {
			c.service.Warnf("%s: set to %v%s: %v", c.key, v, c.unit, err)
			c.record(log.OpSet, log.OutcomeTimeout, v, clamp, start, err)
			return nil, err
		}
		if o.err != nil {
			c.service.Errorf("%s: set to %v%s: %v", c.key, v, c.unit, o.err)
			c.record(log.OpSet, log.OutcomeError, v, clamp, start, o.err)
			return nil, o.err
		}
		result = o.value
	}

	c.store.Set(c.key, v)
	if clamp != hap.ClampNone {
		c.char.UpdateValue(v)
	}
	c.record(log.OpSet, log.OutcomeOK, v, clamp, start, nil)
	c.changed(v, true)
	if !c.props.WriteResponse() {
		return nil, nil
	}
	return result, nil
}

func (c *CharacteristicDelegate) changed(v any, fromHost bool) {
	c.didSet.emit(&c.service.delegate, "didSet", SetEvent{Value: v, FromHost: fromHost})
	c.service.platform.emitChange(Change{
		AccessoryID: c.service.accessory.id,
		ServiceKey:  c.service.key,
		Key:         c.key,
		Value:       v,
		FromHost:    fromHost,
	})
}

func (c *CharacteristicDelegate) logChange(old, v any, clamp hap.Clamp) {
	if c.silent {
		return
	}
	marker := ""
	if clamp != hap.ClampNone {
		marker = " (" + clamp.String() + ")"
	}
	if old == nil {
		c.service.Logf("set %s to %v%s%s", c.key, v, c.unit, marker)
		return
	}
	c.service.Logf("set %s from %v%s to %v%s%s", c.key, old, c.unit, v, c.unit, marker)
}

func (c *CharacteristicDelegate) record(op log.Op, out log.Outcome, v any, clamp hap.Clamp, start time.Time, err error) {
	e := log.Event{
		AccessoryID: c.service.accessory.id,
		ServiceKey:  c.service.key,
		Key:         c.key,
		Op:          op,
		Outcome:     out,
		Value:       v,
		Clamp:       clamp.String(),
		Duration:    time.Since(start),
	}
	if err != nil {
		e.Error = err.Error()
	}
	c.service.platform.record(e)
}

var _ ValueDelegate = (*CharacteristicDelegate)(nil)
