package delegate

import (
	"fmt"
	"sync/atomic"

	"github.com/ebaauw/homebridge-lib-go/pkg/host"
)

// PropertyParams configures a PropertyDelegate.
type PropertyParams struct {
	// Key identifies the value within the accessory.
	Key string

	// Value is the initial value, used when nothing is persisted yet.
	Value any

	// Unit is appended to the value in log messages.
	Unit string

	// Silent suppresses the log message on change.
	Silent bool
}

// PropertyDelegate owns a persisted accessory value that has no host
// characteristic.
type PropertyDelegate struct {
	parent *AccessoryDelegate
	store  *host.Context
	key    string
	unit   string
	silent bool

	didSet    listeners[SetEvent]
	destroyed atomic.Bool
}

// NewPropertyDelegate creates a property on the accessory delegate. A value
// restored from the accessory context wins over p.Value.
func NewPropertyDelegate(parent *AccessoryDelegate, p PropertyParams) (*PropertyDelegate, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: property parent is not an accessory delegate", ErrInvalidType)
	}
	if p.Key == "" {
		return nil, fmt.Errorf("%w: property key", ErrMissing)
	}
	d := &PropertyDelegate{
		parent: parent,
		store:  parent.host.Context(),
		key:    p.Key,
		unit:   p.Unit,
		silent: p.Silent,
	}
	if err := parent.values.add(d); err != nil {
		return nil, err
	}
	parent.addProperty(d)
	if !d.store.Has(p.Key) && p.Value != nil {
		d.store.Set(p.Key, p.Value)
	}
	return d, nil
}

// Key returns the property key.
func (d *PropertyDelegate) Key() string { return d.key }

// Value returns the persisted value.
func (d *PropertyDelegate) Value() any {
	v, _ := d.store.Get(d.key)
	return v
}

// SetValue persists v and emits didSet. Setting the current value is a no-op.
func (d *PropertyDelegate) SetValue(v any) error {
	if d.destroyed.Load() {
		return fmt.Errorf("%w: property %s", ErrDestroyed, d.key)
	}
	old := d.Value()
	if equal(v, old) {
		return nil
	}
	d.store.Set(d.key, v)
	if !d.silent {
		d.parent.Logf("set %s from %v%s to %v%s", d.key, old, d.unit, v, d.unit)
	}
	d.didSet.emit(&d.parent.delegate, "didSet", SetEvent{Value: v})
	d.parent.platform.emitChange(Change{AccessoryID: d.parent.id, Key: d.key, Value: v})
	return nil
}

// OnDidSet registers fn for value changes and returns a function that
// removes it.
func (d *PropertyDelegate) OnDidSet(fn func(SetEvent)) func() {
	return d.didSet.add(fn)
}

// Destroy removes the listeners and the delegate from its accessory. Unless
// delegateOnly is set, the persisted value is deleted as well.
func (d *PropertyDelegate) Destroy(delegateOnly bool) {
	if d.destroyed.Swap(true) {
		return
	}
	d.didSet.clear()
	d.parent.values.remove(d.key)
	d.parent.removeProperty(d)
	if !delegateOnly {
		d.store.Delete(d.key)
	}
}

var _ ValueDelegate = (*PropertyDelegate)(nil)
