package delegate

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

// Values gives access to the values of a delegate's value delegates by key.
type Values struct {
	mu sync.RWMutex
	m  map[string]ValueDelegate
}

func newValues() *Values {
	return &Values{m: make(map[string]ValueDelegate)}
}

func (v *Values) add(d ValueDelegate) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.m[d.Key()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, d.Key())
	}
	v.m[d.Key()] = d
	return nil
}

func (v *Values) remove(key string) {
	v.mu.Lock()
	delete(v.m, key)
	v.mu.Unlock()
}

// Delegate returns the value delegate for key, or nil.
func (v *Values) Delegate(key string) ValueDelegate {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.m[key]
}

// Has reports whether a value delegate exists for key.
func (v *Values) Has(key string) bool {
	return v.Delegate(key) != nil
}

// Get returns the value for key.
func (v *Values) Get(key string) (any, bool) {
	d := v.Delegate(key)
	if d == nil {
		return nil, false
	}
	return d.Value(), true
}

// Set sets the value for key.
func (v *Values) Set(key string, value any) error {
	d := v.Delegate(key)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return d.SetValue(value)
}

// Keys returns the keys, sorted.
func (v *Values) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns the current values by key.
func (v *Values) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]any, len(v.m))
	for k, d := range v.m {
		out[k] = d.Value()
	}
	return out
}

// equal compares values as they come back from the persisted context:
// numbers compare by value regardless of their Go type.
func equal(a, b any) bool {
	if fa, ok := hap.ToFloat64(a); ok {
		if fb, ok := hap.ToFloat64(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// toInt converts a persisted number to int.
func toInt(v any) (int, bool) {
	f, ok := hap.ToFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
