package host

import (
	"encoding/json"
	"sort"
	"sync"
)

// Context is a persisted, JSON-like key/value scope. Scopes obtained with
// Sub share the lock of their root.
type Context struct {
	mu *sync.RWMutex
	m  map[string]any
}

// NewContext creates a root context holding m. A nil m starts empty.
func NewContext(m map[string]any) *Context {
	if m == nil {
		m = make(map[string]any)
	}
	return &Context{mu: &sync.RWMutex{}, m: m}
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Has returns true if key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores v under key.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

// Delete removes key.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Keys returns the keys of the scope, sorted.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sub returns the nested scope under key, creating it when absent. A
// non-object value under key is replaced.
func (c *Context) Sub(key string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.m[key].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		c.m[key] = sub
	}
	return &Context{mu: c.mu, m: sub}
}

// Snapshot returns a deep copy of the scope.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(c.m)
}

// MarshalJSON encodes the scope as a JSON object.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// UnmarshalJSON replaces the contents of the scope.
func (c *Context) UnmarshalJSON(data []byte) error {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if c.mu == nil {
		c.mu = &sync.RWMutex{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		delete(c.m, k)
	}
	if c.m == nil {
		c.m = m
		return nil
	}
	for k, v := range m {
		c.m[k] = v
	}
	return nil
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	default:
		return v
	}
}
