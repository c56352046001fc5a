package memhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
)

func (b *Bridge) characteristic(uuid string, iid uint64) (*Accessory, *Characteristic, error) {
	a := b.lookup(uuid)
	if a == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAccessory, uuid)
	}
	c := a.CharacteristicByIID(iid)
	if c == nil {
		return nil, nil, fmt.Errorf("%w: %s/%d", ErrUnknownIID, uuid, iid)
	}
	return a, c, nil
}

// Get reads a characteristic as a client app would. Without a get handler
// the cached value is returned; with one, its result is cached and returned.
func (b *Bridge) Get(ctx context.Context, uuid string, iid uint64) (any, error) {
	_, c, err := b.characteristic(uuid, iid)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	readable := c.props.Readable()
	h := c.get
	value := c.value
	c.mu.RUnlock()
	if !readable {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotReadable, uuid, iid)
	}
	if h == nil {
		return value, nil
	}
	v, err := h(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	return v, nil
}

// Set writes a characteristic as a client app would. Writes to an Identify
// characteristic also run the accessory's identify handlers. The set
// handlers run in order; the first error fails the write. The written value
// is cached unless a handler updated the value itself. The first handler's
// result is returned for characteristics with a write response.
func (b *Bridge) Set(ctx context.Context, uuid string, iid uint64, v any) (any, error) {
	a, c, err := b.characteristic(uuid, iid)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	writable := c.props.Writable()
	wr := c.props.WriteResponse()
	handlers := append([]host.SetHandler(nil), c.set...)
	gen := c.gen
	c.mu.RUnlock()
	if !writable {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotWritable, uuid, iid)
	}

	if strings.EqualFold(c.typ, hap.CharIdentify.UUID) {
		a.Identify()
	}

	var result any
	for i, h := range handlers {
		r, err := h(ctx, v)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = r
		}
	}

	c.mu.Lock()
	if c.gen == gen {
		c.value = v
	}
	c.mu.Unlock()
	if !wr {
		return nil, nil
	}
	return result, nil
}

// Identify runs the identify handlers of the accessory.
func (b *Bridge) Identify(uuid string) error {
	a := b.lookup(uuid)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAccessory, uuid)
	}
	a.Identify()
	return nil
}
