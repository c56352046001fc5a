package memhost

import (
	"sync"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
)

// Characteristic is an in-memory host.Characteristic.
type Characteristic struct {
	acc *Accessory
	typ string
	iid uint64

	mu    sync.RWMutex
	props hap.Props
	value any
	gen   uint64 // bumped by UpdateValue
	get   host.GetHandler
	set   []host.SetHandler
}

func (c *Characteristic) TypeUUID() string { return c.typ }
func (c *Characteristic) IID() uint64      { return c.iid }

func (c *Characteristic) Props() hap.Props {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.props
}

func (c *Characteristic) SetProps(p hap.Props) {
	c.mu.Lock()
	c.props = p
	c.mu.Unlock()
}

func (c *Characteristic) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// UpdateValue caches v and notifies subscribers of notifying characteristics.
func (c *Characteristic) UpdateValue(v any) {
	c.mu.Lock()
	c.value = v
	c.gen++
	notify := c.props.Notify()
	c.mu.Unlock()
	if notify {
		c.acc.bridge.notify(Notification{AccessoryUUID: c.acc.uuid, IID: c.iid, Value: v})
	}
}

// OnGet replaces the get handler.
func (c *Characteristic) OnGet(h host.GetHandler) {
	c.mu.Lock()
	c.get = h
	c.mu.Unlock()
}

// OnSet adds a set handler.
func (c *Characteristic) OnSet(h host.SetHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = append(c.set, h)
	return len(c.set)
}

func (c *Characteristic) ClearHandlers() {
	c.mu.Lock()
	c.get = nil
	c.set = nil
	c.mu.Unlock()
}

var _ host.Characteristic = (*Characteristic)(nil)
