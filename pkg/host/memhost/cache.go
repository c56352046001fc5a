package memhost

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/persistence"
)

// Load restores the cached accessories. Restored accessories are known to
// Accessory without being registered again.
func (b *Bridge) Load() (int, error) {
	if b.store == nil {
		return 0, nil
	}
	cache, err := b.store.Load()
	if err != nil {
		return 0, fmt.Errorf("load cached accessories: %w", err)
	}
	if cache == nil {
		return 0, nil
	}

	restored := make([]*Accessory, 0, len(cache.Accessories))
	for _, ca := range cache.Accessories {
		a, err := b.restore(ca)
		if err != nil {
			return 0, err
		}
		restored = append(restored, a)
	}

	b.mu.Lock()
	for _, a := range restored {
		b.accessories[a.uuid] = a
	}
	b.mu.Unlock()
	for _, a := range restored {
		b.logger.Debug("restored accessory", "name", a.DisplayName(), "uuid", a.uuid)
	}
	return len(restored), nil
}

func (b *Bridge) restore(ca persistence.CachedAccessory) (*Accessory, error) {
	a := newAccessory(b, ca.DisplayName, strings.ToUpper(ca.UUID), hap.Category(ca.Category), ca.Context)
	a.mu.Lock()
	for _, cs := range ca.Services {
		a.reserveIID(cs.IID)
		for _, cc := range cs.Characteristics {
			a.reserveIID(cc.IID)
		}
	}
	a.mu.Unlock()

	byKey := make(map[string]*Service)
	for _, cs := range ca.Services {
		s := a.restoreService(cs)
		byKey[cs.Type+"."+cs.Subtype] = s
		for _, cc := range cs.Characteristics {
			var props hap.Props
			if len(cc.Props) > 0 {
				if err := json.Unmarshal(cc.Props, &props); err != nil {
					return nil, fmt.Errorf("accessory %s: characteristic %s: props: %w", ca.UUID, cc.Type, err)
				}
			}
			s.addCharacteristic(cc.Type, props, cc.IID, cc.Value)
		}
	}
	for _, cs := range ca.Services {
		s := byKey[cs.Type+"."+cs.Subtype]
		for _, l := range cs.Linked {
			if ls, ok := byKey[l]; ok {
				s.AddLinkedService(ls)
			}
		}
	}
	return a, nil
}

func (a *Accessory) restoreService(cs persistence.CachedService) *Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	iid := cs.IID
	if iid == 0 {
		iid = a.allocIID()
	}
	s := &Service{
		acc:     a,
		typ:     cs.Type,
		subtype: cs.Subtype,
		iid:     iid,
		name:    cs.Name,
		primary: cs.Primary,
		hidden:  cs.Hidden,
	}
	a.services = append(a.services, s)
	return s
}

// Save writes all known accessories to the store.
func (b *Bridge) Save() error {
	if b.store == nil {
		return nil
	}
	cache := &persistence.Cache{Version: persistence.CacheVersion}
	for _, a := range b.Accessories() {
		ca, err := a.cached()
		if err != nil {
			return err
		}
		cache.Accessories = append(cache.Accessories, ca)
	}
	if err := b.store.Save(cache); err != nil {
		return fmt.Errorf("save cached accessories: %w", err)
	}
	return nil
}

func (a *Accessory) cached() (persistence.CachedAccessory, error) {
	ca := persistence.CachedAccessory{
		UUID:     a.uuid,
		Category: uint16(a.category),
		Context:  a.ctx.Snapshot(),
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	ca.DisplayName = a.name
	for _, s := range a.services {
		cs := persistence.CachedService{
			Type:    s.typ,
			Subtype: s.subtype,
			IID:     s.iid,
			Name:    s.name,
			Primary: s.primary,
			Hidden:  s.hidden,
		}
		for _, l := range s.linked {
			cs.Linked = append(cs.Linked, l.typ+"."+l.subtype)
		}
		for _, c := range s.chars {
			c.mu.RLock()
			props, err := json.Marshal(c.props)
			cc := persistence.CachedCharacteristic{Type: c.typ, IID: c.iid, Value: c.value, Props: props}
			c.mu.RUnlock()
			if err != nil {
				return ca, fmt.Errorf("accessory %s: characteristic %s: props: %w", a.uuid, c.typ, err)
			}
			cs.Characteristics = append(cs.Characteristics, cc)
		}
		ca.Services = append(ca.Services, cs)
	}
	return ca, nil
}
