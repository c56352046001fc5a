package memhost

import (
	"strings"
	"sync"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
)

// Accessory is an in-memory host.Accessory.
type Accessory struct {
	bridge   *Bridge
	uuid     string
	category hap.Category
	ctx      *host.Context

	mu       sync.RWMutex
	name     string
	services []*Service
	nextIID  uint64
	identify []func()
}

func newAccessory(b *Bridge, name, uuid string, category hap.Category, ctx map[string]any) *Accessory {
	return &Accessory{
		bridge:   b,
		uuid:     uuid,
		name:     name,
		category: category,
		ctx:      host.NewContext(ctx),
		nextIID:  1,
	}
}

func (a *Accessory) UUID() string { return a.uuid }

func (a *Accessory) DisplayName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

func (a *Accessory) SetDisplayName(name string) {
	a.mu.Lock()
	a.name = name
	a.mu.Unlock()
}

func (a *Accessory) Category() hap.Category { return a.category }

func (a *Accessory) Context() *host.Context { return a.ctx }

func (a *Accessory) Services() []host.Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]host.Service, len(a.services))
	for i, s := range a.services {
		out[i] = s
	}
	return out
}

func (a *Accessory) Service(typeUUID, subtype string) host.Service {
	if s := a.service(typeUUID, subtype); s != nil {
		return s
	}
	return nil
}

func (a *Accessory) service(typeUUID, subtype string) *Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.services {
		if strings.EqualFold(s.typ, typeUUID) && s.subtype == subtype {
			return s
		}
	}
	return nil
}

func (a *Accessory) AddService(st *hap.ServiceType, name, subtype string) host.Service {
	return a.addService(st.UUID, name, subtype)
}

func (a *Accessory) addService(typeUUID, name, subtype string) *Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &Service{
		acc:     a,
		typ:     strings.ToUpper(typeUUID),
		subtype: subtype,
		name:    name,
		iid:     a.allocIID(),
	}
	a.services = append(a.services, s)
	return s
}

// allocIID must be called with a.mu held.
func (a *Accessory) allocIID() uint64 {
	iid := a.nextIID
	a.nextIID++
	return iid
}

// reserveIID must be called with a.mu held.
func (a *Accessory) reserveIID(iid uint64) {
	if iid >= a.nextIID {
		a.nextIID = iid + 1
	}
}

func (a *Accessory) RemoveService(hs host.Service) {
	s, ok := hs.(*Service)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, x := range a.services {
		if x == s {
			a.services = append(a.services[:i], a.services[i+1:]...)
			break
		}
	}
	for _, x := range a.services {
		x.unlink(s)
	}
}

func (a *Accessory) OnIdentify(fn func()) {
	a.mu.Lock()
	a.identify = append(a.identify, fn)
	a.mu.Unlock()
}

// Identify runs the identify handlers, as a client app would trigger them.
func (a *Accessory) Identify() {
	a.mu.RLock()
	handlers := append([]func(){}, a.identify...)
	a.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}

// CharacteristicByIID returns the characteristic with the given iid, or nil.
func (a *Accessory) CharacteristicByIID(iid uint64) *Characteristic {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.services {
		for _, c := range s.chars {
			if c.iid == iid {
				return c
			}
		}
	}
	return nil
}

var _ host.Accessory = (*Accessory)(nil)

// Service is an in-memory host.Service. Its state is guarded by the
// accessory's lock.
type Service struct {
	acc     *Accessory
	typ     string
	subtype string
	iid     uint64

	name    string
	primary bool
	hidden  bool
	linked  []*Service
	chars   []*Characteristic
}

func (s *Service) TypeUUID() string { return s.typ }
func (s *Service) Subtype() string  { return s.subtype }
func (s *Service) Name() string     { return s.name }

// IID returns the service instance id.
func (s *Service) IID() uint64 { return s.iid }

func (s *Service) Characteristics() []host.Characteristic {
	s.acc.mu.RLock()
	defer s.acc.mu.RUnlock()
	out := make([]host.Characteristic, len(s.chars))
	for i, c := range s.chars {
		out[i] = c
	}
	return out
}

func (s *Service) Characteristic(typeUUID string) host.Characteristic {
	s.acc.mu.RLock()
	defer s.acc.mu.RUnlock()
	for _, c := range s.chars {
		if strings.EqualFold(c.typ, typeUUID) {
			return c
		}
	}
	return nil
}

func (s *Service) AddCharacteristic(ct *hap.CharacteristicType) host.Characteristic {
	return s.addCharacteristic(ct.UUID, ct.Props, 0, nil)
}

// addCharacteristic allocates an iid when iid is zero.
func (s *Service) addCharacteristic(typeUUID string, props hap.Props, iid uint64, value any) *Characteristic {
	s.acc.mu.Lock()
	defer s.acc.mu.Unlock()
	if iid == 0 {
		iid = s.acc.allocIID()
	} else {
		s.acc.reserveIID(iid)
	}
	c := &Characteristic{
		acc:   s.acc,
		typ:   strings.ToUpper(typeUUID),
		iid:   iid,
		props: props,
		value: value,
	}
	s.chars = append(s.chars, c)
	return c
}

func (s *Service) RemoveCharacteristic(hc host.Characteristic) {
	c, ok := hc.(*Characteristic)
	if !ok {
		return
	}
	s.acc.mu.Lock()
	defer s.acc.mu.Unlock()
	for i, x := range s.chars {
		if x == c {
			s.chars = append(s.chars[:i], s.chars[i+1:]...)
			return
		}
	}
}

func (s *Service) SetPrimary(primary bool) {
	s.acc.mu.Lock()
	s.primary = primary
	s.acc.mu.Unlock()
}

// Primary reports whether the service is the accessory's primary service.
func (s *Service) Primary() bool {
	s.acc.mu.RLock()
	defer s.acc.mu.RUnlock()
	return s.primary
}

func (s *Service) SetHidden(hidden bool) {
	s.acc.mu.Lock()
	s.hidden = hidden
	s.acc.mu.Unlock()
}

// Hidden reports whether the service is hidden from client apps.
func (s *Service) Hidden() bool {
	s.acc.mu.RLock()
	defer s.acc.mu.RUnlock()
	return s.hidden
}

func (s *Service) AddLinkedService(hs host.Service) {
	l, ok := hs.(*Service)
	if !ok {
		return
	}
	s.acc.mu.Lock()
	defer s.acc.mu.Unlock()
	for _, x := range s.linked {
		if x == l {
			return
		}
	}
	s.linked = append(s.linked, l)
}

// Linked returns the linked services.
func (s *Service) Linked() []*Service {
	s.acc.mu.RLock()
	defer s.acc.mu.RUnlock()
	return append([]*Service(nil), s.linked...)
}

// unlink must be called with the accessory lock held.
func (s *Service) unlink(l *Service) {
	for i, x := range s.linked {
		if x == l {
			s.linked = append(s.linked[:i], s.linked[i+1:]...)
			return
		}
	}
}

var _ host.Service = (*Service)(nil)
