package hap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Catalog errors.
var (
	ErrUnknownType   = errors.New("unknown type")
	ErrDuplicateType = errors.New("duplicate type")
	ErrInvalidType   = errors.New("invalid type definition")
)

// uuidSuffix is the base UUID suffix of the host's standard types.
const uuidSuffix = "-0000-1000-8000-0026BB765291"

// StandardUUID expands a short type id (e.g. "43") to a full UUID.
func StandardUUID(short string) string {
	short = strings.ToUpper(short)
	if len(short) < 8 {
		short = strings.Repeat("0", 8-len(short)) + short
	}
	return short + uuidSuffix
}

// ServiceType identifies a kind of host service.
type ServiceType struct {
	Name string
	UUID string
}

// CharacteristicType identifies a kind of host characteristic and its
// default properties.
type CharacteristicType struct {
	Name  string
	UUID  string
	Props Props

	// Stateless types fire on every write, even if the value is unchanged.
	Stateless bool
}

// Category is the accessory category shown by client apps.
type Category uint16

const (
	CategoryOther              Category = 1
	CategoryBridge             Category = 2
	CategoryFan                Category = 3
	CategoryLightbulb          Category = 5
	CategoryOutlet             Category = 7
	CategorySwitch             Category = 8
	CategoryThermostat         Category = 9
	CategorySensor             Category = 10
	CategoryProgrammableSwitch Category = 15
)

// Catalog is a registry of service and characteristic types, keyed by name
// and by UUID.
type Catalog struct {
	mu              sync.RWMutex
	services        map[string]*ServiceType
	servicesByUUID  map[string]*ServiceType
	characteristics map[string]*CharacteristicType
	charsByUUID     map[string]*CharacteristicType
}

// NewCatalog creates a catalog preloaded with the standard types.
func NewCatalog() *Catalog {
	c := &Catalog{
		services:        make(map[string]*ServiceType),
		servicesByUUID:  make(map[string]*ServiceType),
		characteristics: make(map[string]*CharacteristicType),
		charsByUUID:     make(map[string]*CharacteristicType),
	}
	for _, st := range standardServices {
		if err := c.RegisterService(st); err != nil {
			panic(fmt.Sprintf("hap: standard service %s: %v", st.Name, err))
		}
	}
	for _, ct := range standardCharacteristics {
		if err := c.RegisterCharacteristic(ct); err != nil {
			panic(fmt.Sprintf("hap: standard characteristic %s: %v", ct.Name, err))
		}
	}
	return c
}

// RegisterService adds a custom service type.
func (c *Catalog) RegisterService(st *ServiceType) error {
	if st == nil || st.Name == "" {
		return fmt.Errorf("%w: service without name", ErrInvalidType)
	}
	if _, err := uuid.Parse(st.UUID); err != nil {
		return fmt.Errorf("%w: service %s: uuid %q: %v", ErrInvalidType, st.Name, st.UUID, err)
	}
	key := strings.ToUpper(st.UUID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[st.Name]; exists {
		return fmt.Errorf("%w: service %s", ErrDuplicateType, st.Name)
	}
	if _, exists := c.servicesByUUID[key]; exists {
		return fmt.Errorf("%w: service uuid %s", ErrDuplicateType, st.UUID)
	}
	st.UUID = key
	c.services[st.Name] = st
	c.servicesByUUID[key] = st
	return nil
}

// RegisterCharacteristic adds a custom characteristic type.
func (c *Catalog) RegisterCharacteristic(ct *CharacteristicType) error {
	if ct == nil || ct.Name == "" {
		return fmt.Errorf("%w: characteristic without name", ErrInvalidType)
	}
	if _, err := uuid.Parse(ct.UUID); err != nil {
		return fmt.Errorf("%w: characteristic %s: uuid %q: %v", ErrInvalidType, ct.Name, ct.UUID, err)
	}
	if ct.Props.Format == "" {
		return fmt.Errorf("%w: characteristic %s: no format", ErrInvalidType, ct.Name)
	}
	if ct.Props.MinValue != nil && ct.Props.MaxValue != nil && *ct.Props.MinValue > *ct.Props.MaxValue {
		return fmt.Errorf("%w: characteristic %s: minValue > maxValue", ErrInvalidType, ct.Name)
	}
	key := strings.ToUpper(ct.UUID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.characteristics[ct.Name]; exists {
		return fmt.Errorf("%w: characteristic %s", ErrDuplicateType, ct.Name)
	}
	if _, exists := c.charsByUUID[key]; exists {
		return fmt.Errorf("%w: characteristic uuid %s", ErrDuplicateType, ct.UUID)
	}
	ct.UUID = key
	c.characteristics[ct.Name] = ct
	c.charsByUUID[key] = ct
	return nil
}

// Service returns a service type by name.
func (c *Catalog) Service(name string) (*ServiceType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: service %s", ErrUnknownType, name)
	}
	return st, nil
}

// ServiceByUUID returns a service type by UUID.
func (c *Catalog) ServiceByUUID(id string) (*ServiceType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.servicesByUUID[strings.ToUpper(id)]
	return st, ok
}

// Characteristic returns a characteristic type by name.
func (c *Catalog) Characteristic(name string) (*CharacteristicType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.characteristics[name]
	if !ok {
		return nil, fmt.Errorf("%w: characteristic %s", ErrUnknownType, name)
	}
	return ct, nil
}

// CharacteristicByUUID returns a characteristic type by UUID.
func (c *Catalog) CharacteristicByUUID(id string) (*CharacteristicType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.charsByUUID[strings.ToUpper(id)]
	return ct, ok
}

// ServiceNames returns the registered service names, sorted.
func (c *Catalog) ServiceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CharacteristicNames returns the registered characteristic names, sorted.
func (c *Catalog) CharacteristicNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.characteristics))
	for name := range c.characteristics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
