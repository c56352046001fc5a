package host

import (
	"context"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

// GetHandler answers a host read of a characteristic.
type GetHandler func(ctx context.Context) (any, error)

// SetHandler handles a host write of a characteristic. The returned value is
// sent back to the client when the characteristic demands a write response.
type SetHandler func(ctx context.Context, value any) (any, error)

// Bridge is the accessory registry of the host.
type Bridge interface {
	// Accessory returns the known (restored or registered) accessory with
	// the given UUID, or nil.
	Accessory(uuid string) Accessory

	// NewAccessory creates an accessory that is not yet registered.
	NewAccessory(name, uuid string, category hap.Category) Accessory

	// RegisterAccessory exposes the accessory to client apps.
	RegisterAccessory(a Accessory) error

	// UnregisterAccessory removes the accessory and its cached state.
	UnregisterAccessory(a Accessory) error
}

// Accessory is a host accessory.
type Accessory interface {
	UUID() string
	DisplayName() string
	SetDisplayName(name string)
	Category() hap.Category

	// Context returns the persisted top-level context.
	Context() *Context

	Services() []Service

	// Service returns the service with the given type and subtype, or nil.
	Service(typeUUID, subtype string) Service

	// AddService creates a service on the accessory.
	AddService(st *hap.ServiceType, name, subtype string) Service

	RemoveService(s Service)

	// OnIdentify registers a handler for identify requests.
	OnIdentify(fn func())
}

// Service is a host service.
type Service interface {
	TypeUUID() string
	Subtype() string
	Name() string

	Characteristics() []Characteristic

	// Characteristic returns the characteristic with the given type, or nil.
	Characteristic(typeUUID string) Characteristic

	// AddCharacteristic creates a characteristic with the type's default props.
	AddCharacteristic(ct *hap.CharacteristicType) Characteristic

	RemoveCharacteristic(c Characteristic)

	SetPrimary(primary bool)
	SetHidden(hidden bool)
	AddLinkedService(s Service)
}

// Characteristic is a host characteristic.
type Characteristic interface {
	TypeUUID() string

	// IID is the instance id, unique within the accessory.
	IID() uint64

	Props() hap.Props
	SetProps(p hap.Props)

	// Value returns the value cached by the host.
	Value() any

	// UpdateValue sets the cached value and notifies subscribed clients.
	UpdateValue(v any)

	OnGet(h GetHandler)

	// OnSet attaches a set handler and returns the number of set handlers
	// now attached.
	OnSet(h SetHandler) int

	// ClearHandlers detaches all get and set handlers.
	ClearHandlers()
}
