package hap

// Standard service types.
var (
	ServiceAccessoryInformation        = &ServiceType{Name: "AccessoryInformation", UUID: StandardUUID("3E")}
	ServiceProtocolInformation         = &ServiceType{Name: "ProtocolInformation", UUID: StandardUUID("A2")}
	ServiceLightbulb                   = &ServiceType{Name: "Lightbulb", UUID: StandardUUID("43")}
	ServiceSwitch                      = &ServiceType{Name: "Switch", UUID: StandardUUID("49")}
	ServiceOutlet                      = &ServiceType{Name: "Outlet", UUID: StandardUUID("47")}
	ServiceTemperatureSensor           = &ServiceType{Name: "TemperatureSensor", UUID: StandardUUID("8A")}
	ServiceStatelessProgrammableSwitch = &ServiceType{Name: "StatelessProgrammableSwitch", UUID: StandardUUID("89")}
	ServiceFilterMaintenance           = &ServiceType{Name: "FilterMaintenance", UUID: StandardUUID("BA")}
)

var (
	read       = []Perm{PermRead}
	readNotify = []Perm{PermRead, PermNotify}
	readWrite  = []Perm{PermRead, PermWrite, PermNotify}
)

// Standard characteristic types.
var (
	CharIdentify = &CharacteristicType{Name: "Identify", UUID: StandardUUID("14"),
		Props: Props{Format: FormatBool, Perms: []Perm{PermWrite}}}
	CharManufacturer = &CharacteristicType{Name: "Manufacturer", UUID: StandardUUID("20"),
		Props: Props{Format: FormatString, Perms: read}}
	CharModel = &CharacteristicType{Name: "Model", UUID: StandardUUID("21"),
		Props: Props{Format: FormatString, Perms: read}}
	CharName = &CharacteristicType{Name: "Name", UUID: StandardUUID("23"),
		Props: Props{Format: FormatString, Perms: read}}
	CharSerialNumber = &CharacteristicType{Name: "SerialNumber", UUID: StandardUUID("30"),
		Props: Props{Format: FormatString, Perms: read}}
	CharFirmwareRevision = &CharacteristicType{Name: "FirmwareRevision", UUID: StandardUUID("52"),
		Props: Props{Format: FormatString, Perms: read}}
	CharHardwareRevision = &CharacteristicType{Name: "HardwareRevision", UUID: StandardUUID("53"),
		Props: Props{Format: FormatString, Perms: read}}
	CharSoftwareRevision = &CharacteristicType{Name: "SoftwareRevision", UUID: StandardUUID("54"),
		Props: Props{Format: FormatString, Perms: read}}
	CharVersion = &CharacteristicType{Name: "Version", UUID: StandardUUID("37"),
		Props: Props{Format: FormatString, Perms: readNotify}}
	CharConfiguredName = &CharacteristicType{Name: "ConfiguredName", UUID: StandardUUID("E3"),
		Props: Props{Format: FormatString, Perms: readWrite}}
	CharOn = &CharacteristicType{Name: "On", UUID: StandardUUID("25"),
		Props: Props{Format: FormatBool, Perms: readWrite}}
	CharBrightness = &CharacteristicType{Name: "Brightness", UUID: StandardUUID("8"),
		Props: Props{Format: FormatInt, Perms: readWrite, Unit: "percentage",
			MinValue: Float(0), MaxValue: Float(100), MinStep: Float(1)}}
	CharColorTemperature = &CharacteristicType{Name: "ColorTemperature", UUID: StandardUUID("CE"),
		Props: Props{Format: FormatUInt32, Perms: readWrite,
			MinValue: Float(140), MaxValue: Float(500), MinStep: Float(1)}}
	CharCurrentTemperature = &CharacteristicType{Name: "CurrentTemperature", UUID: StandardUUID("11"),
		Props: Props{Format: FormatFloat, Perms: readNotify, Unit: "celsius",
			MinValue: Float(-270), MaxValue: Float(100), MinStep: Float(0.1)}}
	CharProgrammableSwitchEvent = &CharacteristicType{Name: "ProgrammableSwitchEvent", UUID: StandardUUID("73"),
		Props:     Props{Format: FormatUInt8, Perms: readNotify, MinValue: Float(0), MaxValue: Float(2)},
		Stateless: true}
	CharResetFilterIndication = &CharacteristicType{Name: "ResetFilterIndication", UUID: StandardUUID("AD"),
		Props:     Props{Format: FormatUInt8, Perms: []Perm{PermWrite}, MinValue: Float(1), MaxValue: Float(1)},
		Stateless: true}
	CharSupportedTransitionConfiguration = &CharacteristicType{Name: "SupportedCharacteristicValueTransitionConfiguration", UUID: StandardUUID("144"),
		Props: Props{Format: FormatTLV8, Perms: read}}
	CharTransitionControl = &CharacteristicType{Name: "CharacteristicValueTransitionControl", UUID: StandardUUID("143"),
		Props:     Props{Format: FormatTLV8, Perms: []Perm{PermRead, PermWrite, PermWriteResponse}},
		Stateless: true}
	CharActiveTransitionCount = &CharacteristicType{Name: "CharacteristicValueActiveTransitionCount", UUID: StandardUUID("24B"),
		Props: Props{Format: FormatUInt8, Perms: readNotify}}
)

var standardServices = []*ServiceType{
	ServiceAccessoryInformation,
	ServiceProtocolInformation,
	ServiceLightbulb,
	ServiceSwitch,
	ServiceOutlet,
	ServiceTemperatureSensor,
	ServiceStatelessProgrammableSwitch,
	ServiceFilterMaintenance,
}

var standardCharacteristics = []*CharacteristicType{
	CharIdentify,
	CharManufacturer,
	CharModel,
	CharName,
	CharSerialNumber,
	CharFirmwareRevision,
	CharHardwareRevision,
	CharSoftwareRevision,
	CharVersion,
	CharConfiguredName,
	CharOn,
	CharBrightness,
	CharColorTemperature,
	CharCurrentTemperature,
	CharProgrammableSwitchEvent,
	CharResetFilterIndication,
	CharSupportedTransitionConfiguration,
	CharTransitionControl,
	CharActiveTransitionCount,
}
