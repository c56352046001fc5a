// Package hap describes the host's accessory object model as plain data.
//
// The host runtime defines the catalog of service and characteristic types,
// accessory categories, value formats and permissions. This package carries
// the subset the delegate layer needs as a string-keyed registry:
//
//	Catalog
//	├── ServiceType        (name, UUID)
//	└── CharacteristicType (name, UUID, Props)
//
// Custom types are validated once, when they are registered, rather than on
// every use.
//
// # Value Normalization
//
// Props.Normalize applies the host's format constraints to a value:
//   - Integral formats round to the nearest integer and clamp to [min,max]
//   - Float clamps to [min,max]
//   - String truncates to MaxLen (default 64)
//   - Bool, TLV8 and data pass through unchanged
//
// Clamping is reported, never rejected.
package hap
