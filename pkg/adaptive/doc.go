// Package adaptive implements the host's Adaptive Lighting protocol for a
// lightbulb with Brightness and ColorTemperature characteristics.
//
// Three TLV8 values are involved, all base64-encoded on the wire:
//
//   - The supported configuration, generated once, advertises which
//     characteristic instance ids take part in transitions.
//   - The transition control, written by the host, carries a start time and
//     a color temperature curve. A write is answered with a control response.
//   - The curve is evaluated locally: Ct returns the color temperature for a
//     brightness at the current time into the transition.
//
// All timestamps are milliseconds since 2001-01-01T00:00:00Z.
package adaptive
