package log

import (
	"strings"
	"time"
)

// Event is one exchange between the host and a characteristic delegate.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the exchange completed (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// AccessoryID is the plugin-supplied accessory id.
	AccessoryID string `cbor:"2,keyasint"`

	// ServiceKey identifies the service within the accessory.
	ServiceKey string `cbor:"3,keyasint,omitempty"`

	// Key is the characteristic delegate key.
	Key string `cbor:"4,keyasint,omitempty"`

	Op      Op      `cbor:"5,keyasint"`
	Outcome Outcome `cbor:"6,keyasint"`

	// Value is the value returned to the host (get) or accepted from it (set).
	Value any `cbor:"7,keyasint,omitempty"`

	// Clamp names the adjustment applied to a written value, if any.
	Clamp string `cbor:"8,keyasint,omitempty"`

	// Duration from the start of the exchange until its outcome.
	Duration time.Duration `cbor:"9,keyasint,omitempty"`

	// Error is the plugin error message for error outcomes.
	Error string `cbor:"10,keyasint,omitempty"`
}

// Op is the kind of exchange.
type Op uint8

const (
	// OpGet is a host read.
	OpGet Op = 0
	// OpSet is a host write.
	OpSet Op = 1
	// OpUpdate is a value pushed to the host by the plugin.
	OpUpdate Op = 2
	// OpIdentify is a host identify request.
	OpIdentify Op = 3
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpUpdate:
		return "UPDATE"
	case OpIdentify:
		return "IDENTIFY"
	default:
		return "UNKNOWN"
	}
}

// ParseOp returns the op for a case-insensitive name.
func ParseOp(s string) (Op, bool) {
	for o := OpGet; o <= OpIdentify; o++ {
		if strings.EqualFold(o.String(), s) {
			return o, true
		}
	}
	return 0, false
}

// Outcome is how an exchange ended.
type Outcome uint8

const (
	// OutcomeOK indicates the exchange completed within its deadline.
	OutcomeOK Outcome = 0
	// OutcomeTouch indicates a write of the current value.
	OutcomeTouch Outcome = 1
	// OutcomeTimeout indicates the deadline fired before the plugin answered.
	OutcomeTimeout Outcome = 2
	// OutcomeError indicates the plugin failed the exchange.
	OutcomeError Outcome = 3
	// OutcomeLate indicates a plugin answer arrived after the deadline.
	OutcomeLate Outcome = 4
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeTouch:
		return "TOUCH"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeError:
		return "ERROR"
	case OutcomeLate:
		return "LATE"
	default:
		return "UNKNOWN"
	}
}

// ParseOutcome returns the outcome for a case-insensitive name.
func ParseOutcome(s string) (Outcome, bool) {
	for o := OutcomeOK; o <= OutcomeLate; o++ {
		if strings.EqualFold(o.String(), s) {
			return o, true
		}
	}
	return 0, false
}
