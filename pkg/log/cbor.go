package log

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Events are stored canonically with RFC 3339 timestamps. The decoder is
// lenient so logs written by older builds stay readable.
var (
	encMode = must(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode())

	decMode = must(cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
	}.DecMode())
)

func must[M any](m M, err error) M {
	if err != nil {
		panic("exchange log: cbor mode: " + err.Error())
	}
	return m
}

// EncodeEvent encodes one event.
func EncodeEvent(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// DecodeEvent decodes one event. Values come back as CBOR yields them, so
// integers may have widened to uint64 or int64.
func DecodeEvent(data []byte) (event Event, err error) {
	err = decMode.Unmarshal(data, &event)
	return event, err
}

// NewEncoder and NewDecoder stream events back to back, without framing.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
