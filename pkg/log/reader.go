package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	AccessoryID string
	ServiceKey  string
	Key         string
	Op          *Op
	Outcome     *Outcome

	// Since matches events at or after this time.
	Since *time.Time

	// Until matches events before this time.
	Until *time.Time
}

func (f *Filter) matches(e Event) bool {
	switch {
	case f.AccessoryID != "" && e.AccessoryID != f.AccessoryID:
		return false
	case f.ServiceKey != "" && e.ServiceKey != f.ServiceKey:
		return false
	case f.Key != "" && e.Key != f.Key:
		return false
	case f.Op != nil && e.Op != *f.Op:
		return false
	case f.Outcome != nil && e.Outcome != *f.Outcome:
		return false
	case f.Since != nil && e.Timestamp.Before(*f.Since):
		return false
	case f.Until != nil && !e.Timestamp.Before(*f.Until):
		return false
	}
	return true
}

// Reader streams events from a file written by FileLogger.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path for reading all events.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path for reading the events that match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, or io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		if err := r.decoder.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(e) {
			return e, nil
		}
	}
}

// All reads the remaining matching events.
func (r *Reader) All() ([]Event, error) {
	var out []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
