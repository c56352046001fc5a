// Package commands implements the hblib-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

// Filter selects the events a command works on.
type Filter = log.Filter

// FilterOptions holds the raw selection flags.
type FilterOptions struct {
	AccessoryID string
	ServiceKey  string
	Key         string
	Op          string
	Outcome     string
	Since       string
	Until       string
}

// Build validates the options and converts them to a Filter.
func (o FilterOptions) Build() (Filter, error) {
	f := Filter{
		AccessoryID: o.AccessoryID,
		ServiceKey:  o.ServiceKey,
		Key:         o.Key,
	}
	if o.Op != "" {
		op, ok := log.ParseOp(o.Op)
		if !ok {
			return f, fmt.Errorf("invalid op: %s (must be get, set, update or identify)", o.Op)
		}
		f.Op = &op
	}
	if o.Outcome != "" {
		oc, ok := log.ParseOutcome(o.Outcome)
		if !ok {
			return f, fmt.Errorf("invalid outcome: %s (must be ok, touch, timeout, error or late)", o.Outcome)
		}
		f.Outcome = &oc
	}
	if o.Since != "" {
		t, err := time.Parse(time.RFC3339, o.Since)
		if err != nil {
			return f, fmt.Errorf("invalid since: %w", err)
		}
		f.Since = &t
	}
	if o.Until != "" {
		t, err := time.Parse(time.RFC3339, o.Until)
		if err != nil {
			return f, fmt.Errorf("invalid until: %w", err)
		}
		f.Until = &t
	}
	if f.Since != nil && f.Until != nil && !f.Until.After(*f.Since) {
		return f, fmt.Errorf("until %s is not after since %s", o.Until, o.Since)
	}
	return f, nil
}

// each calls fn for every event in path that matches filter.
func each(path string, filter Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunFilter copies the matching events of path to output and returns
// how many were written.
func RunFilter(path, output string, filter Filter) (int, error) {
	out, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n := 0
	err = each(path, filter, func(e log.Event) error {
		out.Log(e)
		n++
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if d := out.Dropped(); d > 0 {
		return n - d, fmt.Errorf("%d events could not be written", d)
	}
	return n, nil
}
