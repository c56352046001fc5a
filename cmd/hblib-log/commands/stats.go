package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents int
	ByOp        map[log.Op]int
	ByOutcome   map[log.Outcome]int
	Accessories map[string]*AccessoryStats
	TimeRange   struct {
		Start time.Time
		End   time.Time
	}
}

// AccessoryStats holds statistics for a single accessory.
type AccessoryStats struct {
	Events   int
	Timeouts int
	Errors   int

	// Slowest is the longest exchange duration seen.
	Slowest time.Duration
}

// Collect reads the events of path into a Stats.
func Collect(path string) (*Stats, error) {
	stats := &Stats{
		ByOp:        make(map[log.Op]int),
		ByOutcome:   make(map[log.Outcome]int),
		Accessories: make(map[string]*AccessoryStats),
	}
	err := each(path, Filter{}, func(e log.Event) error {
		stats.TotalEvents++
		stats.ByOp[e.Op]++
		stats.ByOutcome[e.Outcome]++

		if stats.TimeRange.Start.IsZero() || e.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = e.Timestamp
		}
		if e.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = e.Timestamp
		}

		a, ok := stats.Accessories[e.AccessoryID]
		if !ok {
			a = &AccessoryStats{}
			stats.Accessories[e.AccessoryID] = a
		}
		a.Events++
		switch e.Outcome {
		case log.OutcomeTimeout:
			a.Timeouts++
		case log.OutcomeError:
			a.Errors++
		}
		if e.Duration > a.Slowest {
			a.Slowest = e.Duration
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	if stats.TotalEvents == 0 {
		return nil
	}
	fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
		stats.TimeRange.Start.UTC().Format(timeLayout),
		stats.TimeRange.End.UTC().Format(timeLayout),
		stats.TimeRange.End.Sub(stats.TimeRange.Start))

	fmt.Fprintln(w, "\nBy op:")
	for op := log.OpGet; op <= log.OpIdentify; op++ {
		if n := stats.ByOp[op]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", op, n)
		}
	}

	fmt.Fprintln(w, "\nBy outcome:")
	for oc := log.OutcomeOK; oc <= log.OutcomeLate; oc++ {
		if n := stats.ByOutcome[oc]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", oc, n)
		}
	}

	ids := make([]string, 0, len(stats.Accessories))
	for id := range stats.Accessories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(w, "\nAccessories:")
	for _, id := range ids {
		a := stats.Accessories[id]
		fmt.Fprintf(w, "  %s: %d events, %d timeouts, %d errors, slowest %s\n",
			id, a.Events, a.Timeouts, a.Errors, formatDuration(a.Slowest))
	}
	return nil
}
