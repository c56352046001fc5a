package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// RunView writes the matching events of path to w in human-readable form.
func RunView(path string, filter Filter, w io.Writer) error {
	return each(path, filter, func(e log.Event) error {
		formatEvent(w, e)
		return nil
	})
}

// formatEvent writes an event header line plus its details.
func formatEvent(w io.Writer, e log.Event) {
	// Header line: timestamp OP OUTCOME accessory/service/key
	ts := e.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s %-8s %-7s %s\n", ts, e.Op, e.Outcome, target(e))

	if e.Value != nil {
		fmt.Fprintf(w, "  Value: %s\n", formatValue(e.Value))
	}
	if e.Clamp != "" {
		fmt.Fprintf(w, "  Clamp: %s\n", e.Clamp)
	}
	if e.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(e.Duration))
	}
	if e.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", e.Error)
	}

	fmt.Fprintln(w)
}

// target joins the non-empty path elements of an event.
func target(e log.Event) string {
	parts := []string{e.AccessoryID}
	if e.ServiceKey != "" {
		parts = append(parts, e.ServiceKey)
	}
	if e.Key != "" {
		parts = append(parts, e.Key)
	}
	return strings.Join(parts, "/")
}

func formatValue(v any) string {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("%d bytes", len(b))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
