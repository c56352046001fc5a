package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

// exportRecord is the JSONL shape of an event.
type exportRecord struct {
	Timestamp   string `json:"timestamp"`
	AccessoryID string `json:"accessory"`
	ServiceKey  string `json:"service,omitempty"`
	Key         string `json:"key,omitempty"`
	Op          string `json:"op"`
	Outcome     string `json:"outcome"`
	Value       any    `json:"value,omitempty"`
	Clamp       string `json:"clamp,omitempty"`
	DurationUS  int64  `json:"duration_us,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunExport writes the matching events of path to w in the given format.
func RunExport(path, format string, filter Filter, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, filter, w)
	case "csv":
		return exportCSV(path, filter, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(path string, filter Filter, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(path, filter, func(e log.Event) error {
		rec := exportRecord{
			Timestamp:   e.Timestamp.UTC().Format(timeLayout),
			AccessoryID: e.AccessoryID,
			ServiceKey:  e.ServiceKey,
			Key:         e.Key,
			Op:          e.Op.String(),
			Outcome:     e.Outcome.String(),
			Value:       e.Value,
			Clamp:       e.Clamp,
			DurationUS:  e.Duration.Microseconds(),
			Error:       e.Error,
		}
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(path string, filter Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "accessory", "service", "key", "op", "outcome", "value", "clamp", "duration_us", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return each(path, filter, func(e log.Event) error {
		value := ""
		if e.Value != nil {
			value = formatValue(e.Value)
		}
		row := []string{
			e.Timestamp.UTC().Format(timeLayout),
			e.AccessoryID,
			e.ServiceKey,
			e.Key,
			e.Op.String(),
			e.Outcome.String(),
			value,
			e.Clamp,
			strconv.FormatInt(e.Duration.Microseconds(), 10),
			e.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
}
