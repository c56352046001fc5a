package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes exchange events to an slog.Logger at debug level,
// or warn level for timeouts and errors.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(e Event) {
	attrs := []slog.Attr{
		slog.String("accessory", e.AccessoryID),
		slog.String("op", e.Op.String()),
		slog.String("outcome", e.Outcome.String()),
	}
	if e.ServiceKey != "" {
		attrs = append(attrs, slog.String("service", e.ServiceKey))
	}
	if e.Key != "" {
		attrs = append(attrs, slog.String("key", e.Key))
	}
	if e.Value != nil {
		attrs = append(attrs, slog.String("value", fmt.Sprint(e.Value)))
	}
	if e.Clamp != "" {
		attrs = append(attrs, slog.String("clamp", e.Clamp))
	}
	if e.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", e.Duration))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}

	level := slog.LevelDebug
	if e.Outcome == OutcomeTimeout || e.Outcome == OutcomeError {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "exchange", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
