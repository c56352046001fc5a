package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(key string, op Op, outcome Outcome) Event {
	return Event{
		Timestamp:   time.Date(2026, time.October, 14, 12, 0, 0, 123456789, time.UTC),
		AccessoryID: "dev-1",
		ServiceKey:  "00000043-0000-1000-8000-0026BB765291",
		Key:         key,
		Op:          op,
		Outcome:     outcome,
		Value:       "on",
		Duration:    25 * time.Millisecond,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	event := testEvent("on", OpSet, OutcomeOK)
	event.Clamp = "max"
	event.Error = "boom"

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, event.Timestamp.Equal(decoded.Timestamp), "Timestamp = %v, want %v", decoded.Timestamp, event.Timestamp)
	decoded.Timestamp = event.Timestamp
	assert.Equal(t, event, decoded)
}

func TestDecodeEventNumericValue(t *testing.T) {
	event := testEvent("bri", OpGet, OutcomeOK)
	event.Value = 42

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.EqualValues(t, 42, decoded.Value)
}

func TestOpAndOutcomeNames(t *testing.T) {
	for o := OpGet; o <= OpIdentify; o++ {
		got, ok := ParseOp(o.String())
		if !ok || got != o {
			t.Errorf("ParseOp(%q) = %v, %v, want %v, true", o.String(), got, ok, o)
		}
	}
	for o := OutcomeOK; o <= OutcomeLate; o++ {
		got, ok := ParseOutcome(o.String())
		if !ok || got != o {
			t.Errorf("ParseOutcome(%q) = %v, %v, want %v, true", o.String(), got, ok, o)
		}
	}
	got, ok := ParseOutcome("timeout")
	assert.True(t, ok)
	assert.Equal(t, OutcomeTimeout, got)

	_, ok = ParseOp("delete")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", Op(42).String())
	assert.Equal(t, "UNKNOWN", Outcome(42).String())
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.xlog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(testEvent("on", OpSet, OutcomeOK))
	logger.Log(testEvent("bri", OpGet, OutcomeTimeout))
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	// Logging after close is ignored.
	logger.Log(testEvent("ct", OpGet, OutcomeOK))

	// Appends on reopen.
	logger, err = NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(testEvent("bri", OpGet, OutcomeLate))
	require.NoError(t, logger.Close())
	assert.Zero(t, logger.Dropped())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.All()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "on", events[0].Key)
	assert.Equal(t, OutcomeTimeout, events[1].Outcome)
	assert.Equal(t, OutcomeLate, events[2].Outcome)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.xlog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Log(testEvent("on", OpSet, OutcomeOK))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.All()
	require.NoError(t, err)
	assert.Len(t, events, 200)
}

func TestNewFileLoggerBadPath(t *testing.T) {
	_, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "exchanges.xlog"))
	assert.Error(t, err)
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.xlog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	base := testEvent("on", OpSet, OutcomeOK)
	events := []Event{
		base,
		testEvent("bri", OpGet, OutcomeOK),
		testEvent("bri", OpGet, OutcomeTimeout),
		{Timestamp: base.Timestamp.Add(time.Hour), AccessoryID: "dev-2", Op: OpIdentify},
	}
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())

	get := OpGet
	timeout := OutcomeTimeout
	later := base.Timestamp.Add(time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"accessory", Filter{AccessoryID: "dev-1"}, 3},
		{"key", Filter{Key: "bri"}, 2},
		{"op", Filter{Op: &get}, 2},
		{"outcome", Filter{Outcome: &timeout}, 1},
		{"since", Filter{Since: &later}, 1},
		{"until", Filter{Until: &later}, 3},
		{"service", Filter{ServiceKey: "none"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			require.NoError(t, err)
			defer r.Close()
			got, err := r.All()
			require.NoError(t, err)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.xlog")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff, 0x00}, 0644))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Next()
	assert.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF))
}

func TestMemoryLogger(t *testing.T) {
	m := NewMemoryLogger(2)
	m.Log(testEvent("a", OpGet, OutcomeOK))
	m.Log(testEvent("b", OpGet, OutcomeOK))
	m.Log(testEvent("c", OpSet, OutcomeOK))

	all := m.Events(Filter{})
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Key)
	assert.Equal(t, "c", all[1].Key)

	set := OpSet
	assert.Len(t, m.Events(Filter{Op: &set}), 1)

	unbounded := NewMemoryLogger(0)
	for i := 0; i < 100; i++ {
		unbounded.Log(Event{})
	}
	assert.Len(t, unbounded.Events(Filter{}), 100)
}

func TestMultiLogger(t *testing.T) {
	m1 := NewMemoryLogger(0)
	m2 := NewMemoryLogger(0)
	multi := NewMultiLogger(m1, nil, m2, NoopLogger{})

	multi.Log(testEvent("on", OpSet, OutcomeOK))

	for i, m := range []*MemoryLogger{m1, m2} {
		if got := len(m.Events(Filter{})); got != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, got)
		}
	}

	// No loggers is fine.
	NewMultiLogger().Log(Event{})
}

func TestSlogAdapter(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		wantLevel string
	}{
		{"ok", testEvent("on", OpSet, OutcomeOK), "DEBUG"},
		{"timeout", testEvent("bri", OpGet, OutcomeTimeout), "WARN"},
		{"error", Event{AccessoryID: "dev-1", Op: OpSet, Outcome: OutcomeError, Error: "boom"}, "WARN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			NewSlogAdapter(logger).Log(tt.event)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "exchange", entry["msg"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.event.Op.String(), entry["op"])
			assert.Equal(t, tt.event.Outcome.String(), entry["outcome"])
			if tt.event.Key != "" {
				assert.Equal(t, tt.event.Key, entry["key"])
			} else {
				assert.NotContains(t, entry, "key")
			}
			if tt.event.Error != "" {
				assert.Equal(t, tt.event.Error, entry["error"])
			}
		})
	}
}
