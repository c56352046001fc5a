package delegate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host/memhost"
	"github.com/ebaauw/homebridge-lib-go/pkg/log"
)

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	bridge   *memhost.Bridge
	platform *Platform
	logs     *syncBuffer
	events   *log.MemoryLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, memhost.New(nil, nil))
}

// newFixtureOn creates a platform on an existing bridge, as a restarted
// plugin would.
func newFixtureOn(t *testing.T, bridge *memhost.Bridge) *fixture {
	t.Helper()
	f := &fixture{
		bridge: bridge,
		logs:   &syncBuffer{},
		events: log.NewMemoryLogger(0),
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p, err := NewPlatform(bridge, PlatformConfig{
		Name:           "test",
		Logger:         logger,
		ExchangeLogger: f.events,
	})
	require.NoError(t, err)
	f.platform = p
	return f
}

func (f *fixture) accessory(t *testing.T, id string) *AccessoryDelegate {
	t.Helper()
	a, err := NewAccessoryDelegate(f.platform, AccessoryParams{ID: id, Name: "Lamp " + id})
	require.NoError(t, err)
	return a
}

func (f *fixture) lightbulb(t *testing.T, a *AccessoryDelegate) *ServiceDelegate {
	t.Helper()
	s, err := NewServiceDelegate(a, ServiceParams{Type: hap.ServiceLightbulb, Primary: true})
	require.NoError(t, err)
	return s
}

func (f *fixture) set(t *testing.T, c *CharacteristicDelegate, v any) (any, error) {
	t.Helper()
	return f.bridge.Set(context.Background(), c.Service().Accessory().Host().UUID(), c.IID(), v)
}

func (f *fixture) get(t *testing.T, c *CharacteristicDelegate) (any, error) {
	t.Helper()
	return f.bridge.Get(context.Background(), c.Service().Accessory().Host().UUID(), c.IID())
}

// recorder collects didSet events.
type recorder struct {
	mu     sync.Mutex
	events []SetEvent
}

func (r *recorder) add(e SetEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []SetEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SetEvent(nil), r.events...)
}

func TestNewPlatform(t *testing.T) {
	bridge := memhost.New(nil, nil)

	tests := []struct {
		name   string
		bridge *memhost.Bridge
		cfg    PlatformConfig
		want   error
	}{
		{"ok", bridge, PlatformConfig{Name: "p"}, nil},
		{"nil bridge", nil, PlatformConfig{Name: "p"}, ErrInvalidType},
		{"no name", bridge, PlatformConfig{}, ErrMissing},
		{"level too high", bridge, PlatformConfig{Name: "p", LogLevel: 4}, ErrOutOfRange},
		{"level negative", bridge, PlatformConfig{Name: "p", LogLevel: -1}, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.bridge == nil {
				_, err = NewPlatform(nil, tt.cfg)
			} else {
				_, err = NewPlatform(tt.bridge, tt.cfg)
			}
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDelegateLogging(t *testing.T) {
	f := newFixture(t)
	a := f.accessory(t, "dev-1")

	a.Logf("hello %d", 1)
	a.Debugf("hidden debug")
	require.NoError(t, a.SetLogLevel(LevelDebug))
	a.Debugf("shown debug")
	a.VDebugf("hidden vdebug")

	out := f.logs.String()
	assert.Contains(t, out, "Lamp dev-1: hello 1")
	assert.Contains(t, out, "Lamp dev-1: shown debug")
	assert.NotContains(t, out, "hidden debug")
	assert.NotContains(t, out, "hidden vdebug")
}

func TestDebugLevelIgnoresHandlerLevel(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	p, err := NewPlatform(memhost.New(nil, nil), PlatformConfig{Name: "test", Logger: logger})
	require.NoError(t, err)

	level := LevelVVDebug
	a, err := NewAccessoryDelegate(p, AccessoryParams{ID: "dev-1", Name: "Lamp", LogLevel: &level})
	require.NoError(t, err)

	a.Debugf("debug line")
	a.VDebugf("vdebug line")
	a.VVDebugf("vvdebug line")

	out := logs.String()
	assert.Contains(t, out, `msg="Lamp: debug line" debug=1`)
	assert.Contains(t, out, `msg="Lamp: vdebug line" debug=2`)
	assert.Contains(t, out, `msg="Lamp: vvdebug line" debug=3`)
}

func TestListenerPanic(t *testing.T) {
	f := newFixture(t)
	s := f.lightbulb(t, f.accessory(t, "dev-1"))
	c, err := NewCharacteristicDelegate(s, CharacteristicParams{Key: "bri", Type: hap.CharBrightness, Value: 50})
	require.NoError(t, err)

	var calls int
	c.OnDidSet(func(SetEvent) { panic("boom") })
	c.OnDidSet(func(SetEvent) { calls++ })

	require.NoError(t, c.SetValue(60))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 60, c.Value())
	assert.Contains(t, f.logs.String(), "didSet listener: boom")
}

func TestListenerRemove(t *testing.T) {
	var l listeners[int]
	var got []int
	off := l.add(func(v int) { got = append(got, v) })
	l.add(func(v int) { got = append(got, -v) })

	f := newFixture(t)
	l.emit(&f.platform.delegate, "test", 1)
	off()
	l.emit(&f.platform.delegate, "test", 2)
	assert.Equal(t, []int{1, -1, -2}, got)
}

func TestPlatformChanges(t *testing.T) {
	f := newFixture(t)
	a := f.accessory(t, "dev-1")
	s := f.lightbulb(t, a)
	c, err := NewCharacteristicDelegate(s, CharacteristicParams{Key: "bri", Type: hap.CharBrightness, Value: 50})
	require.NoError(t, err)

	var changes []Change
	f.platform.OnChange(func(ch Change) { changes = append(changes, ch) })

	_, err = f.set(t, c, 70)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{AccessoryID: "dev-1", ServiceKey: s.Key(), Key: "bri", Value: 70, FromHost: true}, changes[0])
}

func TestPlatformRun(t *testing.T) {
	f := newFixture(t)
	f.platform.heartbeat = 5 * time.Millisecond
	a := f.accessory(t, "dev-1")

	beats := make(chan int, 16)
	a.OnHeartbeat(func(beat int) {
		select {
		case beats <- beat:
		default:
		}
	})
	stopped := make(chan struct{})
	a.OnShutdown(func() { close(stopped) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.platform.Run(ctx) }()

	assert.Equal(t, 1, <-beats)
	assert.Equal(t, 2, <-beats)
	cancel()
	require.NoError(t, <-done)
	<-stopped
}

func TestPlatformFatal(t *testing.T) {
	var got []error
	p, err := NewPlatform(memhost.New(nil, nil), PlatformConfig{
		Name:     "p",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Shutdown: func(err error) { got = append(got, err) },
	})
	require.NoError(t, err)

	p.Fatal(assert.AnError)
	p.Fatalf("again")
	require.Len(t, got, 1)
	assert.Same(t, assert.AnError, got[0])
}

func TestPlatformInitialise(t *testing.T) {
	f := newFixture(t)
	early := f.accessory(t, "dev-1")
	assert.False(t, early.Initialised())

	f.platform.Initialise()
	assert.True(t, f.platform.Initialised())
	assert.True(t, early.Initialised())

	f.platform.Initialise()
	assert.Contains(t, f.logs.String(), "already initialised")

	late := f.accessory(t, "dev-2")
	assert.True(t, late.Initialised())
	assert.Equal(t, []*AccessoryDelegate{early, late}, f.platform.AccessoryDelegates())
}

func TestValuesFacade(t *testing.T) {
	f := newFixture(t)
	s := f.lightbulb(t, f.accessory(t, "dev-1"))
	_, err := NewCharacteristicDelegate(s, CharacteristicParams{Key: "bri", Type: hap.CharBrightness, Value: 50})
	require.NoError(t, err)

	v := s.Values()
	assert.Equal(t, []string{"bri", "configuredName", "name"}, v.Keys())

	require.NoError(t, v.Set("bri", 120))
	got, ok := v.Get("bri")
	require.True(t, ok)
	assert.Equal(t, 100, got)

	_, ok = v.Get("nope")
	assert.False(t, ok)
	assert.ErrorIs(t, v.Set("nope", 1), ErrUnknownKey)

	snap := v.Snapshot()
	assert.Equal(t, 100, snap["bri"])
	assert.True(t, strings.HasPrefix(snap["name"].(string), "Lamp"))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{1, 1.0, true},
		{uint8(2), int64(2), true},
		{1, 2, false},
		{1, "1", false},
		{"a", "a", true},
		{nil, nil, true},
		{nil, 0, false},
		{true, true, true},
		{map[string]any{"x": 1.0}, map[string]any{"x": 1.0}, true},
	}
	for _, tt := range tests {
		if got := equal(tt.a, tt.b); got != tt.want {
			t.Errorf("equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
