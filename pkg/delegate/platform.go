package delegate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
	"github.com/ebaauw/homebridge-lib-go/pkg/log"
	"github.com/ebaauw/homebridge-lib-go/pkg/version"
)

// DefaultHeartbeat is the interval between heartbeats.
const DefaultHeartbeat = time.Second

// PlatformConfig configures a Platform.
type PlatformConfig struct {
	// Name is the log prefix of the platform.
	Name string

	// Logger receives all delegate log output. Defaults to slog.Default().
	Logger *slog.Logger

	// LogLevel is the platform log level, 0 to 3.
	LogLevel int

	// Catalog resolves service and characteristic types.
	// Defaults to the standard catalog.
	Catalog *hap.Catalog

	// UIPort is the port of the UI server, 0 if there is none.
	UIPort int

	// ExchangeLogger captures host exchanges. Nil disables capture.
	ExchangeLogger log.Logger

	// Heartbeat overrides DefaultHeartbeat.
	Heartbeat time.Duration

	// Shutdown is called once on a fatal error.
	Shutdown func(error)
}

// Change describes a value change anywhere in the delegate tree.
type Change struct {
	AccessoryID string
	ServiceKey  string // empty for accessory properties
	Key         string
	Value       any
	FromHost    bool
}

// Platform owns the accessory delegates of a plugin.
type Platform struct {
	delegate

	bridge    host.Bridge
	logger    *slog.Logger
	catalog   *hap.Catalog
	uiPort    int
	exchange  log.Logger
	heartbeat time.Duration
	onFatal   func(error)
	fatalOnce sync.Once

	stateMu     sync.RWMutex
	logLevel    int
	initialised bool
	accessories map[string]*AccessoryDelegate

	changes listeners[Change]
}

// NewPlatform creates a platform on top of the host bridge.
func NewPlatform(bridge host.Bridge, cfg PlatformConfig) (*Platform, error) {
	if bridge == nil {
		return nil, fmt.Errorf("%w: nil bridge", ErrInvalidType)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: platform name", ErrMissing)
	}
	if cfg.LogLevel < LevelInfo || cfg.LogLevel > LevelVVDebug {
		return nil, fmt.Errorf("%w: log level %d", ErrOutOfRange, cfg.LogLevel)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = hap.NewCatalog()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	p := &Platform{
		bridge:      bridge,
		logger:      cfg.Logger,
		catalog:     cfg.Catalog,
		uiPort:      cfg.UIPort,
		exchange:    cfg.ExchangeLogger,
		heartbeat:   cfg.Heartbeat,
		onFatal:     cfg.Shutdown,
		logLevel:    cfg.LogLevel,
		accessories: make(map[string]*AccessoryDelegate),
	}
	p.delegate = delegate{platform: p, level: p.LogLevel, name: cfg.Name}
	return p, nil
}

// Bridge returns the host bridge.
func (p *Platform) Bridge() host.Bridge { return p.bridge }

// Catalog returns the type catalog.
func (p *Platform) Catalog() *hap.Catalog { return p.catalog }

// UIPort returns the UI server port, 0 if there is none.
func (p *Platform) UIPort() int { return p.uiPort }

// Version returns the library version.
func (p *Platform) Version() string { return version.Current }

// LogLevel returns the platform log level.
func (p *Platform) LogLevel() int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.logLevel
}

// SetLogLevel changes the platform log level.
func (p *Platform) SetLogLevel(level int) error {
	if level < LevelInfo || level > LevelVVDebug {
		return fmt.Errorf("%w: log level %d", ErrOutOfRange, level)
	}
	p.stateMu.Lock()
	p.logLevel = level
	p.stateMu.Unlock()
	return nil
}

// Initialised reports whether Initialise has run.
func (p *Platform) Initialised() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.initialised
}

// Initialise runs the cleanup pass of every accessory delegate.
// Calls after the first are ignored.
func (p *Platform) Initialise() {
	p.stateMu.Lock()
	if p.initialised {
		p.stateMu.Unlock()
		p.Warnf("already initialised")
		return
	}
	p.initialised = true
	p.stateMu.Unlock()

	accessories := p.AccessoryDelegates()
	for _, a := range accessories {
		a.Initialise()
	}
	p.Debugf("initialised %d accessories", len(accessories))
}

// AccessoryDelegate returns the delegate for the accessory id, or nil.
func (p *Platform) AccessoryDelegate(id string) *AccessoryDelegate {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.accessories[id]
}

// AccessoryDelegates returns the accessory delegates sorted by id.
func (p *Platform) AccessoryDelegates() []*AccessoryDelegate {
	p.stateMu.RLock()
	out := make([]*AccessoryDelegate, 0, len(p.accessories))
	for _, a := range p.accessories {
		out = append(out, a)
	}
	p.stateMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (p *Platform) register(a *AccessoryDelegate) error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if _, ok := p.accessories[a.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAccessory, a.id)
	}
	p.accessories[a.id] = a
	return nil
}

func (p *Platform) unregister(a *AccessoryDelegate) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.accessories[a.id] == a {
		delete(p.accessories, a.id)
	}
}

// OnChange registers fn for every value change in the delegate tree and
// returns a function that removes it.
func (p *Platform) OnChange(fn func(Change)) func() {
	return p.changes.add(fn)
}

func (p *Platform) emitChange(c Change) {
	p.changes.emit(&p.delegate, "change", c)
}

func (p *Platform) record(e log.Event) {
	if p.exchange == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	p.exchange.Log(e)
}

// Run emits a heartbeat to every accessory delegate until ctx ends, then
// emits shutdown.
func (p *Platform) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	beat := 0
	for {
		select {
		case <-ctx.Done():
			p.Debugf("shutdown after %d heartbeats", beat)
			for _, a := range p.AccessoryDelegates() {
				a.emitShutdown()
			}
			return nil
		case <-ticker.C:
			beat++
			for _, a := range p.AccessoryDelegates() {
				a.emitHeartbeat(beat)
			}
		}
	}
}

// Fatal logs err and invokes the shutdown hook, once.
func (p *Platform) Fatal(err error) {
	p.Errorf("fatal: %v", err)
	p.shutdown(err)
}

func (p *Platform) shutdown(err error) {
	p.fatalOnce.Do(func() {
		if p.onFatal != nil {
			p.onFatal(err)
		}
	})
}
