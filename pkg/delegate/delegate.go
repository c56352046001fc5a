package delegate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Log levels of a delegate. Errors, warnings and info messages are always
// logged; debug messages need at least LevelDebug.
const (
	LevelInfo    = 0
	LevelDebug   = 1
	LevelVDebug  = 2
	LevelVVDebug = 3
)

// delegate holds what every delegate shares: a display name used as log
// prefix, the owning platform and a log level.
type delegate struct {
	platform *Platform
	level    func() int

	mu   sync.RWMutex
	name string
}

// Name returns the display name.
func (d *delegate) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

func (d *delegate) setName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

// Platform returns the owning platform.
func (d *delegate) Platform() *Platform {
	return d.platform
}

func (d *delegate) log(level slog.Level, format string, args ...any) {
	d.emit(level, fmt.Sprintf(format, args...))
}

func (d *delegate) emit(level slog.Level, msg string, attrs ...any) {
	if name := d.Name(); name != "" {
		msg = name + ": " + msg
	}
	d.platform.logger.Log(context.Background(), level, msg, attrs...)
}

// debug logs at info severity with the tier as "debug" attribute. The
// delegate's own level is the only gate for debug output.
func (d *delegate) debug(tier int, format string, args ...any) {
	if d.level() >= tier {
		d.emit(slog.LevelInfo, fmt.Sprintf(format, args...), "debug", tier)
	}
}

// Logf logs an info message.
func (d *delegate) Logf(format string, args ...any) {
	d.log(slog.LevelInfo, format, args...)
}

// Warnf logs a warning.
func (d *delegate) Warnf(format string, args ...any) {
	d.log(slog.LevelWarn, format, args...)
}

// Errorf logs an error.
func (d *delegate) Errorf(format string, args ...any) {
	d.log(slog.LevelError, format, args...)
}

// Debugf logs a debug message at log level 1 or higher.
func (d *delegate) Debugf(format string, args ...any) {
	d.debug(LevelDebug, format, args...)
}

// VDebugf logs a verbose debug message at log level 2 or higher.
func (d *delegate) VDebugf(format string, args ...any) {
	d.debug(LevelVDebug, format, args...)
}

// VVDebugf logs a very verbose debug message at log level 3.
func (d *delegate) VVDebugf(format string, args ...any) {
	d.debug(LevelVVDebug, format, args...)
}

// Fatalf logs an error and asks the platform to shut down.
func (d *delegate) Fatalf(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	d.Errorf("%v", err)
	d.platform.shutdown(err)
}

// listeners is an ordered set of event handlers. A panicking handler is
// logged and does not keep the others from running.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// add registers fn and returns a function that removes it.
func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.fns = append(l.fns, listener[T]{id: id, fn: fn})
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, x := range l.fns {
			if x.id == id {
				l.fns = append(l.fns[:i], l.fns[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[T]) clear() {
	l.mu.Lock()
	l.fns = nil
	l.mu.Unlock()
}

func (l *listeners[T]) emit(d *delegate, event string, v T) {
	l.mu.Lock()
	fns := append([]listener[T](nil), l.fns...)
	l.mu.Unlock()
	for _, x := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.Errorf("%s listener: %v", event, r)
				}
			}()
			x.fn(v)
		}()
	}
}

// SetEvent is emitted when a value changes.
type SetEvent struct {
	Value any

	// FromHost is true when the change was written by the host.
	FromHost bool
}

// ValueDelegate is a delegate owning a single persisted value:
// a PropertyDelegate or a CharacteristicDelegate.
type ValueDelegate interface {
	Key() string
	Value() any
	SetValue(v any) error
	OnDidSet(fn func(SetEvent)) func()
}
