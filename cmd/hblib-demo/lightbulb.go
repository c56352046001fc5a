package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

// bulb is the simulated device behind a lightbulb accessory.
type bulb struct {
	latency time.Duration

	mu    sync.Mutex
	state map[string]any
}

func (b *bulb) wait(ctx context.Context) error {
	if b.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(b.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *bulb) getter(key string) delegate.Getter {
	return func(ctx context.Context) (any, error) {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.state[key], nil
	}
}

func (b *bulb) setter(key string) delegate.Setter {
	return func(ctx context.Context, v any) (any, error) {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.state[key] = v
		b.mu.Unlock()
		return nil, nil
	}
}

// Lightbulb is a lightbulb accessory with brightness, color temperature
// and optional adaptive lighting.
type Lightbulb struct {
	Accessory *delegate.AccessoryDelegate
	Service   *delegate.ServiceDelegate
	Adaptive  *delegate.AdaptiveLighting
}

func newLightbulb(p *delegate.Platform, cfg DeviceConfig) (*Lightbulb, error) {
	a, err := delegate.NewAccessoryDelegate(p, delegate.AccessoryParams{
		ID:           cfg.ID,
		Name:         cfg.Name,
		Category:     hap.CategoryLightbulb,
		Manufacturer: cfg.Manufacturer,
		Model:        cfg.Model,
		Firmware:     cfg.Firmware,
		ClassName:    "Lightbulb",
	})
	if err != nil {
		return nil, err
	}
	s, err := delegate.NewServiceDelegate(a, delegate.ServiceParams{
		Type:    hap.ServiceLightbulb,
		Primary: true,
	})
	if err != nil {
		return nil, err
	}

	dev := &bulb{
		latency: cfg.Latency,
		state:   map[string]any{"on": false, "bri": 100, "ct": 370},
	}
	chars := make(map[string]*delegate.CharacteristicDelegate)
	for _, cp := range []delegate.CharacteristicParams{
		{Key: "on", Type: hap.CharOn, Value: false},
		{Key: "bri", Type: hap.CharBrightness, Value: 100, Unit: "%"},
		{Key: "ct", Type: hap.CharColorTemperature, Value: 370, Unit: " mired"},
	} {
		cp.Getter = dev.getter(cp.Key)
		cp.Setter = dev.setter(cp.Key)
		c, err := delegate.NewCharacteristicDelegate(s, cp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cp.Key, err)
		}
		chars[cp.Key] = c
	}
	// Adaptive lighting pushes color temperature changes to the device.
	chars["ct"].OnDidSet(func(e delegate.SetEvent) {
		if !e.FromHost {
			dev.mu.Lock()
			dev.state["ct"] = e.Value
			dev.mu.Unlock()
		}
	})

	l := &Lightbulb{Accessory: a, Service: s}
	if cfg.AdaptiveLighting {
		l.Adaptive, err = s.EnableAdaptiveLighting(chars["bri"], chars["ct"])
		if err != nil {
			return nil, err
		}
	}
	a.OnIdentify(func() { a.Logf("blink") })
	return l, nil
}
