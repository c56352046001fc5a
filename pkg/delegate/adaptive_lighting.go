package delegate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ebaauw/homebridge-lib-go/pkg/adaptive"
	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

// adaptiveLightingKey is the service context key of the active transition.
const adaptiveLightingKey = "adaptiveLighting"

// defaultUpdateInterval applies when the host does not set one.
const defaultUpdateInterval = time.Minute

// AdaptiveLighting drives the color temperature of a lightbulb service
// along the transition curve written by the host.
type AdaptiveLighting struct {
	service *ServiceDelegate
	al      *adaptive.AdaptiveLighting
	bri     *CharacteristicDelegate
	ct      *CharacteristicDelegate
	count   *CharacteristicDelegate
	last    atomic.Int64 // unix nanos of the last update
}

// EnableAdaptiveLighting adds the transition characteristics to the service.
// The brightness and color temperature delegates must belong to it.
func (s *ServiceDelegate) EnableAdaptiveLighting(bri, ct *CharacteristicDelegate) (*AdaptiveLighting, error) {
	for _, c := range []*CharacteristicDelegate{bri, ct} {
		if c == nil || c.service != s || c.char == nil {
			return nil, fmt.Errorf("%w: adaptive lighting needs host characteristics of %s", ErrInvalidType, s.key)
		}
	}
	l := &AdaptiveLighting{
		service: s,
		al:      adaptive.New(bri.IID(), ct.IID()),
		bri:     bri,
		ct:      ct,
	}
	if v, ok := s.Context().Get(adaptiveLightingKey); ok {
		if value, _ := v.(string); value != "" {
			if _, err := l.al.ParseControl(value); err != nil {
				s.Warnf("ignore restored adaptive lighting: %v", err)
				s.Context().Delete(adaptiveLightingKey)
			}
		}
	}

	if _, err := NewCharacteristicDelegate(s, CharacteristicParams{
		Key:    "supportedTransitionConfiguration",
		Type:   hap.CharSupportedTransitionConfiguration,
		Value:  l.al.GenerateConfiguration(),
		Silent: true,
	}); err != nil {
		return nil, err
	}
	if _, err := NewCharacteristicDelegate(s, CharacteristicParams{
		Key:    "transitionControl",
		Type:   hap.CharTransitionControl,
		Value:  "",
		Silent: true,
		Getter: func(context.Context) (any, error) { return l.al.GenerateControl(), nil },
		Setter: l.onControl,
	}); err != nil {
		return nil, err
	}
	count, err := NewCharacteristicDelegate(s, CharacteristicParams{
		Key:    "activeTransitionCount",
		Type:   hap.CharActiveTransitionCount,
		Value:  0,
		Silent: true,
	})
	if err != nil {
		return nil, err
	}
	l.count = count
	l.setCount()

	bri.OnDidSet(func(SetEvent) { l.update() })
	ct.OnDidSet(func(e SetEvent) {
		if e.FromHost && l.al.Active() {
			s.Logf("adaptive lighting disabled by color temperature change")
			l.Deactivate()
		}
	})
	s.accessory.OnHeartbeat(func(int) {
		c := l.al.Control()
		if c == nil {
			return
		}
		interval := c.UpdateInterval
		if interval <= 0 {
			interval = defaultUpdateInterval
		}
		if time.Since(time.Unix(0, l.last.Load())) >= interval {
			l.update()
		}
	})
	return l, nil
}

func (l *AdaptiveLighting) onControl(_ context.Context, v any) (any, error) {
	value, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: transition control %T", ErrInvalidType, v)
	}
	c, err := l.al.ParseControl(value)
	if err != nil {
		return nil, err
	}
	if c != nil {
		encoded, err := adaptive.EncodeControl(c)
		if err != nil {
			return nil, err
		}
		l.service.Context().Set(adaptiveLightingKey, encoded)
		l.service.Logf("adaptive lighting enabled, %d curve entries", len(c.Curve.Entries))
		l.update()
	} else if !l.al.Active() {
		l.service.Context().Delete(adaptiveLightingKey)
	}
	l.setCount()
	return l.al.GenerateControlResponse(), nil
}

func (l *AdaptiveLighting) setCount() {
	n := 0
	if l.al.Active() {
		n = 1
	}
	if err := l.count.SetValue(n); err != nil {
		l.service.Warnf("activeTransitionCount: %v", err)
	}
}

// update sets the color temperature for the current brightness.
func (l *AdaptiveLighting) update() {
	bri, ok := hap.ToFloat64(l.bri.Value())
	if !ok {
		return
	}
	ct, ok := l.al.Ct(bri)
	if !ok {
		return
	}
	l.last.Store(time.Now().UnixNano())
	if err := l.ct.SetValue(ct); err != nil {
		l.service.Warnf("adaptive lighting: %v", err)
	}
}

// Active reports whether a transition is active.
func (l *AdaptiveLighting) Active() bool { return l.al.Active() }

// Controller returns the transition codec and state.
func (l *AdaptiveLighting) Controller() *adaptive.AdaptiveLighting { return l.al }

// Deactivate ends the active transition.
func (l *AdaptiveLighting) Deactivate() {
	l.al.Deactivate()
	l.service.Context().Delete(adaptiveLightingKey)
	l.setCount()
}
