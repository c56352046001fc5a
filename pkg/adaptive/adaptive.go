package adaptive

import (
	"encoding/base64"
	"fmt"
	"math"
	"sync"
	"time"
)

const day = 24 * time.Hour

// AdaptiveLighting holds the transition state of one lightbulb.
// It is safe for concurrent use.
type AdaptiveLighting struct {
	briIID uint64
	ctIID  uint64
	now    func() time.Time

	mu      sync.RWMutex
	control *Control
}

// New returns an inactive AdaptiveLighting for the given brightness and
// color temperature instance ids.
func New(briIID, ctIID uint64) *AdaptiveLighting {
	return &AdaptiveLighting{
		briIID: briIID,
		ctIID:  ctIID,
		now:    time.Now,
	}
}

// GenerateConfiguration returns the supported configuration value.
func (al *AdaptiveLighting) GenerateConfiguration() string {
	return GenerateConfiguration(al.briIID, al.ctIID)
}

// ParseControl applies a transition control write from the host.
//
// An update with a configuration activates it and returns it. An update
// without one ends the active transition. A read leaves the state alone.
// Both return a nil control. A configuration that names other instance ids
// fails with ErrIIDMismatch and leaves the state unchanged.
func (al *AdaptiveLighting) ParseControl(value string) (*Control, error) {
	req, err := decodeRequest(value)
	if err != nil {
		return nil, err
	}
	if req.read {
		if req.readIID != 0 && req.readIID != al.ctIID {
			return nil, fmt.Errorf("%w: read of iid %d, want %d", ErrIIDMismatch, req.readIID, al.ctIID)
		}
		return nil, nil
	}
	if req.control == nil {
		al.Deactivate()
		return nil, nil
	}
	c := req.control
	if c.IID != al.ctIID {
		return nil, fmt.Errorf("%w: control iid %d, want %d", ErrIIDMismatch, c.IID, al.ctIID)
	}
	if c.Curve.AdjustmentIID != al.briIID {
		return nil, fmt.Errorf("%w: adjustment iid %d, want %d", ErrIIDMismatch, c.Curve.AdjustmentIID, al.briIID)
	}
	al.mu.Lock()
	al.control = c
	al.mu.Unlock()
	return c, nil
}

// GenerateControl returns the current transition control value: the status
// of the active transition, or an empty value when inactive.
func (al *AdaptiveLighting) GenerateControl() string {
	al.mu.RLock()
	c := al.control
	al.mu.RUnlock()
	if c == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(encodeStatus(c, al.now()))
}

// GenerateControlResponse returns the write response for the active
// transition, or an empty value when inactive.
func (al *AdaptiveLighting) GenerateControlResponse() string {
	return al.GenerateControl()
}

// Deactivate ends the active transition.
func (al *AdaptiveLighting) Deactivate() {
	al.mu.Lock()
	al.control = nil
	al.mu.Unlock()
}

// Active reports whether a transition is active.
func (al *AdaptiveLighting) Active() bool {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return al.control != nil
}

// Control returns the active transition, or nil.
func (al *AdaptiveLighting) Control() *Control {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return al.control
}

// Ct returns the color temperature in mired for brightness bri at the
// current time into the transition. It reports false when inactive.
func (al *AdaptiveLighting) Ct(bri float64) (int, bool) {
	al.mu.RLock()
	c := al.control
	al.mu.RUnlock()
	if c == nil {
		return 0, false
	}
	return c.Curve.Ct(bri, al.now().Sub(c.StartTime)), true
}

// CtAt is Ct at the given offset into the transition.
func (al *AdaptiveLighting) CtAt(bri float64, offset time.Duration) (int, bool) {
	al.mu.RLock()
	c := al.control
	al.mu.RUnlock()
	if c == nil {
		return 0, false
	}
	return c.Curve.Ct(bri, offset), true
}

// Ct evaluates the curve for brightness bri at offset, taken modulo 24 hours.
// Brightness is clamped to the adjustment range.
func (curve Curve) Ct(bri float64, offset time.Duration) int {
	if len(curve.Entries) == 0 {
		return 0
	}
	offset %= day
	if offset < 0 {
		offset += day
	}
	if r := curve.AdjustmentRange; r.Max >= r.Min {
		bri = math.Max(float64(r.Min), math.Min(float64(r.Max), bri))
	}

	var t time.Duration
	prev := curve.Entries[0]
	for i, e := range curve.Entries {
		t += e.Offset
		if offset < t {
			if i == 0 || e.Offset == 0 {
				return mired(e.Mired, e.AdjustmentFactor, bri)
			}
			ratio := 1 - float64(t-offset)/float64(e.Offset)
			m := prev.Mired + ratio*(e.Mired-prev.Mired)
			f := prev.AdjustmentFactor + ratio*(e.AdjustmentFactor-prev.AdjustmentFactor)
			return mired(m, f, bri)
		}
		if e.Duration > 0 {
			t += e.Duration
			if offset < t {
				return mired(e.Mired, e.AdjustmentFactor, bri)
			}
		}
		prev = e
	}
	return mired(prev.Mired, prev.AdjustmentFactor, bri)
}

func mired(m, factor, bri float64) int {
	return int(math.Round(m + factor*bri))
}
