package adaptive

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ebaauw/homebridge-lib-go/pkg/tlv"
)

// Codec errors.
var (
	ErrMalformed   = errors.New("adaptive: malformed control")
	ErrIIDMismatch = errors.New("adaptive: characteristic iid mismatch")
)

// Epoch is the reference time of all embedded timestamps.
var Epoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Supported configuration record types.
const (
	typeSupportedConfiguration byte = 0x01

	typeConfigIID            byte = 0x01
	typeConfigTransitionType byte = 0x02

	transitionBrightness       byte = 0x01
	transitionColorTemperature byte = 0x02
)

// Transition control record types.
const (
	typeControlRead   byte = 0x01
	typeControlUpdate byte = 0x02

	typeReadIID byte = 0x01

	typeValueTransitionConfiguration byte = 0x01

	typeIID                     byte = 0x01
	typeParameters              byte = 0x02
	typeUnknown3                byte = 0x03
	typeCurve                   byte = 0x05
	typeUpdateInterval          byte = 0x06
	typeNotifyIntervalThreshold byte = 0x08

	typeTransitionID byte = 0x01
	typeStartTime    byte = 0x02
	typeID3          byte = 0x03

	typeEntry           byte = 0x01
	typeAdjustmentIID   byte = 0x02
	typeAdjustmentRange byte = 0x03

	typeAdjustmentFactor byte = 0x01
	typeValue            byte = 0x02
	typeOffset           byte = 0x03
	typeDuration         byte = 0x04

	typeRangeMin byte = 0x01
	typeRangeMax byte = 0x02
)

// Control response record types.
const (
	typeResponseStatus byte = 0x01

	typeStatusIID            byte = 0x01
	typeStatusParameters     byte = 0x02
	typeStatusTimeSinceStart byte = 0x03
)

// CurveEntry is a point of the color temperature curve.
type CurveEntry struct {
	// Mired is the color temperature at the point, before brightness adjustment.
	Mired float64

	// AdjustmentFactor is the mired change per brightness percent.
	AdjustmentFactor float64

	// Offset is the time from the previous point, interpolated linearly.
	Offset time.Duration

	// Duration is how long the point's value is held after it is reached.
	Duration time.Duration
}

// Range is the brightness range over which the adjustment applies.
type Range struct {
	Min int
	Max int
}

// Curve is the ordered color temperature curve of a transition.
type Curve struct {
	Entries         []CurveEntry
	AdjustmentIID   uint64
	AdjustmentRange Range
}

// Control is an active transition as written by the host.
type Control struct {
	IID          uint64
	TransitionID string
	StartTime    time.Time
	ID3          string
	Curve        Curve

	UpdateInterval          time.Duration
	NotifyIntervalThreshold time.Duration

	// parameters holds the raw transition parameters for the response.
	parameters []byte
}

// GenerateConfiguration returns the base64 supported configuration value
// for the given brightness and color temperature instance ids.
func GenerateConfiguration(briIID, ctIID uint64) string {
	var bri, ct, b tlv.Builder
	bri.Uint(typeConfigIID, briIID).Add(typeConfigTransitionType, []byte{transitionBrightness})
	ct.Uint(typeConfigIID, ctIID).Add(typeConfigTransitionType, []byte{transitionColorTemperature})
	b.Nested(typeSupportedConfiguration, &bri).Separator().Nested(typeSupportedConfiguration, &ct)
	return base64.StdEncoding.EncodeToString(b.Bytes())
}

// request is a decoded transition control write.
type request struct {
	read    bool
	readIID uint64
	control *Control // nil for a read, or an update that ends the transition
}

func decodeRequest(value string) (*request, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
	}
	items, err := tlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v, ok := tlv.Find(items, typeControlRead); ok {
		sub, err := tlv.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrMalformed, err)
		}
		req := &request{read: true}
		if iid, ok := tlv.Find(sub, typeReadIID); ok {
			if req.readIID, err = tlv.Uint(iid); err != nil {
				return nil, fmt.Errorf("%w: read iid: %v", ErrMalformed, err)
			}
		}
		return req, nil
	}
	v, ok := tlv.Find(items, typeControlUpdate)
	if !ok {
		return nil, fmt.Errorf("%w: neither read nor update", ErrMalformed)
	}
	sub, err := tlv.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: update: %v", ErrMalformed, err)
	}
	cfg, ok := tlv.Find(sub, typeValueTransitionConfiguration)
	if !ok || len(cfg) == 0 {
		return &request{}, nil
	}
	c, err := decodeControl(cfg)
	if err != nil {
		return nil, err
	}
	return &request{control: c}, nil
}

func decodeControl(data []byte) (*Control, error) {
	items, err := tlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: configuration: %v", ErrMalformed, err)
	}
	c := &Control{}

	v, ok := tlv.Find(items, typeIID)
	if !ok {
		return nil, fmt.Errorf("%w: no characteristic iid", ErrMalformed)
	}
	if c.IID, err = tlv.Uint(v); err != nil {
		return nil, fmt.Errorf("%w: iid: %v", ErrMalformed, err)
	}

	v, ok = tlv.Find(items, typeParameters)
	if !ok {
		return nil, fmt.Errorf("%w: no transition parameters", ErrMalformed)
	}
	c.parameters = v
	if err := c.decodeParameters(v); err != nil {
		return nil, err
	}

	v, ok = tlv.Find(items, typeCurve)
	if !ok {
		return nil, fmt.Errorf("%w: no curve", ErrMalformed)
	}
	if err := c.Curve.decode(v); err != nil {
		return nil, err
	}

	if v, ok := tlv.Find(items, typeUpdateInterval); ok {
		n, err := tlv.Uint(v)
		if err != nil {
			return nil, fmt.Errorf("%w: update interval: %v", ErrMalformed, err)
		}
		c.UpdateInterval = time.Duration(n) * time.Millisecond
	}
	if v, ok := tlv.Find(items, typeNotifyIntervalThreshold); ok {
		n, err := tlv.Uint(v)
		if err != nil {
			return nil, fmt.Errorf("%w: notify interval threshold: %v", ErrMalformed, err)
		}
		c.NotifyIntervalThreshold = time.Duration(n) * time.Millisecond
	}
	return c, nil
}

func (c *Control) decodeParameters(data []byte) error {
	items, err := tlv.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrMalformed, err)
	}
	if v, ok := tlv.Find(items, typeTransitionID); ok {
		id, err := uuid.FromBytes(v)
		if err != nil {
			return fmt.Errorf("%w: transition id: %v", ErrMalformed, err)
		}
		c.TransitionID = id.String()
	}
	v, ok := tlv.Find(items, typeStartTime)
	if !ok {
		return fmt.Errorf("%w: no start time", ErrMalformed)
	}
	ms, err := tlv.Uint(v)
	if err != nil {
		return fmt.Errorf("%w: start time: %v", ErrMalformed, err)
	}
	c.StartTime = Epoch.Add(time.Duration(ms) * time.Millisecond)
	if v, ok := tlv.Find(items, typeID3); ok {
		c.ID3 = hex.EncodeToString(v)
	}
	return nil
}

func (curve *Curve) decode(data []byte) error {
	items, err := tlv.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: curve: %v", ErrMalformed, err)
	}
	// Entries are the type 1 records; the other records follow the list.
	var entries []tlv.Item
	for _, it := range items {
		if it.Type == typeEntry || it.Type == tlv.Separator {
			entries = append(entries, it)
		}
	}
	for _, rec := range tlv.List(entries) {
		for _, it := range rec {
			e, err := decodeEntry(it.Value)
			if err != nil {
				return err
			}
			curve.Entries = append(curve.Entries, e)
		}
	}
	if len(curve.Entries) == 0 {
		return fmt.Errorf("%w: empty curve", ErrMalformed)
	}

	v, ok := tlv.Find(items, typeAdjustmentIID)
	if !ok {
		return fmt.Errorf("%w: no adjustment iid", ErrMalformed)
	}
	if curve.AdjustmentIID, err = tlv.Uint(v); err != nil {
		return fmt.Errorf("%w: adjustment iid: %v", ErrMalformed, err)
	}

	v, ok = tlv.Find(items, typeAdjustmentRange)
	if !ok {
		return fmt.Errorf("%w: no adjustment range", ErrMalformed)
	}
	rng, err := tlv.Decode(v)
	if err != nil {
		return fmt.Errorf("%w: adjustment range: %v", ErrMalformed, err)
	}
	min, okMin := tlv.Find(rng, typeRangeMin)
	max, okMax := tlv.Find(rng, typeRangeMax)
	if !okMin || !okMax {
		return fmt.Errorf("%w: incomplete adjustment range", ErrMalformed)
	}
	lo, err := tlv.Uint(min)
	if err != nil {
		return fmt.Errorf("%w: range min: %v", ErrMalformed, err)
	}
	hi, err := tlv.Uint(max)
	if err != nil {
		return fmt.Errorf("%w: range max: %v", ErrMalformed, err)
	}
	curve.AdjustmentRange = Range{Min: int(lo), Max: int(hi)}
	return nil
}

func decodeEntry(data []byte) (CurveEntry, error) {
	var e CurveEntry
	items, err := tlv.Decode(data)
	if err != nil {
		return e, fmt.Errorf("%w: entry: %v", ErrMalformed, err)
	}
	v, ok := tlv.Find(items, typeAdjustmentFactor)
	if !ok {
		return e, fmt.Errorf("%w: entry without adjustment factor", ErrMalformed)
	}
	if e.AdjustmentFactor, err = tlv.Float(v); err != nil {
		return e, fmt.Errorf("%w: adjustment factor: %v", ErrMalformed, err)
	}
	v, ok = tlv.Find(items, typeValue)
	if !ok {
		return e, fmt.Errorf("%w: entry without value", ErrMalformed)
	}
	if e.Mired, err = tlv.Float(v); err != nil {
		return e, fmt.Errorf("%w: value: %v", ErrMalformed, err)
	}
	v, ok = tlv.Find(items, typeOffset)
	if !ok {
		return e, fmt.Errorf("%w: entry without offset", ErrMalformed)
	}
	ms, err := tlv.Uint(v)
	if err != nil {
		return e, fmt.Errorf("%w: offset: %v", ErrMalformed, err)
	}
	e.Offset = time.Duration(ms) * time.Millisecond
	if v, ok := tlv.Find(items, typeDuration); ok {
		ms, err := tlv.Uint(v)
		if err != nil {
			return e, fmt.Errorf("%w: duration: %v", ErrMalformed, err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
	}
	return e, nil
}

// EncodeControl returns the base64 transition control update that carries c.
// It is the inverse of ParseControl.
func EncodeControl(c *Control) (string, error) {
	params, err := c.encodeParameters()
	if err != nil {
		return "", err
	}

	var entries tlv.Builder
	for i, e := range c.Curve.Entries {
		if i > 0 {
			entries.Separator()
		}
		var eb tlv.Builder
		eb.Float32(typeAdjustmentFactor, e.AdjustmentFactor).
			Float32(typeValue, e.Mired).
			Uint(typeOffset, uint64(e.Offset/time.Millisecond))
		if e.Duration > 0 {
			eb.Uint(typeDuration, uint64(e.Duration/time.Millisecond))
		}
		entries.Nested(typeEntry, &eb)
	}

	var rng tlv.Builder
	lo, _ := tlv.PutUintWidth(uint64(c.Curve.AdjustmentRange.Min), 4)
	hi, _ := tlv.PutUintWidth(uint64(c.Curve.AdjustmentRange.Max), 4)
	rng.Add(typeRangeMin, lo).Add(typeRangeMax, hi)

	var tail tlv.Builder
	tail.Uint(typeAdjustmentIID, c.Curve.AdjustmentIID).Nested(typeAdjustmentRange, &rng)
	curveData := append(entries.Bytes(), tail.Bytes()...)

	var cfg tlv.Builder
	cfg.Uint(typeIID, c.IID).
		Add(typeParameters, params).
		Add(typeUnknown3, []byte{1}).
		Add(typeCurve, curveData)
	if c.UpdateInterval > 0 {
		b, _ := tlv.PutUintWidth(uint64(c.UpdateInterval/time.Millisecond), 2)
		cfg.Add(typeUpdateInterval, b)
	}
	if c.NotifyIntervalThreshold > 0 {
		b, _ := tlv.PutUintWidth(uint64(c.NotifyIntervalThreshold/time.Millisecond), 4)
		cfg.Add(typeNotifyIntervalThreshold, b)
	}

	var update, out tlv.Builder
	update.Nested(typeValueTransitionConfiguration, &cfg)
	out.Nested(typeControlUpdate, &update)
	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

func (c *Control) encodeParameters() ([]byte, error) {
	var b tlv.Builder
	if c.TransitionID != "" {
		id, err := uuid.Parse(c.TransitionID)
		if err != nil {
			return nil, fmt.Errorf("%w: transition id: %v", ErrMalformed, err)
		}
		b.Add(typeTransitionID, id[:])
	}
	if c.StartTime.Before(Epoch) {
		return nil, fmt.Errorf("%w: start time before %s", ErrMalformed, Epoch.Format(time.RFC3339))
	}
	start, _ := tlv.PutUintWidth(uint64(c.StartTime.Sub(Epoch)/time.Millisecond), 8)
	b.Add(typeStartTime, start)
	if c.ID3 != "" {
		id3, err := hex.DecodeString(c.ID3)
		if err != nil {
			return nil, fmt.Errorf("%w: id3: %v", ErrMalformed, err)
		}
		b.Add(typeID3, id3)
	}
	return b.Bytes(), nil
}

// EncodeRead returns the base64 transition control read request for iid.
func EncodeRead(iid uint64) string {
	var sub, out tlv.Builder
	sub.Uint(typeReadIID, iid)
	out.Nested(typeControlRead, &sub)
	return base64.StdEncoding.EncodeToString(out.Bytes())
}

// EncodeEnd returns the base64 transition control update that ends the
// active transition.
func EncodeEnd() string {
	var out tlv.Builder
	out.Add(typeControlUpdate, nil)
	return base64.StdEncoding.EncodeToString(out.Bytes())
}

// encodeStatus returns the control response for c at the given time.
func encodeStatus(c *Control, now time.Time) []byte {
	params := c.parameters
	if params == nil {
		params, _ = c.encodeParameters()
	}
	since := now.Sub(c.StartTime)
	if since < 0 {
		since = 0
	}
	var status, out tlv.Builder
	status.Uint(typeStatusIID, c.IID).
		Add(typeStatusParameters, params).
		Uint(typeStatusTimeSinceStart, uint64(since/time.Millisecond))
	out.Nested(typeResponseStatus, &status)
	return out.Bytes()
}
