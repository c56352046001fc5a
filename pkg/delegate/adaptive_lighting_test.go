package delegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaauw/homebridge-lib-go/pkg/adaptive"
	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

type lamp struct {
	accessory *AccessoryDelegate
	service   *ServiceDelegate
	bri       *CharacteristicDelegate
	ct        *CharacteristicDelegate
	al        *AdaptiveLighting
}

func newLamp(t *testing.T, f *fixture) *lamp {
	t.Helper()
	l := &lamp{accessory: f.accessory(t, "dev-1")}
	l.service = f.lightbulb(t, l.accessory)
	var err error
	l.bri, err = NewCharacteristicDelegate(l.service, CharacteristicParams{Key: "bri", Type: hap.CharBrightness, Value: 50})
	require.NoError(t, err)
	l.ct, err = NewCharacteristicDelegate(l.service, CharacteristicParams{Key: "ct", Type: hap.CharColorTemperature, Value: 370})
	require.NoError(t, err)
	l.al, err = l.service.EnableAdaptiveLighting(l.bri, l.ct)
	require.NoError(t, err)
	return l
}

// flatControl returns a transition whose color temperature is 300 mired
// minus the brightness, all day.
func (l *lamp) flatControl(t *testing.T) string {
	t.Helper()
	value, err := adaptive.EncodeControl(&adaptive.Control{
		IID:          l.ct.IID(),
		TransitionID: "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0",
		StartTime:    time.Now().Add(-time.Minute),
		Curve: adaptive.Curve{
			Entries:         []adaptive.CurveEntry{{Mired: 300, AdjustmentFactor: -1, Duration: 24 * time.Hour}},
			AdjustmentIID:   l.bri.IID(),
			AdjustmentRange: adaptive.Range{Min: 10, Max: 100},
		},
		UpdateInterval: time.Minute,
	})
	require.NoError(t, err)
	return value
}

func TestAdaptiveLighting(t *testing.T) {
	f := newFixture(t)
	l := newLamp(t, f)
	count := l.service.Characteristic("activeTransitionCount")
	control := l.service.Characteristic("transitionControl")
	require.NotNil(t, count)
	require.NotNil(t, control)

	supported, _ := l.service.Values().Get("supportedTransitionConfiguration")
	assert.Equal(t, adaptive.GenerateConfiguration(l.bri.IID(), l.ct.IID()), supported)
	assert.False(t, l.al.Active())
	assert.Equal(t, 0, count.Value())

	t.Run("activate", func(t *testing.T) {
		r, err := f.set(t, control, l.flatControl(t))
		require.NoError(t, err)
		assert.NotEmpty(t, r)
		assert.True(t, l.al.Active())
		assert.Equal(t, 1, count.Value())
		assert.Equal(t, 250, l.ct.Value())
		assert.True(t, l.service.Context().Has(adaptiveLightingKey))
	})

	t.Run("brightness follows", func(t *testing.T) {
		_, err := f.set(t, l.bri, 80)
		require.NoError(t, err)
		assert.Equal(t, 220, l.ct.Value())
	})

	t.Run("read", func(t *testing.T) {
		v, err := f.get(t, control)
		require.NoError(t, err)
		assert.NotEmpty(t, v)
	})

	t.Run("restore", func(t *testing.T) {
		l.accessory.Destroy(true)
		again := newLamp(t, f)
		assert.True(t, again.al.Active())
		l = again
	})

	t.Run("manual color temperature", func(t *testing.T) {
		_, err := f.set(t, l.ct, 400)
		require.NoError(t, err)
		assert.False(t, l.al.Active())
		assert.Equal(t, 0, l.service.Characteristic("activeTransitionCount").Value())
		assert.False(t, l.service.Context().Has(adaptiveLightingKey))

		_, err = f.set(t, l.bri, 30)
		require.NoError(t, err)
		assert.Equal(t, 400, l.ct.Value())
	})
}

func TestAdaptiveLightingRejects(t *testing.T) {
	f := newFixture(t)
	l := newLamp(t, f)
	control := l.service.Characteristic("transitionControl")

	other, err := adaptive.EncodeControl(&adaptive.Control{
		IID:       l.ct.IID() + 100,
		StartTime: time.Now(),
		Curve: adaptive.Curve{
			Entries:       []adaptive.CurveEntry{{Mired: 300}},
			AdjustmentIID: l.bri.IID(),
		},
	})
	require.NoError(t, err)
	_, err = f.set(t, control, other)
	assert.ErrorIs(t, err, adaptive.ErrIIDMismatch)
	assert.False(t, l.al.Active())

	_, err = f.set(t, control, l.flatControl(t))
	require.NoError(t, err)
	_, err = f.set(t, control, adaptive.EncodeEnd())
	require.NoError(t, err)
	assert.False(t, l.al.Active())

	_, err = l.service.EnableAdaptiveLighting(nil, l.ct)
	assert.ErrorIs(t, err, ErrInvalidType)
}
