package memhost

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
	"github.com/ebaauw/homebridge-lib-go/pkg/host"
	"github.com/ebaauw/homebridge-lib-go/pkg/persistence"
)

const testUUID = "2C4A0B1E-4F0C-5B8E-9D3A-5E4F1A2B3C4D"

func newLightbulb(t *testing.T, b *Bridge) (*Accessory, host.Characteristic) {
	t.Helper()
	a := b.NewAccessory("Lamp", testUUID, hap.CategoryLightbulb).(*Accessory)
	s := a.AddService(hap.ServiceLightbulb, "Lamp", "")
	bri := s.AddCharacteristic(hap.CharBrightness)
	require.NoError(t, b.RegisterAccessory(a))
	return a, bri
}

func TestNewAccessoryInformation(t *testing.T) {
	b := New(nil, nil)
	a := b.NewAccessory("Lamp", testUUID, hap.CategoryLightbulb)

	info := a.Service(hap.ServiceAccessoryInformation.UUID, "")
	require.NotNil(t, info)
	assert.Equal(t, uint64(1), info.(*Service).IID())
	require.NotNil(t, info.Characteristic(hap.CharIdentify.UUID))
	name := info.Characteristic(hap.CharName.UUID)
	require.NotNil(t, name)
	assert.Equal(t, "Lamp", name.Value())

	// Not registered yet.
	assert.Nil(t, b.Accessory(testUUID))
}

func TestRegisterAccessory(t *testing.T) {
	b := New(nil, nil)
	a := b.NewAccessory("Lamp", testUUID, hap.CategoryLightbulb)

	require.NoError(t, b.RegisterAccessory(a))
	assert.Same(t, a, b.Accessory(testUUID))
	assert.Same(t, a, b.Accessory("2c4a0b1e-4f0c-5b8e-9d3a-5e4f1a2b3c4d"))

	err := b.RegisterAccessory(a)
	assert.True(t, errors.Is(err, ErrAlreadyRegistered), "RegisterAccessory() error = %v", err)

	other := New(nil, nil).NewAccessory("Lamp", testUUID, hap.CategoryLightbulb)
	assert.ErrorIs(t, b.RegisterAccessory(other), ErrForeignAccessory)

	require.NoError(t, b.UnregisterAccessory(a))
	assert.Nil(t, b.Accessory(testUUID))
	assert.ErrorIs(t, b.UnregisterAccessory(a), ErrNotRegistered)
}

func TestIIDAllocation(t *testing.T) {
	b := New(nil, nil)
	a, bri := newLightbulb(t, b)

	seen := map[uint64]bool{}
	for _, s := range a.Services() {
		iid := s.(*Service).IID()
		assert.False(t, seen[iid], "duplicate iid %d", iid)
		seen[iid] = true
		for _, c := range s.Characteristics() {
			assert.False(t, seen[c.IID()], "duplicate iid %d", c.IID())
			seen[c.IID()] = true
		}
	}
	assert.Same(t, bri, a.CharacteristicByIID(bri.IID()))
	assert.Nil(t, a.CharacteristicByIID(999))
}

func TestGetAndSet(t *testing.T) {
	ctx := context.Background()
	b := New(nil, nil)
	_, bri := newLightbulb(t, b)

	// No handlers: cached value.
	bri.UpdateValue(30)
	v, err := b.Get(ctx, testUUID, bri.IID())
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	_, err = b.Set(ctx, testUUID, bri.IID(), 40)
	require.NoError(t, err)
	assert.Equal(t, 40, bri.Value())

	// With handlers.
	bri.OnGet(func(context.Context) (any, error) { return 42, nil })
	var written any
	n := bri.OnSet(func(_ context.Context, v any) (any, error) {
		written = v
		return nil, nil
	})
	assert.Equal(t, 1, n)

	v, err = b.Get(ctx, testUUID, bri.IID())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 42, bri.Value())

	_, err = b.Set(ctx, testUUID, bri.IID(), 55)
	require.NoError(t, err)
	assert.Equal(t, 55, written)
	assert.Equal(t, 55, bri.Value())

	bri.ClearHandlers()
	assert.Equal(t, 1, bri.OnSet(func(context.Context, any) (any, error) { return nil, nil }))
}

func TestSetHandlerUpdatesValue(t *testing.T) {
	b := New(nil, nil)
	_, bri := newLightbulb(t, b)
	bri.OnSet(func(_ context.Context, v any) (any, error) {
		bri.UpdateValue(100)
		return nil, nil
	})

	_, err := b.Set(context.Background(), testUUID, bri.IID(), 150)
	require.NoError(t, err)
	assert.Equal(t, 100, bri.Value())
}

func TestSetErrors(t *testing.T) {
	ctx := context.Background()
	b := New(nil, nil)
	a, bri := newLightbulb(t, b)
	boom := errors.New("boom")
	bri.OnSet(func(context.Context, any) (any, error) { return nil, boom })

	_, err := b.Set(ctx, testUUID, bri.IID(), 10)
	assert.ErrorIs(t, err, boom)

	_, err = b.Set(ctx, "unknown", 1, 10)
	assert.ErrorIs(t, err, ErrUnknownAccessory)
	_, err = b.Set(ctx, testUUID, 999, 10)
	assert.ErrorIs(t, err, ErrUnknownIID)

	name := a.Service(hap.ServiceAccessoryInformation.UUID, "").Characteristic(hap.CharName.UUID)
	_, err = b.Set(ctx, testUUID, name.IID(), "x")
	assert.ErrorIs(t, err, ErrNotWritable)

	identify := a.Service(hap.ServiceAccessoryInformation.UUID, "").Characteristic(hap.CharIdentify.UUID)
	_, err = b.Get(ctx, testUUID, identify.IID())
	assert.ErrorIs(t, err, ErrNotReadable)
}

func TestWriteResponse(t *testing.T) {
	b := New(nil, nil)
	a, _ := newLightbulb(t, b)
	s := a.Service(hap.ServiceLightbulb.UUID, "")
	control := s.AddCharacteristic(hap.CharTransitionControl)
	control.OnSet(func(context.Context, any) (any, error) { return "response", nil })

	r, err := b.Set(context.Background(), testUUID, control.IID(), "request")
	require.NoError(t, err)
	assert.Equal(t, "response", r)
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()
	b := New(nil, nil)
	a, _ := newLightbulb(t, b)
	count := 0
	a.OnIdentify(func() { count++ })

	require.NoError(t, b.Identify(testUUID))
	identify := a.Service(hap.ServiceAccessoryInformation.UUID, "").Characteristic(hap.CharIdentify.UUID)
	_, err := b.Set(ctx, testUUID, identify.IID(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.ErrorIs(t, b.Identify("unknown"), ErrUnknownAccessory)
}

func TestSubscribe(t *testing.T) {
	b := New(nil, nil)
	a, bri := newLightbulb(t, b)
	var got []Notification
	cancel := b.Subscribe(func(n Notification) { got = append(got, n) })

	bri.UpdateValue(10)
	// Name does not notify.
	a.Service(hap.ServiceAccessoryInformation.UUID, "").Characteristic(hap.CharName.UUID).UpdateValue("x")
	cancel()
	bri.UpdateValue(20)

	require.Len(t, got, 1)
	assert.Equal(t, Notification{AccessoryUUID: testUUID, IID: bri.IID(), Value: 10}, got[0])
}

func TestRemoveService(t *testing.T) {
	b := New(nil, nil)
	a, _ := newLightbulb(t, b)
	light := a.Service(hap.ServiceLightbulb.UUID, "")
	sw := a.AddService(hap.ServiceSwitch, "Switch", "1")
	light.AddLinkedService(sw)
	light.AddLinkedService(sw)
	require.Len(t, light.(*Service).Linked(), 1)

	a.RemoveService(sw)
	assert.Nil(t, a.Service(hap.ServiceSwitch.UUID, "1"))
	assert.Empty(t, light.(*Service).Linked())

	bri := light.Characteristic(hap.CharBrightness.UUID)
	light.RemoveCharacteristic(bri)
	assert.Nil(t, light.Characteristic(hap.CharBrightness.UUID))
}

func TestSaveAndLoad(t *testing.T) {
	for _, tt := range []struct {
		name  string
		store func(t *testing.T) persistence.Store
	}{
		{"file", func(t *testing.T) persistence.Store {
			return persistence.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
		}},
		{"sqlite", func(t *testing.T) persistence.Store {
			s, err := persistence.OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store(t)
			b := New(store, nil)
			a, bri := newLightbulb(t, b)
			light := a.Service(hap.ServiceLightbulb.UUID, "")
			light.SetPrimary(true)
			sw := a.AddService(hap.ServiceSwitch, "Switch", "1")
			sw.SetHidden(true)
			light.AddLinkedService(sw)
			bri.UpdateValue(70)
			a.Context().Sub("svc").Set("bri", 70)
			require.NoError(t, b.Save())

			restored := New(store, nil)
			n, err := restored.Load()
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			ra := restored.Accessory(testUUID)
			require.NotNil(t, ra)
			assert.Equal(t, "Lamp", ra.DisplayName())
			assert.Equal(t, hap.CategoryLightbulb, ra.Category())
			assert.EqualValues(t, 70, ra.Context().Sub("svc").Snapshot()["bri"])

			rl := ra.Service(hap.ServiceLightbulb.UUID, "").(*Service)
			assert.True(t, rl.Primary())
			require.Len(t, rl.Linked(), 1)
			assert.True(t, rl.Linked()[0].Hidden())

			rb := rl.Characteristic(hap.CharBrightness.UUID)
			require.NotNil(t, rb)
			assert.Equal(t, bri.IID(), rb.IID())
			assert.EqualValues(t, 70, rb.Value())
			assert.Equal(t, hap.FormatInt, rb.Props().Format)
			require.NotNil(t, rb.Props().MaxValue)
			assert.Equal(t, 100.0, *rb.Props().MaxValue)

			// New characteristics get fresh iids.
			added := rl.AddCharacteristic(hap.CharColorTemperature)
			assert.Nil(t, ra.(*Accessory).CharacteristicByIID(added.IID()+1))
			assert.Greater(t, added.IID(), bri.IID())
		})
	}
}

func TestLoadWithoutStore(t *testing.T) {
	b := New(nil, nil)
	n, err := b.Load()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, b.Save())

	empty := New(persistence.NewFileStore(filepath.Join(t.TempDir(), "none.json")), nil)
	n, err = empty.Load()
	require.NoError(t, err)
	assert.Zero(t, n)
}
