package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
	"github.com/ebaauw/homebridge-lib-go/pkg/host/memhost"
	"github.com/ebaauw/homebridge-lib-go/pkg/persistence"
)

func newTestShell(t *testing.T) (*Shell, *Lightbulb, *bytes.Buffer) {
	t.Helper()
	store := persistence.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	bridge := memhost.New(store, nil)
	p, err := delegate.NewPlatform(bridge, delegate.PlatformConfig{Name: "demo", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	l, err := newLightbulb(p, DeviceConfig{ID: "lamp-1", Name: "Lamp", AdaptiveLighting: true})
	require.NoError(t, err)
	p.Initialise()
	var out bytes.Buffer
	return newShell(bridge, p, &out), l, &out
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"0", false},
		{"42", 42},
		{"2.5", 2.5},
		{`"quoted text"`, "quoted text"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func TestShellCommands(t *testing.T) {
	sh, l, out := newTestShell(t)
	ctx := context.Background()
	bri := l.Service.Characteristic("bri")
	iid := strconv.FormatUint(bri.IID(), 10)

	assert.False(t, sh.exec(ctx, "list"))
	assert.Contains(t, out.String(), "lamp-1  Lamp")
	assert.Contains(t, out.String(), "bri")

	out.Reset()
	assert.False(t, sh.exec(ctx, "set lamp-1 "+iid+" 150"))
	assert.Empty(t, out.String())
	assert.Equal(t, 100, bri.Value())

	out.Reset()
	assert.False(t, sh.exec(ctx, "set lamp-1 "+iid+" 40"))
	sh.exec(ctx, "get lamp-1 "+iid)
	assert.Equal(t, "40\n", out.String())

	out.Reset()
	sh.exec(ctx, "get lamp-2 1")
	assert.Contains(t, out.String(), `no accessory "lamp-2"`)

	out.Reset()
	sh.exec(ctx, "get lamp-1 x")
	assert.Contains(t, out.String(), "invalid iid")

	out.Reset()
	sh.exec(ctx, "identify lamp-1")
	assert.Empty(t, out.String())

	out.Reset()
	sh.exec(ctx, "save")
	assert.Equal(t, "saved\n", out.String())

	out.Reset()
	sh.exec(ctx, "frobnicate")
	assert.True(t, strings.HasPrefix(out.String(), "unknown command"))

	assert.True(t, sh.exec(ctx, "quit"))
}
