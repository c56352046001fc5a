package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	var b Builder
	b.Uint(1, 7).Add(2, []byte("abc")).Add(3, nil)

	assert.Equal(t, []byte{1, 1, 7, 2, 3, 'a', 'b', 'c', 3, 0}, b.Bytes())

	items, err := Decode(b.Bytes())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Item{Type: 1, Value: []byte{7}}, items[0])
	assert.Equal(t, []byte("abc"), items[1].Value)
	assert.Empty(t, items[2].Value)

	assert.Equal(t, b.Bytes(), Encode(items))
}

func TestFragmentation(t *testing.T) {
	long := bytes.Repeat([]byte{0xAB}, 600)

	var b Builder
	b.Add(5, long).Uint(6, 1)
	data := b.Bytes()

	// 255 + 255 + 90 in three fragments, then the trailing record.
	assert.Equal(t, 2+255+2+255+2+90+3, len(data))
	assert.Equal(t, byte(5), data[0])
	assert.Equal(t, byte(255), data[1])
	assert.Equal(t, byte(5), data[257])

	items, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, long, items[0].Value)
	assert.Equal(t, byte(6), items[1].Type)
}

func TestExactFragmentNotJoinedAcrossTypes(t *testing.T) {
	exact := bytes.Repeat([]byte{1}, 255)
	var b Builder
	b.Add(1, exact).Add(2, []byte{9})

	items, err := Decode(b.Bytes())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Len(t, items[0].Value, 255)
}

func TestShortFragmentNotJoined(t *testing.T) {
	short := bytes.Repeat([]byte{2}, 254)
	data := append([]byte{4, 254}, short...)
	data = append(data, 4, 1, 9)

	items, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, short, items[0].Value)
	assert.Equal(t, Item{Type: 4, Value: []byte{9}}, items[1])
}

func TestList(t *testing.T) {
	var b Builder
	b.Uint(1, 10).Uint(2, 1).Separator().Uint(1, 11).Uint(2, 2)

	items, err := Decode(b.Bytes())
	require.NoError(t, err)

	list := List(items)
	require.Len(t, list, 2)

	v, ok := Find(list[1], 1)
	require.True(t, ok)
	n, err := Uint(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), n)

	_, ok = Find(list[0], 9)
	assert.False(t, ok)
}

func TestNested(t *testing.T) {
	var inner Builder
	inner.Uint(1, 300)
	var outer Builder
	outer.Nested(2, &inner)

	items, err := Decode(outer.Bytes())
	require.NoError(t, err)
	sub, err := Decode(items[0].Value)
	require.NoError(t, err)
	n, err := Uint(sub[0].Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), n)
	assert.Len(t, sub[0].Value, 2)
}

func TestUintWidths(t *testing.T) {
	tests := []struct {
		n     uint64
		width int
	}{
		{0, 1},
		{255, 1},
		{256, 2},
		{65535, 2},
		{65536, 4},
		{1 << 32, 8},
	}
	for _, tt := range tests {
		enc := PutUint(tt.n)
		if len(enc) != tt.width {
			t.Errorf("PutUint(%d) width = %d, want %d", tt.n, len(enc), tt.width)
		}
		got, err := Uint(enc)
		if err != nil || got != tt.n {
			t.Errorf("Uint(PutUint(%d)) = %d, %v", tt.n, got, err)
		}
	}

	if _, err := Uint([]byte{1, 2, 3}); !errors.Is(err, ErrBadWidth) {
		t.Errorf("Uint(3 bytes) error = %v, want ErrBadWidth", err)
	}
	enc, err := PutUintWidth(1, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, enc)
	_, err = PutUintWidth(1, 3)
	assert.ErrorIs(t, err, ErrBadWidth)
}

func TestFloat(t *testing.T) {
	f, err := Float(PutFloat32(0.25))
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	_, err = Float([]byte{1})
	assert.ErrorIs(t, err, ErrBadWidth)
}

func TestDecodeTruncated(t *testing.T) {
	for _, data := range [][]byte{{1}, {1, 4, 0, 0}} {
		if _, err := Decode(data); !errors.Is(err, ErrTruncated) {
			t.Errorf("Decode(%v) error = %v, want ErrTruncated", data, err)
		}
	}
}
