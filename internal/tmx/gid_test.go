package tmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeGIDRoundTrip(t *testing.T) {
	cases := []struct {
		tileID uint32
		h, v, d bool
	}{
		{0, false, false, false},
		{1, false, false, false},
		{1, true, false, false},
		{42, false, true, false},
		{42, false, false, true},
		{7, true, true, true},
		{tileIDMask, true, true, true},
	}

	for _, tc := range cases {
		raw := EncodeGID(tc.tileID, tc.h, tc.v, tc.d)
		id, h, v, d := DecodeGID(raw)
		if tc.tileID == 0 {
			// Id 0 means "no tile"; flags never survive.
			assert.Equal(t, uint32(0), id)
			assert.False(t, h)
			assert.False(t, v)
			assert.False(t, d)
			continue
		}
		assert.Equal(t, tc.tileID, id)
		assert.Equal(t, tc.h, h)
		assert.Equal(t, tc.v, v)
		assert.Equal(t, tc.d, d)
	}
}

func TestDecodeGIDZeroWithStrayFlipBits(t *testing.T) {
	// A raw value whose low 29 bits are zero is empty even if flip bits
	// are set.
	for _, raw := range []uint32{0, 0x80000000, 0x40000000, 0x20000000, 0xE0000000} {
		id, h, v, d := DecodeGID(raw)
		assert.Equal(t, uint32(0), id, "raw=%#x", raw)
		assert.False(t, h)
		assert.False(t, v)
		assert.False(t, d)
	}
}

func TestDecodeGIDFlipBits(t *testing.T) {
	id, h, v, d := DecodeGID(0x80000005)
	assert.Equal(t, uint32(5), id)
	assert.True(t, h)
	assert.False(t, v)
	assert.False(t, d)

	id, h, v, d = DecodeGID(0x60000009)
	assert.Equal(t, uint32(9), id)
	assert.False(t, h)
	assert.True(t, v)
	assert.True(t, d)
}
