package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "abc", "Laufwerk Größe", "файл", "emoji 😀"} {
		assert.Equal(t, s, DecodeToString(EncodeStringToBytes(s)), s)
	}
}

func TestEncodedStringLen(t *testing.T) {
	assert.Equal(t, 0, EncodedStringLen(""))
	assert.Equal(t, 6, EncodedStringLen("abc"))
	// A character outside the BMP takes a surrogate pair.
	assert.Equal(t, 4, EncodedStringLen("😀"))
	assert.Equal(t, len(EncodeStringToBytes("abc😀")), EncodedStringLen("abc😀"))
}

func TestDecodeDropsTerminator(t *testing.T) {
	bs := append(EncodeStringToBytes("share"), 0, 0)
	assert.Equal(t, "share", DecodeToString(bs))
}

func TestNullTerminatedToStrings(t *testing.T) {
	b := []byte("first\x00second\x00\x00")
	assert.Equal(t, []string{"first", "second"}, NullTerminatedToStrings(b))

	assert.Nil(t, NullTerminatedToStrings(nil))
	assert.Equal(t, []string{"tail"}, NullTerminatedToStrings([]byte("tail")))
}
