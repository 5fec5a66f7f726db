package accesscode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KnownVectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"grace janin", "37d905efd806f04be408474870f53ad3"},
		{"guestmoir", "e537377e992c23b6814fa01175cc7e45"},
		{"moirguest", "977c0e0bd4e08d232a735f13dd15ea6d"},
		{"09/08/2022", "bdb1a45151fd19ff9b7e765edd4280cd"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, Hash(tc.input))
		})
	}
}

func TestHash_NormalizedBirthdateVector(t *testing.T) {
	assert.Equal(t, "bdb1a45151fd19ff9b7e765edd4280cd", Hash(NormalizeBirthdate("09/08/2022")))
	assert.Equal(t, "bdb1a45151fd19ff9b7e765edd4280cd", Hash(NormalizeBirthdate("September 8th, 2022")))
}

func TestHash_Deterministic(t *testing.T) {
	for _, s := range []string{"", "a", "Grace Janin", "ünïcödé", "09/08/2022"} {
		assert.Equal(t, Hash(s), Hash(s), "repeated calls must agree for %q", s)
		assert.Len(t, Hash(s), DigestLength)
	}
}

func TestHash_CaseAndWhitespaceInsensitive(t *testing.T) {
	for _, s := range []string{"grace janin", "guestmoir", "some other code"} {
		assert.Equal(t, Hash(s), Hash(strings.ToUpper(s)))
		assert.Equal(t, Hash(s), Hash(" "+s+" "))
		assert.Equal(t, Hash(s), Hash("\t"+strings.ToUpper(s)+"\n"))
	}
}

func TestHash_LowercaseHexOutput(t *testing.T) {
	assert.True(t, ValidDigest(Hash("anything at all")))
}

func TestRollingHasher(t *testing.T) {
	h := RollingHasher{}
	got := h.Hash("guestmoir")
	assert.Len(t, got, DigestLength)
	assert.True(t, ValidDigest(got))
	assert.Equal(t, got, h.Hash("  GUESTMOIR "))
	assert.NotEqual(t, Hash("guestmoir"), got, "fallback digests must never match the reference table")

	// "a" is 97 = 0x61.
	assert.Equal(t, "00000061"+strings.Repeat("0", 24), h.Hash("a"))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher(false, false)
	require.NoError(t, err)
	assert.IsType(t, SHA256Hasher{}, h)

	_, err = NewHasher(true, false)
	assert.ErrorIs(t, err, ErrFallbackNotAllowed)

	h, err = NewHasher(true, true)
	require.NoError(t, err)
	assert.IsType(t, RollingHasher{}, h)
}

func TestValidDigest(t *testing.T) {
	assert.True(t, ValidDigest("37d905efd806f04be408474870f53ad3"))
	assert.False(t, ValidDigest("37D905EFD806F04BE408474870F53AD3"), "uppercase is not canonical")
	assert.False(t, ValidDigest("37d905efd806f04be408474870f53ad"), "too short")
	assert.False(t, ValidDigest("37d905efd806f04be408474870f53ad3a"), "too long")
	assert.False(t, ValidDigest("zzd905efd806f04be408474870f53ad3"))
}
