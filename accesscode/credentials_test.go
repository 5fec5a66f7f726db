package accesscode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashRequest(code, birthdate string) VerifyRequest {
	req := VerifyRequest{CodeHash: StringPtr(Hash(code))}
	if birthdate != "" {
		req.BirthdateHash = StringPtr(Hash(NormalizeBirthdate(birthdate)))
	}
	return req
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable(DefaultPlainTextPhrase)
	require.Len(t, table, 4)

	c, ok := table.MatchHash("37d905efd806f04be408474870f53ad3")
	require.True(t, ok)
	assert.Equal(t, UserTypeHarper, c.UserType)
	assert.True(t, c.RequiresBirthdate())
	assert.Equal(t, "bdb1a45151fd19ff9b7e765edd4280cd", c.BirthdateHash)

	for _, digest := range []string{"e537377e992c23b6814fa01175cc7e45", "977c0e0bd4e08d232a735f13dd15ea6d"} {
		c, ok := table.MatchHash(digest)
		require.True(t, ok)
		assert.Equal(t, UserTypeGuest, c.UserType)
		assert.False(t, c.RequiresBirthdate())
	}

	assert.Len(t, DefaultTable(""), 3, "empty phrase omits the plaintext entry")
}

func TestTable_Verify(t *testing.T) {
	table := DefaultTable(DefaultPlainTextPhrase)

	t.Run("ChildWithBirthdate", func(t *testing.T) {
		c, err := table.Verify(hashRequest("Grace Janin", "9/8/2022"), true)
		require.NoError(t, err)
		assert.Equal(t, UserTypeHarper, c.UserType)
	})

	t.Run("ChildMissingBirthdate", func(t *testing.T) {
		c, err := table.Verify(hashRequest("grace janin", ""), true)
		assert.ErrorIs(t, err, ErrBirthdateRequired)
		assert.Equal(t, "harper", c.Name)
	})

	t.Run("ChildWrongBirthdate", func(t *testing.T) {
		c, err := table.Verify(hashRequest("grace janin", "01/01/2020"), true)
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Equal(t, "harper", c.Name)
	})

	t.Run("Guest", func(t *testing.T) {
		c, err := table.Verify(hashRequest("guestmoir", ""), true)
		require.NoError(t, err)
		assert.Equal(t, UserTypeGuest, c.UserType)
	})

	t.Run("GuestIgnoresBirthdate", func(t *testing.T) {
		_, err := table.Verify(hashRequest("moirguest", "01/01/2020"), true)
		assert.NoError(t, err)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := table.Verify(hashRequest("wrong code", ""), true)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("PlainText", func(t *testing.T) {
		c, err := table.Verify(VerifyRequest{PlainTextCode: StringPtr("  NorthPole ")}, true)
		require.NoError(t, err)
		assert.Equal(t, UserTypeNormal, c.UserType)
	})

	t.Run("PlainTextDisabled", func(t *testing.T) {
		_, err := table.Verify(VerifyRequest{PlainTextCode: StringPtr("northpole")}, false)
		assert.ErrorIs(t, err, ErrPlainTextDisabled)
	})

	t.Run("PlainTextWrong", func(t *testing.T) {
		_, err := table.Verify(VerifyRequest{PlainTextCode: StringPtr("southpole")}, true)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestVerifyRequest_Validate(t *testing.T) {
	digest := Hash("guestmoir")
	tests := []struct {
		name string
		req  VerifyRequest
		want error
	}{
		{"Neither", VerifyRequest{}, ErrAmbiguousCode},
		{"EmptyStrings", VerifyRequest{CodeHash: new(string), PlainTextCode: new(string)}, ErrAmbiguousCode},
		{"Both", VerifyRequest{CodeHash: &digest, PlainTextCode: StringPtr("northpole")}, ErrAmbiguousCode},
		{"ShortDigest", VerifyRequest{CodeHash: StringPtr("abc")}, ErrMalformedDigest},
		{"BadBirthdate", VerifyRequest{CodeHash: &digest, BirthdateHash: StringPtr("XYZ")}, ErrMalformedDigest},
		{"PlainWithBirthdate", VerifyRequest{PlainTextCode: StringPtr("northpole"), BirthdateHash: &digest}, ErrPlainTextWithExtra},
		{"HashOnly", VerifyRequest{CodeHash: &digest}, nil},
		{"PlainOnly", VerifyRequest{PlainTextCode: StringPtr("northpole")}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestIsChildPhrase(t *testing.T) {
	assert.True(t, IsChildPhrase("Grace Janin"))
	assert.True(t, IsChildPhrase("  GRACE JANIN "))
	assert.False(t, IsChildPhrase("grace"))
	assert.False(t, IsChildPhrase("guestmoir"))
}
