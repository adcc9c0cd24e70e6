package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the tests fast
func testHasher() *PasswordHasher {
	return NewPasswordHasher(HasherConfig{Time: 1, Memory: 1024, Threads: 1, MinStrength: 3})
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("Correct-Horse-9")
	require.NoError(t, err)
	assert.True(t, IsHash(encoded))
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("Correct-Horse-9", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("correct-horse-9", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := testHasher()
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_VerifyUsesStoredParameters(t *testing.T) {
	encoded, err := testHasher().Hash("pw")
	require.NoError(t, err)

	ok, err := NewPasswordHasher(HasherConfig{}).Verify("pw", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	h := testHasher()
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := h.Verify("pw", encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}

	_, err := h.Verify("pw", "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestStrength(t *testing.T) {
	tests := []struct {
		password string
		want     int
	}{
		{"", 0},
		{"abc", 0},
		{"abcdefgh", 1},
		{"abcdefghijkl", 2},
		{"Abcdefgh1", 2},
		{"Abcdefgh1!", 3},
		{"Abcdefghij1!", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Strength(tt.password), tt.password)
	}

	h := testHasher()
	assert.False(t, h.StrongEnough("abcdefgh"))
	assert.True(t, h.StrongEnough("Abcdefgh1!"))
}
