package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/crypto"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

const strongPassword = "Corr3ct-Horse-Battery"

func testEngine(t *testing.T) *Engine {
	hasher := crypto.NewPasswordHasher(crypto.HasherConfig{Time: 1, Memory: 1024, Threads: 1, MinStrength: 3})
	return New(nil, nil, hasher, zaptest.NewLogger(t))
}

func TestPasswordValue(t *testing.T) {
	e := testEngine(t)
	user := &database.Session{Mode: database.ReadWrite}
	admin := &database.Session{Mode: database.Admin}

	stored, err := e.hasher.Hash(strongPassword)
	require.NoError(t, err)

	t.Run("new password is hashed", func(t *testing.T) {
		hash, err := e.passwordValue(user, "account", "secret", strongPassword, nil)
		require.NoError(t, err)
		require.NotNil(t, hash)
		assert.True(t, crypto.IsHash(*hash))
		ok, err := e.hasher.Verify(strongPassword, *hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := e.passwordValue(user, "account", "secret", "abc", nil)
		key, _, _ := apperrors.KeyOf(err)
		assert.Equal(t, apperrors.KeyWeakPassword, key)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		pv := models.PasswordValue{New: strongPassword, Confirm: strongPassword + "!"}
		_, err := e.passwordValue(user, "account", "secret", pv, nil)
		key, _, _ := apperrors.KeyOf(err)
		assert.Equal(t, apperrors.KeyPasswordMismatch, key)
	})

	t.Run("current password required", func(t *testing.T) {
		pv := &models.PasswordValue{Current: "wrong", New: "N3w-Password-Here", Confirm: "N3w-Password-Here"}
		_, err := e.passwordValue(user, "account", "secret", pv, &stored)
		key, _, _ := apperrors.KeyOf(err)
		assert.Equal(t, apperrors.KeyInvalidPassword, key)
	})

	t.Run("current password given as map", func(t *testing.T) {
		v := map[string]any{"current": strongPassword, "new": "N3w-Password-Here", "confirm": "N3w-Password-Here"}
		hash, err := e.passwordValue(user, "account", "secret", v, &stored)
		require.NoError(t, err)
		require.NotNil(t, hash)
	})

	t.Run("admin skips current password", func(t *testing.T) {
		pv := models.PasswordValue{New: "N3w-Password-Here", Confirm: "N3w-Password-Here"}
		hash, err := e.passwordValue(admin, "account", "secret", pv, &stored)
		require.NoError(t, err)
		require.NotNil(t, hash)
	})

	t.Run("empty value clears", func(t *testing.T) {
		hash, err := e.passwordValue(admin, "account", "secret", models.PasswordValue{}, &stored)
		require.NoError(t, err)
		assert.Nil(t, hash)
	})

	t.Run("clearing requires current password", func(t *testing.T) {
		_, err := e.passwordValue(user, "account", "secret", nil, &stored)
		key, _, _ := apperrors.KeyOf(err)
		assert.Equal(t, apperrors.KeyInvalidPassword, key)

		_, err = e.passwordValue(user, "account", "secret", (*models.PasswordValue)(nil), &stored)
		key, _, _ = apperrors.KeyOf(err)
		assert.Equal(t, apperrors.KeyInvalidPassword, key)

		hash, err := e.passwordValue(user, "account", "secret", models.PasswordValue{Current: strongPassword}, &stored)
		require.NoError(t, err)
		assert.Nil(t, hash)

		hash, err = e.passwordValue(admin, "account", "secret", nil, &stored)
		require.NoError(t, err)
		assert.Nil(t, hash)

		hash, err = e.passwordValue(user, "account", "secret", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, hash)
	})

	t.Run("unsupported shape", func(t *testing.T) {
		_, err := e.passwordValue(user, "account", "secret", 42, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}
