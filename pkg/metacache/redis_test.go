//go:build integration

package metacache_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/testhelpers"
)

func TestRedisGeneration_SharedBetweenCaches(t *testing.T) {
	client := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:generation:" + uuid.NewString()

	store := metacache.NewRedisGeneration(client, key)
	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current, "missing key reads as zero")

	a := metacache.New(store, nil)
	b := metacache.New(metacache.NewRedisGeneration(client, key), nil)

	_, err = b.Session(ctx).Load("invoice", func() (*metacache.Entry, error) {
		return &metacache.Entry{Type: models.NewType("invoice")}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())

	h := a.Session(ctx)
	h.Disable()
	require.NoError(t, h.Commit(ctx))

	current, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)

	b.Session(ctx)
	assert.Equal(t, 0, b.Len(), "peer commit clears the other process's cache")
}
