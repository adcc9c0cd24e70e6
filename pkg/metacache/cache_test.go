package metacache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

type fakeGeneration struct {
	gen     int64
	readErr error
	bumps   int
}

func (f *fakeGeneration) Current(context.Context) (int64, error) {
	return f.gen, f.readErr
}

func (f *fakeGeneration) Bump(context.Context) (int64, error) {
	f.gen++
	f.bumps++
	return f.gen, nil
}

func entry(name string) *Entry {
	return &Entry{Type: models.NewType(name)}
}

func loader(calls *int, name string) func() (*Entry, error) {
	return func() (*Entry, error) {
		*calls++
		return entry(name), nil
	}
}

func TestHandle_LoadPopulatesOnce(t *testing.T) {
	c := New(nil, nil)
	h := c.Session(context.Background())

	calls := 0
	_, err := h.Load("invoice", loader(&calls, "invoice"))
	require.NoError(t, err)
	_, err = h.Load("invoice", loader(&calls, "invoice"))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestHandle_DisabledBypassesCache(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	warm := c.Session(ctx)
	_, err := warm.Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)

	h := c.Session(ctx)
	h.Disable()
	assert.False(t, h.Enabled())

	_, ok := h.Get("invoice")
	assert.False(t, ok, "disabled handle must not see cached entries")

	calls := 0
	_, err = h.Load("customer", loader(&calls, "customer"))
	require.NoError(t, err)
	_, err = h.Load("customer", loader(&calls, "customer"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// other sessions still use the shared entries until commit
	_, ok = c.Session(ctx).Get("invoice")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestHandle_CommitClearsAndReenables(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	_, err := c.Session(ctx).Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)

	h := c.Session(ctx)
	h.Disable()
	require.NoError(t, h.Commit(ctx))

	assert.True(t, h.Enabled())
	assert.Equal(t, 0, c.Len())
}

func TestHandle_CommitWithoutMutationKeepsCache(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	h := c.Session(ctx)
	_, err := h.Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)

	require.NoError(t, h.Commit(ctx))
	assert.Equal(t, 1, c.Len())
}

func TestHandle_RollbackKeepsCache(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()
	_, err := c.Session(ctx).Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)

	h := c.Session(ctx)
	h.Disable()
	h.Rollback()

	assert.True(t, h.Enabled())
	assert.Equal(t, 1, c.Len())
}

func TestHandle_LoadRacingClearIsDiscarded(t *testing.T) {
	c := New(nil, nil)
	h := c.Session(context.Background())

	_, err := h.Load("invoice", func() (*Entry, error) {
		c.Clear()
		return entry("invoice"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestHandle_LoadError(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Session(context.Background()).Load("invoice", func() (*Entry, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 0, c.Len())
}

func TestCache_GenerationSync(t *testing.T) {
	store := &fakeGeneration{}
	c := New(store, nil)
	ctx := context.Background()

	_, err := c.Session(ctx).Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)
	c.Session(ctx)
	assert.Equal(t, 1, c.Len(), "unchanged generation keeps entries")

	store.gen = 5
	c.Session(ctx)
	assert.Equal(t, 0, c.Len(), "advanced generation clears entries")

	h := c.Session(ctx)
	h.Disable()
	require.NoError(t, h.Commit(ctx))
	assert.Equal(t, 1, store.bumps)

	_, err = c.Session(ctx).Load("invoice", loader(new(int), "invoice"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(), "own bump is already synchronized")

	store.readErr = errors.New("unreachable")
	c.Session(ctx)
	assert.Equal(t, 0, c.Len())
}
