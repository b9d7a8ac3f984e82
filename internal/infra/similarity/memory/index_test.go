package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
)

// basis returns a unit vector along axis i.
func basis(i int) embedding.Vector {
	v := make(embedding.Vector, embedding.Dimension)
	v[i] = 1
	return v
}

// blend returns a normalizable mix of two axes.
func blend(i, j int, wi, wj float32) embedding.Vector {
	v := make(embedding.Vector, embedding.Dimension)
	v[i] = wi
	v[j] = wj
	return v
}

func TestQueryOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	require.NoError(t, ix.Upsert(ctx, "exact", basis(0)))
	require.NoError(t, ix.Upsert(ctx, "close", blend(0, 1, 0.9, 0.1)))
	require.NoError(t, ix.Upsert(ctx, "far", basis(1)))

	got, err := ix.Query(ctx, basis(0), 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "exact", got[0].ArtifactID)
	assert.Equal(t, "close", got[1].ArtifactID)
	assert.Equal(t, "far", got[2].ArtifactID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.InDelta(t, 1, got[2].Distance, 1e-6)
}

func TestQueryTieBreaksByArtifactID(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	// Identical vectors under different ids: equal distance, id order decides.
	require.NoError(t, ix.Upsert(ctx, "b-script", basis(2)))
	require.NoError(t, ix.Upsert(ctx, "a-script", basis(2)))
	require.NoError(t, ix.Upsert(ctx, "c-script", basis(2)))

	got, err := ix.Query(ctx, basis(2), 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a-script", got[0].ArtifactID)
	assert.Equal(t, "b-script", got[1].ArtifactID)
	assert.Equal(t, "c-script", got[2].ArtifactID)
}

func TestQueryExcludesIDs(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	require.NoError(t, ix.Upsert(ctx, "self", basis(0)))
	require.NoError(t, ix.Upsert(ctx, "other", blend(0, 1, 0.8, 0.2)))

	got, err := ix.Query(ctx, basis(0), 5, []string{"self"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].ArtifactID)
}

func TestQueryTruncatesToK(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()
	for i := 0; i < 10; i++ {
		require.NoError(t, ix.Upsert(ctx, string(rune('a'+i)), basis(i)))
	}

	got, err := ix.Query(ctx, basis(0), 4, nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = ix.Query(ctx, basis(0), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	err := ix.Upsert(ctx, "bad", make(embedding.Vector, 3))
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)

	_, err = ix.Query(ctx, make(embedding.Vector, 3), 1, nil)
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestUpsertReplacesAndRemoveDeletes(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	require.NoError(t, ix.Upsert(ctx, "x", basis(0)))
	require.NoError(t, ix.Upsert(ctx, "x", basis(1)))
	assert.Equal(t, 1, ix.Len())

	got, err := ix.Query(ctx, basis(1), 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)

	require.NoError(t, ix.Remove(ctx, "x"))
	assert.Equal(t, 0, ix.Len())

	// Removing an unknown id is a no-op.
	require.NoError(t, ix.Remove(ctx, "ghost"))
}

func TestUpsertCopiesVector(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()

	v := basis(0)
	require.NoError(t, ix.Upsert(ctx, "x", v))
	v[0] = 0
	v[1] = 1

	got, err := ix.Query(ctx, basis(0), 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0, got[0].Distance, 1e-6, "stored vector must not alias the caller's slice")
}
