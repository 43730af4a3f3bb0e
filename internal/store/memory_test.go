package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

func sampleAnalysis() *types.Analysis {
	return &types.Analysis{
		Score:          85,
		Feedback:       []string{"Great use of action verbs.", "Consider adding a summary section."},
		RawTextPreview: "Jane Doe, Staff Engineer",
	}
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	defer m.Close()

	in := sampleAnalysis()
	in.ResultID = "ignored"
	id, err := m.Put(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "ignored", id)

	got, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ResultID)
	assert.Equal(t, in.Score, got.Score)
	assert.Equal(t, in.Feedback, got.Feedback)

	// Mutating the returned copy must not leak into the store.
	got.Feedback[0] = "mutated"
	again, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Great use of action verbs.", again.Feedback[0])
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	id, err := m.Put(ctx, sampleAnalysis())
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = m.Get(ctx, id)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	// The next write sweeps the expired entry.
	_, err = m.Put(ctx, sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	_, err := m.Put(ctx, nil)
	assert.ErrorIs(t, err, types.ErrNilAnalysis)

	_, err = m.Get(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidID)

	_, err = m.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, types.ErrInvalidID)

	_, err = m.Get(ctx, generateID())
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Put(ctx, sampleAnalysis())
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = m.Get(ctx, generateID())
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}
