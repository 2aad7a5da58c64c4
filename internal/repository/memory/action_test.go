package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/model"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

func action(id string, seq uint64) *model.Action {
	return &model.Action{ID: id, Seq: seq, Type: model.ActionPunchIn, Actor: "S1", Timestamp: time.Now()}
}

func TestActionRepositoryPendingOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepository()
	require.NoError(t, repo.Append(ctx, action("A1", 1)))
	require.NoError(t, repo.Append(ctx, action("A3", 3)))
	require.NoError(t, repo.Append(ctx, action("A2", 2)))
	require.NoError(t, repo.Append(ctx, action("A2", 2)))

	pending, err := repo.ListPending(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"A1", "A2", "A3"}, []string{pending[0].ID, pending[1].ID, pending[2].ID})

	page, err := repo.ListPending(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A2", page[0].ID)
}

func TestActionRepositoryMarkSyncedIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepository()
	require.NoError(t, repo.Append(ctx, action("A1", 1)))

	changed, err := repo.MarkSynced(ctx, "A1", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkSynced(ctx, "A1", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	n, _ := repo.CountPending(ctx)
	assert.Zero(t, n)

	_, err = repo.MarkSynced(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, apperrors.InvalidReferenceErr)
}

func TestActionRepositoryDeleteSyncedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepository()
	require.NoError(t, repo.Append(ctx, action("A1", 1)))
	require.NoError(t, repo.Append(ctx, action("A2", 2)))
	old := time.Now().Add(-48 * time.Hour)
	_, err := repo.MarkSynced(ctx, "A1", old)
	require.NoError(t, err)

	removed, err := repo.DeleteSyncedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.Get(ctx, "A1")
	assert.Error(t, err)
	n, _ := repo.CountPending(ctx)
	assert.Equal(t, 1, n)
}

func TestActionRepositoryListAndMaxSeq(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepository()

	top, err := repo.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, top)

	for _, a := range []*model.Action{action("A1", 1), action("A2", 2), action("A3", 3)} {
		require.NoError(t, repo.Append(ctx, a))
	}
	_, err = repo.MarkSynced(ctx, "A1", time.Now())
	require.NoError(t, err)

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Synced)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A2", page[0].ID)

	top, err = repo.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), top)
}
