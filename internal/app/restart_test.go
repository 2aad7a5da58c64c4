package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/datasource"
	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository"
	"github.com/jwalitptl/vitalflow/internal/repository/memory"
	"github.com/jwalitptl/vitalflow/internal/service/servicetest"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

func boot(t *testing.T, actions repository.ActionRepository, src datasource.Source) *App {
	t.Helper()
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), testConfig(), Deps{
		Logger:   logger.Nop(),
		Metrics:  metrics.NewMetrics("test", reg),
		Gatherer: reg,
		Actions:  actions,
		Source:   src,
	})
	require.NoError(t, err)
	return a
}

func seqs(actions []*model.Action) []uint64 {
	out := make([]uint64, len(actions))
	for i, a := range actions {
		out[i] = a.Seq
	}
	return out
}

func assertIncreasing(t *testing.T, actions []*model.Action) {
	t.Helper()
	for i := 1; i < len(actions); i++ {
		require.Greater(t, actions[i].Seq, actions[i-1].Seq, "seqs %v", seqs(actions))
	}
}

// The shared repository outlives both App instances the way sync_actions
// outlives the API process.
func TestRestartKeepsDurableQueueOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewActionRepository()

	first := boot(t, repo, seedSource{})
	_, err := first.Transfers.Request(ctx, "P1", "B2", "Dr. A")
	require.NoError(t, err)
	_, err = first.Trips.Start(ctx, "D1", "Main gate", "Asha Rao")
	require.NoError(t, err)
	before, err := first.Queue.Pending(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	second := boot(t, repo, seedSource{})
	assert.Equal(t, len(before), second.Decisions.Len())

	_, err = second.Trips.Start(ctx, "D2", "Ward A", "Ben Ode")
	require.NoError(t, err)

	pending, err := second.Queue.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, len(before)+1)
	assertIncreasing(t, pending)
	for i, a := range before {
		assert.Equal(t, a.ID, pending[i].ID)
	}
	assert.Equal(t, model.ActionStartTrip, pending[len(pending)-1].Type)

	// Acknowledged history is restored with its flag.
	require.NoError(t, second.Queue.MarkSynced(ctx, before[0].ID))
	third := boot(t, repo, seedSource{})
	got, err := third.Decisions.Get(before[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assertIncreasing(t, third.Decisions.All())
}

func TestFlushAndReloadKeepsDecisionLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	src := datasource.NewJSONFile(path)
	require.NoError(t, src.Flush(ctx, servicetest.Seed()))

	first := boot(t, memory.NewActionRepository(), src)
	tr, err := first.Transfers.Request(ctx, "P1", "B2", "Dr. A")
	require.NoError(t, err)
	_, err = first.Transfers.Approve(ctx, tr.ID, "Dr. B", "step down")
	require.NoError(t, err)
	trail := first.Decisions.Query(model.ActionFilters{EntityType: model.EntityTransfer, EntityID: tr.ID})
	require.NotEmpty(t, trail)
	pending, err := first.Queue.Pending(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, first.Queue.MarkSynced(ctx, pending[0].ID))
	require.NoError(t, first.Close(ctx))

	// A fresh in-memory queue: unsynced actions come back from the file.
	second := boot(t, memory.NewActionRepository(), src)
	restored, err := second.Transfers.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferApproved, restored.Status)

	reloaded := second.Decisions.Query(model.ActionFilters{EntityType: model.EntityTransfer, EntityID: tr.ID})
	require.Len(t, reloaded, len(trail))
	for i := range trail {
		assert.Equal(t, trail[i].ID, reloaded[i].ID)
		assert.Equal(t, trail[i].Seq, reloaded[i].Seq)
	}

	requeued, err := second.Queue.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, requeued, len(pending)-1)
	for _, a := range requeued {
		assert.NotEqual(t, pending[0].ID, a.ID)
	}

	_, err = second.Trips.Start(ctx, "D1", "Main gate", "Asha Rao")
	require.NoError(t, err)
	assertIncreasing(t, second.Decisions.All())
}
