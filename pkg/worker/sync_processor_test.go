package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository/memory"
	"github.com/jwalitptl/vitalflow/internal/service/syncqueue"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/messaging"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

var testConfig = SyncProcessorConfig{
	BatchSize:     10,
	PollInterval:  time.Millisecond,
	RetryAttempts: 2,
	RetryDelay:    time.Millisecond,
	Channel:       "actions",
}

// flakyBroker fails the first n publishes.
type flakyBroker struct {
	messaging.Broker
	failures atomic.Int32
}

func (b *flakyBroker) Publish(ctx context.Context, channel string, msg interface{}) error {
	if b.failures.Add(-1) >= 0 {
		return errors.New("broker down")
	}
	return b.Broker.Publish(ctx, channel, msg)
}

func newQueue(t *testing.T, m *metrics.Metrics, n int) *syncqueue.Service {
	t.Helper()
	q := syncqueue.NewService(memory.NewActionRepository(), logger.Nop(), m)
	for i := 1; i <= n; i++ {
		a := model.NewAction(model.ActionStartTrip, "D1", model.EntityTrip, "TRIP-1", nil, time.Now())
		a.Seq = uint64(i)
		q.Enqueue(context.Background(), a)
	}
	return q
}

func TestProcessBatchPublishesInOrder(t *testing.T) {
	m := metrics.New("test")
	q := newQueue(t, m, 3)
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	sub, err := broker.Subscribe(ctx, "actions")
	require.NoError(t, err)

	p := NewSyncProcessor(q, broker, testConfig, logger.Nop(), m)
	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for want := uint64(1); want <= 3; want++ {
		var got model.Action
		require.NoError(t, json.Unmarshal(<-sub, &got))
		assert.Equal(t, want, got.Seq)
	}

	left, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SyncPublished))
}

func TestProcessBatchRespectsBatchSize(t *testing.T) {
	m := metrics.New("test")
	q := newQueue(t, m, 5)
	cfg := testConfig
	cfg.BatchSize = 2

	p := NewSyncProcessor(q, messaging.NewMemoryBroker(), cfg, logger.Nop(), m)
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := q.Len(context.Background())
	assert.Equal(t, 3, left)
}

func TestProcessBatchRetriesThenStops(t *testing.T) {
	m := metrics.New("test")
	q := newQueue(t, m, 2)
	ctx := context.Background()

	broker := &flakyBroker{Broker: messaging.NewMemoryBroker()}
	broker.failures.Store(1)
	p := NewSyncProcessor(q, broker, testConfig, logger.Nop(), m)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRetries.WithLabelValues(string(model.ActionStartTrip))))

	q = newQueue(t, m, 2)
	broker.failures.Store(10)
	p = NewSyncProcessor(q, broker, testConfig, logger.Nop(), m)
	n, err = p.ProcessBatch(ctx)
	assert.Error(t, err)
	assert.Zero(t, n)

	// nothing was acknowledged, so everything is still pending
	left, _ := q.Len(ctx)
	assert.Equal(t, 2, left)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncFailed))
}

func TestNewSyncProcessorRejectsBadConfig(t *testing.T) {
	cfg := testConfig
	cfg.Channel = ""
	assert.Panics(t, func() {
		NewSyncProcessor(newQueue(t, metrics.New("test"), 0), messaging.NewMemoryBroker(), cfg, logger.Nop(), metrics.New("test"))
	})
}

type countingCleaner struct {
	retention time.Duration
	err       error
}

func (c *countingCleaner) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	c.retention = retention
	return 4, c.err
}

func TestSyncCleanupWorker(t *testing.T) {
	m := metrics.New("test")
	c := &countingCleaner{}
	w := NewSyncCleanupWorker(c, 48*time.Hour, time.Hour, logger.Nop(), m)

	w.RunOnce(context.Background())
	assert.Equal(t, 48*time.Hour, c.retention)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SyncCleaned))

	c.err = errors.New("db down")
	w.RunOnce(context.Background())
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SyncCleaned))
}
