package worker

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/messaging"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

type SyncProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Channel       string
}

// Queue is the part of the action sync queue the processor drives.
type Queue interface {
	DrainPending(ctx context.Context) iter.Seq2[*model.Action, error]
	MarkSynced(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
}

// SyncProcessor publishes pending actions to the broker in sequence order and
// acknowledges each one after a successful publish.
type SyncProcessor struct {
	queue   Queue
	broker  messaging.Broker
	config  SyncProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewSyncProcessor(
	queue Queue,
	broker messaging.Broker,
	config SyncProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *SyncProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.Channel == "" {
		panic("Channel must not be empty")
	}

	return &SyncProcessor{
		queue:   queue,
		broker:  broker,
		config:  config,
		logger:  logger.Component("sync_processor"),
		metrics: metrics,
	}
}

func (p *SyncProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting sync processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down sync processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error(err, "Failed to process pending actions")
			}
		}
	}
}

// ProcessBatch publishes up to BatchSize pending actions. It stops at the
// first action that cannot be published so later actions never overtake it.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.SyncProcessingLatency)
	defer timer.ObserveDuration()
	defer func() {
		if _, err := p.queue.Len(ctx); err != nil {
			p.logger.Warn("Failed to refresh queue depth", "error", err.Error())
		}
	}()

	synced := 0
	for action, err := range p.queue.DrainPending(ctx) {
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("list_pending_actions", "error").Inc()
			return synced, fmt.Errorf("failed to read pending actions: %w", err)
		}
		if err := p.processAction(ctx, action); err != nil {
			return synced, fmt.Errorf("action %s (seq %d): %w", action.ID, action.Seq, err)
		}
		synced++
		if synced >= p.config.BatchSize {
			break
		}
	}
	if synced > 0 {
		p.logger.Debug("Synced actions", "count", synced)
	}
	return synced, nil
}

func (p *SyncProcessor) processAction(ctx context.Context, action *model.Action) error {
	attempt := 0
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		if attempt > 0 {
			p.metrics.SyncRetries.WithLabelValues(string(action.Type)).Inc()
		}
		attempt++
		return p.broker.Publish(ctx, p.config.Channel, action)
	})
	if err != nil {
		p.metrics.SyncFailed.Inc()
		return fmt.Errorf("publish: %w", err)
	}
	p.metrics.SyncPublished.Inc()

	if err := p.queue.MarkSynced(ctx, action.ID); err != nil {
		p.logger.Error(err, "Failed to acknowledge action", "action_id", action.ID)
		return fmt.Errorf("acknowledge: %w", err)
	}
	return nil
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
