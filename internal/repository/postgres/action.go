package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

type actionRepository struct {
	BaseRepository
}

func NewActionRepository(db *sqlx.DB) repository.ActionRepository {
	return &actionRepository{NewBaseRepository(db)}
}

const actionColumns = `id, seq, type, actor, entity_type, entity_id, created_at,
	COALESCE(payload, '{}'::jsonb) AS payload, ref_action_id, synced_at`

func (r *actionRepository) Append(ctx context.Context, action *model.Action) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}

	query := `
		INSERT INTO sync_actions (
			id, seq, type, actor, entity_type, entity_id, payload, ref_action_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (id) DO NOTHING
	`
	payload := []byte(action.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx, query,
		action.ID,
		int64(action.Seq),
		string(action.Type),
		action.Actor,
		string(action.EntityType),
		action.EntityID,
		payload,
		action.RefActionID,
		action.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}
	return nil
}

func (r *actionRepository) Get(ctx context.Context, id string) (*model.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM sync_actions WHERE id = $1`

	var a model.Action
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.InvalidReference("action", id)
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	a.Synced = a.SyncedAt != nil
	return &a, nil
}

func (r *actionRepository) ListPending(ctx context.Context, afterSeq uint64, limit int) ([]*model.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM sync_actions
		WHERE synced_at IS NULL AND seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 1000
	}

	var actions []*model.Action
	if err := r.db.SelectContext(ctx, &actions, query, int64(afterSeq), limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	return actions, nil
}

func (r *actionRepository) List(ctx context.Context, afterSeq uint64, limit int) ([]*model.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM sync_actions
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 1000
	}

	var actions []*model.Action
	if err := r.db.SelectContext(ctx, &actions, query, int64(afterSeq), limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	for _, a := range actions {
		a.Synced = a.SyncedAt != nil
	}
	return actions, nil
}

func (r *actionRepository) MaxSeq(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COALESCE(MAX(seq), 0) FROM sync_actions`); err != nil {
		return 0, fmt.Errorf("failed to read max seq: %w", err)
	}
	return uint64(n), nil
}

func (r *actionRepository) MarkSynced(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE sync_actions
		SET synced_at = $1
		WHERE id = $2 AND synced_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark action synced: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM sync_actions WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("failed to check action: %w", err)
	}
	if !exists {
		return false, apperrors.InvalidReference("action", id)
	}
	return false, nil
}

func (r *actionRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sync_actions WHERE synced_at IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return n, nil
}

func (r *actionRepository) DeleteSyncedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM sync_actions
		WHERE synced_at IS NOT NULL
		AND synced_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete synced actions: %w", err)
	}

	return result.RowsAffected()
}
