package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, repository.ActionRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewActionRepository(sqlx.NewDb(db, "sqlmock"))
	return db, mock, repo
}

var actionRowColumns = []string{
	"id", "seq", "type", "actor", "entity_type", "entity_id", "created_at", "payload", "ref_action_id", "synced_at",
}

func TestAppendAction(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO sync_actions`).
		WithArgs("ACT-1", int64(7), "APPROVE_TRANSFER", "Dr. A", "transfer", "TRF-1", sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), &model.Action{
		ID:         "ACT-1",
		Seq:        7,
		Type:       model.ActionApproveTransfer,
		Actor:      "Dr. A",
		EntityType: model.EntityTransfer,
		EntityID:   "TRF-1",
		Timestamp:  now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingActions(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(actionRowColumns).
		AddRow("ACT-1", int64(1), "REQUEST_TRANSFER", "Dr. A", "transfer", "TRF-1", now, []byte(`{"bed":"B2"}`), nil, nil).
		AddRow("ACT-2", int64(2), "OVERRIDE_DECISION", "Dr. B", "action", "ACT-1", now, []byte(`{}`), "ACT-1", nil)

	mock.ExpectQuery(`SELECT (.+) FROM sync_actions`).
		WithArgs(int64(0), 50).
		WillReturnRows(rows)

	actions, err := repo.ListPending(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, uint64(1), actions[0].Seq)
	assert.Equal(t, model.ActionRequestTransfer, actions[0].Type)
	assert.JSONEq(t, `{"bed":"B2"}`, string(actions[0].Payload))
	assert.Nil(t, actions[0].RefActionID)
	require.NotNil(t, actions[1].RefActionID)
	assert.Equal(t, "ACT-1", *actions[1].RefActionID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSyncedIsIdempotent(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE sync_actions`).
		WithArgs(at, "ACT-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sync_actions`).
		WithArgs(at, "ACT-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ACT-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	changed, err := repo.MarkSynced(context.Background(), "ACT-1", at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkSynced(context.Background(), "ACT-1", at)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSyncedUnknownAction(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE sync_actions`).
		WithArgs(at, "ACT-X").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ACT-X").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.MarkSynced(context.Background(), "ACT-X", at)
	assert.ErrorIs(t, err, apperrors.InvalidReferenceErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActionNotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM sync_actions WHERE id`).
		WithArgs("ACT-9").
		WillReturnError(sql.ErrNoRows)

	action, err := repo.Get(context.Background(), "ACT-9")
	assert.Nil(t, action)
	assert.ErrorIs(t, err, apperrors.InvalidReferenceErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSyncedBefore(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectExec(`DELETE FROM sync_actions`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteSyncedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActionsIncludesSynced(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(actionRowColumns).
		AddRow("ACT-4", int64(4), "PUNCH_IN", "S1", "staff", "S1", now, []byte(`{}`), nil, now).
		AddRow("ACT-5", int64(5), "PUNCH_OUT", "S1", "staff", "S1", now, []byte(`{}`), nil, nil)

	mock.ExpectQuery(`SELECT (.+) FROM sync_actions\s+WHERE seq > \$1`).
		WithArgs(int64(3), 100).
		WillReturnRows(rows)

	actions, err := repo.List(context.Background(), 3, 100)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.True(t, actions[0].Synced)
	assert.False(t, actions[1].Synced)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxSeq(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) FROM sync_actions`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(42)))

	seq, err := repo.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	require.NoError(t, mock.ExpectationsWereMet())
}
