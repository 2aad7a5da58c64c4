package stats

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/service/servicetest"
	"github.com/jwalitptl/vitalflow/internal/service/transfer"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

func TestHospitalStats(t *testing.T) {
	f := servicetest.New(t)
	svc := NewService(f.Store, time.Minute, f.Metrics)
	ctx := context.Background()

	st, err := svc.Hospital(ctx, "H1")
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyCount{Total: 5, Occupied: 2, Maintenance: 1, Available: 2}, st.Beds)
	assert.Equal(t, 1, st.BedsByType[model.BedTypeICU].Available)
	assert.Equal(t, 1, st.Patients[model.PatientStatusCritical])
	assert.Equal(t, 1, st.Patients[model.PatientStatusSerious])
	assert.Equal(t, 0, st.Patients[model.PatientStatusStable])
	assert.Equal(t, 5, st.TotalStaff)
	assert.Zero(t, st.StaffOnDuty)

	_, err = svc.Hospital(ctx, "H9")
	assert.ErrorIs(t, err, apperrors.InvalidReferenceErr)
}

func TestStatsCacheFollowsStoreVersion(t *testing.T) {
	f := servicetest.New(t)
	svc := NewService(f.Store, time.Minute, f.Metrics)
	ctx := context.Background()

	first, err := svc.Hospital(ctx, "H1")
	require.NoError(t, err)
	again, err := svc.Hospital(ctx, "H1")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.Metrics.CacheRequests.WithLabelValues(cacheName, "hit")))

	_, err = transfer.NewService(f.Store, nil, f.Logger, f.Metrics).Request(ctx, "P1", "B2", "Dr. A")
	require.NoError(t, err)

	fresh, err := svc.Hospital(ctx, "H1")
	require.NoError(t, err)
	assert.Greater(t, fresh.StoreVersion, first.StoreVersion)
	assert.Equal(t, 1, fresh.Beds.Reserved)
	assert.Equal(t, 1, fresh.OpenTransfers)
}
