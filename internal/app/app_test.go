package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/handler/health"
	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository/memory"
	"github.com/jwalitptl/vitalflow/internal/service/servicetest"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

type seedSource struct{}

func (seedSource) Load(context.Context) (store.Snapshot, error) { return servicetest.Seed(), nil }

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t      *testing.T
	app    *App
	client *resty.Client
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test", RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 16},
		Sync:   config.SyncConfig{BatchSize: 100},
		Stats:  config.StatsConfig{CacheTTL: time.Minute},
	}
}

func newHarness(t *testing.T, cfg *config.Config, checks map[string]health.Check) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), cfg, Deps{
		Logger:   logger.Nop(),
		Metrics:  metrics.NewMetrics("test", reg),
		Gatherer: reg,
		Actions:  memory.NewActionRepository(),
		Source:   seedSource{},
		Checks:   checks,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router.Handler())
	t.Cleanup(srv.Close)

	return &harness{
		t:      t,
		app:    a,
		client: resty.New().SetBaseURL(srv.URL).SetHeader("Content-Type", "application/json"),
	}
}

func (h *harness) do(method, path string, body interface{}) (int, apiResponse) {
	h.t.Helper()
	req := h.client.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	require.NoError(h.t, err)

	var out apiResponse
	require.NoError(h.t, json.Unmarshal(resp.Body(), &out), "body: %s", resp.String())
	return resp.StatusCode(), out
}

func data[T any](t *testing.T, r apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestTransferFlowOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/transfers", map[string]string{
		"patient_id":         "P1",
		"destination_bed_id": "B2",
		"actor":              "Nurse Sam",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	tr := data[model.TransferRequest](t, resp)
	assert.Equal(t, model.TransferPendingApproval, tr.Status)

	status, resp = h.do(http.MethodGet, "/api/v1/beds/B2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.BedReserved, data[model.Bed](t, resp).Occupancy)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers/"+tr.ID+"/approve", map[string]string{
		"actor":     "Dr. A",
		"rationale": "ICU bed free",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers/"+tr.ID+"/start", map[string]string{"staff_id": "S1"})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers/"+tr.ID+"/complete", map[string]string{"staff_id": "S1"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, model.TransferCompleted, data[model.TransferRequest](t, resp).Status)

	status, resp = h.do(http.MethodGet, "/api/v1/patients/P1", nil)
	require.Equal(t, http.StatusOK, status)
	p := data[model.Patient](t, resp)
	require.NotNil(t, p.BedID)
	assert.Equal(t, "B2", *p.BedID)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers/"+tr.ID+"/decline", map[string]string{
		"actor":  "Dr. A",
		"reason": "too late",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", resp.Code)

	status, resp = h.do(http.MethodGet, "/api/v1/decisions?entity_type=transfer&entity_id="+tr.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var types []model.ActionType
	for _, a := range data[[]model.Action](t, resp) {
		types = append(types, a.Type)
	}
	assert.Equal(t, []model.ActionType{
		model.ActionRequestTransfer,
		model.ActionApproveTransfer,
		model.ActionStartTransfer,
		model.ActionCompleteTransfer,
	}, types)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodGet, "/api/v1/transfers/TR-missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "INVALID_REFERENCE", resp.Code)
	assert.Equal(t, "error", resp.Status)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers", map[string]string{"patient_id": "P1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers", map[string]string{
		"patient_id":         "P2",
		"destination_bed_id": "B5",
		"actor":              "Nurse Sam",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BED_UNAVAILABLE", resp.Code)

	status, resp = h.do(http.MethodPost, "/api/v1/trips", map[string]string{
		"driver_id":       "D1",
		"pickup_location": "Gate 2",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	status, resp = h.do(http.MethodPost, "/api/v1/trips", map[string]string{
		"driver_id":       "D1",
		"pickup_location": "Gate 3",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DRIVER_BUSY", resp.Code)
}

func TestTripFlowOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/trips", map[string]string{
		"driver_id":       "D2",
		"pickup_location": "12 Elm St",
		"patient_name":    "Unknown",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	trip := data[model.Trip](t, resp)
	assert.Equal(t, model.TripEnRoute, trip.State)

	status, resp = h.do(http.MethodGet, "/api/v1/drivers/D2/trip", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, trip.ID, data[model.Trip](t, resp).ID)

	status, resp = h.do(http.MethodPut, "/api/v1/trips/"+trip.ID+"/eta", map[string]interface{}{
		"driver_id":   "D2",
		"eta_minutes": 7,
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, 7, data[model.Trip](t, resp).ETAMinutes)

	for _, state := range []model.TripState{model.TripLoaded, model.TripArriving} {
		status, resp = h.do(http.MethodPost, "/api/v1/trips/"+trip.ID+"/advance", map[string]string{
			"driver_id": "D2",
			"state":     string(state),
		})
		require.Equal(t, http.StatusOK, status, resp.Message)
	}

	status, resp = h.do(http.MethodPost, "/api/v1/trips/"+trip.ID+"/complete", map[string]string{"driver_id": "D2"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, model.TripCompleted, data[model.Trip](t, resp).State)

	status, resp = h.do(http.MethodGet, "/api/v1/drivers/D2/trip", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(resp.Data))
}

func TestAdmitAndDischargeOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"hospital_id": "H1",
		"name":        "Cara Li",
		"age":         40,
		"status":      "STABLE",
		"bed_id":      "B4",
		"actor":       "Nurse Sam",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	p := data[model.Patient](t, resp)

	status, resp = h.do(http.MethodPost, "/api/v1/patients/"+p.ID+"/discharge", map[string]string{
		"actor": "Dr. A",
		"notes": "recovered",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, model.PatientStatusDischarged, data[model.Patient](t, resp).Status)

	status, resp = h.do(http.MethodGet, "/api/v1/beds?available=true", nil)
	require.Equal(t, http.StatusOK, status)
	var ids []string
	for _, b := range data[[]model.Bed](t, resp) {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, "B4")
}

func TestMaintenanceOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/beds/B4/maintenance", map[string]string{"actor": "Facilities"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, model.BedMaintenance, data[model.Bed](t, resp).Occupancy)

	status, resp = h.do(http.MethodDelete, "/api/v1/beds/B4/maintenance", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = h.do(http.MethodDelete, "/api/v1/beds/B4/maintenance?actor=Facilities", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Equal(t, model.BedEmpty, data[model.Bed](t, resp).Occupancy)
}

func TestStaffShiftOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/staff/S1/punch-in", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.True(t, data[model.Staff](t, resp).OnDuty)

	status, resp = h.do(http.MethodPost, "/api/v1/staff/S1/punch-in", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, resp = h.do(http.MethodGet, "/api/v1/staff/S1/fatigue", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.FatigueFresh, data[model.FatigueStatus](t, resp).Level)

	status, resp = h.do(http.MethodGet, "/api/v1/staff/available?role=NURSE", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data[[]model.Staff](t, resp), 1)

	status, resp = h.do(http.MethodPost, "/api/v1/staff/S1/punch-out", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, data[model.Staff](t, resp).OnDuty)
}

func TestSyncQueueOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/staff/S1/punch-in", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	status, resp = h.do(http.MethodPost, "/api/v1/staff/DR1/punch-in", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = h.do(http.MethodGet, "/api/v1/sync/pending?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	pending := data[struct {
		Items []model.Action `json:"items"`
		Total int            `json:"total"`
	}](t, resp)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, 2, pending.Total)
	first := pending.Items[0]
	assert.Equal(t, "S1", first.EntityID)

	status, resp = h.do(http.MethodPost, "/api/v1/sync/"+first.ID+"/ack", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	status, _ = h.do(http.MethodPost, "/api/v1/sync/"+first.ID+"/ack", nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = h.do(http.MethodGet, "/api/v1/decisions/"+first.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, data[model.Action](t, resp).Synced)

	status, resp = h.do(http.MethodPost, "/api/v1/sync/ACT-missing/ack", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDecisionOverrideAndExport(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPost, "/api/v1/staff/S1/punch-in", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	actions := h.app.Decisions.Query(model.ActionFilters{})
	require.Len(t, actions, 1)

	status, resp = h.do(http.MethodPost, "/api/v1/decisions/"+actions[0].ID+"/override", map[string]string{
		"actor":       "Dr. Chief",
		"new_outcome": "VOID",
		"reason":      "wrong badge",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	override := data[model.Action](t, resp)
	require.NotNil(t, override.RefActionID)
	assert.Equal(t, actions[0].ID, *override.RefActionID)

	exp, err := h.client.R().Get("/api/v1/decisions/export")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, exp.StatusCode())
	assert.Contains(t, exp.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, exp.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, exp.Body())
}

func TestHospitalStatsOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodGet, "/api/v1/hospitals", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data[[]model.Hospital](t, resp), 1)

	status, resp = h.do(http.MethodGet, "/api/v1/hospitals/H1/stats", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	st := data[model.HospitalStats](t, resp)
	assert.Equal(t, 5, st.Beds.Total)
	assert.Equal(t, 2, st.Beds.Occupied)
	assert.Equal(t, 1, st.Beds.Maintenance)

	status, _ = h.do(http.MethodGet, "/api/v1/hospitals/H9/stats", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = h.do(http.MethodGet, "/api/v1/hospitals/H1/beds?available=true", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Len(t, data[[]model.Bed](t, resp), 2)

	status, resp = h.do(http.MethodGet, "/api/v1/hospitals/H1/patients", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data[[]model.Patient](t, resp), 2)

	status, resp = h.do(http.MethodGet, "/api/v1/hospitals/H1/staff?role=DRIVER", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data[[]model.Staff](t, resp), 2)

	status, _ = h.do(http.MethodGet, "/api/v1/hospitals/H9/beds", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	down := errors.New("connection refused")
	h := newHarness(t, testConfig(), map[string]health.Check{
		"database": func(context.Context) error { return down },
	})

	live, err := h.client.R().Get("/health/live")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, live.StatusCode())

	ready, err := h.client.R().Get("/health/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode())
	assert.Contains(t, ready.String(), "connection refused")

	_, _ = h.do(http.MethodGet, "/api/v1/beds/B1", nil)
	m, err := h.client.R().Get("/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, m.StatusCode())
	assert.Contains(t, m.String(), `test_http_requests_total{method="GET",route="/api/v1/beds/:id",status="200"} 1`)
}

func TestRateLimitOnAPIOnly(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	h := newHarness(t, cfg, nil)

	status, _ := h.do(http.MethodGet, "/api/v1/hospitals", nil)
	assert.Equal(t, http.StatusOK, status)
	status, resp := h.do(http.MethodGet, "/api/v1/hospitals", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	live, err := h.client.R().Get("/health/live")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, live.StatusCode())
}

func TestVitalsAndSwapOverHTTP(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	status, resp := h.do(http.MethodPut, "/api/v1/patients/P1/vitals", map[string]interface{}{
		"spo2":       82,
		"heart_rate": 110,
		"actor":      "Nurse Sam",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	upd := data[model.VitalsUpdate](t, resp)
	assert.Equal(t, model.PatientStatusCritical, upd.Patient.Status)
	assert.True(t, upd.NeedsICU)

	status, resp = h.do(http.MethodPut, "/api/v1/patients/P1/vitals", map[string]interface{}{"spo2": 140, "actor": "Nurse Sam"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = h.do(http.MethodPost, "/api/v1/transfers/swap", map[string]string{"patient_id": "P1", "actor": "Dr. A"})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	plan := data[model.SwapPlan](t, resp)
	assert.Nil(t, plan.StepDown)
	assert.Equal(t, "B2", plan.Incoming.DestinationBedID)

	// The only ICU bed is now held and nobody occupies a bed that could be freed.
	status, resp = h.do(http.MethodPost, "/api/v1/transfers/swap", map[string]string{"patient_id": "P2", "actor": "Dr. A"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BED_UNAVAILABLE", resp.Code)
}
