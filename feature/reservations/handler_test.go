package reservations_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"turnover-sync/core/reconcile"
	"turnover-sync/feature/reservations"
	"turnover-sync/feature/reservations/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Trigger(ctx context.Context) (*models.RunReport, bool, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*models.RunReport)
	return report, args.Bool(1), args.Error(2)
}

func (m *mockRunner) Latest() *models.RunReport {
	report, _ := m.Called().Get(0).(*models.RunReport)
	return report
}

type mockJobStore struct {
	mock.Mock
}

func (m *mockJobStore) UpsertJob(ctx context.Context, job models.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockJobStore) LoadActive(ctx context.Context, propertyID string) ([]reconcile.Record, error) {
	args := m.Called(ctx, propertyID)
	records, _ := args.Get(0).([]reconcile.Record)
	return records, args.Error(1)
}

func newApp(runner reservations.Runner, store reservations.JobStore) *fiber.App {
	app := fiber.New()
	reservations.NewHandler(runner, store, nil).RegisterRoutes(app)
	return app
}

func TestHandleTriggerRun(t *testing.T) {
	t.Run("Returns the report", func(t *testing.T) {
		runner := new(mockRunner)
		runner.On("Trigger", mock.Anything).Return(&models.RunReport{RunID: "run-1", Summary: reconcile.Summary{New: 2}}, true, nil)

		resp, err := newApp(runner, new(mockJobStore)).Test(httptest.NewRequest("POST", "/runs", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get("X-Run-Shared"))

		var report models.RunReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, "run-1", report.RunID)
		assert.Equal(t, 2, report.Summary.New)
	})

	t.Run("Run failure", func(t *testing.T) {
		runner := new(mockRunner)
		runner.On("Trigger", mock.Anything).Return(nil, false, errors.New("catalog missing"))

		resp, err := newApp(runner, new(mockJobStore)).Test(httptest.NewRequest("POST", "/runs", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "catalog missing")
	})
}

func TestHandleLatestRun(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Latest").Return(nil).Once()
	runner.On("Latest").Return(&models.RunReport{RunID: "run-7"}).Once()
	app := newApp(runner, new(mockJobStore))

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/latest", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/runs/latest", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"run_id":"run-7"`)
}

func TestHandleActiveReservations(t *testing.T) {
	store := new(mockJobStore)
	store.On("LoadActive", mock.Anything, "beach").Return([]reconcile.Record{{ID: "R1", PropertyID: "beach"}}, nil)
	store.On("LoadActive", mock.Anything, "cabin").Return(nil, errors.New("db down"))
	app := newApp(new(mockRunner), store)

	resp, err := app.Test(httptest.NewRequest("GET", "/properties/beach/reservations", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var records []reconcile.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "R1", records[0].ID)

	resp, err = app.Test(httptest.NewRequest("GET", "/properties/cabin/reservations", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleJobWebhook(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		stored models.JobStatus
	}{
		{
			name:   "Scheduled job",
			body:   `{"record_id":"R1","job_id":"J1","status":"scheduled"}`,
			status: fiber.StatusAccepted,
			stored: models.JobScheduled,
		},
		{
			name:   "In progress job",
			body:   `{"record_id":"R1","job_id":"J1","status":"IN_PROGRESS"}`,
			status: fiber.StatusAccepted,
			stored: models.JobInProgress,
		},
		{
			name:   "Unknown status",
			body:   `{"record_id":"R1","job_id":"J1","status":"paused"}`,
			status: fiber.StatusBadRequest,
		},
		{
			name:   "Missing record",
			body:   `{"job_id":"J1","status":"scheduled"}`,
			status: fiber.StatusBadRequest,
		},
		{
			name:   "Invalid JSON",
			body:   `{"record_id":`,
			status: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockJobStore)
			if tt.stored != "" {
				store.On("UpsertJob", mock.Anything, mock.MatchedBy(func(job models.Job) bool {
					return job.JobID == "J1" && job.RecordID == "R1" && job.Status == tt.stored && !job.UpdatedAt.IsZero()
				})).Return(nil).Once()
			}

			req := httptest.NewRequest("POST", "/webhooks/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := newApp(new(mockRunner), store).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			store.AssertExpectations(t)
		})
	}
}

func TestHandleJobWebhook_StoreError(t *testing.T) {
	store := new(mockJobStore)
	store.On("UpsertJob", mock.Anything, mock.Anything).Return(errors.New("db down"))

	req := httptest.NewRequest("POST", "/webhooks/jobs", strings.NewReader(`{"record_id":"R1","job_id":"J1","status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newApp(new(mockRunner), store).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestFeature(t *testing.T) {
	f := reservations.NewFeature(nil, nil, nil)
	assert.Equal(t, "reservations", f.Name())
	assert.False(t, f.IsEnabled())
}
