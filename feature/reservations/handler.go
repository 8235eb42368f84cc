package reservations

import (
	"context"
	"strings"
	"time"

	"turnover-sync/core/logger"
	"turnover-sync/core/reconcile"
	"turnover-sync/feature/reservations/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Runner triggers and reports reconciliation runs.
type Runner interface {
	Trigger(ctx context.Context) (*models.RunReport, bool, error)
	Latest() *models.RunReport
}

// JobStore records downstream job states and serves stored records.
type JobStore interface {
	UpsertJob(ctx context.Context, job models.Job) error
	LoadActive(ctx context.Context, propertyID string) ([]reconcile.Record, error)
}

// Handler handles HTTP requests for runs, records and job webhooks.
type Handler struct {
	runner Runner
	store  JobStore
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(runner Runner, store JobStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, store: store, logger: logger, now: time.Now}
}

// RegisterRoutes registers the reservation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	runs := app.Group("/runs")
	runs.Post("/", h.HandleTriggerRun)
	runs.Get("/latest", h.HandleLatestRun)

	app.Get("/properties/:property/reservations", h.HandleActiveReservations)
	app.Post("/webhooks/jobs", h.HandleJobWebhook)
}

// HandleTriggerRun starts a reconciliation run and waits for its report.
// @Summary Trigger Reconciliation Run
// @Description Runs ingestion and reconciliation. Concurrent triggers share the run in flight.
// @Tags runs
// @Produce json
// @Success 200 {object} models.RunReport "Run Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /runs [post]
func (h *Handler) HandleTriggerRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	l.Info("Triggering reconciliation run")

	report, shared, err := h.runner.Trigger(c.UserContext())
	if err != nil {
		l.Error("Reconciliation run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if shared {
		c.Set("X-Run-Shared", "true")
	}
	return c.JSON(report)
}

// HandleLatestRun returns the report of the last completed run.
// @Summary Latest Run Report
// @Tags runs
// @Produce json
// @Success 200 {object} models.RunReport "Run Report"
// @Failure 404 {object} map[string]string "No run yet"
// @Router /runs/latest [get]
func (h *Handler) HandleLatestRun(c *fiber.Ctx) error {
	report := h.runner.Latest()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no run completed yet",
		})
	}
	return c.JSON(report)
}

// HandleActiveReservations lists the active records of a property.
// @Summary Active Reservations
// @Tags reservations
// @Produce json
// @Param property path string true "Property ID"
// @Success 200 {array} reconcile.Record "Active records"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /properties/{property}/reservations [get]
func (h *Handler) HandleActiveReservations(c *fiber.Ctx) error {
	property := c.Params("property")
	records, err := h.store.LoadActive(c.UserContext(), property)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Failed to load reservations", zap.String("property_id", property), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(records)
}

// HandleJobWebhook stores a job status pushed by the job tracker.
// @Summary Job Status Webhook
// @Description Records the status of a downstream service job. Scheduled and In Progress jobs protect their record from removal.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param event body models.JobEvent true "Job status"
// @Success 202 {object} models.Job "Stored job"
// @Failure 400 {object} map[string]string "Invalid payload"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /webhooks/jobs [post]
func (h *Handler) HandleJobWebhook(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var ev models.JobEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	ev.RecordID = strings.TrimSpace(ev.RecordID)
	ev.JobID = strings.TrimSpace(ev.JobID)
	if ev.RecordID == "" || ev.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "record_id and job_id are required"})
	}
	status, ok := NormalizeJobStatus(ev.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status " + ev.Status})
	}

	job := models.Job{
		JobID:     ev.JobID,
		RecordID:  ev.RecordID,
		Status:    status,
		UpdatedAt: h.now().UTC(),
	}
	if err := h.store.UpsertJob(c.UserContext(), job); err != nil {
		l.Error("Failed to store job status", zap.String("job_id", job.JobID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	l.Info("Job status updated",
		zap.String("job_id", job.JobID),
		zap.String("record_id", job.RecordID),
		zap.String("status", string(job.Status)),
	)
	return c.Status(fiber.StatusAccepted).JSON(job)
}
