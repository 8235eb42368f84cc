package reservations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"turnover-sync/core/logger"
	"turnover-sync/core/reconcile"
	"turnover-sync/core/storage"
	"turnover-sync/feature/ingest"
	"turnover-sync/feature/reservations/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RecordStore is the persistence the run service needs.
type RecordStore interface {
	reconcile.Writer
	reconcile.JobLookup
	LoadActive(ctx context.Context, propertyID string) ([]reconcile.Record, error)
	ActiveProperties(ctx context.Context) ([]string, error)
}

// CatalogLoader returns the current feed catalog. It is called once per run
// so catalog edits apply without a restart.
type CatalogLoader func() (*ingest.Catalog, error)

// Option customizes a Service.
type Option func(*Service)

// WithArchive uploads every run report below prefix in bucket.
func WithArchive(client storage.Client, bucket, prefix string) Option {
	return func(s *Service) {
		s.archive = client
		s.bucket = bucket
		s.archivePrefix = prefix
	}
}

// WithDryRun plans runs without writing to the store.
func WithDryRun(dryRun bool) Option {
	return func(s *Service) { s.dryRun = dryRun }
}

// WithClock overrides the run clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEngineOptions passes options to the reconciliation engine.
func WithEngineOptions(opts ...reconcile.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Service orchestrates reconciliation runs: ingest every feed, reconcile each
// property, then flush the writes.
type Service struct {
	cfg      reconcile.Config
	store    RecordStore
	ingester *ingest.Ingester
	catalog  CatalogLoader
	engine   *reconcile.Engine
	logger   *zap.Logger

	archive       storage.Client
	bucket        string
	archivePrefix string
	dryRun        bool
	now           func() time.Time
	engineOpts    []reconcile.Option

	group  singleflight.Group
	mu     sync.RWMutex
	latest *models.RunReport
}

// NewService creates a new run service.
func NewService(cfg reconcile.Config, store RecordStore, ingester *ingest.Ingester, catalog CatalogLoader, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushWorkers <= 0 {
		cfg.FlushWorkers = reconcile.DefaultConfig().FlushWorkers
	}
	s := &Service{
		cfg:      cfg,
		store:    store,
		ingester: ingester,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = reconcile.NewEngine(cfg, store, logger, s.engineOpts...)
	return s
}

// propertyRun is the reconcile and flush outcome of one property.
type propertyRun struct {
	plan  *reconcile.Plan
	flush reconcile.FlushResult
}

// Run performs one full reconciliation pass. Only a catalog that cannot be
// loaded fails the run; feed, event and write failures are counted in the
// report summary.
func (s *Service) Run(ctx context.Context) (*models.RunReport, error) {
	run := reconcile.NewRun(uuid.NewString(), s.now().UTC(), s.cfg.Location())
	l := logger.WithRun(s.logger, run.ID)
	l.Info("Starting reconciliation run", zap.Bool("dry_run", s.dryRun))

	catalog, err := s.catalog()
	if err != nil {
		l.Error("Failed to load feed catalog", zap.Error(err))
		return nil, fmt.Errorf("failed to load feed catalog: %w", err)
	}

	res := s.ingester.Ingest(ctx, catalog.Enabled(), run.Today())

	var total reconcile.Summary
	for _, fr := range res.Feeds {
		if fr.Err != nil {
			run.MarkSourceFailed(fr.Feed.ID)
			total.Errors++
			continue
		}
		if fr.Feed.Kind == ingest.KindCSV {
			total.FeedsProcessed += len(fr.Files)
		} else {
			total.FeedsProcessed++
		}
		total.Errors += len(fr.Malformed)
	}

	groups, eventOrder := res.ByProperty()
	stored, err := s.store.ActiveProperties(ctx)
	if err != nil {
		// Properties absent from every feed are not aged this run.
		l.Error("Failed to list properties with active records", zap.Error(err))
		total.Errors++
	}
	properties := mergeOrder(catalog.Properties(), eventOrder, stored)

	runs := make([]propertyRun, 0, len(properties))
	for _, pid := range properties {
		active, err := s.store.LoadActive(ctx, pid)
		if err != nil {
			l.Error("Skipping property", zap.String("property_id", pid), zap.Error(err))
			total.Errors++
			continue
		}
		runs = append(runs, propertyRun{plan: s.engine.Reconcile(ctx, run, pid, active, groups[pid])})
	}

	if !s.dryRun {
		s.flush(ctx, l, runs)
	}

	report := &models.RunReport{
		RunID:       run.ID,
		StartedAt:   run.Now,
		DryRun:      s.dryRun,
		FailedFeeds: res.Failed(),
	}
	for _, pr := range runs {
		sum := pr.plan.Summary
		sum.Errors += len(pr.flush.Failed)
		total.Add(sum)

		prop := models.PropertyReport{
			PropertyID: pr.plan.PropertyID,
			Summary:    sum,
			Operations: len(pr.plan.Operations),
			Written:    pr.flush.Written,
			Failed:     len(pr.flush.Failed),
		}
		if s.dryRun {
			prop.Active = pr.plan.Active
		}
		report.Properties = append(report.Properties, prop)
	}
	report.Summary = total
	report.FinishedAt = s.now().UTC()
	duration := report.FinishedAt.Sub(report.StartedAt)
	report.Duration = duration.String()

	fields := append([]zap.Field{
		zap.String("run_id", run.ID),
		zap.Duration("duration", duration),
		zap.Bool("dry_run", s.dryRun),
	}, total.LogFields()...)
	s.logger.Info("Reconciliation run summary", fields...)

	s.archiveReport(ctx, l, report)

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	return report, nil
}

// flush writes the plans of up to FlushWorkers properties concurrently. Each
// property gets its own collector so per-record ordering stays within one
// goroutine.
func (s *Service) flush(ctx context.Context, l *zap.Logger, runs []propertyRun) {
	var g errgroup.Group
	g.SetLimit(s.cfg.FlushWorkers)
	for i := range runs {
		pr := &runs[i]
		if len(pr.plan.Operations) == 0 {
			continue
		}
		g.Go(func() error {
			c := reconcile.NewCollector(s.store, s.cfg, l.With(zap.String("property_id", pr.plan.PropertyID)))
			c.Submit(pr.plan.Operations...)
			pr.flush = c.Flush(ctx)
			for _, f := range pr.flush.Failed {
				l.Error("Failed to write operation",
					zap.String("property_id", pr.plan.PropertyID),
					zap.String("record_id", f.Op.RecordID),
					zap.String("kind", string(f.Op.Kind)),
					zap.Error(f.Err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// archiveReport uploads the report. A failed upload is logged and does not
// affect the run.
func (s *Service) archiveReport(ctx context.Context, l *zap.Logger, report *models.RunReport) {
	if s.archive == nil {
		return
	}
	key := storage.Key(s.archivePrefix, report.RunID+".json")
	if err := storage.PutJSON(ctx, s.archive, s.bucket, key, report); err != nil {
		l.Warn("Failed to archive run report", zap.String("key", key), zap.Error(err))
		return
	}
	l.Debug("Archived run report", zap.String("key", key))
}

// Trigger starts a run unless one is already in flight, in which case it
// waits for that run and shares its report. The run is detached from ctx
// cancellation: once started it completes.
func (s *Service) Trigger(ctx context.Context) (*models.RunReport, bool, error) {
	v, err, shared := s.group.Do("run", func() (any, error) {
		return s.Run(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*models.RunReport), shared, nil
}

// Latest returns the report of the last completed run, or nil.
func (s *Service) Latest() *models.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// mergeOrder concatenates lists, keeping the first position of every id.
func mergeOrder(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
