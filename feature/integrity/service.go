package integrity

import (
	"context"
	"errors"

	"turnover-sync/core/storage"
	"turnover-sync/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStorageUnavailable is returned by storage checks when no object storage
// client is configured.
var ErrStorageUnavailable = errors.New("object storage is not configured")

// Service handles integrity checks.
type Service struct {
	client      storage.Client
	storage     storage.Config
	db          *gorm.DB
	catalogPath string
	logger      *zap.Logger
}

// NewService creates a new integrity service. client and db may be nil;
// the checks that need them then report an error.
func NewService(client storage.Client, cfg storage.Config, db *gorm.DB, catalogPath string, logger *zap.Logger) *Service {
	return &Service{
		client:      client,
		storage:     cfg,
		db:          db,
		catalogPath: catalogPath,
		logger:      logger,
	}
}

// CheckStructure returns the list of missing folders.
func (s *Service) CheckStructure(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, ErrStorageUnavailable
	}
	_, catalog := checks.CheckCatalog(s.catalogPath)
	folders := checks.RequiredFolders(s.storage, catalog)
	return checks.CheckStructure(ctx, s.client, s.storage.Bucket, folders)
}

// FixStructure creates the missing folders.
func (s *Service) FixStructure(ctx context.Context, missing []string) error {
	if s.client == nil {
		return ErrStorageUnavailable
	}
	return checks.FixStructure(ctx, s.client, s.storage.Bucket, s.logger, missing)
}

// CheckSchema compares the database tables with the reservation models.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.db)
}

// CheckCatalog loads and summarizes the feed catalog.
func (s *Service) CheckCatalog() *checks.CatalogReport {
	report, _ := checks.CheckCatalog(s.catalogPath)
	return report
}

// StructureReport is the outcome of the structure check in a full report.
type StructureReport struct {
	Status  string   `json:"status"` // "ok", "missing", "error"
	Missing []string `json:"missing,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Report combines every check.
type Report struct {
	Healthy   bool                  `json:"healthy"`
	Structure StructureReport       `json:"structure"`
	Schema    *checks.SchemaReport  `json:"schema,omitempty"`
	SchemaErr string                `json:"schema_error,omitempty"`
	Catalog   *checks.CatalogReport `json:"catalog"`
}

// Check runs every check. It never fails; problems are part of the report.
func (s *Service) Check(ctx context.Context) *Report {
	report := &Report{Healthy: true}

	missing, err := s.CheckStructure(ctx)
	switch {
	case err != nil:
		report.Structure = StructureReport{Status: "error", Error: err.Error()}
		report.Healthy = false
	case len(missing) > 0:
		report.Structure = StructureReport{Status: "missing", Missing: missing}
		report.Healthy = false
	default:
		report.Structure = StructureReport{Status: "ok"}
	}

	schema, err := s.CheckSchema()
	if err != nil {
		report.SchemaErr = err.Error()
		report.Healthy = false
	} else {
		report.Schema = schema
		report.Healthy = report.Healthy && schema.Matched
	}

	report.Catalog = s.CheckCatalog()
	report.Healthy = report.Healthy && report.Catalog.Valid
	return report
}
