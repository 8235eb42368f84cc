package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"turnover-sync/core/database"
	"turnover-sync/core/reconcile"
	"turnover-sync/feature/reservations/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSchemaMismatch is returned when the reservations table lacks columns the
// reconciler writes.
var ErrSchemaMismatch = errors.New("reservations schema mismatch")

// lookupChunk bounds the size of IN lists sent to the database.
const lookupChunk = 500

var activeStatuses = []string{string(reconcile.StatusNew), string(reconcile.StatusModified)}

var activeJobStatuses = []string{string(models.JobScheduled), string(models.JobInProgress)}

// Store persists reservation records and job states with gorm. It implements
// reconcile.Writer and reconcile.JobLookup.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Prepare migrates the tables and verifies the reservations columns.
func (s *Store) Prepare(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.Reservation{}, &models.Job{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	missing, err := database.MissingColumns(db, models.Reservation{}.TableName(), models.Reservation{}.Columns())
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

// LoadActive returns the New and Modified records of a property.
func (s *Store) LoadActive(ctx context.Context, propertyID string) ([]reconcile.Record, error) {
	var rows []models.Reservation
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND status IN ?", propertyID, activeStatuses).
		Order("checkin").Order("record_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active records for %s: %w", propertyID, err)
	}

	out := make([]reconcile.Record, len(rows))
	for i, row := range rows {
		out[i] = row.ToRecord()
	}
	return out, nil
}

// ActiveProperties returns every property with at least one active record.
func (s *Store) ActiveProperties(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status IN ?", activeStatuses).
		Distinct().
		Order("property_id").
		Pluck("property_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active properties: %w", err)
	}
	return ids, nil
}

// History returns every version of a composite uid, newest first.
func (s *Store) History(ctx context.Context, compositeUID string) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := s.db.WithContext(ctx).
		Where("composite_uid = ?", compositeUID).
		Order("created_at DESC").Order("record_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", compositeUID, err)
	}
	return rows, nil
}

// WriteBatch applies ops and reports one error slot per operation.
// Creates go out in a single insert and fall back to row by row inserts when
// it fails, so each failure lands on its own operation.
func (s *Store) WriteBatch(ctx context.Context, ops []reconcile.Operation) []error {
	errs := make([]error, len(ops))

	var (
		creates   []models.Reservation
		createIdx []int
	)
	for i, op := range ops {
		switch op.Kind {
		case reconcile.OpCreate:
			if op.Record == nil {
				errs[i] = fmt.Errorf("create %s: missing record", op.RecordID)
				continue
			}
			creates = append(creates, models.FromRecord(*op.Record))
			createIdx = append(createIdx, i)
		case reconcile.OpUpdate:
			errs[i] = s.update(ctx, op)
		default:
			errs[i] = fmt.Errorf("unknown operation kind %q", op.Kind)
		}
	}

	if len(creates) == 0 {
		return errs
	}
	if err := s.insert(ctx, creates); err == nil {
		return errs
	}
	for j := range creates {
		errs[createIdx[j]] = s.insert(ctx, creates[j:j+1])
	}
	return errs
}

// insert writes new versions. Re-inserting an existing record id is a no-op
// so a retried create stays idempotent.
func (s *Store) insert(ctx context.Context, rows []models.Reservation) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "record_id"}}, DoNothing: true}).
		Create(&rows).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", reconcile.ErrWriteConflict, err)
	}
	return err
}

// update applies a field diff to a record that is still active. A diff that
// fills service_type only applies while the stored value is empty, so a type
// entered downstream is never overwritten.
func (s *Store) update(ctx context.Context, op reconcile.Operation) error {
	if len(op.Fields) == 0 {
		return nil
	}

	q := s.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("record_id = ? AND status IN ?", op.RecordID, activeStatuses)
	if _, ok := op.Fields[reconcile.FieldServiceType]; ok {
		q = q.Where("(service_type = '' OR service_type IS NULL)")
	}

	res := q.Updates(map[string]any(op.Fields))
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", op.RecordID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s: %w", op.RecordID, reconcile.ErrWriteConflict)
	}
	return nil
}

// UpsertJob stores the latest status of a downstream job.
func (s *Store) UpsertJob(ctx context.Context, job models.Job) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"record_id", "status", "updated_at"}),
		}).
		Create(&job).Error
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.JobID, err)
	}
	return nil
}

// ActiveJobs returns the record ids with a Scheduled or In Progress job. A
// job booked against an earlier version of a record, reached through the
// supersedes chain, counts for the current version too.
func (s *Store) ActiveJobs(ctx context.Context, recordIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(recordIDs) == 0 {
		return out, nil
	}

	owners, err := s.lineage(ctx, recordIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err = inChunks(ids, func(chunk []string) error {
		var found []string
		err := s.db.WithContext(ctx).
			Model(&models.Job{}).
			Where("record_id IN ? AND status IN ?", chunk, activeJobStatuses).
			Distinct().
			Pluck("record_id", &found).Error
		if err != nil {
			return fmt.Errorf("failed to look up active jobs: %w", err)
		}
		for _, id := range found {
			for _, owner := range owners[id] {
				out[owner] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// maxLineageDepth bounds how many versions back ActiveJobs looks.
const maxLineageDepth = 64

type supersedesLink struct {
	RecordID   string
	Supersedes string
}

// lineage maps each requested id and every predecessor it supersedes,
// directly or transitively, to the requested ids that descend from it.
func (s *Store) lineage(ctx context.Context, recordIDs []string) (map[string][]string, error) {
	owners := make(map[string][]string, len(recordIDs))
	frontier := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		if _, ok := owners[id]; !ok {
			frontier = append(frontier, id)
		}
		owners[id] = append(owners[id], id)
	}

	for depth := 0; depth < maxLineageDepth && len(frontier) > 0; depth++ {
		var links []supersedesLink
		err := inChunks(frontier, func(chunk []string) error {
			var rows []supersedesLink
			err := s.db.WithContext(ctx).
				Model(&models.Reservation{}).
				Select("record_id", "supersedes").
				Where("record_id IN ? AND supersedes IS NOT NULL AND supersedes <> ''", chunk).
				Find(&rows).Error
			if err != nil {
				return fmt.Errorf("failed to resolve record lineage: %w", err)
			}
			links = append(links, rows...)
			return nil
		})
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, link := range links {
			// A predecessor seen before is a loop; stop walking there.
			if _, seen := owners[link.Supersedes]; seen {
				continue
			}
			owners[link.Supersedes] = owners[link.RecordID]
			frontier = append(frontier, link.Supersedes)
		}
	}
	return owners, nil
}

func inChunks(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += lookupChunk {
		end := start + lookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeJobStatus maps the status strings of the job tracker onto the
// closed set of job statuses.
func NormalizeJobStatus(raw string) (models.JobStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "scheduled", "pending", "assigned":
		return models.JobScheduled, true
	case "inprogress", "started", "active":
		return models.JobInProgress, true
	case "completed", "complete", "done", "finished":
		return models.JobCompleted, true
	case "cancelled", "canceled":
		return models.JobCancelled, true
	default:
		return "", false
	}
}
