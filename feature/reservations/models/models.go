package models

import (
	"time"

	"turnover-sync/core/reconcile"
)

// Reservation is one stored version of a reservation or block.
// Columns touched by update diffs match the reconcile field names.
type Reservation struct {
	RecordID        string     `gorm:"column:record_id;primaryKey;size:36" json:"record_id"`
	CompositeUID    string     `gorm:"column:composite_uid;size:255;index:idx_reservations_uid" json:"composite_uid"`
	PropertyID      string     `gorm:"column:property_id;size:128;not null;index:idx_reservations_property_status,priority:1" json:"property_id"`
	Checkin         time.Time  `gorm:"column:checkin;type:date;not null" json:"checkin"`
	Checkout        time.Time  `gorm:"column:checkout;type:date;not null" json:"checkout"`
	EntryType       string     `gorm:"column:entry_type;size:16;not null" json:"entry_type"`
	ServiceType     string     `gorm:"column:service_type;size:64;not null;default:''" json:"service_type"`
	Status          string     `gorm:"column:status;size:16;not null;index:idx_reservations_property_status,priority:2" json:"status"`
	Source          string     `gorm:"column:source;size:128" json:"source"`
	MissingCount    int        `gorm:"column:missing_count;not null;default:0" json:"missing_count"`
	MissingSince    *time.Time `gorm:"column:missing_since" json:"missing_since,omitempty"`
	LastSeen        time.Time  `gorm:"column:last_seen" json:"last_seen"`
	Supersedes      *string    `gorm:"column:supersedes;size:36;index" json:"supersedes,omitempty"`
	SameDayTurnover bool       `gorm:"column:same_day_turnover;not null;default:false" json:"same_day_turnover"`
	OverlapsOther   bool       `gorm:"column:overlaps_other;not null;default:false" json:"overlaps_other"`
	LongStay        bool       `gorm:"column:long_stay;not null;default:false" json:"long_stay"`
	OwnerArriving   bool       `gorm:"column:owner_arriving;not null;default:false" json:"owner_arriving"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides the table name.
func (Reservation) TableName() string {
	return "reservations"
}

// Columns lists the columns the reconciler reads and writes.
func (Reservation) Columns() []string {
	return []string{
		"record_id", "composite_uid", "property_id", "checkin", "checkout",
		"entry_type", "service_type", "status", "source", "missing_count",
		"missing_since", "last_seen", "supersedes", reconcile.FieldSameDayTurnover,
		reconcile.FieldOverlapsOther, reconcile.FieldLongStay, reconcile.FieldOwnerArriving,
	}
}

// ToRecord converts the row to the engine's record.
// Unknown status or entry type strings are kept as is and fail later checks.
func (r Reservation) ToRecord() reconcile.Record {
	rec := reconcile.Record{
		ID:           r.RecordID,
		CompositeUID: r.CompositeUID,
		PropertyID:   r.PropertyID,
		Checkin:      reconcile.ToDate(r.Checkin),
		Checkout:     reconcile.ToDate(r.Checkout),
		EntryType:    reconcile.EntryType(r.EntryType),
		ServiceType:  r.ServiceType,
		Status:       reconcile.Status(r.Status),
		Source:       r.Source,
		MissingCount: r.MissingCount,
		MissingSince: r.MissingSince,
		LastSeen:     r.LastSeen,
		Flags: reconcile.Flags{
			SameDayTurnover: r.SameDayTurnover,
			OverlapsOther:   r.OverlapsOther,
			LongStay:        r.LongStay,
			OwnerArriving:   r.OwnerArriving,
		},
	}
	if et, ok := reconcile.ParseEntryType(r.EntryType); ok {
		rec.EntryType = et
	}
	if st, ok := reconcile.ParseStatus(r.Status); ok {
		rec.Status = st
	}
	if r.Supersedes != nil {
		rec.Supersedes = *r.Supersedes
	}
	return rec
}

// FromRecord converts an engine record into a row.
func FromRecord(rec reconcile.Record) Reservation {
	row := Reservation{
		RecordID:        rec.ID,
		CompositeUID:    rec.CompositeUID,
		PropertyID:      rec.PropertyID,
		Checkin:         reconcile.ToDate(rec.Checkin),
		Checkout:        reconcile.ToDate(rec.Checkout),
		EntryType:       string(rec.EntryType),
		ServiceType:     rec.ServiceType,
		Status:          string(rec.Status),
		Source:          rec.Source,
		MissingCount:    rec.MissingCount,
		MissingSince:    rec.MissingSince,
		LastSeen:        rec.LastSeen,
		SameDayTurnover: rec.Flags.SameDayTurnover,
		OverlapsOther:   rec.Flags.OverlapsOther,
		LongStay:        rec.Flags.LongStay,
		OwnerArriving:   rec.Flags.OwnerArriving,
	}
	if rec.Supersedes != "" {
		s := rec.Supersedes
		row.Supersedes = &s
	}
	return row
}

// JobStatus is the normalized status of a downstream service job.
type JobStatus string

const (
	JobScheduled  JobStatus = "Scheduled"
	JobInProgress JobStatus = "In Progress"
	JobCompleted  JobStatus = "Completed"
	JobCancelled  JobStatus = "Cancelled"
)

// Active reports whether the job still protects its record.
func (s JobStatus) Active() bool {
	return s == JobScheduled || s == JobInProgress
}

// Job is the last known state of a downstream service job.
type Job struct {
	JobID     string    `gorm:"column:job_id;primaryKey;size:64" json:"job_id"`
	RecordID  string    `gorm:"column:record_id;size:36;not null;index" json:"record_id"`
	Status    JobStatus `gorm:"column:status;size:16;not null" json:"status"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides the table name.
func (Job) TableName() string {
	return "jobs"
}

// Columns lists the columns removal protection reads.
func (Job) Columns() []string {
	return []string{"job_id", "record_id", "status", "updated_at"}
}

// JobEvent is the payload of a job status webhook.
type JobEvent struct {
	RecordID string `json:"record_id"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
}

// RunReport is the outcome of one reconciliation run, as archived and
// served by the API.
type RunReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Duration   string            `json:"duration"`
	DryRun     bool              `json:"dry_run"`
	Summary    reconcile.Summary `json:"summary"`
	Properties []PropertyReport  `json:"properties"`
	// FailedFeeds lists the feeds that could not be read this run.
	FailedFeeds []string `json:"failed_feeds,omitempty"`
}

// PropertyReport is the per-property part of a run report.
type PropertyReport struct {
	PropertyID string            `json:"property_id"`
	Summary    reconcile.Summary `json:"summary"`
	Operations int               `json:"operations"`
	Written    int               `json:"written"`
	Failed     int               `json:"failed"`
	// Active is the post-run active set, only filled on dry runs.
	Active []reconcile.Record `json:"active,omitempty"`
}
