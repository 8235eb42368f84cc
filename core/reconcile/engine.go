package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobLookup reports which records have a downstream job that is still
// Scheduled or In Progress.
type JobLookup interface {
	ActiveJobs(ctx context.Context, recordIDs []string) (map[string]struct{}, error)
}

// Run carries the per-run context threaded through detection and
// reconciliation. Nothing in it is shared between runs.
type Run struct {
	// ID identifies the run in logs and archives.
	ID string
	// Now is the instant the run started; every timestamp written uses it.
	Now time.Time
	// Location is the timezone "today" is evaluated in.
	Location *time.Location

	failed map[string]struct{}
}

// NewRun creates a run context.
func NewRun(id string, now time.Time, loc *time.Location) *Run {
	if loc == nil {
		loc = time.UTC
	}
	return &Run{
		ID:       id,
		Now:      now,
		Location: loc,
		failed:   make(map[string]struct{}),
	}
}

// Today returns the calendar date of the run in its location.
func (r *Run) Today() time.Time {
	return ToDate(r.Now.In(r.Location))
}

// MarkSourceFailed records that a feed or file could not be read this run.
func (r *Run) MarkSourceFailed(source string) {
	r.failed[source] = struct{}{}
}

// SourceFailed reports whether source failed this run.
func (r *Run) SourceFailed(source string) bool {
	_, ok := r.failed[source]
	return ok
}

// Plan is the outcome of reconciling one property.
type Plan struct {
	PropertyID string
	// Operations are the writes to flush, retirements first.
	Operations []Operation
	// Active is the post-run active set with recalculated flags.
	Active []Record
	// Malformed lists the events skipped this run.
	Malformed []error
	Summary   Summary
}

// Engine reconciles the event stream of a property against its active records.
type Engine struct {
	tracker *RemovalTracker
	flags   *FlagCalculator
	jobs    JobLookup
	logger  *zap.Logger
	newID   func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithIDGenerator overrides how record ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an engine. jobs may be nil when no job tracking exists.
func NewEngine(cfg Config, jobs JobLookup, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		tracker: NewRemovalTracker(cfg),
		flags:   NewFlagCalculator(cfg),
		jobs:    jobs,
		logger:  logger,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile runs detection, lifecycle transitions, removal tracking and flag
// calculation for one property. It never fails as a whole: bad events and
// lookup failures are counted in the plan summary.
//
// Reconcile must not be called concurrently for the same property.
func (e *Engine) Reconcile(ctx context.Context, run *Run, propertyID string, active []Record, events []Event) *Plan {
	plan := &Plan{PropertyID: propertyID}
	l := e.logger.With(zap.String("run_id", run.ID), zap.String("property_id", propertyID))

	valid := make([]Event, 0, len(events))
	for _, ev := range events {
		err := ev.Validate()
		if err == nil && ev.PropertyID != propertyID {
			err = &MalformedEventError{Field: "property_id", Reason: "does not match " + propertyID}
		}
		if err != nil {
			l.Warn("Skipping malformed event",
				zap.String("source", ev.Source),
				zap.String("external_uid", ev.ExternalUID),
				zap.Error(err),
			)
			plan.Malformed = append(plan.Malformed, err)
			plan.Summary.Errors++
			continue
		}
		valid = append(valid, ev)
	}

	// Work on a copy so callers keep their pre-run view.
	working := make([]Record, len(active))
	copy(working, active)

	detector := NewDetector(working).WithFailedSources(run.SourceFailed)
	res := detector.Detect(valid)
	plan.Summary.DuplicatesIgnored = res.DuplicatesIgnored

	st := newPropertyState()
	for _, det := range res.Detections {
		e.transition(run, st, det, &plan.Summary)
	}

	e.ageMissing(ctx, run, l, st, detector.Unobserved(res), &plan.Summary)
	e.applyFlags(st)

	plan.Operations = st.operations()
	plan.Active = st.active()
	return plan
}

func (e *Engine) transition(run *Run, st *propertyState, det Detection, sum *Summary) {
	switch det.Kind {
	case ExactActiveDuplicate, HeldForFailedSource:
		rec := det.Existing
		fields := e.tracker.Reappeared(rec, run.Now)
		if rec.ServiceType == "" && det.Event.ServiceType != "" {
			rec.ServiceType = det.Event.ServiceType
			fields[FieldServiceType] = rec.ServiceType
		}
		st.update(rec, fields)
		st.keep(rec)
		sum.Unchanged++

	case SameIdentifierModified:
		st.retire(det.Existing)
		st.create(e.successor(run, det.Existing, *det.Event, StatusModified))
		sum.Modified++

	case IdentifierChanged:
		status := StatusNew
		if materiallyDifferent(*det.Existing, *det.Event) {
			status = StatusModified
		}
		st.retire(det.Existing)
		st.create(e.successor(run, det.Existing, *det.Event, status))
		sum.IdentifierChanges++
		if status == StatusNew {
			sum.New++
		} else {
			sum.Modified++
		}

	case GenuinelyNew:
		st.create(e.fresh(run, *det.Event))
		sum.New++

	case SlotDisplaced:
		st.retire(det.Existing)
		sum.IdentifierChanges++
	}
}

func (e *Engine) ageMissing(ctx context.Context, run *Run, l *zap.Logger, st *propertyState, candidates []*Record, sum *Summary) {
	if len(candidates) == 0 {
		return
	}

	jobs := map[string]struct{}{}
	lookupFailed := false
	if e.jobs != nil {
		ids := make([]string, 0, len(candidates))
		for _, rec := range candidates {
			ids = append(ids, rec.ID)
		}
		found, err := e.jobs.ActiveJobs(ctx, ids)
		if err != nil {
			// Without job data every candidate is treated as protected.
			l.Error("Active job lookup failed", zap.Error(err))
			sum.Errors++
			lookupFailed = true
		} else if found != nil {
			jobs = found
		}
	}

	today := run.Today()
	for _, rec := range candidates {
		var d RemovalDecision
		switch {
		case run.SourceFailed(rec.Source):
			d = RemovalDecision{Action: RemovalKeep, Reason: ReasonFeedFailed}
		case lookupFailed:
			d = RemovalDecision{Action: RemovalKeep, Reason: ReasonActiveJob}
		default:
			_, hasJob := jobs[rec.ID]
			d = e.tracker.Evaluate(*rec, run.Now, today, hasJob)
		}

		if fields := e.tracker.Apply(rec, d, run.Now); fields != nil {
			st.update(rec, fields)
		}

		switch d.Action {
		case RemovalRetire:
			l.Info("Retiring record after consecutive misses",
				zap.String("record_id", rec.ID),
				zap.String("composite_uid", rec.CompositeUID),
			)
			sum.Removed++
		case RemovalIncrement:
			sum.MissingIncremented++
			st.keep(rec)
		default:
			if d.Protected() {
				sum.Protected++
			}
			st.keep(rec)
		}
	}
}

func (e *Engine) applyFlags(st *propertyState) {
	records := st.active()
	if len(records) == 0 {
		return
	}
	computed := e.flags.Calculate(records)

	for _, rec := range st.creates {
		rec.Flags = computed[rec.ID]
	}
	for _, rec := range st.kept {
		next := computed[rec.ID]
		if diff := rec.Flags.diff(next); len(diff) > 0 {
			rec.Flags = next
			st.update(rec, diff)
		}
	}
}

func (e *Engine) fresh(run *Run, ev Event) *Record {
	return &Record{
		ID:           e.newID(),
		CompositeUID: ev.CompositeUID(),
		PropertyID:   ev.PropertyID,
		Checkin:      ToDate(ev.Checkin),
		Checkout:     ToDate(ev.Checkout),
		EntryType:    ev.EntryType,
		ServiceType:  ev.ServiceType,
		Status:       StatusNew,
		Source:       ev.Source,
		LastSeen:     run.Now,
	}
}

func (e *Engine) successor(run *Run, prev *Record, ev Event, status Status) *Record {
	rec := e.fresh(run, ev)
	rec.Status = status
	rec.Supersedes = prev.ID
	// User-entered service types are sticky across versions.
	if prev.ServiceType != "" {
		rec.ServiceType = prev.ServiceType
	}
	return rec
}

// materiallyDifferent reports whether an identifier-changed event differs
// from its predecessor in anything besides the identifier.
func materiallyDifferent(prev Record, ev Event) bool {
	if ev.Source != "" && prev.Source != "" && ev.Source != prev.Source {
		return true
	}
	return ev.ServiceType != "" && prev.ServiceType != "" && ev.ServiceType != prev.ServiceType
}

// propertyState accumulates the writes of one property within one run.
type propertyState struct {
	retired     []Operation
	creates     []*Record
	kept        []*Record
	updates     map[string]Fields
	updateOrder []*Record
}

func newPropertyState() *propertyState {
	return &propertyState{updates: make(map[string]Fields)}
}

func (s *propertyState) retire(rec *Record) {
	rec.Status = StatusOld
	s.retired = append(s.retired, UpdateOp(*rec, Fields{FieldStatus: string(StatusOld)}))
}

func (s *propertyState) create(rec *Record) {
	s.creates = append(s.creates, rec)
}

func (s *propertyState) keep(rec *Record) {
	s.kept = append(s.kept, rec)
}

// update merges fields into the single pending update of rec.
func (s *propertyState) update(rec *Record, fields Fields) {
	if len(fields) == 0 {
		return
	}
	pending, ok := s.updates[rec.ID]
	if !ok {
		pending = make(Fields, len(fields))
		s.updates[rec.ID] = pending
		s.updateOrder = append(s.updateOrder, rec)
	}
	for k, v := range fields {
		pending[k] = v
	}
}

func (s *propertyState) active() []Record {
	out := make([]Record, 0, len(s.kept)+len(s.creates))
	for _, rec := range s.kept {
		out = append(out, *rec)
	}
	for _, rec := range s.creates {
		out = append(out, *rec)
	}
	return out
}

func (s *propertyState) operations() []Operation {
	ops := make([]Operation, 0, len(s.retired)+len(s.creates)+len(s.updateOrder))
	ops = append(ops, s.retired...)
	for _, rec := range s.creates {
		ops = append(ops, CreateOp(*rec))
	}
	for _, rec := range s.updateOrder {
		ops = append(ops, UpdateOp(*rec, s.updates[rec.ID]))
	}
	return ops
}
