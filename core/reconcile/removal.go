package reconcile

import "time"

// RemovalAction is the verdict of the removal tracker for one candidate.
type RemovalAction string

const (
	// RemovalKeep leaves the record untouched this run.
	RemovalKeep RemovalAction = "keep"
	// RemovalIncrement records one more consecutive miss.
	RemovalIncrement RemovalAction = "increment"
	// RemovalRetire transitions the record to Removed.
	RemovalRetire RemovalAction = "retire"
)

// Protection reasons reported with a keep decision.
const (
	ReasonActiveJob        = "active downstream job"
	ReasonRecentCheckin    = "recent checkin"
	ReasonImminentCheckout = "checkout today or tomorrow"
	ReasonGracePeriod      = "grace period not elapsed"
	ReasonFeedFailed       = "source feed failed this run"
)

// RemovalDecision is the tracker's answer for one candidate.
type RemovalDecision struct {
	Action RemovalAction
	Reason string
}

// Protected reports whether the decision came from a protection rule.
func (d RemovalDecision) Protected() bool {
	return d.Action == RemovalKeep && d.Reason != ReasonGracePeriod
}

// RemovalTracker decides when an active record absent from a run is retired.
type RemovalTracker struct {
	grace      time.Duration
	maxMissing int
	recentDays int
}

// NewRemovalTracker creates a tracker from the core configuration.
func NewRemovalTracker(cfg Config) *RemovalTracker {
	cfg = cfg.withDefaults()
	return &RemovalTracker{
		grace:      cfg.GracePeriod,
		maxMissing: cfg.MaxMissing,
		recentDays: cfg.RecentCheckinDays,
	}
}

// Evaluate applies the removal rules, in order, to a record that did not
// re-appear this run. today is the current calendar date of the property.
func (t *RemovalTracker) Evaluate(rec Record, now, today time.Time, hasActiveJob bool) RemovalDecision {
	// 1. Protection overrides the miss clock entirely.
	if reason, ok := t.protection(rec, today, hasActiveJob); ok {
		return RemovalDecision{Action: RemovalKeep, Reason: reason}
	}

	// 2. Not enough consecutive misses yet.
	if rec.MissingCount < t.maxMissing-1 {
		return RemovalDecision{Action: RemovalIncrement}
	}

	// 3. Final miss, but only once the grace period has elapsed.
	if rec.MissingSince == nil || now.Sub(*rec.MissingSince) < t.grace {
		return RemovalDecision{Action: RemovalKeep, Reason: ReasonGracePeriod}
	}
	return RemovalDecision{Action: RemovalRetire}
}

func (t *RemovalTracker) protection(rec Record, today time.Time, hasActiveJob bool) (string, bool) {
	if hasActiveJob {
		return ReasonActiveJob, true
	}
	if since := DaysBetween(rec.Checkin, today); since >= 0 && since <= t.recentDays {
		return ReasonRecentCheckin, true
	}
	if until := DaysBetween(today, rec.Checkout); until == 0 || until == 1 {
		return ReasonImminentCheckout, true
	}
	return "", false
}

// Apply mutates rec according to decision and returns the field diff to persist.
// A nil diff means nothing needs writing.
func (t *RemovalTracker) Apply(rec *Record, d RemovalDecision, now time.Time) Fields {
	switch d.Action {
	case RemovalIncrement:
		rec.MissingCount++
		fields := Fields{FieldMissingCount: rec.MissingCount}
		if rec.MissingSince == nil {
			since := now
			rec.MissingSince = &since
			fields[FieldMissingSince] = since
		}
		return fields
	case RemovalRetire:
		rec.MissingCount = t.maxMissing
		rec.Status = StatusRemoved
		return Fields{
			FieldStatus:       string(StatusRemoved),
			FieldMissingCount: rec.MissingCount,
		}
	case RemovalKeep:
		// A final miss without a recorded start gets one now so the grace
		// period can run.
		if d.Reason == ReasonGracePeriod && rec.MissingSince == nil {
			since := now
			rec.MissingSince = &since
			return Fields{FieldMissingSince: since}
		}
	}
	return nil
}

// Reappeared resets the miss clock of a record observed again and returns
// the diff to persist.
func (t *RemovalTracker) Reappeared(rec *Record, now time.Time) Fields {
	fields := Fields{FieldLastSeen: now}
	if rec.MissingCount != 0 || rec.MissingSince != nil {
		fields[FieldMissingCount] = 0
		fields[FieldMissingSince] = nil
	}
	rec.MissingCount = 0
	rec.MissingSince = nil
	rec.LastSeen = now
	return fields
}
