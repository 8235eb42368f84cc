package reconcile

import "go.uber.org/zap"

// Summary aggregates the outcome of a run, or of one property within a run.
type Summary struct {
	New               int `json:"new"`
	Modified          int `json:"modified"`
	Unchanged         int `json:"unchanged"`
	Removed           int `json:"removed"`
	IdentifierChanges int `json:"identifier_changes_detected"`
	DuplicatesIgnored int `json:"duplicates_ignored"`
	Errors            int `json:"errors"`
	FeedsProcessed    int `json:"feeds_or_files_processed"`

	// MissingIncremented counts records whose miss counter advanced.
	MissingIncremented int `json:"missing_incremented"`
	// Protected counts absent records kept by a protection rule.
	Protected int `json:"protected"`
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.New += other.New
	s.Modified += other.Modified
	s.Unchanged += other.Unchanged
	s.Removed += other.Removed
	s.IdentifierChanges += other.IdentifierChanges
	s.DuplicatesIgnored += other.DuplicatesIgnored
	s.Errors += other.Errors
	s.FeedsProcessed += other.FeedsProcessed
	s.MissingIncremented += other.MissingIncremented
	s.Protected += other.Protected
}

// LogFields renders the summary as the structured fields of the run line.
func (s Summary) LogFields() []zap.Field {
	return []zap.Field{
		zap.Int("new", s.New),
		zap.Int("modified", s.Modified),
		zap.Int("unchanged", s.Unchanged),
		zap.Int("removed", s.Removed),
		zap.Int("identifier_changes_detected", s.IdentifierChanges),
		zap.Int("duplicates_ignored", s.DuplicatesIgnored),
		zap.Int("errors", s.Errors),
		zap.Int("feeds_or_files_processed", s.FeedsProcessed),
		zap.Int("missing_incremented", s.MissingIncremented),
		zap.Int("protected", s.Protected),
	}
}
