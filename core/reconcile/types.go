package reconcile

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation record.
type Status string

const (
	// StatusNew marks a record created on first observation.
	StatusNew Status = "New"
	// StatusModified marks a record that replaced a prior version with different details.
	StatusModified Status = "Modified"
	// StatusOld marks a record superseded by a successor.
	StatusOld Status = "Old"
	// StatusRemoved marks a record retired after confirmed absence.
	StatusRemoved Status = "Removed"
)

// IsActive reports whether the status counts towards the active set.
func (s Status) IsActive() bool {
	return s == StatusNew || s == StatusModified
}

// ParseStatus maps a stored status string onto the closed Status enum.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new":
		return StatusNew, true
	case "modified":
		return StatusModified, true
	case "old":
		return StatusOld, true
	case "removed":
		return StatusRemoved, true
	default:
		return "", false
	}
}

// EntryType distinguishes guest reservations from owner or maintenance blocks.
type EntryType string

const (
	// EntryReservation is a guest booking.
	EntryReservation EntryType = "Reservation"
	// EntryBlock is an owner, maintenance or otherwise unavailable period.
	EntryBlock EntryType = "Block"
)

// ParseEntryType normalizes the assorted upstream spellings of an entry type.
func ParseEntryType(raw string) (EntryType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reservation", "reserved", "booking", "guest":
		return EntryReservation, true
	case "block", "blocked", "owner", "owner stay", "maintenance", "not available", "unavailable":
		return EntryBlock, true
	default:
		return "", false
	}
}

// Event is one normalized upstream item observed during a run.
type Event struct {
	// Source identifies the feed or file the event came from.
	Source string
	// PropertyID is the property the event belongs to.
	PropertyID string
	// ExternalUID is the identifier assigned upstream. It may change between runs.
	ExternalUID string
	// Checkin is the arrival date (UTC midnight).
	Checkin time.Time
	// Checkout is the departure date (UTC midnight).
	Checkout time.Time
	// EntryType is Reservation or Block.
	EntryType EntryType
	// ServiceType is the requested service, empty when upstream has none.
	ServiceType string
	// Raw holds source fields kept for diagnostics only.
	Raw map[string]string
}

// CompositeUID stabilizes the upstream identifier within a property.
func (e Event) CompositeUID() string {
	return CompositeUID(e.ExternalUID, e.PropertyID)
}

// Slot returns the (checkin, checkout, entry_type) key of the event.
func (e Event) Slot() Slot {
	return NewSlot(e.Checkin, e.Checkout, e.EntryType)
}

// Validate checks the fields the reconciliation core relies on.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.PropertyID) == "":
		return &MalformedEventError{Field: "property_id", Reason: "missing"}
	case strings.TrimSpace(e.ExternalUID) == "":
		return &MalformedEventError{Field: "external_uid", Reason: "missing"}
	case e.Checkin.IsZero():
		return &MalformedEventError{Field: "checkin", Reason: "missing"}
	case e.Checkout.IsZero():
		return &MalformedEventError{Field: "checkout", Reason: "missing"}
	case !e.Checkout.After(e.Checkin):
		return &MalformedEventError{Field: "checkout", Reason: "not after checkin"}
	case e.EntryType != EntryReservation && e.EntryType != EntryBlock:
		return &MalformedEventError{Field: "entry_type", Reason: "unknown value " + string(e.EntryType)}
	}
	return nil
}

// CompositeUID joins an upstream identifier with its property.
func CompositeUID(externalUID, propertyID string) string {
	return externalUID + "_" + propertyID
}

// Slot is the identity of a stay independent of its upstream identifier.
// Dates are kept as ISO strings so the key is comparable regardless of the
// time.Location a driver attached when reading the record back.
type Slot struct {
	Checkin   string
	Checkout  string
	EntryType EntryType
}

// NewSlot builds a slot key from calendar dates.
func NewSlot(checkin, checkout time.Time, entryType EntryType) Slot {
	return Slot{
		Checkin:   DateKey(checkin),
		Checkout:  DateKey(checkout),
		EntryType: entryType,
	}
}

// Flags are the scheduling flags derived from the active set of a property.
type Flags struct {
	SameDayTurnover bool `json:"same_day_turnover"`
	OverlapsOther   bool `json:"overlaps_other"`
	LongStay        bool `json:"long_stay"`
	OwnerArriving   bool `json:"owner_arriving"`
}

// Record is a persisted, append-style reservation version.
type Record struct {
	ID           string     `json:"record_id"`
	CompositeUID string     `json:"composite_uid"`
	PropertyID   string     `json:"property_id"`
	Checkin      time.Time  `json:"checkin"`
	Checkout     time.Time  `json:"checkout"`
	EntryType    EntryType  `json:"entry_type"`
	ServiceType  string     `json:"service_type"`
	Status       Status     `json:"status"`
	Source       string     `json:"source"`
	MissingCount int        `json:"missing_count"`
	MissingSince *time.Time `json:"missing_since,omitempty"`
	LastSeen     time.Time  `json:"last_seen"`
	// Supersedes is the record_id this version replaced, empty for none.
	Supersedes string `json:"supersedes,omitempty"`
	Flags      Flags  `json:"flags"`
}

// Slot returns the (checkin, checkout, entry_type) key of the record.
func (r Record) Slot() Slot {
	return NewSlot(r.Checkin, r.Checkout, r.EntryType)
}

// Nights returns the length of the stay in calendar days.
func (r Record) Nights() int {
	return DaysBetween(r.Checkin, r.Checkout)
}
