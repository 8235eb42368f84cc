package reconcile

// OpKind is the kind of persistence operation.
type OpKind string

const (
	// OpCreate inserts a new record version.
	OpCreate OpKind = "create"
	// OpUpdate applies a field diff to an existing record.
	OpUpdate OpKind = "update"
)

// Column names used in update field diffs.
const (
	FieldStatus          = "status"
	FieldMissingCount    = "missing_count"
	FieldMissingSince    = "missing_since"
	FieldLastSeen        = "last_seen"
	FieldServiceType     = "service_type"
	FieldSameDayTurnover = "same_day_turnover"
	FieldOverlapsOther   = "overlaps_other"
	FieldLongStay        = "long_stay"
	FieldOwnerArriving   = "owner_arriving"
)

// lifecycleFields survive a reduced retry after a write conflict.
var lifecycleFields = map[string]struct{}{
	FieldStatus:       {},
	FieldMissingCount: {},
	FieldMissingSince: {},
	FieldLastSeen:     {},
}

// Fields is an update diff keyed by column name.
type Fields map[string]any

// Operation is a single write emitted by the engine.
type Operation struct {
	Kind       OpKind
	RecordID   string
	PropertyID string
	// Record is the full record for OpCreate.
	Record *Record
	// Fields is the diff for OpUpdate.
	Fields Fields
	// Reduced is set once the operation was narrowed to lifecycle fields.
	Reduced bool
}

// CreateOp returns a create operation for rec.
func CreateOp(rec Record) Operation {
	return Operation{
		Kind:       OpCreate,
		RecordID:   rec.ID,
		PropertyID: rec.PropertyID,
		Record:     &rec,
	}
}

// UpdateOp returns an update operation for the given record.
func UpdateOp(rec Record, fields Fields) Operation {
	return Operation{
		Kind:       OpUpdate,
		RecordID:   rec.ID,
		PropertyID: rec.PropertyID,
		Fields:     fields,
	}
}

// Reduce narrows an update to the lifecycle fields. It reports false when
// the operation cannot be reduced any further.
func (o Operation) Reduce() (Operation, bool) {
	if o.Kind != OpUpdate || o.Reduced {
		return o, false
	}
	reduced := make(Fields, len(o.Fields))
	for k, v := range o.Fields {
		if _, ok := lifecycleFields[k]; ok {
			reduced[k] = v
		}
	}
	if len(reduced) == 0 {
		return o, false
	}
	o.Fields = reduced
	o.Reduced = true
	return o, true
}
