package reconcile

import "sort"

// Classification is the detector's verdict for one incoming event.
type Classification string

const (
	// ExactActiveDuplicate is an event identical to an active record with the same identifier.
	ExactActiveDuplicate Classification = "exact_active_duplicate"
	// SameIdentifierModified is an event whose identifier matches an active record but whose slot differs.
	SameIdentifierModified Classification = "same_identifier_modified"
	// IdentifierChanged is an event that re-surfaces an active slot under a different identifier.
	IdentifierChanged Classification = "identifier_changed"
	// HeldForFailedSource is an event from another feed on a slot whose active
	// record came from a feed that failed this run. The record is kept as is.
	HeldForFailedSource Classification = "held_for_failed_source"
	// GenuinelyNew is an event with no active counterpart.
	GenuinelyNew Classification = "genuinely_new"
	// SlotDisplaced marks an active record whose slot was claimed by another identifier this run.
	SlotDisplaced Classification = "slot_displaced"
)

// Detection pairs an event with the active record it resolved to.
type Detection struct {
	Kind Classification
	// Event is nil for SlotDisplaced.
	Event *Event
	// Existing is the matched active record, nil for GenuinelyNew.
	Existing *Record
}

// DetectResult is the outcome of detecting one property's event stream.
type DetectResult struct {
	// Detections are ordered by the source position of their event;
	// SlotDisplaced entries follow in active-set order.
	Detections []Detection
	// ObservedKeys holds every slot matched by an event this run.
	ObservedKeys map[Slot]struct{}
	// Consumed holds the ids of active records matched or displaced this run.
	Consumed map[string]struct{}
	// DuplicatesIgnored counts events collapsed by the last-wins tie-break.
	DuplicatesIgnored int
}

// Detector classifies incoming events against the active records of one
// property. The index is built once per run and never shared across runs.
type Detector struct {
	byUID        map[string]*Record
	bySlot       map[Slot][]*Record
	order        []*Record
	sourceFailed func(source string) bool
}

// NewDetector indexes the pre-run active records of a property.
// Records that are not active are ignored.
func NewDetector(active []Record) *Detector {
	d := &Detector{
		byUID:  make(map[string]*Record, len(active)),
		bySlot: make(map[Slot][]*Record, len(active)),
	}
	for i := range active {
		rec := &active[i]
		if !rec.Status.IsActive() {
			continue
		}
		d.order = append(d.order, rec)
		// Later records win on a duplicated identifier; the earlier one is
		// still reachable through its slot.
		d.byUID[rec.CompositeUID] = rec
		slot := rec.Slot()
		d.bySlot[slot] = append(d.bySlot[slot], rec)
	}
	return d
}

// WithFailedSources makes d hold slots whose active record belongs to a
// source for which failed reports true.
func (d *Detector) WithFailedSources(failed func(source string) bool) *Detector {
	d.sourceFailed = failed
	return d
}

// Detect classifies the events of one run. Events must already be valid.
//
// Identifier matches are resolved before slot matches so the outcome does not
// depend on the order in which events appear within the run.
func (d *Detector) Detect(events []Event) DetectResult {
	res := DetectResult{
		ObservedKeys: make(map[Slot]struct{}),
		Consumed:     make(map[string]struct{}),
	}

	survivors, dropped := collapse(events, d.anchored)
	res.DuplicatesIgnored = dropped

	detections := make([]Detection, len(survivors))
	pending := make([]int, 0, len(survivors))

	// Phase 1: identifier matches.
	for i := range survivors {
		ev := &survivors[i]
		res.ObservedKeys[ev.Slot()] = struct{}{}

		rec, ok := d.byUID[ev.CompositeUID()]
		if !ok {
			pending = append(pending, i)
			continue
		}
		res.Consumed[rec.ID] = struct{}{}
		kind := SameIdentifierModified
		if rec.Slot() == ev.Slot() {
			kind = ExactActiveDuplicate
		}
		detections[i] = Detection{Kind: kind, Event: ev, Existing: rec}
	}

	// Phase 2: slot matches against records no identifier claimed.
	for _, i := range pending {
		ev := &survivors[i]
		if rec := d.unconsumedAt(ev.Slot(), res.Consumed); rec != nil {
			res.Consumed[rec.ID] = struct{}{}
			kind := IdentifierChanged
			if d.heldBy(rec, ev) {
				kind = HeldForFailedSource
			}
			detections[i] = Detection{Kind: kind, Event: ev, Existing: rec}
			continue
		}
		detections[i] = Detection{Kind: GenuinelyNew, Event: ev}
	}
	res.Detections = detections

	// Phase 3: any active record still sitting on an observed slot lost it to
	// another identifier. It is superseded, never treated as missing.
	for _, rec := range d.order {
		if _, done := res.Consumed[rec.ID]; done {
			continue
		}
		if _, seen := res.ObservedKeys[rec.Slot()]; !seen {
			continue
		}
		res.Consumed[rec.ID] = struct{}{}
		res.Detections = append(res.Detections, Detection{Kind: SlotDisplaced, Existing: rec})
	}

	return res
}

// Unobserved returns the active records that no event matched this run.
func (d *Detector) Unobserved(res DetectResult) []*Record {
	var out []*Record
	for _, rec := range d.order {
		if _, done := res.Consumed[rec.ID]; done {
			continue
		}
		if _, seen := res.ObservedKeys[rec.Slot()]; seen {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// anchored reports whether ev carries the identifier of the active record on
// its own slot.
func (d *Detector) anchored(ev Event) bool {
	rec, ok := d.byUID[ev.CompositeUID()]
	return ok && rec.Slot() == ev.Slot()
}

// heldBy reports whether rec must keep its identifier because its own source
// failed and ev comes from a different one.
func (d *Detector) heldBy(rec *Record, ev *Event) bool {
	if d.sourceFailed == nil || rec.Source == "" || rec.Source == ev.Source {
		return false
	}
	return d.sourceFailed(rec.Source)
}

func (d *Detector) unconsumedAt(slot Slot, consumed map[string]struct{}) *Record {
	for _, rec := range d.bySlot[slot] {
		if _, done := consumed[rec.ID]; !done {
			return rec
		}
	}
	return nil
}

// collapse applies the last-wins tie-break: of several events sharing an
// identifier, and then of several events sharing a slot, only the last one in
// source order survives. On a slot, an event anchored to the slot's active
// record beats any later event with another identifier. Survivors keep their
// relative source order. anchored may be nil.
func collapse(events []Event, anchored func(Event) bool) ([]Event, int) {
	lastByUID := make(map[string]int, len(events))
	for i, ev := range events {
		lastByUID[ev.CompositeUID()] = i
	}

	byUID := make([]int, 0, len(lastByUID))
	for _, i := range lastByUID {
		byUID = append(byUID, i)
	}
	sort.Ints(byUID)

	lastBySlot := make(map[Slot]int, len(byUID))
	for _, i := range byUID {
		slot := events[i].Slot()
		if prev, ok := lastBySlot[slot]; ok && anchored != nil &&
			anchored(events[prev]) && !anchored(events[i]) {
			continue
		}
		lastBySlot[slot] = i
	}

	kept := make([]int, 0, len(lastBySlot))
	for _, i := range lastBySlot {
		kept = append(kept, i)
	}
	sort.Ints(kept)

	out := make([]Event, 0, len(kept))
	for _, i := range kept {
		out = append(out, events[i])
	}
	return out, len(events) - len(out)
}
