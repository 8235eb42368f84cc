package reconcile

import "sort"

// FlagCalculator derives scheduling flags from the active set of a property.
type FlagCalculator struct {
	longStayNights int
}

// NewFlagCalculator creates a calculator from the core configuration.
func NewFlagCalculator(cfg Config) *FlagCalculator {
	cfg = cfg.withDefaults()
	return &FlagCalculator{longStayNights: cfg.LongStayNights}
}

// Calculate returns the flags of every record, keyed by record id.
// All records must belong to the same property and be active.
func (f *FlagCalculator) Calculate(records []Record) map[string]Flags {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Checkin.Equal(b.Checkin) {
			return a.Checkin.Before(b.Checkin)
		}
		if !a.Checkout.Equal(b.Checkout) {
			return a.Checkout.Before(b.Checkout)
		}
		return a.ID < b.ID
	})

	flags := make(map[string]Flags, len(sorted))
	var reservations, blocks []Record
	for _, rec := range sorted {
		flags[rec.ID] = Flags{LongStay: rec.Nights() >= f.longStayNights}
		if rec.EntryType == EntryBlock {
			blocks = append(blocks, rec)
		} else {
			reservations = append(reservations, rec)
		}
	}

	// Owner arrival shares the adjacency test with same-day turnover, so it
	// is evaluated first, before blocks are excluded below.
	for _, res := range reservations {
		for _, blk := range blocks {
			if gap := DaysBetween(res.Checkout, blk.Checkin); gap == 0 || gap == 1 {
				fl := flags[res.ID]
				fl.OwnerArriving = true
				flags[res.ID] = fl
				break
			}
		}
	}

	// Reservations only from here on.
	for i, a := range reservations {
		for j := i + 1; j < len(reservations); j++ {
			b := reservations[j]
			if !b.Checkin.Before(a.Checkout) {
				// Sorted by checkin: nothing later can overlap a.
				break
			}
			fa, fb := flags[a.ID], flags[b.ID]
			fa.OverlapsOther = true
			fb.OverlapsOther = true
			flags[a.ID], flags[b.ID] = fa, fb
		}

		for j, b := range reservations {
			if i == j {
				continue
			}
			if DateKey(b.Checkin) == DateKey(a.Checkout) {
				fa := flags[a.ID]
				fa.SameDayTurnover = true
				flags[a.ID] = fa
				break
			}
		}
	}

	return flags
}

// diff returns the columns that change when moving from old to next.
func (fl Flags) diff(next Flags) Fields {
	fields := Fields{}
	if fl.SameDayTurnover != next.SameDayTurnover {
		fields[FieldSameDayTurnover] = next.SameDayTurnover
	}
	if fl.OverlapsOther != next.OverlapsOther {
		fields[FieldOverlapsOther] = next.OverlapsOther
	}
	if fl.LongStay != next.LongStay {
		fields[FieldLongStay] = next.LongStay
	}
	if fl.OwnerArriving != next.OwnerArriving {
		fields[FieldOwnerArriving] = next.OwnerArriving
	}
	return fields
}
