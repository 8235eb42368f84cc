package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsByUID(res DetectResult) map[string]Classification {
	out := make(map[string]Classification)
	for _, det := range res.Detections {
		if det.Event == nil {
			out["displaced:"+det.Existing.ID] = det.Kind
			continue
		}
		out[det.Event.ExternalUID] = det.Kind
	}
	return out
}

// TestDetector_OrderIndependence tests that identifier matches win over slot
// matches however the events are ordered.
func TestDetector_OrderIndependence(t *testing.T) {
	active := func() []Record {
		return []Record{testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")}
	}
	moved := testEvent("uid-1", "2025-07-21", "2025-07-25")
	reminted := testEvent("uid-9", "2025-07-20", "2025-07-25")

	forward := NewDetector(active()).Detect([]Event{reminted, moved})
	backward := NewDetector(active()).Detect([]Event{moved, reminted})

	want := map[string]Classification{
		"uid-1": SameIdentifierModified,
		"uid-9": GenuinelyNew,
	}
	assert.Equal(t, want, kindsByUID(forward))
	assert.Equal(t, want, kindsByUID(backward))
}

func TestDetector_Classification(t *testing.T) {
	tests := []struct {
		name       string
		event      Event
		want       Classification
		unobserved int
	}{
		{
			name:  "Same identifier and slot",
			event: testEvent("uid-1", "2025-07-20", "2025-07-25"),
			want:  ExactActiveDuplicate,
		},
		{
			name:  "Same identifier with new dates",
			event: testEvent("uid-1", "2025-07-20", "2025-07-27"),
			want:  SameIdentifierModified,
		},
		{
			name:  "New identifier on an active slot",
			event: testEvent("uid-2", "2025-07-20", "2025-07-25"),
			want:  IdentifierChanged,
		},
		{
			name:       "New identifier on a free slot",
			event:      testEvent("uid-3", "2025-08-01", "2025-08-05"),
			want:       GenuinelyNew,
			unobserved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector([]Record{testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")})
			res := d.Detect([]Event{tt.event})
			require.Len(t, res.Detections, 1)
			assert.Equal(t, tt.want, res.Detections[0].Kind)
			assert.Len(t, d.Unobserved(res), tt.unobserved)
		})
	}
}

// TestDetector_EntryTypeIsPartOfSlot tests that a block on the dates of a
// reservation does not claim the reservation's slot.
func TestDetector_EntryTypeIsPartOfSlot(t *testing.T) {
	block := testEvent("uid-2", "2025-07-20", "2025-07-25")
	block.EntryType = EntryBlock

	d := NewDetector([]Record{testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")})
	res := d.Detect([]Event{block})

	require.Len(t, res.Detections, 1)
	assert.Equal(t, GenuinelyNew, res.Detections[0].Kind)
	unobserved := d.Unobserved(res)
	require.Len(t, unobserved, 1)
	assert.Equal(t, "R1", unobserved[0].ID)
}

func TestDetector_IgnoresInactiveRecords(t *testing.T) {
	old := testRecord("R0", "uid-1", "2025-07-20", "2025-07-25")
	old.Status = StatusOld

	d := NewDetector([]Record{old})
	res := d.Detect([]Event{testEvent("uid-1", "2025-07-20", "2025-07-25")})

	require.Len(t, res.Detections, 1)
	assert.Equal(t, GenuinelyNew, res.Detections[0].Kind)
	assert.Empty(t, d.Unobserved(res))
}

// TestDetector_SlotDisplaced tests that a second active record on an observed
// slot is reported for retirement and never left as a removal candidate.
func TestDetector_SlotDisplaced(t *testing.T) {
	d := NewDetector([]Record{
		testRecord("R1", "uid-1", "2025-07-20", "2025-07-25"),
		testRecord("R2", "uid-2", "2025-07-20", "2025-07-25"),
		testRecord("R3", "uid-3", "2025-09-01", "2025-09-05"),
	})
	res := d.Detect([]Event{testEvent("uid-2", "2025-07-20", "2025-07-25")})

	assert.Equal(t, map[string]Classification{
		"uid-2":        ExactActiveDuplicate,
		"displaced:R1": SlotDisplaced,
	}, kindsByUID(res))
	assert.Contains(t, res.Consumed, "R1")
	assert.Contains(t, res.Consumed, "R2")

	unobserved := d.Unobserved(res)
	require.Len(t, unobserved, 1)
	assert.Equal(t, "R3", unobserved[0].ID)
}

func TestCollapse(t *testing.T) {
	t.Run("Last event wins per identifier", func(t *testing.T) {
		first := testEvent("uid-1", "2025-07-20", "2025-07-25")
		last := testEvent("uid-1", "2025-07-20", "2025-07-26")

		out, dropped := collapse([]Event{first, last}, nil)
		require.Len(t, out, 1)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, day("2025-07-26"), out[0].Checkout)
	})

	t.Run("Last event wins per slot", func(t *testing.T) {
		out, dropped := collapse([]Event{
			testEvent("uid-1", "2025-07-20", "2025-07-25"),
			testEvent("uid-2", "2025-08-01", "2025-08-05"),
			testEvent("uid-3", "2025-07-20", "2025-07-25"),
		}, nil)
		require.Len(t, out, 2)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, "uid-2", out[0].ExternalUID)
		assert.Equal(t, "uid-3", out[1].ExternalUID)
	})

	t.Run("Anchored event keeps its slot", func(t *testing.T) {
		anchored := func(ev Event) bool { return ev.ExternalUID == "uid-1" }
		out, dropped := collapse([]Event{
			testEvent("uid-1", "2025-07-20", "2025-07-25"),
			testEvent("uid-3", "2025-07-20", "2025-07-25"),
		}, anchored)
		require.Len(t, out, 1)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, "uid-1", out[0].ExternalUID)
	})
}

// TestDetector_FailedSourceHoldsSlot tests that another feed cannot re-key a
// slot while the feed that owns it is failing.
func TestDetector_FailedSourceHoldsSlot(t *testing.T) {
	owned := testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")
	owned.Source = "vrbo"
	other := testEvent("uid-2", "2025-07-20", "2025-07-25")
	other.Source = "airbnb"

	tests := []struct {
		name   string
		failed map[string]bool
		want   Classification
	}{
		{name: "Owner failed", failed: map[string]bool{"vrbo": true}, want: HeldForFailedSource},
		{name: "Other feed failed", failed: map[string]bool{"airbnb": true}, want: IdentifierChanged},
		{name: "Nothing failed", failed: map[string]bool{}, want: IdentifierChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector([]Record{owned}).WithFailedSources(func(source string) bool {
				return tt.failed[source]
			})
			res := d.Detect([]Event{other})
			require.Len(t, res.Detections, 1)
			assert.Equal(t, tt.want, res.Detections[0].Kind)
			assert.Equal(t, "R1", res.Detections[0].Existing.ID)
			assert.Empty(t, d.Unobserved(res))
		})
	}
}

// TestDetector_PrefersMatchingIdentifierOnSlot tests that the event carrying
// the active record's identifier wins its slot over a later event from
// another feed.
func TestDetector_PrefersMatchingIdentifierOnSlot(t *testing.T) {
	d := NewDetector([]Record{testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")})
	other := testEvent("uid-2", "2025-07-20", "2025-07-25")
	other.Source = "feed-b"

	res := d.Detect([]Event{testEvent("uid-1", "2025-07-20", "2025-07-25"), other})

	assert.Equal(t, map[string]Classification{"uid-1": ExactActiveDuplicate}, kindsByUID(res))
	assert.Equal(t, 1, res.DuplicatesIgnored)
}
