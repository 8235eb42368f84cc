package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProperty = "P"

var testNow = time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testEvent(uid, checkin, checkout string) Event {
	return Event{
		Source:      "feed-a",
		PropertyID:  testProperty,
		ExternalUID: uid,
		Checkin:     day(checkin),
		Checkout:    day(checkout),
		EntryType:   EntryReservation,
	}
}

func testRecord(id, uid, checkin, checkout string) Record {
	return Record{
		ID:           id,
		CompositeUID: CompositeUID(uid, testProperty),
		PropertyID:   testProperty,
		Checkin:      day(checkin),
		Checkout:     day(checkout),
		EntryType:    EntryReservation,
		Status:       StatusNew,
		Source:       "feed-a",
		LastSeen:     testNow.Add(-time.Hour),
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

type fakeJobs struct {
	active map[string]struct{}
	err    error
	calls  [][]string
}

func (f *fakeJobs) ActiveJobs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

func newTestEngine(jobs JobLookup) *Engine {
	return NewEngine(DefaultConfig(), jobs, nil, WithIDGenerator(sequentialIDs()))
}

func newTestRun(now time.Time) *Run {
	return NewRun("run-test", now, time.UTC)
}

func findRecord(t *testing.T, records []Record, id string) Record {
	t.Helper()
	for _, rec := range records {
		if rec.ID == id {
			return rec
		}
	}
	t.Fatalf("record %s not found", id)
	return Record{}
}

// TestReconcile_IdentifierChangeContinuity tests that a re-minted upstream UID
// on the same slot supersedes the old record instead of removing it.
func TestReconcile_IdentifierChangeContinuity(t *testing.T) {
	active := []Record{testRecord("R1", "uid-1", "2025-07-20", "2025-08-20")}
	events := []Event{testEvent("uid-2", "2025-07-20", "2025-08-20")}

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, active, events)

	require.Len(t, plan.Operations, 2)
	retire := plan.Operations[0]
	assert.Equal(t, OpUpdate, retire.Kind)
	assert.Equal(t, "R1", retire.RecordID)
	assert.Equal(t, string(StatusOld), retire.Fields[FieldStatus])

	create := plan.Operations[1]
	assert.Equal(t, OpCreate, create.Kind)
	require.NotNil(t, create.Record)
	assert.Equal(t, StatusNew, create.Record.Status)
	assert.Equal(t, "R1", create.Record.Supersedes)
	assert.Equal(t, CompositeUID("uid-2", testProperty), create.Record.CompositeUID)

	require.Len(t, plan.Active, 1)
	assert.Equal(t, create.RecordID, plan.Active[0].ID)

	assert.Equal(t, 1, plan.Summary.New)
	assert.Equal(t, 1, plan.Summary.IdentifierChanges)
	assert.Equal(t, 0, plan.Summary.Removed)
	assert.Equal(t, 0, plan.Summary.MissingIncremented)
	for _, op := range plan.Operations {
		assert.NotEqual(t, string(StatusRemoved), op.Fields[FieldStatus])
	}

	assert.Equal(t, StatusNew, active[0].Status, "Caller's records should be left untouched")
}

// TestReconcile_IdentifierChangeWithOtherDifferences tests that an identifier
// change also carrying a different source yields a Modified successor.
func TestReconcile_IdentifierChangeWithOtherDifferences(t *testing.T) {
	active := []Record{testRecord("R1", "uid-1", "2025-07-20", "2025-08-20")}
	ev := testEvent("uid-2", "2025-07-20", "2025-08-20")
	ev.Source = "feed-b"

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, active, []Event{ev})

	require.Len(t, plan.Active, 1)
	assert.Equal(t, StatusModified, plan.Active[0].Status)
	assert.Equal(t, "R1", plan.Active[0].Supersedes)
	assert.Equal(t, 1, plan.Summary.Modified)
	assert.Equal(t, 0, plan.Summary.New)
	assert.Equal(t, 1, plan.Summary.IdentifierChanges)
}

// TestReconcile_SameIdentifierModified tests that new dates under the same UID
// retire the old version and link the successor.
func TestReconcile_SameIdentifierModified(t *testing.T) {
	prev := testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")
	prev.ServiceType = "Deep Clean"
	events := []Event{testEvent("uid-1", "2025-07-20", "2025-07-26")}

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, []Record{prev}, events)

	require.Len(t, plan.Operations, 2)
	assert.Equal(t, "R1", plan.Operations[0].RecordID)
	assert.Equal(t, string(StatusOld), plan.Operations[0].Fields[FieldStatus])

	require.Len(t, plan.Active, 1)
	next := plan.Active[0]
	assert.Equal(t, StatusModified, next.Status)
	assert.Equal(t, "R1", next.Supersedes)
	assert.Equal(t, day("2025-07-26"), next.Checkout)
	assert.Equal(t, "Deep Clean", next.ServiceType, "Service type should carry over")
	assert.Equal(t, 1, plan.Summary.Modified)
	assert.Equal(t, 0, plan.Summary.MissingIncremented)
}

// TestReconcile_ExactDuplicate tests that an unchanged event only refreshes
// the record and fills an empty service type.
func TestReconcile_ExactDuplicate(t *testing.T) {
	prev := testRecord("R1", "uid-1", "2025-07-20", "2025-07-25")
	prev.MissingCount = 1
	since := testNow.Add(-time.Hour)
	prev.MissingSince = &since
	ev := testEvent("uid-1", "2025-07-20", "2025-07-25")
	ev.ServiceType = "Turnover"

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, []Record{prev}, []Event{ev})

	require.Len(t, plan.Operations, 1)
	op := plan.Operations[0]
	assert.Equal(t, OpUpdate, op.Kind)
	assert.Equal(t, Fields{
		FieldLastSeen:     testNow,
		FieldMissingCount: 0,
		FieldMissingSince: nil,
		FieldServiceType:  "Turnover",
	}, op.Fields)

	require.Len(t, plan.Active, 1)
	assert.Equal(t, 0, plan.Active[0].MissingCount)
	assert.Nil(t, plan.Active[0].MissingSince)
	assert.Equal(t, 1, plan.Summary.Unchanged)
}

// TestReconcile_Idempotence tests that replaying an unchanged event stream
// produces no transitions on the second run.
func TestReconcile_Idempotence(t *testing.T) {
	engine := newTestEngine(nil)
	events := []Event{
		testEvent("uid-1", "2025-07-20", "2025-07-25"),
		testEvent("uid-2", "2025-07-25", "2025-07-30"),
		testEvent("uid-3", "2025-08-01", "2025-08-20"),
	}

	first := engine.Reconcile(context.Background(), newTestRun(testNow), testProperty, nil, events)
	require.Len(t, first.Active, 3)
	assert.Equal(t, 3, first.Summary.New)

	later := testNow.Add(30 * time.Minute)
	second := engine.Reconcile(context.Background(), newTestRun(later), testProperty, first.Active, events)

	assert.Equal(t, 0, second.Summary.New)
	assert.Equal(t, 0, second.Summary.Modified)
	assert.Equal(t, 0, second.Summary.Removed)
	assert.Equal(t, 3, second.Summary.Unchanged)
	for _, op := range second.Operations {
		assert.Equal(t, OpUpdate, op.Kind)
		assert.Equal(t, Fields{FieldLastSeen: later}, op.Fields)
	}
	for _, rec := range second.Active {
		assert.Equal(t, 0, rec.MissingCount)
		assert.Equal(t, findRecord(t, first.Active, rec.ID).Flags, rec.Flags)
	}
}

// TestReconcile_SingleActivePerSlot tests that duplicate active records on
// one slot are resolved to a single survivor.
func TestReconcile_SingleActivePerSlot(t *testing.T) {
	active := []Record{
		testRecord("R1", "uid-1", "2025-07-20", "2025-07-25"),
		testRecord("R2", "uid-2", "2025-07-20", "2025-07-25"),
	}
	events := []Event{
		testEvent("uid-1", "2025-07-20", "2025-07-25"),
		testEvent("uid-3", "2025-08-01", "2025-08-05"),
		testEvent("uid-4", "2025-08-01", "2025-08-05"),
	}

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, active, events)

	perSlot := map[Slot]int{}
	for _, rec := range plan.Active {
		require.True(t, rec.Status.IsActive())
		perSlot[rec.Slot()]++
	}
	for slot, n := range perSlot {
		assert.Equal(t, 1, n, "slot %v", slot)
	}
	assert.Len(t, plan.Active, 2)
	assert.Equal(t, 1, plan.Summary.DuplicatesIgnored)
	assert.Equal(t, 1, plan.Summary.IdentifierChanges)
	assert.Equal(t, 0, plan.Summary.Removed)

	assert.Equal(t, "R2", plan.Operations[0].RecordID)
	assert.Equal(t, string(StatusOld), plan.Operations[0].Fields[FieldStatus])
}

// TestReconcile_RemovalRequiresThreeMisses tests the miss clock across runs.
func TestReconcile_RemovalRequiresThreeMisses(t *testing.T) {
	engine := newTestEngine(&fakeJobs{})
	active := []Record{testRecord("R1", "uid-1", "2025-09-01", "2025-09-05")}

	run1 := engine.Reconcile(context.Background(), newTestRun(testNow), testProperty, active, nil)
	require.Len(t, run1.Active, 1)
	assert.Equal(t, 1, run1.Active[0].MissingCount)
	require.NotNil(t, run1.Active[0].MissingSince)
	assert.Equal(t, testNow, *run1.Active[0].MissingSince)
	require.Len(t, run1.Operations, 1)
	assert.Equal(t, Fields{FieldMissingCount: 1, FieldMissingSince: testNow}, run1.Operations[0].Fields)

	run2 := engine.Reconcile(context.Background(), newTestRun(testNow.Add(6*time.Hour)), testProperty, run1.Active, nil)
	require.Len(t, run2.Active, 1)
	assert.Equal(t, 2, run2.Active[0].MissingCount)
	assert.True(t, run2.Active[0].Status.IsActive())
	assert.Equal(t, testNow, *run2.Active[0].MissingSince, "First miss timestamp should be kept")

	t.Run("Kept while grace period runs", func(t *testing.T) {
		early := engine.Reconcile(context.Background(), newTestRun(testNow.Add(7*time.Hour)), testProperty, run2.Active, nil)
		require.Len(t, early.Active, 1)
		assert.Equal(t, 2, early.Active[0].MissingCount)
		assert.Empty(t, early.Operations)
		assert.Equal(t, 0, early.Summary.Removed)
		assert.Equal(t, 0, early.Summary.Protected)
	})

	t.Run("Removed once grace period elapsed", func(t *testing.T) {
		run3 := engine.Reconcile(context.Background(), newTestRun(testNow.Add(13*time.Hour)), testProperty, run2.Active, nil)
		assert.Empty(t, run3.Active)
		assert.Equal(t, 1, run3.Summary.Removed)
		require.Len(t, run3.Operations, 1)
		assert.Equal(t, Fields{
			FieldStatus:       string(StatusRemoved),
			FieldMissingCount: 3,
		}, run3.Operations[0].Fields)
	})
}

// TestReconcile_ReappearanceResetsMissClock tests that a record seen again
// before retirement gets its counter cleared.
func TestReconcile_ReappearanceResetsMissClock(t *testing.T) {
	prev := testRecord("R1", "uid-1", "2025-09-01", "2025-09-05")
	prev.MissingCount = 2
	since := testNow.Add(-24 * time.Hour)
	prev.MissingSince = &since

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty,
		[]Record{prev}, []Event{testEvent("uid-1", "2025-09-01", "2025-09-05")})

	require.Len(t, plan.Active, 1)
	assert.Equal(t, 0, plan.Active[0].MissingCount)
	assert.Nil(t, plan.Active[0].MissingSince)
	assert.Equal(t, testNow, plan.Active[0].LastSeen)
	assert.Equal(t, 0, plan.Summary.Removed)
}

// TestReconcile_Protection tests that protected records never age.
func TestReconcile_Protection(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		jobs   *fakeJobs
	}{
		{
			name:   "Scheduled downstream job",
			record: testRecord("R1", "uid-1", "2025-09-01", "2025-09-05"),
			jobs:   &fakeJobs{active: map[string]struct{}{"R1": {}}},
		},
		{
			name:   "Checked in within the last week",
			record: testRecord("R1", "uid-1", "2025-07-05", "2025-07-15"),
			jobs:   &fakeJobs{},
		},
		{
			name:   "Checks out tomorrow",
			record: testRecord("R1", "uid-1", "2025-06-28", "2025-07-11"),
			jobs:   &fakeJobs{},
		},
		{
			name:   "Job lookup failure",
			record: testRecord("R1", "uid-1", "2025-09-01", "2025-09-05"),
			jobs:   &fakeJobs{err: errors.New("db down")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(tt.jobs)
			active := []Record{tt.record}
			for i := 0; i < 5; i++ {
				now := testNow.Add(time.Duration(i) * 13 * time.Minute)
				plan := engine.Reconcile(context.Background(), newTestRun(now), testProperty, active, nil)
				require.Len(t, plan.Active, 1)
				assert.Equal(t, 0, plan.Active[0].MissingCount)
				assert.Empty(t, plan.Operations)
				assert.Equal(t, 1, plan.Summary.Protected)
				assert.Equal(t, 0, plan.Summary.Removed)
				active = plan.Active
			}
			assert.Len(t, tt.jobs.calls, 5)
			assert.Equal(t, []string{"R1"}, tt.jobs.calls[0])
		})
	}
}

// TestReconcile_FailedFeedDoesNotAge tests that records of a feed that could
// not be read this run keep their miss counter.
func TestReconcile_FailedFeedDoesNotAge(t *testing.T) {
	run := newTestRun(testNow)
	run.MarkSourceFailed("feed-a")
	other := testRecord("R2", "uid-2", "2025-09-10", "2025-09-12")
	other.Source = "feed-b"
	active := []Record{testRecord("R1", "uid-1", "2025-09-01", "2025-09-05"), other}

	plan := newTestEngine(&fakeJobs{}).Reconcile(context.Background(), run, testProperty, active, nil)

	assert.Equal(t, 0, findRecord(t, plan.Active, "R1").MissingCount)
	assert.Equal(t, 1, findRecord(t, plan.Active, "R2").MissingCount)
	assert.Equal(t, 1, plan.Summary.MissingIncremented)
	assert.True(t, run.SourceFailed("feed-a"))
	assert.False(t, run.SourceFailed("feed-b"))
}

// TestReconcile_CrossFeedSlotStaysStable tests that two feeds listing the
// same stay under different UIDs do not re-key the record when one of them
// fails every other run.
func TestReconcile_CrossFeedSlotStaysStable(t *testing.T) {
	airbnb := testEvent("uid-a", "2025-09-01", "2025-09-05")
	airbnb.Source = "airbnb"
	vrbo := testEvent("uid-b", "2025-09-01", "2025-09-05")
	vrbo.Source = "vrbo"

	tests := []struct {
		name   string
		events []Event
	}{
		{name: "Failing feed listed last", events: []Event{airbnb, vrbo}},
		{name: "Failing feed listed first", events: []Event{vrbo, airbnb}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&fakeJobs{})
			var (
				active []Record
				id     string
			)
			for i := 0; i < 6; i++ {
				run := newTestRun(testNow.Add(time.Duration(i) * time.Hour))
				events := tt.events
				if i%2 == 1 {
					run.MarkSourceFailed("vrbo")
					events = []Event{airbnb}
				}

				plan := engine.Reconcile(context.Background(), run, testProperty, active, events)
				require.Len(t, plan.Active, 1, "run %d", i)
				if i == 0 {
					id = plan.Active[0].ID
				} else {
					assert.Equal(t, 0, plan.Summary.IdentifierChanges, "run %d", i)
					assert.Equal(t, 1, plan.Summary.Unchanged, "run %d", i)
				}
				assert.Equal(t, id, plan.Active[0].ID, "run %d", i)
				assert.Equal(t, 0, plan.Summary.Removed)
				active = plan.Active
			}
		})
	}
}

// TestReconcile_MalformedEventsAreSkipped tests that bad events are counted
// and do not stop the rest of the run.
func TestReconcile_MalformedEventsAreSkipped(t *testing.T) {
	inverted := testEvent("uid-2", "2025-07-25", "2025-07-20")
	foreign := testEvent("uid-3", "2025-07-20", "2025-07-25")
	foreign.PropertyID = "Q"
	noUID := testEvent("", "2025-08-01", "2025-08-03")
	events := []Event{testEvent("uid-1", "2025-07-20", "2025-07-25"), inverted, foreign, noUID}

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, nil, events)

	assert.Equal(t, 3, plan.Summary.Errors)
	require.Len(t, plan.Malformed, 3)
	for _, err := range plan.Malformed {
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}
	assert.Equal(t, 1, plan.Summary.New)
	require.Len(t, plan.Active, 1)
	assert.Equal(t, CompositeUID("uid-1", testProperty), plan.Active[0].CompositeUID)
}

// TestReconcile_FlagsOnActiveSet tests that flags are set on creates and
// emitted as diffs on kept records.
func TestReconcile_FlagsOnActiveSet(t *testing.T) {
	kept := testRecord("R1", "uid-1", "2025-07-20", "2025-07-29")
	events := []Event{
		testEvent("uid-1", "2025-07-20", "2025-07-29"),
		testEvent("uid-2", "2025-07-29", "2025-08-02"),
	}

	plan := newTestEngine(nil).Reconcile(context.Background(), newTestRun(testNow), testProperty, []Record{kept}, events)

	require.Len(t, plan.Operations, 2)
	assert.Equal(t, OpCreate, plan.Operations[0].Kind)
	update := plan.Operations[1]
	assert.Equal(t, "R1", update.RecordID)
	assert.Equal(t, Fields{FieldLastSeen: testNow, FieldSameDayTurnover: true}, update.Fields)
	assert.True(t, findRecord(t, plan.Active, "R1").Flags.SameDayTurnover)
}

func TestRun_Today(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	run := NewRun("r", time.Date(2025, 7, 11, 2, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, day("2025-07-10"), run.Today())
}
