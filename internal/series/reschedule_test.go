package series

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
)

// freezeNow pins the package clock for the duration of a test.
func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = orig })
}

func TestReschedule_DeletesOnlyFutureNonCompleted(t *testing.T) {
	db := testDB(t)
	horizon := utc(2025, 3, 7, 0, 0)
	s, _, err := Create(db, weeklyOpts(), horizon, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Freeze "now" between the 2nd and 3rd occurrence, and complete the 1st.
	freezeNow(t, utc(2025, 1, 15, 0, 0))
	var occs []models.JobOccurrence
	if err := db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&occs).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(occs) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(occs))
	}
	if err := db.Model(&occs[0]).Update("status", models.StatusCompleted).Error; err != nil {
		t.Fatalf("complete first: %v", err)
	}

	res, err := Reschedule(db, "t1", s.ID, RescheduleOpts{
		RRule:           "FREQ=WEEKLY;COUNT=2",
		StartDate:       "2025-02-03",
		LocalStartTime:  "10:00:00",
		DurationMinutes: 90,
		Timezone:        "America/New_York",
	}, horizon, 200)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	// Future occurrences on Jan 20 and Jan 27 deleted; Jan 6 (completed) and
	// Jan 13 (past) survive.
	if res.Deleted != 2 {
		t.Errorf("deleted %d occurrences, want 2", res.Deleted)
	}
	if res.Created != 2 {
		t.Errorf("created %d occurrences, want 2", res.Created)
	}

	var after []models.JobOccurrence
	db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&after)
	if len(after) != 4 {
		t.Fatalf("got %d occurrences after reschedule, want 4", len(after))
	}
	if after[0].Status != models.StatusCompleted {
		t.Errorf("completed occurrence disturbed: %+v", after[0])
	}
	if !after[2].StartAt.UTC().Equal(utc(2025, 2, 3, 15, 0)) {
		t.Errorf("new first occurrence = %v, want 15:00Z (10:00 EST)", after[2].StartAt.UTC())
	}
	if got := after[2].EndAt.Sub(after[2].StartAt); got != 90*time.Minute {
		t.Errorf("new duration = %v, want 90m", got)
	}
}

func TestReschedule_InvalidRuleLeavesStateUntouched(t *testing.T) {
	db := testDB(t)
	horizon := utc(2025, 3, 7, 0, 0)
	s, _, err := Create(db, weeklyOpts(), horizon, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := Get(db, "t1", s.ID)

	_, err = Reschedule(db, "t1", s.ID, RescheduleOpts{
		RRule:           "FREQ=BOGUS",
		StartDate:       "2025-02-03",
		LocalStartTime:  "10:00:00",
		DurationMinutes: 60,
		Timezone:        "America/New_York",
	}, horizon, 200)
	if !errors.Is(err, recurrence.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}

	after, _ := Get(db, "t1", s.ID)
	if after.RRule != before.RRule || after.StartDate != before.StartDate {
		t.Errorf("series mutated by failed reschedule: %+v", after)
	}
	var count int64
	db.Model(&models.JobOccurrence{}).Where("series_id = ?", s.ID).Count(&count)
	if count != 4 {
		t.Errorf("occurrence count = %d, want 4", count)
	}
}

func TestCancel_MarksFutureNotCompleted(t *testing.T) {
	db := testDB(t)
	s, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	freezeNow(t, utc(2025, 1, 15, 0, 0))

	var occs []models.JobOccurrence
	db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&occs)
	db.Model(&occs[0]).Update("status", models.StatusCompleted)

	n, err := Cancel(db, "t1", s.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled %d occurrences, want 2", n)
	}

	var after []models.JobOccurrence
	db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&after)
	if len(after) != 4 {
		t.Fatalf("cancel deleted rows: %d left", len(after))
	}
	if after[0].Status != models.StatusCompleted {
		t.Errorf("completed occurrence touched: %q", after[0].Status)
	}
	if after[1].Status != models.StatusScheduled {
		t.Errorf("past occurrence touched: %q", after[1].Status)
	}
	for _, occ := range after[2:] {
		if occ.Status != models.StatusCancelled {
			t.Errorf("future occurrence %v not cancelled: %q", occ.StartAt, occ.Status)
		}
	}

	got, _ := Get(db, "t1", s.ID)
	if got.Active {
		t.Error("series still active after cancel")
	}
}

func TestPropagate_TouchesOnlyFutureScheduled(t *testing.T) {
	db := testDB(t)
	s, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	freezeNow(t, utc(2025, 1, 15, 0, 0))

	var occs []models.JobOccurrence
	db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&occs)
	db.Model(&occs[2]).Update("status", models.StatusInProgress)

	assignee := "tech-42"
	prio := 1
	n, err := Propagate(db, "t1", s.ID, PropagateOpts{AssignedTo: &assignee, Priority: &prio})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	// Only the Jan 27 occurrence is future and still scheduled.
	if n != 1 {
		t.Errorf("propagated to %d occurrences, want 1", n)
	}

	got, _ := Get(db, "t1", s.ID)
	if got.AssignedTo != assignee || got.Priority != prio {
		t.Errorf("series template not updated: %+v", got)
	}

	var after []models.JobOccurrence
	db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&after)
	if after[2].AssignedTo == assignee {
		t.Error("in-progress occurrence was touched by propagation")
	}
	if after[3].AssignedTo != assignee || after[3].Priority != prio {
		t.Errorf("future scheduled occurrence not updated: %+v", after[3])
	}
}

func TestPropagate_NoFields(t *testing.T) {
	db := testDB(t)
	s, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := Propagate(db, "t1", s.ID, PropagateOpts{})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if n != 0 {
		t.Errorf("empty propagate touched %d rows", n)
	}
}
