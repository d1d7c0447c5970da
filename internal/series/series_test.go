package series

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/tz"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Customer{},
		&models.JobSeries{},
		&models.JobOccurrence{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func weeklyOpts() CreateOpts {
	return CreateOpts{
		TenantID:        "t1",
		Title:           "Lawn service",
		RRule:           "FREQ=WEEKLY;INTERVAL=1;COUNT=4",
		StartDate:       "2025-01-06",
		LocalStartTime:  "09:00:00",
		DurationMinutes: 60,
		Timezone:        "America/New_York",
		Priority:        2,
	}
}

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestGenerateIDs(t *testing.T) {
	sid, err := GenerateSeriesID()
	if err != nil {
		t.Fatalf("series id: %v", err)
	}
	if !strings.HasPrefix(sid, "js-") || len(sid) != 9 {
		t.Errorf("series id = %q, want js- prefix and 9 chars", sid)
	}
	oid, err := GenerateOccurrenceID()
	if err != nil {
		t.Fatalf("occurrence id: %v", err)
	}
	if !strings.HasPrefix(oid, "oc-") || len(oid) != 15 {
		t.Errorf("occurrence id = %q, want oc- prefix and 15 chars", oid)
	}
}

func TestCreate_WeeklyScenario(t *testing.T) {
	db := testDB(t)
	horizon := utc(2025, 3, 7, 0, 0) // 60 days out

	s, res, err := Create(db, weeklyOpts(), horizon, 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Created != 4 {
		t.Fatalf("created %d occurrences, want 4", res.Created)
	}
	if res.Truncated {
		t.Error("unexpected truncation")
	}

	var occs []models.JobOccurrence
	if err := db.Where("series_id = ?", s.ID).Order("start_at ASC").Find(&occs).Error; err != nil {
		t.Fatalf("load occurrences: %v", err)
	}
	want := []time.Time{
		utc(2025, 1, 6, 14, 0),
		utc(2025, 1, 13, 14, 0),
		utc(2025, 1, 20, 14, 0),
		utc(2025, 1, 27, 14, 0),
	}
	if len(occs) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(occs), len(want))
	}
	for i, occ := range occs {
		if !occ.StartAt.UTC().Equal(want[i]) {
			t.Errorf("occurrence[%d].StartAt = %v, want %v", i, occ.StartAt.UTC(), want[i])
		}
		if !occ.EndAt.UTC().Equal(want[i].Add(time.Hour)) {
			t.Errorf("occurrence[%d].EndAt = %v, want %v", i, occ.EndAt.UTC(), want[i].Add(time.Hour))
		}
		if occ.Status != models.StatusScheduled {
			t.Errorf("occurrence[%d].Status = %q", i, occ.Status)
		}
		if occ.TenantID != "t1" {
			t.Errorf("occurrence[%d].TenantID = %q", i, occ.TenantID)
		}
	}
}

func TestCreate_OneOff(t *testing.T) {
	db := testDB(t)
	opts := weeklyOpts()
	opts.RRule = recurrence.OneOff

	s, res, err := Create(db, opts, utc(2025, 4, 1, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("one-off created %d occurrences, want 1", res.Created)
	}
	var occ models.JobOccurrence
	if err := db.Where("series_id = ?", s.ID).First(&occ).Error; err != nil {
		t.Fatalf("load occurrence: %v", err)
	}
	if !occ.StartAt.UTC().Equal(utc(2025, 1, 6, 14, 0)) {
		t.Errorf("one-off StartAt = %v", occ.StartAt.UTC())
	}
}

func TestCreate_ValidationLeavesStoreUntouched(t *testing.T) {
	db := testDB(t)
	cases := []struct {
		name   string
		mutate func(*CreateOpts)
		want   error
	}{
		{"bad rule", func(o *CreateOpts) { o.RRule = "FREQ=NOPE" }, recurrence.ErrInvalidRule},
		{"gap time", func(o *CreateOpts) { o.StartDate = "2025-03-09"; o.LocalStartTime = "02:30:00" }, tz.ErrInvalidTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := weeklyOpts()
			tc.mutate(&opts)
			_, _, err := Create(db, opts, utc(2025, 3, 7, 0, 0), 200)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var count int64
	db.Model(&models.JobSeries{}).Count(&count)
	if count != 0 {
		t.Errorf("%d series rows created by failed validation", count)
	}
	db.Model(&models.JobOccurrence{}).Count(&count)
	if count != 0 {
		t.Errorf("%d occurrence rows created by failed validation", count)
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	db := testDB(t)
	opts := weeklyOpts()
	opts.Title = ""
	if _, _, err := Create(db, opts, utc(2025, 3, 7, 0, 0), 200); err == nil {
		t.Error("expected error for missing title")
	}
	opts = weeklyOpts()
	opts.DurationMinutes = 0
	if _, _, err := Create(db, opts, utc(2025, 3, 7, 0, 0), 200); err == nil {
		t.Error("expected error for zero duration")
	}
	opts = weeklyOpts()
	opts.TenantID = ""
	if _, _, err := Create(db, opts, utc(2025, 3, 7, 0, 0), 200); err == nil {
		t.Error("expected error for missing tenant")
	}
}

func TestGet_TenantScoped(t *testing.T) {
	db := testDB(t)
	s, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := Get(db, "t1", s.ID); err != nil {
		t.Errorf("owner tenant cannot read its series: %v", err)
	}
	if _, err := Get(db, "t2", s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read should be ErrNotFound, got %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	a, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	opts := weeklyOpts()
	opts.Title = "Gutter cleaning"
	b, _, err := Create(db, opts, utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Cancel(db, "t1", b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all, err := List(db, "t1", ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list returned %d series, want 2", len(all))
	}

	active, err := List(db, "t1", ListFilters{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("active list = %+v, want only %s", active, a.ID)
	}

	other, err := List(db, "t2", ListFilters{})
	if err != nil {
		t.Fatalf("list other tenant: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("tenant t2 sees %d series", len(other))
	}
}

func TestDelete_Cascades(t *testing.T) {
	db := testDB(t)
	s, _, err := Create(db, weeklyOpts(), utc(2025, 3, 7, 0, 0), 200)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := Delete(db, "t1", s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var count int64
	db.Model(&models.JobOccurrence{}).Where("series_id = ?", s.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d occurrences survived series deletion", count)
	}
	if _, err := Get(db, "t1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
