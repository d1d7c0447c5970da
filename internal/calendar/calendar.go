// Package calendar answers tenant calendar range queries by merging
// persisted occurrences with virtual projections of series beyond their
// materialization watermark. It performs no writes.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"github.com/fieldlineapp/fieldline/internal/recurrence"
	"github.com/fieldlineapp/fieldline/internal/tz"
	"gorm.io/gorm"
)

// Event is one calendar entry, real or virtual. Real events map persisted
// occurrence rows; virtual events are computed from a series' rule beyond
// its watermark and do not exist in the store.
type Event struct {
	ID           string    `json:"id"`
	SeriesID     string    `json:"series_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status"`
	Priority     int       `json:"priority"`
	CustomerName string    `json:"customer_name,omitempty"`
	IsVirtual    bool      `json:"is_virtual"`
}

// virtualID derives a deterministic id for a virtual event. The prefix
// keeps it disjoint from real occurrence ids (oc-…).
func virtualID(seriesID string, start time.Time) string {
	return fmt.Sprintf("virtual-%s-%d", seriesID, start.Unix())
}

// Range returns every event for the tenant in [rangeStart, rangeEnd),
// ascending by start. Persisted occurrences come straight from the store;
// each active series whose watermark lies before rangeEnd is additionally
// expanded over its unmaterialized portion of the range. The watermark
// partitions real from virtual per series, so no instant appears twice.
// maxPerSeries caps each series' virtual expansion.
func Range(db *gorm.DB, tenantID string, rangeStart, rangeEnd time.Time, maxPerSeries int) ([]Event, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, fmt.Errorf("calendar: empty range [%v, %v)", rangeStart, rangeEnd)
	}
	rangeStart = rangeStart.UTC()
	rangeEnd = rangeEnd.UTC()

	var occs []models.JobOccurrence
	err := db.Preload("Series").
		Where("tenant_id = ? AND start_at >= ? AND start_at < ?", tenantID, rangeStart, rangeEnd).
		Find(&occs).Error
	if err != nil {
		return nil, fmt.Errorf("calendar: load occurrences: %w", err)
	}

	var candidates []models.JobSeries
	err = db.Where("tenant_id = ? AND active = ? AND (last_generated_until IS NULL OR last_generated_until < ?)",
		tenantID, true, rangeEnd).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("calendar: load series: %w", err)
	}

	names, err := customerNames(db, tenantID, occs, candidates)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(occs))
	for _, occ := range occs {
		events = append(events, realEvent(occ, names))
	}

	for i := range candidates {
		virtual, err := virtualEvents(&candidates[i], rangeStart, rangeEnd, maxPerSeries, names)
		if err != nil {
			return nil, err
		}
		events = append(events, virtual...)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// realEvent maps one persisted occurrence row to its display shape,
// applying per-occurrence overrides over the series template.
func realEvent(occ models.JobOccurrence, names map[string]string) Event {
	ev := Event{
		ID:        occ.ID,
		SeriesID:  occ.SeriesID,
		Start:     occ.StartAt.UTC(),
		End:       occ.EndAt.UTC(),
		Status:    occ.Status,
		Priority:  occ.Priority,
		IsVirtual: false,
	}
	if occ.Series != nil {
		ev.Title = occ.Series.Title
		ev.Description = occ.Series.Description
		ev.CustomerName = names[occ.Series.CustomerID]
	}
	if occ.OverrideTitle != nil {
		ev.Title = *occ.OverrideTitle
	}
	if occ.OverrideDescription != nil {
		ev.Description = *occ.OverrideDescription
	}
	return ev
}

// virtualEvents expands one series over the unmaterialized portion of the
// requested range. The gap is bounded below by the watermark (and the
// anchor) and above by rangeEnd and the series' until_date.
func virtualEvents(s *models.JobSeries, rangeStart, rangeEnd time.Time, max int, names map[string]string) ([]Event, error) {
	anchor, err := tz.Civil(s.StartDate, s.LocalStartTime, s.Timezone)
	if err != nil {
		return nil, err
	}

	gapStart := anchor.UTC()
	if rangeStart.After(gapStart) {
		gapStart = rangeStart
	}
	if s.LastGeneratedUntil != nil && s.LastGeneratedUntil.After(gapStart) {
		gapStart = s.LastGeneratedUntil.UTC()
	}
	gapEnd := rangeEnd
	if s.UntilDate != nil {
		until, err := tz.DayStart(*s.UntilDate, s.Timezone)
		if err != nil {
			return nil, err
		}
		if until.Before(gapEnd) {
			gapEnd = until
		}
	}
	if !gapEnd.After(gapStart) {
		return nil, nil
	}

	starts, _, err := recurrence.Expand(s.RRule, anchor, gapStart, gapEnd, max)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(s.DurationMinutes) * time.Minute
	out := make([]Event, 0, len(starts))
	for _, start := range starts {
		out = append(out, Event{
			ID:           virtualID(s.ID, start),
			SeriesID:     s.ID,
			Title:        s.Title,
			Description:  s.Description,
			Start:        start,
			End:          start.Add(duration),
			Status:       models.StatusScheduled,
			Priority:     s.Priority,
			CustomerName: names[s.CustomerID],
			IsVirtual:    true,
		})
	}
	return out, nil
}

// customerNames resolves the customer ids referenced by the events being
// assembled in one query.
func customerNames(db *gorm.DB, tenantID string, occs []models.JobOccurrence, candidates []models.JobSeries) (map[string]string, error) {
	idSet := map[string]bool{}
	for _, occ := range occs {
		if occ.Series != nil && occ.Series.CustomerID != "" {
			idSet[occ.Series.CustomerID] = true
		}
	}
	for _, s := range candidates {
		if s.CustomerID != "" {
			idSet[s.CustomerID] = true
		}
	}
	if len(idSet) == 0 {
		return map[string]string{}, nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	var customers []models.Customer
	if err := db.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("calendar: load customers: %w", err)
	}
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}
