package series

import (
	"fmt"
	"time"

	"github.com/fieldlineapp/fieldline/internal/models"
	"gorm.io/gorm"
)

// ExtendAllResult summarizes one horizon maintenance sweep.
type ExtendAllResult struct {
	Series    int // active series behind the horizon
	Created   int // occurrence rows created across all of them
	Truncated int // series that hit the per-call cap
	Failed    int // series whose materialization errored
}

// ExtendAll materializes every active series that is behind the horizon,
// across all tenants. One failing series does not stop the sweep; failures
// are counted and the last error is returned alongside the result.
func ExtendAll(db *gorm.DB, horizon time.Time, maxOccurrences int) (ExtendAllResult, error) {
	var list []models.JobSeries
	err := db.Where("active = ? AND (last_generated_until IS NULL OR last_generated_until < ?)",
		true, horizon.UTC()).
		Find(&list).Error
	if err != nil {
		return ExtendAllResult{}, fmt.Errorf("series: list stale series: %w", err)
	}

	var out ExtendAllResult
	var lastErr error
	out.Series = len(list)
	for _, s := range list {
		res, err := Materialize(db, s.TenantID, s.ID, horizon, maxOccurrences)
		if err != nil {
			out.Failed++
			lastErr = err
			continue
		}
		out.Created += res.Created
		if res.Truncated {
			out.Truncated++
		}
	}
	return out, lastErr
}
