// Package report holds the pure duration/aggregation engine. It has no
// storage or HTTP dependencies; the service layer runs every incoming entry
// payload through Derive before anything is persisted.
package report

import (
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/timeutil"
)

// Derive computes per-entry durations from their time ranges and returns the
// refined entries together with the report total. Input order is preserved.
//
// An end time earlier than its start yields a negative duration, and that
// negative value is carried into the total untouched. Rejecting misordered
// ranges is a schema concern for the boundary layer, not this engine.
//
// The input slice is not mutated; callers keep their copy.
func Derive(entries []model.ReportEntry) ([]model.ReportEntry, int, error) {
	refined := make([]model.ReportEntry, len(entries))
	total := 0

	for i, entry := range entries {
		start, err := timeutil.MinutesOf(entry.Time.Start)
		if err != nil {
			return nil, 0, err
		}
		end, err := timeutil.MinutesOf(entry.Time.End)
		if err != nil {
			return nil, 0, err
		}

		entry.Duration = end - start
		total += entry.Duration
		refined[i] = entry
	}

	return refined, total, nil
}
