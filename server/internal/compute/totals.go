package compute

import "github.com/minerdash/minerdash/pkg/types"

// Totals sums the mined total of every status record per robot. Missing
// totals add nothing; robots with no records are absent.
func Totals(records []types.StatusRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range records {
		sum := out[r.Robot]
		if r.Total != nil {
			sum += *r.Total
		}
		out[r.Robot] = sum
	}
	return out
}

// LastCollection returns the latest last_collected_at across all records,
// or nil when no record carries a parsable time.
func LastCollection(records []types.StatusRecord) *types.TimeOfDay {
	var latest *types.TimeOfDay
	for _, r := range records {
		t, err := types.ParseTimeOfDay(r.LastCollectedAt)
		if err != nil {
			continue
		}
		if latest == nil || t > *latest {
			latest = &t
		}
	}
	return latest
}
