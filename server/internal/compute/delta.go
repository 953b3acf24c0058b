package compute

import (
	"sort"

	"github.com/minerdash/minerdash/pkg/types"
)

// DeltaIndex returns, per robot, the percent change between its two most
// recent cumulative totals:
//
//	index = (latest − previous) / latest * 100
//
// Recency is ordered by (Hour, Minute) and then by Seq, so of two samples
// taken in the same minute the later-inserted one is the more recent.
//
// A robot is left out when it has fewer than two samples, when either of the
// two totals is missing, or when the latest total is zero.
func DeltaIndex(samples []types.Sample) map[string]float64 {
	byRobot := make(map[string][]types.Sample)
	for _, s := range samples {
		if !s.ValidTime() {
			continue
		}
		byRobot[s.Robot] = append(byRobot[s.Robot], s)
	}

	out := make(map[string]float64, len(byRobot))
	for robot, ss := range byRobot {
		if len(ss) < 2 {
			continue
		}
		sort.Slice(ss, func(i, j int) bool { return moreRecent(ss[i], ss[j]) })

		latest, previous := ss[0].Total, ss[1].Total
		if latest == nil || previous == nil || *latest == 0 {
			continue
		}
		out[robot] = (*latest - *previous) / *latest * 100
	}
	return out
}

// moreRecent reports whether a was collected after b.
func moreRecent(a, b types.Sample) bool {
	if a.Hour != b.Hour {
		return a.Hour > b.Hour
	}
	if a.Minute != b.Minute {
		return a.Minute > b.Minute
	}
	return a.Seq > b.Seq
}
