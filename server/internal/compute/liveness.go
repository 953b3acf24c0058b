package compute

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/minerdash/minerdash/pkg/types"
)

// DefaultStaleWindow is how long after its last collection a bot still
// counts as live.
const DefaultStaleWindow = 600 * time.Second

// Classifier decides which status records are live at evaluation time.
type Classifier struct {
	// Window is the inclusive upper bound on elapsed time since collection.
	// Zero means DefaultStaleWindow.
	Window time.Duration

	// Clock supplies "now". Nil means the wall clock.
	Clock clock.Clock

	// Location is the zone in which stored times of day were recorded.
	// Nil means time.Local.
	Location *time.Location
}

// Liveness is the classifier output.
type Liveness struct {
	// PerRobot holds the number of live status records per robot. A robot
	// whose records are all stale is present with 0; a robot whose records
	// are all malformed is absent.
	PerRobot map[string]int

	// Malformed lists robots that had at least one record with an
	// unparseable last_collected_at value. Those records were skipped.
	Malformed []string
}

// Total returns the fleet-wide live count.
func (l Liveness) Total() int {
	n := 0
	for _, c := range l.PerRobot {
		n += c
	}
	return n
}

// Now returns the current time of day as seen by the classifier.
func (c Classifier) Now() types.TimeOfDay {
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return types.TimeOfDayOf(clk.Now().In(loc))
}

// Classify evaluates every record against the current time of day. A record
// is live when 0 < now − last_collected_at ≤ Window. Records collected "in
// the future" or exactly now are not live.
//
// The result depends on the clock: two calls a second apart may differ.
func (c Classifier) Classify(records []types.StatusRecord) Liveness {
	window := c.Window
	if window <= 0 {
		window = DefaultStaleWindow
	}
	now := c.Now()

	out := Liveness{PerRobot: make(map[string]int)}
	seenBad := make(map[string]bool)
	for _, r := range records {
		last, err := types.ParseTimeOfDay(r.LastCollectedAt)
		if err != nil {
			if !seenBad[r.Robot] {
				seenBad[r.Robot] = true
				out.Malformed = append(out.Malformed, r.Robot)
			}
			continue
		}
		elapsed := now.Sub(last)
		if elapsed > 0 && elapsed <= window {
			out.PerRobot[r.Robot]++
		} else if _, ok := out.PerRobot[r.Robot]; !ok {
			out.PerRobot[r.Robot] = 0
		}
	}
	return out
}
