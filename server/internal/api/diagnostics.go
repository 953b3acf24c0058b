package api

import (
	"fmt"

	"github.com/minerdash/minerdash/server/internal/compute"
)

// DiagnosticHint is one human-readable observation about a robot's tier.
// The dashboard shows these next to the tier colour.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "info" | "warning" | "critical"
	Level string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// computeDiagnostics derives hints from one comparison, critical first.
func computeDiagnostics(c compute.Comparison) []DiagnosticHint {
	hints := make([]DiagnosticHint, 0, 2)

	if c.Live == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "no_live_bots",
			Level: "critical",
			Title: "No bots reporting",
			Detail: "None of this robot's bots reported within the staleness window. " +
				"Check that the collectors are running.",
		})
	} else if c.Tier == compute.TierCritical || c.Tier == compute.TierDegraded {
		level := "warning"
		if c.Tier == compute.TierCritical {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "below_capacity",
			Level: level,
			Title: "Bots missing",
			Detail: fmt.Sprintf("%d of %d expected bots are live (%.0f%%).",
				c.Live, c.Capacity, c.Ratio*100),
		})
	}

	if c.Capacity <= 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "no_capacity",
			Level: "info",
			Title: "Capacity not configured",
			Detail: "The meta table has no expected bot count for this robot, " +
				"so the ratio uses a denominator of 1.",
		})
	} else if c.Live > c.Capacity {
		hints = append(hints, DiagnosticHint{
			Key:   "over_capacity",
			Level: "info",
			Title: "More bots than expected",
			Detail: fmt.Sprintf("%d bots are live but the meta table expects %d. "+
				"The meta table may be out of date.", c.Live, c.Capacity),
		})
	}
	return hints
}
