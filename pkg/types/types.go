package types

import "strings"

// Sample is one row of the historical sample log.
type Sample struct {
	// Robot is the upper-cased robot identifier.
	Robot string

	// Hour and Minute locate the sample within the current day.
	// Storage is truncated daily, so there is no date component.
	Hour   int
	Minute int

	// Efficiency is the instantaneous performance ratio (a fraction, not a
	// percentage). Nil when the collector did not report one.
	Efficiency *float64

	// Total is the robot's cumulative running total at this sample.
	Total *float64

	// Seq is the storage insertion sequence. It orders samples that share
	// the same Hour and Minute.
	Seq int64
}

// ValidTime reports whether Hour and Minute fall inside a single day.
func (s Sample) ValidTime() bool {
	return s.Hour >= 0 && s.Hour <= 23 && s.Minute >= 0 && s.Minute <= 59
}

// StatusRecord is one row of the current-status table: the latest known
// state of a single bot running on a robot.
type StatusRecord struct {
	Robot string
	Bot   string

	// LastCollectedAt is the raw HH:MM:SS value as stored. Use
	// ParseTimeOfDay to interpret it.
	LastCollectedAt string

	// Total is the amount mined by this bot so far today.
	Total *float64
}

// MetaRecord maps a robot id to its expected bot count.
type MetaRecord map[string]int

// Column describes one column of a database table.
type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
}

// NormalizeRobot returns the canonical form of a robot id.
func NormalizeRobot(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
