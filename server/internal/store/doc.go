// Package store is the read-only Sample Repository over the fleet database.
//
// Repository runs one bounded, parameterised query per call and maps the
// rows into the typed records of pkg/types, so callers never index result
// tuples positionally. Failures are logged with the query label and returned
// wrapped; the caller decides whether to degrade.
//
// Tables (names configurable):
//
//	sample_log    id, robot, hour, minute, efficiency, total
//	robot_status  robot, bot, last_collected_at (HH:MM:SS), total
//	robot_meta    robot, bots
package store
