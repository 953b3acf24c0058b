package dashboard

import (
	"context"
	"errors"
	"strings"

	"github.com/minerdash/minerdash/server/internal/alerts"
)

// Alerts evaluates the configured rules against a fresh snapshot. It fails
// when any section of the snapshot could not be read, so a rule never fires
// (or stays quiet) on partial data.
func (s *Service) Alerts(ctx context.Context) ([]alerts.Alert, error) {
	snap := s.Snapshot(ctx)
	if len(snap.Errors) > 0 {
		return nil, errors.New("alerts: " + strings.Join(snap.Errors, "; "))
	}
	return alerts.Evaluate(s.Settings().Rules, RobotViews(snap)), nil
}

// RobotViews flattens a snapshot into one alert view per robot seen in any
// per-robot section.
func RobotViews(snap Snapshot) []alerts.RobotView {
	byRobot := make(map[string]*alerts.RobotView)
	view := func(robot string) *alerts.RobotView {
		v, ok := byRobot[robot]
		if !ok {
			v = &alerts.RobotView{Robot: robot, Values: make(map[string]float64)}
			byRobot[robot] = v
		}
		return v
	}

	for robot, n := range snap.Liveness {
		view(robot).Values[alerts.FieldLiveBots] = float64(n)
	}
	for robot, n := range snap.Capacity {
		view(robot).Values[alerts.FieldCapacity] = float64(n)
	}
	for robot, c := range snap.Tiers {
		v := view(robot)
		v.Tier = c.Tier.String()
		v.Values[alerts.FieldCapacityRatio] = c.Ratio
	}
	for robot, t := range snap.Totals {
		view(robot).Values[alerts.FieldTotal] = t
	}
	for robot, d := range snap.Delta {
		view(robot).Values[alerts.FieldDeltaIndex] = d
	}

	out := make([]alerts.RobotView, 0, len(byRobot))
	for _, v := range byRobot {
		out = append(out, *v)
	}
	return out
}
