package dashboard

import (
	"context"
	"time"

	"github.com/minerdash/minerdash/pkg/types"
	"github.com/minerdash/minerdash/server/internal/compute"
)

// Snapshot is every dashboard view computed from one read of each table.
// Views whose source failed are left empty and the failure is listed in
// Errors.
type Snapshot struct {
	GeneratedAt    string                        `json:"generated_at"` // RFC3339
	Timeline       map[string]compute.Series     `json:"timeline"`
	LiveCount      int                           `json:"live_count"`
	Liveness       map[string]int                `json:"liveness"`
	Capacity       types.MetaRecord              `json:"capacity"`
	Tiers          map[string]compute.Comparison `json:"tiers"`
	Totals         map[string]float64            `json:"totals"`
	Delta          map[string]float64            `json:"delta"`
	LastCollection *types.TimeOfDay              `json:"last_collection"`
	Errors         []string                      `json:"errors,omitempty"`
}

// Snapshot computes every view. It issues one query per repository method
// regardless of how many views read it.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		GeneratedAt: s.clock.Now().UTC().Format(time.RFC3339),
		Timeline:    map[string]compute.Series{},
		Liveness:    map[string]int{},
		Capacity:    types.MetaRecord{},
		Tiers:       map[string]compute.Comparison{},
		Totals:      map[string]float64{},
		Delta:       map[string]float64{},
	}

	if samples, err := s.repo.LogSamples(ctx); err != nil {
		s.log.Error("dashboard: snapshot sample log unavailable", "err", err)
		snap.Errors = append(snap.Errors, "sample log: "+err.Error())
	} else {
		snap.Timeline = compute.Timeline(samples)
	}

	if latest, err := s.repo.LatestTotals(ctx); err != nil {
		s.log.Error("dashboard: snapshot latest totals unavailable", "err", err)
		snap.Errors = append(snap.Errors, "latest totals: "+err.Error())
	} else {
		snap.Delta = compute.DeltaIndex(latest)
	}

	records, statusErr := s.repo.StatusRecords(ctx)
	if statusErr != nil {
		s.log.Error("dashboard: snapshot status unavailable", "err", statusErr)
		snap.Errors = append(snap.Errors, "status: "+statusErr.Error())
	} else {
		l := s.classify(records)
		snap.Liveness = l.PerRobot
		snap.LiveCount = l.Total()
		snap.Totals = compute.Totals(records)
		snap.LastCollection = compute.LastCollection(records)
	}

	if capacity, err := s.repo.Capacity(ctx); err != nil {
		s.log.Error("dashboard: snapshot capacity unavailable", "err", err)
		snap.Errors = append(snap.Errors, "capacity: "+err.Error())
	} else {
		snap.Capacity = capacity
		if statusErr == nil {
			snap.Tiers = compute.Compare(snap.Liveness, capacity, s.Settings().Thresholds)
		}
	}

	return snap
}
