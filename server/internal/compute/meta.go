package compute

// Tier is the health classification of a robot's live/capacity ratio.
type Tier int

// Tiers, from best to worst.
const (
	TierHealthy Tier = iota
	TierDegraded
	TierCritical
)

// String returns the lower-case tier name used in JSON payloads.
func (t Tier) String() string {
	switch t {
	case TierHealthy:
		return "healthy"
	case TierDegraded:
		return "degraded"
	default:
		return "critical"
	}
}

// MarshalText encodes a Tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Default ratio thresholds that map a live/capacity ratio to a tier.
const (
	ThresholdHealthy  = 0.7
	ThresholdDegraded = 0.4
)

// Thresholds are the lower bounds (inclusive) of the healthy and degraded tiers.
type Thresholds struct {
	Healthy  float64
	Degraded float64
}

// DefaultThresholds returns the stock 0.7 / 0.4 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Healthy: ThresholdHealthy, Degraded: ThresholdDegraded}
}

// Classify maps a ratio to a Tier.
func (th Thresholds) Classify(ratio float64) Tier {
	switch {
	case ratio >= th.Healthy:
		return TierHealthy
	case ratio >= th.Degraded:
		return TierDegraded
	default:
		return TierCritical
	}
}

// Comparison is one robot's live-versus-expected result.
type Comparison struct {
	Live     int     `json:"live"`
	Capacity int     `json:"capacity"`
	Ratio    float64 `json:"ratio"`
	Tier     Tier    `json:"tier"`
}

// Compare computes the live/capacity ratio and tier of every robot in live.
//
// Robots missing from capacity (or with a non-positive capacity) use a
// denominator of 1. Robots that only appear in capacity are omitted.
func Compare(live map[string]int, capacity map[string]int, th Thresholds) map[string]Comparison {
	out := make(map[string]Comparison, len(live))
	for robot, n := range live {
		denom := capacity[robot]
		if denom <= 0 {
			denom = 1
		}
		ratio := float64(n) / float64(denom)
		out[robot] = Comparison{
			Live:     n,
			Capacity: capacity[robot],
			Ratio:    ratio,
			Tier:     th.Classify(ratio),
		}
	}
	return out
}
