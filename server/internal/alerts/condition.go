package alerts

import (
	"fmt"
	"strconv"
	"strings"
)

// Fields a condition may reference. All but FieldTier are numeric.
const (
	FieldLiveBots      = "live_bots"
	FieldCapacity      = "capacity"
	FieldCapacityRatio = "capacity_ratio"
	FieldTotal         = "total"
	FieldDeltaIndex    = "delta_index"
	FieldTier          = "tier"
)

var numericFields = map[string]bool{
	FieldLiveBots:      true,
	FieldCapacity:      true,
	FieldCapacityRatio: true,
	FieldTotal:         true,
	FieldDeltaIndex:    true,
}

var tiers = map[string]bool{"healthy": true, "degraded": true, "critical": true}

// condition is a parsed "field operator value" expression.
type condition struct {
	field     string
	op        string
	threshold float64
	tier      string
}

// parseCondition parses a rule condition string.
//
// Supported expressions (field operator value):
//
//	capacity_ratio < 0.4
//	live_bots == 0
//	delta_index < -10
//	total >= 1000
//	capacity > 4
//	tier == critical
func parseCondition(cond string) (condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", cond)
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == FieldTier {
		if op != "==" && op != "!=" {
			return condition{}, fmt.Errorf("condition %q: tier supports == and != only", cond)
		}
		if !tiers[rhs] {
			return condition{}, fmt.Errorf("condition %q: unknown tier %q", cond, rhs)
		}
		return condition{field: field, op: op, tier: rhs}, nil
	}

	if !numericFields[field] {
		return condition{}, fmt.Errorf("condition %q: unknown field %q", cond, field)
	}
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", cond, op)
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: value %q is not a number", cond, rhs)
	}
	return condition{field: field, op: op, threshold: threshold}, nil
}

// eval reports whether c holds for v, and the value that was compared.
// A numeric field the view does not carry never fires.
func (c condition) eval(v RobotView) (bool, float64) {
	if c.field == FieldTier {
		if c.op == "==" {
			return v.Tier == c.tier, 0
		}
		return v.Tier != "" && v.Tier != c.tier, 0
	}
	value, ok := v.Values[c.field]
	if !ok {
		return false, 0
	}
	return compareFloat(value, c.op, c.threshold), value
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
