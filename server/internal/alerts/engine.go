package alerts

import (
	"fmt"
	"sort"
)

// Severities, most urgent first.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

var severityRank = map[string]int{SeverityCritical: 0, SeverityWarning: 1, SeverityInfo: 2}

// Rule is one configured alert rule.
type Rule struct {
	Name      string `yaml:"name" json:"name"`
	Condition string `yaml:"condition" json:"condition"`
	// Severity is critical | warning | info (default warning).
	Severity string `yaml:"severity" json:"severity"`
}

// Validate checks that the rule has a name, a parsable condition and a
// known severity.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule with condition %q has no name", r.Condition)
	}
	if _, err := parseCondition(r.Condition); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	if r.Severity != "" {
		if _, ok := severityRank[r.Severity]; !ok {
			return fmt.Errorf("rule %q: unknown severity %q", r.Name, r.Severity)
		}
	}
	return nil
}

// RobotView is the set of values rules are evaluated against for one robot.
// Values only holds the fields that are defined for the robot: a robot with
// no delta index has no FieldDeltaIndex entry.
type RobotView struct {
	Robot  string
	Tier   string
	Values map[string]float64
}

// Alert is one rule firing for one robot.
type Alert struct {
	RuleName  string  `json:"rule_name"`
	Robot     string  `json:"robot"`
	Severity  string  `json:"severity"`
	Condition string  `json:"condition"`
	Value     float64 `json:"value"`
	Message   string  `json:"message"`
}

// Evaluate tests every rule against every view. Rules that fail to parse
// are skipped; config validation rejects them earlier. The result is sorted
// by severity, then rule name, then robot.
func Evaluate(rules []Rule, views []RobotView) []Alert {
	out := make([]Alert, 0)
	for _, rule := range rules {
		cond, err := parseCondition(rule.Condition)
		if err != nil {
			continue
		}
		sev := rule.Severity
		if sev == "" {
			sev = SeverityWarning
		}
		for _, v := range views {
			fires, value := cond.eval(v)
			if !fires {
				continue
			}
			out = append(out, Alert{
				RuleName:  rule.Name,
				Robot:     v.Robot,
				Severity:  sev,
				Condition: rule.Condition,
				Value:     value,
				Message:   fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)", sev, rule.Name, v.Robot, rule.Condition, value),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if a.RuleName != b.RuleName {
			return a.RuleName < b.RuleName
		}
		return a.Robot < b.Robot
	})
	return out
}
