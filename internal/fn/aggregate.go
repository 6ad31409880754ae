// Package fn implements the aggregation strategies that fold the states of a
// rule's children into a single state.
package fn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/statetreelib/go-statetree/internal/status"
)

// AggregationFunction reduces a sequence of child state codes to one parent
// state code. Implementations must be pure: same input, same output.
type AggregationFunction interface {
	// Kind returns the tag of the strategy (worst, best, count_ok)
	Kind() string
	// Aggregate folds the given states. The input slice is never mutated.
	Aggregate(states []status.State) status.State
	// Spec returns the tagged configuration this function was built from
	Spec() Spec
}

// severity orders states for worst/best folding. UNKNOWN ranks between WARN
// and CRIT: an unknown child is worse than a warning but a confirmed
// critical child always dominates.
func severity(s status.State) int {
	switch s {
	case status.OK:
		return 0
	case status.Pending:
		return 1
	case status.Warn:
		return 2
	case status.Unknown:
		return 3
	case status.Crit:
		return 4
	default:
		return 4
	}
}

// restrict caps a folded state at the configured severity ceiling
func restrict(state, ceiling status.State) status.State {
	if severity(state) > severity(ceiling) {
		return ceiling
	}
	return state
}

func sortedBySeverity(states []status.State, worstFirst bool) []status.State {
	sorted := append(states[:0:0], states...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if worstFirst {
			return severity(sorted[i]) > severity(sorted[j])
		}
		return severity(sorted[i]) < severity(sorted[j])
	})
	return sorted
}

// Worst yields the Count-th most severe child state, capped at RestrictState
type Worst struct {
	Count         int
	RestrictState status.State
}

// Kind returns the strategy tag
func (w Worst) Kind() string { return "worst" }

// Aggregate implements AggregationFunction
func (w Worst) Aggregate(states []status.State) status.State {
	if len(states) == 0 {
		return status.Unknown
	}
	sorted := sortedBySeverity(states, true)
	nth := w.Count
	if nth > len(sorted) {
		nth = len(sorted)
	}
	return restrict(sorted[nth-1], w.RestrictState)
}

// Spec implements AggregationFunction
func (w Worst) Spec() Spec {
	return Spec{Kind: w.Kind(), Count: w.Count, RestrictState: int(w.RestrictState)}
}

// Best yields the Count-th least severe child state, capped at RestrictState
type Best struct {
	Count         int
	RestrictState status.State
}

// Kind returns the strategy tag
func (b Best) Kind() string { return "best" }

// Aggregate implements AggregationFunction
func (b Best) Aggregate(states []status.State) status.State {
	if len(states) == 0 {
		return status.Unknown
	}
	sorted := sortedBySeverity(states, false)
	nth := b.Count
	if nth > len(sorted) {
		nth = len(sorted)
	}
	return restrict(sorted[nth-1], b.RestrictState)
}

// Spec implements AggregationFunction
func (b Best) Spec() Spec {
	return Spec{Kind: b.Kind(), Count: b.Count, RestrictState: int(b.RestrictState)}
}

// Threshold is a count threshold, either absolute or as a percentage of the
// number of children.
type Threshold struct {
	Value   float64
	Percent bool
}

// Met reports whether okCount out of total children satisfies the threshold
func (t Threshold) Met(okCount, total int) bool {
	if t.Percent {
		if total == 0 {
			return false
		}
		return float64(okCount)*100.0/float64(total) >= t.Value
	}
	return float64(okCount) >= t.Value
}

func (t Threshold) String() string {
	if t.Percent {
		return fmt.Sprintf("%g%%", t.Value)
	}
	return fmt.Sprintf("%g", t.Value)
}

// ParseThreshold parses "2" or "50%" into a Threshold
func ParseThreshold(raw string) (Threshold, error) {
	text := strings.TrimSpace(raw)
	percent := strings.HasSuffix(text, "%")
	text = strings.TrimSuffix(text, "%")
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("parse threshold %q: %w", raw, err)
	}
	return Threshold{Value: value, Percent: percent}, nil
}

// CountOK yields OK when at least LevelsOK children are OK, WARN when at
// least LevelsWarn are, and CRIT otherwise.
type CountOK struct {
	LevelsOK   Threshold
	LevelsWarn Threshold
}

// Kind returns the strategy tag
func (c CountOK) Kind() string { return "count_ok" }

// Aggregate implements AggregationFunction
func (c CountOK) Aggregate(states []status.State) status.State {
	okCount := 0
	for _, state := range states {
		if state == status.OK {
			okCount++
		}
	}
	switch {
	case c.LevelsOK.Met(okCount, len(states)):
		return status.OK
	case c.LevelsWarn.Met(okCount, len(states)):
		return status.Warn
	default:
		return status.Crit
	}
}

// Spec implements AggregationFunction
func (c CountOK) Spec() Spec {
	return Spec{
		Kind:       c.Kind(),
		LevelsOK:   c.LevelsOK.String(),
		LevelsWarn: c.LevelsWarn.String(),
	}
}
