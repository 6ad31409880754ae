package localcheck

import (
	"fmt"
	"strings"
	"time"

	"github.com/statetreelib/go-statetree/internal/fn"
	"github.com/statetreelib/go-statetree/internal/status"
)

var stateMarkers = map[status.State]string{
	status.OK:      "",
	status.Warn:    "(!)",
	status.Crit:    "(!!)",
	status.Unknown: "(?)",
}

var worstOf = fn.Worst{Count: 1, RestrictState: status.Crit}

// Check evaluates one parsed result into its effective state and summary.
// For "P" results the state is computed from the perfdata levels; the
// summary then carries one fragment per metric, marked with (!) / (!!)
// where a level is violated.
func Check(result Result) (status.State, string) {
	summary := result.Text
	if newline := strings.IndexByte(summary, '\n'); newline >= 0 {
		summary = summary[:newline]
	}

	state := result.State
	if result.ApplyLevels {
		states := []status.State{status.OK}
		var fragments []string
		for _, perf := range result.Perfdata {
			metricState, fragment := checkLevels(perf)
			states = append(states, metricState)
			fragments = append(fragments, fragment)
		}
		state = worstOf.Aggregate(states)
		if len(fragments) > 0 {
			if summary != "" {
				summary += ", "
			}
			summary += strings.Join(fragments, ", ")
		}
	}

	if result.Cached != nil {
		summary += fmt.Sprintf(
			", Cache generated %s ago, cache interval: %s, elapsed cache lifespan: %.1f%%",
			result.Cached.Age.Round(time.Second),
			result.Cached.Interval,
			result.Cached.LifespanPercent,
		)
	}
	return state, summary
}

// checkLevels grades one metric against its upper and lower levels
func checkLevels(perf Perfdata) (status.State, string) {
	state := status.OK
	fragment := fmt.Sprintf("%s: %g", perf.Name, perf.Value)

	if levels := perf.LevelsUpper; levels != nil {
		switch {
		case perf.Value >= levels.Crit:
			state = status.Crit
			fragment += fmt.Sprintf(" (warn/crit at %g/%g)", levels.Warn, levels.Crit)
		case perf.Value >= levels.Warn:
			state = status.Warn
			fragment += fmt.Sprintf(" (warn/crit at %g/%g)", levels.Warn, levels.Crit)
		}
	}
	if levels := perf.LevelsLower; levels != nil && state != status.Crit {
		switch {
		case perf.Value < levels.Crit:
			state = status.Crit
			fragment += fmt.Sprintf(" (warn/crit below %g/%g)", levels.Warn, levels.Crit)
		case perf.Value < levels.Warn && state == status.OK:
			state = status.Warn
			fragment += fmt.Sprintf(" (warn/crit below %g/%g)", levels.Warn, levels.Crit)
		}
	}

	if marker := stateMarkers[state]; marker != "" {
		fragment += " " + marker
	}
	return state, fragment
}

// Entities folds a parsed section into per-service snapshot entities, so
// local-check output can seed a status snapshot.
func (s Section) Entities() map[string]status.Entity {
	entities := make(map[string]status.Entity, len(s.Data))
	for item, result := range s.Data {
		state, summary := Check(result)
		entities[item] = status.Entity{
			HasBeenChecked:  true,
			State:           state,
			HardState:       state,
			InServicePeriod: true,
			Output:          summary,
		}
	}
	return entities
}
