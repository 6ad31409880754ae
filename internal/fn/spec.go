package fn

import (
	"fmt"

	"github.com/statetreelib/go-statetree/internal/status"
)

// Spec is the tagged configuration of an aggregation function as it appears
// in tree definitions. It is resolved to a concrete strategy at tree-load
// time; an unknown kind is a configuration error surfaced to the caller
// before any computation is attempted.
type Spec struct {
	Kind string `yaml:"kind"`
	// Count selects the n-th worst/best state (worst/best only; default 1)
	Count int `yaml:"count,omitempty"`
	// RestrictState caps the folded severity (worst/best only; default CRIT)
	RestrictState int `yaml:"restrict_state,omitempty"`
	// LevelsOK / LevelsWarn are count_ok thresholds, absolute ("2") or
	// percentages ("50%")
	LevelsOK   string `yaml:"levels_ok,omitempty"`
	LevelsWarn string `yaml:"levels_warn,omitempty"`
}

// UnknownKindError reports an aggregation-function spec whose kind tag is
// not part of the closed strategy set.
type UnknownKindError struct {
	Given string
}

// Error returns an error message
func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown aggregation function kind %q", e.Given)
}

// KVs returns a data bag map that may be used in structured logging
func (e *UnknownKindError) KVs() map[string]interface{} {
	return map[string]interface{}{"aggregation.function.kind": e.Given}
}

// Resolve turns a Spec into a concrete strategy
func (s Spec) Resolve() (AggregationFunction, error) {
	count := s.Count
	if count <= 0 {
		count = 1
	}
	ceiling := status.State(s.RestrictState)
	if s.RestrictState == 0 {
		ceiling = status.Crit
	}

	switch s.Kind {
	case "worst":
		return Worst{Count: count, RestrictState: ceiling}, nil
	case "best":
		return Best{Count: count, RestrictState: ceiling}, nil
	case "count_ok":
		levelsOK, err := ParseThreshold(orDefault(s.LevelsOK, "2"))
		if err != nil {
			return nil, err
		}
		levelsWarn, err := ParseThreshold(orDefault(s.LevelsWarn, "1"))
		if err != nil {
			return nil, err
		}
		return CountOK{LevelsOK: levelsOK, LevelsWarn: levelsWarn}, nil
	default:
		return nil, &UnknownKindError{Given: s.Kind}
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
