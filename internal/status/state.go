package status

import "fmt"

// State is a monitoring state code. Services use the native 4-state space
// (OK/WARN/CRIT/UNKNOWN); aggregated results additionally use Pending for
// entities that exist but have never been checked.
type State int

const (
	// Pending marks an entity that has never been checked
	Pending State = -1
	// OK is the healthy state
	OK State = 0
	// Warn is the warning state
	Warn State = 1
	// Crit is the critical state
	Crit State = 2
	// Unknown is the unknown state
	Unknown State = 3
)

// Undefined marks an entity row that carries no usable state at all. This
// happens when a data source reports a host/service row without state
// columns; such an entity is treated as missing by the computation.
const Undefined State = -2

// Host-level states as reported by the monitoring core. They live in a
// different space than service states and get mapped into the 4-state space
// before aggregation.
const (
	// HostUp means the host answered
	HostUp State = 0
	// HostDown means the host did not answer
	HostDown State = 1
	// HostUnreachable means the path to the host is broken
	HostUnreachable State = 2
)

var serviceStateNames = map[State]string{
	Pending: "PENDING",
	OK:      "OK",
	Warn:    "WARN",
	Crit:    "CRIT",
	Unknown: "UNKNOWN",
}

var hostStateNames = map[State]string{
	Pending:         "PENDING",
	HostUp:          "UP",
	HostDown:        "DOWN",
	HostUnreachable: "UNREACHABLE",
}

// ServiceStateName renders a service state code for humans
func ServiceStateName(s State) string {
	if name, ok := serviceStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// HostStateName renders a host state code for humans
func HostStateName(s State) string {
	if name, ok := hostStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// MapHostState maps a host state into the 4-state aggregation space. The
// mapping is total: anything outside the known host states becomes Unknown.
func MapHostState(s State) State {
	switch s {
	case HostUp:
		return OK
	case HostDown:
		return Crit
	case HostUnreachable:
		return Unknown
	default:
		return Unknown
	}
}
