// Package ttest offers builders for status snapshots, topology indexes and
// small aggregation trees used across the test suites.
package ttest

import (
	"github.com/statetreelib/go-statetree/internal/fn"
	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/internal/tree"
)

// EntityOpt customizes one entity of a snapshot under construction
type EntityOpt func(*status.Entity)

// WithState sets soft and hard state alike
func WithState(s status.State) EntityOpt {
	return func(e *status.Entity) {
		e.State = s
		e.HardState = s
	}
}

// WithHardState sets only the hard state
func WithHardState(s status.State) EntityOpt {
	return func(e *status.Entity) { e.HardState = s }
}

// NotChecked marks the entity as never checked
func NotChecked() EntityOpt {
	return func(e *status.Entity) { e.HasBeenChecked = false }
}

// InDowntime puts the entity into scheduled downtime
func InDowntime() EntityOpt {
	return func(e *status.Entity) { e.ScheduledDowntimeDepth = 1 }
}

// Acknowledged marks the entity's problem as acknowledged
func Acknowledged() EntityOpt {
	return func(e *status.Entity) { e.Acknowledged = true }
}

// OutOfServicePeriod takes the entity out of its service period
func OutOfServicePeriod() EntityOpt {
	return func(e *status.Entity) { e.InServicePeriod = false }
}

// WithOutput sets the plugin output text
func WithOutput(text string) EntityOpt {
	return func(e *status.Entity) { e.Output = text }
}

// Undefined clears the state columns, making the row unusable
func Undefined() EntityOpt {
	return func(e *status.Entity) {
		e.State = status.Undefined
		e.HardState = status.Undefined
	}
}

func newEntity(opts ...EntityOpt) status.Entity {
	entity := status.Entity{
		HasBeenChecked:  true,
		State:           status.OK,
		HardState:       status.OK,
		InServicePeriod: true,
	}
	for _, opt := range opts {
		opt(&entity)
	}
	return entity
}

// SnapshotBuilder assembles an immutable status snapshot for tests
type SnapshotBuilder struct {
	snapshot *status.Snapshot
}

// NewSnapshot starts an empty snapshot
func NewSnapshot() *SnapshotBuilder {
	return &SnapshotBuilder{
		snapshot: &status.Snapshot{
			Hosts:         make(map[status.HostSpec]status.HostStatus),
			AssumedStates: make(map[status.ElementKey]status.State),
		},
	}
}

// Host adds a host entity. Host states use the host state space (UP/DOWN/
// UNREACHABLE).
func (b *SnapshotBuilder) Host(site, host string, opts ...EntityOpt) *SnapshotBuilder {
	spec := status.HostSpec{Site: site, Host: host}
	existing, ok := b.snapshot.Hosts[spec]
	if !ok {
		existing = status.HostStatus{Services: make(map[string]status.Entity)}
	}
	existing.Entity = newEntity(opts...)
	b.snapshot.Hosts[spec] = existing
	return b
}

// Service adds a service entity; the host is created as UP if missing
func (b *SnapshotBuilder) Service(site, host, service string, opts ...EntityOpt) *SnapshotBuilder {
	spec := status.HostSpec{Site: site, Host: host}
	if _, ok := b.snapshot.Hosts[spec]; !ok {
		b.Host(site, host)
	}
	b.snapshot.Hosts[spec].Services[service] = newEntity(opts...)
	return b
}

// Assume sets an operator override for one element
func (b *SnapshotBuilder) Assume(key status.ElementKey, state status.State) *SnapshotBuilder {
	b.snapshot.AssumedStates[key] = state
	return b
}

// Build returns the snapshot
func (b *SnapshotBuilder) Build() *status.Snapshot {
	return b.snapshot
}

// Topology is an in-memory topology index
type Topology map[string]TopologyHost

// TopologyHost is one host entry of a Topology
type TopologyHost struct {
	Site     string
	Services []string
}

// LookupHost implements tree.TopologyIndex
func (t Topology) LookupHost(host string) (string, []string, bool) {
	entry, ok := t[host]
	return entry.Site, entry.Services, ok
}

// WorstRule builds a rule folding through worst-of-1 with sensible defaults
func WorstRule(id, title string, nodes ...tree.CompiledNode) *tree.Rule {
	return tree.NewRule(
		id,
		"default",
		nodes,
		tree.RuleProperties{Title: title, StateMessages: map[status.State]string{}},
		fn.Worst{Count: 1, RestrictState: status.Crit},
	)
}
