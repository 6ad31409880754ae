// Package tree implements the compiled aggregation tree: the node variants,
// the recursive status computation, stable node identifiers and the
// post-compile wildcard expansion.
package tree

import (
	"fmt"
	"strings"

	"github.com/statetreelib/go-statetree/internal/status"
)

// NodeKind tags the closed set of compiled node variants
type NodeKind string

const (
	// LeafKind is a node referencing one monitored host or service
	LeafKind NodeKind = "leaf"
	// RuleKind is a composite node folding its children through an
	// aggregation function
	RuleKind NodeKind = "rule"
	// WildcardKind is a pre-compile placeholder that expands into leaves
	WildcardKind NodeKind = "wildcard"
)

// DowntimeState encodes how scheduled downtime escalates into the result
type DowntimeState int

const (
	// DowntimeNone means no contributing entity is in scheduled downtime
	DowntimeNone DowntimeState = 0
	// DowntimeWarn escalates downtime as a warning
	DowntimeWarn DowntimeState = 1
	// DowntimeCrit escalates downtime as critical
	DowntimeCrit DowntimeState = 2
)

// ComputationOptions configure one computation pass over a tree
type ComputationOptions struct {
	// UseHardStates folds hard instead of soft check states
	UseHardStates bool `yaml:"use_hard_states"`
	// EscalateDowntimesAsWarn escalates scheduled downtime to WARN instead
	// of CRIT
	EscalateDowntimesAsWarn bool `yaml:"escalate_downtimes_as_warn"`
	// FreezeAggregations keeps leaves of missing entities in the result as
	// explicit UNKNOWN "not found" entries instead of pruning them
	FreezeAggregations bool `yaml:"freeze_aggregations"`
}

// ComputeResult is the computed status of one node
type ComputeResult struct {
	State           status.State
	DowntimeState   DowntimeState
	Acknowledged    bool
	Output          string
	InServicePeriod bool
	// StateMessages carries the rule's configured per-state messages; empty
	// for leaves
	StateMessages map[status.State]string
}

// ResultBundle is the result of computing one node: the actual result, an
// assumed result when an operator override is in effect somewhere below,
// the children's bundles, and a back reference to the originating node.
// The node reference is for display and lookup only, it implies no
// ownership.
type ResultBundle struct {
	ActualResult  ComputeResult
	AssumedResult *ComputeResult
	NestedResults []*ResultBundle
	Instance      CompiledNode
}

// EffectiveResult returns the assumed result when present, the actual one
// otherwise
func (b *ResultBundle) EffectiveResult() ComputeResult {
	if b.AssumedResult != nil {
		return *b.AssumedResult
	}
	return b.ActualResult
}

// CompiledNode is one node of a compiled aggregation tree. The variant set
// is closed: Leaf, Rule and WildcardExpansion are the only implementations,
// and a compiled tree handed to Compute contains only leaves and rules.
type CompiledNode interface {
	// Kind returns the variant tag
	Kind() NodeKind

	// Compute evaluates the node against one immutable snapshot. A nil
	// bundle means the node is absent from the result (its entities are
	// unknown to the snapshot); that is not an error, the parent prunes
	// the branch. Compute is pure: it never mutates the tree or the
	// snapshot.
	Compute(opts ComputationOptions, sn *status.Snapshot, useAssumed bool) *ResultBundle

	// RequiredElements returns the set of monitored entities the node
	// transitively depends on
	RequiredElements() status.ElementSet

	// ServicesOfHost returns the service names of the given host referenced
	// below this node
	ServicesOfHost(host string) map[string]struct{}

	// CompilePostprocess resolves wildcard placeholders into concrete
	// leaves and returns the node's replacement list. Rules replace their
	// child list with the flattened results and drop their memoized
	// required-element set.
	CompilePostprocess(usedServices map[string]map[string]struct{}, topo TopologyIndex) []CompiledNode

	// Identifiers assigns a stable identifier to this node (and its
	// descendants) below parent, threading the set of identifiers already
	// taken. Recomputing identifiers on a structurally unchanged tree
	// yields the same sequence.
	Identifiers(parent Identifier, used map[string]struct{}) []IdentifierInfo

	// ComparableName is a stable sort key used to order expanded siblings
	ComparableName() string

	// Serialize dumps the node into the structural wire shape
	Serialize() map[string]interface{}
}

// TopologyIndex resolves host names during wildcard expansion. It is only
// consulted while compiling, never during Compute.
type TopologyIndex interface {
	// LookupHost returns the site of the host and its known service names.
	// ok is false for hosts the topology does not know.
	LookupHost(host string) (site string, services []string, ok bool)
}

// Segment is one step of a node identifier: a sequence number and a
// disambiguating name. Sequence numbers increment to keep siblings with
// identical names apart.
type Segment struct {
	Seq  int
	Name string
}

// Identifier is the path from the branch root to a node
type Identifier []Segment

func (id Identifier) String() string {
	parts := make([]string, 0, len(id))
	for _, seg := range id {
		parts = append(parts, fmt.Sprintf("%d:%s", seg.Seq, seg.Name))
	}
	return strings.Join(parts, "/")
}

// child returns a new identifier extending id by one segment
func (id Identifier) child(seq int, name string) Identifier {
	extended := make(Identifier, len(id), len(id)+1)
	copy(extended, id)
	return append(extended, Segment{Seq: seq, Name: name})
}

// IdentifierInfo pairs an assigned identifier with its node
type IdentifierInfo struct {
	ID   Identifier
	Node CompiledNode
}

// claimIdentifier finds the first free sequence number for name below
// parent and registers the resulting identifier in used.
func claimIdentifier(parent Identifier, name string, used map[string]struct{}) Identifier {
	seq := 1
	candidate := parent.child(seq, name)
	for {
		if _, taken := used[candidate.String()]; !taken {
			break
		}
		seq++
		candidate = parent.child(seq, name)
	}
	used[candidate.String()] = struct{}{}
	return candidate
}
