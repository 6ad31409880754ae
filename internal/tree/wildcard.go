package tree

import (
	"sort"

	"github.com/statetreelib/go-statetree/internal/status"
)

// WildcardExpansion is a placeholder node bound to a set of host names. It
// exists only between tree construction and postprocessing: the compile step
// replaces it with one leaf per not-yet-consumed service of every host (and,
// with IncludeHosts, one host-only leaf per host). A compiled tree handed to
// Compute never contains wildcards.
type WildcardExpansion struct {
	HostNames []string
	// IncludeHosts additionally emits a host-only leaf per host
	IncludeHosts bool
}

// NewWildcardExpansion builds a wildcard placeholder
func NewWildcardExpansion(hostNames []string, includeHosts bool) *WildcardExpansion {
	return &WildcardExpansion{HostNames: hostNames, IncludeHosts: includeHosts}
}

// Kind implements CompiledNode
func (w *WildcardExpansion) Kind() NodeKind { return WildcardKind }

// ComparableName implements CompiledNode
func (w *WildcardExpansion) ComparableName() string { return "" }

// RequiredElements implements CompiledNode; a wildcard references nothing
// until it is expanded
func (w *WildcardExpansion) RequiredElements() status.ElementSet {
	return status.ElementSet{}
}

// ServicesOfHost implements CompiledNode
func (w *WildcardExpansion) ServicesOfHost(string) map[string]struct{} {
	return nil
}

// Identifiers implements CompiledNode. Wildcards never survive compilation,
// asking one for identifiers is a programming error.
func (w *WildcardExpansion) Identifiers(Identifier, map[string]struct{}) []IdentifierInfo {
	panic("wildcard expansion left in a compiled tree")
}

// Compute implements CompiledNode. An unexpanded wildcard contributes
// nothing.
func (w *WildcardExpansion) Compute(
	ComputationOptions,
	*status.Snapshot,
	bool,
) *ResultBundle {
	return nil
}

// CompilePostprocess implements CompiledNode: the wildcard is substituted by
// one leaf per remaining service of each host. Services already consumed by
// sibling nodes in the same rule (threaded through usedServices) are
// skipped. Hosts the topology does not know contribute nothing. The leaves
// come out sorted by (host, service) so expansion is deterministic and
// recompiled trees stay comparable.
func (w *WildcardExpansion) CompilePostprocess(
	usedServices map[string]map[string]struct{},
	topo TopologyIndex,
) []CompiledNode {
	var expanded []CompiledNode
	for _, hostName := range w.HostNames {
		site, services, ok := topo.LookupHost(hostName)
		if !ok {
			continue
		}
		used := usedServices[hostName]
		if w.IncludeHosts {
			expanded = append(expanded, NewLeaf(site, hostName, ""))
		}
		for _, service := range services {
			if _, taken := used[service]; taken {
				continue
			}
			expanded = append(expanded, NewLeaf(site, hostName, service))
		}
	}
	sort.Slice(expanded, func(i, j int) bool {
		return expanded[i].ComparableName() < expanded[j].ComparableName()
	})
	return expanded
}

// Serialize implements CompiledNode. Wildcards lack a wire shape since they
// are resolved into leaves during compilation.
func (w *WildcardExpansion) Serialize() map[string]interface{} {
	return map[string]interface{}{}
}
