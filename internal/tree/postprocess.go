package tree

// Postprocess compiles a branch: every wildcard placeholder below root is
// expanded against the topology index. Services that concrete sibling leaves
// already reference are collected up front and excluded from the expansion,
// so a wildcard only covers the "remaining" services of its hosts.
func Postprocess(root *Rule, topo TopologyIndex) {
	used := make(map[string]map[string]struct{})
	for host := range wildcardHosts(root) {
		used[host] = root.ServicesOfHost(host)
	}
	root.CompilePostprocess(used, topo)
}

// wildcardHosts collects the host names bound to wildcards below node
func wildcardHosts(node CompiledNode) map[string]struct{} {
	hosts := make(map[string]struct{})
	collectWildcardHosts(node, hosts)
	return hosts
}

func collectWildcardHosts(node CompiledNode, hosts map[string]struct{}) {
	switch n := node.(type) {
	case *WildcardExpansion:
		for _, host := range n.HostNames {
			hosts[host] = struct{}{}
		}
	case *Rule:
		for _, child := range n.Nodes {
			collectWildcardHosts(child, hosts)
		}
	case *Leaf:
	}
}
