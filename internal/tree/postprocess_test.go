package tree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/internal/tree"
	"github.com/statetreelib/go-statetree/internal/ttest"
)

var webTopology = ttest.Topology{
	"web1": {Site: "main", Services: []string{"HTTP", "CPU", "Disk"}},
	"web2": {Site: "remote", Services: []string{"HTTP", "Memory"}},
}

func leafKeys(nodes []tree.CompiledNode) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ComparableName())
	}
	return out
}

func TestPostprocessExpandsWildcard(t *testing.T) {
	rule := ttest.WorstRule("r", "Remaining",
		tree.NewWildcardExpansion([]string{"web2", "web1"}, false),
	)
	tree.Postprocess(rule, webTopology)

	require.Equal(t, []string{
		"main:web1:CPU",
		"main:web1:Disk",
		"main:web1:HTTP",
		"remote:web2:HTTP",
		"remote:web2:Memory",
	}, leafKeys(rule.Nodes))
	for _, node := range rule.Nodes {
		require.Equal(t, tree.LeafKind, node.Kind())
	}
}

func TestPostprocessDeterministic(t *testing.T) {
	build := func() *tree.Rule {
		return ttest.WorstRule("r", "Remaining",
			tree.NewWildcardExpansion([]string{"web1", "web2"}, false),
		)
	}
	first := build()
	second := build()
	tree.Postprocess(first, webTopology)
	tree.Postprocess(second, webTopology)
	require.Equal(t, leafKeys(first.Nodes), leafKeys(second.Nodes))
}

func TestPostprocessSkipsUsedServices(t *testing.T) {
	// HTTP is already referenced by a concrete sibling, the wildcard only
	// covers the remaining services
	rule := ttest.WorstRule("r", "Mixed",
		tree.NewLeaf("main", "web1", "HTTP"),
		tree.NewWildcardExpansion([]string{"web1"}, false),
	)
	tree.Postprocess(rule, webTopology)

	require.Equal(t, []string{
		"main:web1:HTTP",
		"main:web1:CPU",
		"main:web1:Disk",
	}, leafKeys(rule.Nodes))
}

func TestPostprocessIncludeHosts(t *testing.T) {
	rule := ttest.WorstRule("r", "Hosts",
		tree.NewWildcardExpansion([]string{"web1"}, true),
	)
	tree.Postprocess(rule, webTopology)

	require.Equal(t, []string{
		"main:web1:",
		"main:web1:CPU",
		"main:web1:Disk",
		"main:web1:HTTP",
	}, leafKeys(rule.Nodes))
}

func TestPostprocessUnknownHostContributesNothing(t *testing.T) {
	rule := ttest.WorstRule("r", "Remaining",
		tree.NewWildcardExpansion([]string{"ghost"}, false),
	)
	tree.Postprocess(rule, webTopology)
	require.Empty(t, rule.Nodes)
}

func TestPostprocessInvalidatesRequiredElements(t *testing.T) {
	rule := ttest.WorstRule("r", "Remaining",
		tree.NewLeaf("main", "web1", "HTTP"),
		tree.NewWildcardExpansion([]string{"web2"}, false),
	)

	// memoize before expansion; the wildcard contributes nothing yet
	before := rule.RequiredElements()
	require.Len(t, before, 1)

	tree.Postprocess(rule, webTopology)

	after := rule.RequiredElements()
	require.Len(t, after, 3)
	require.True(t, after.Contains(status.ElementKey{Site: "remote", Host: "web2", Service: "HTTP"}))
	require.True(t, after.Contains(status.ElementKey{Site: "remote", Host: "web2", Service: "Memory"}))
}

func TestPostprocessNestedWildcards(t *testing.T) {
	inner := ttest.WorstRule("r-inner", "Inner",
		tree.NewWildcardExpansion([]string{"web1"}, false),
	)
	outer := ttest.WorstRule("r-outer", "Outer",
		tree.NewLeaf("main", "web1", "Disk"),
		inner,
	)
	tree.Postprocess(outer, webTopology)

	// the disk service is consumed at the outer level and must not be
	// duplicated inside the inner rule
	require.Equal(t, []string{
		"main:web1:CPU",
		"main:web1:HTTP",
	}, leafKeys(inner.Nodes))
}
