package tree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statetreelib/go-statetree/internal/tree"
	"github.com/statetreelib/go-statetree/internal/ttest"
)

func identifierStrings(infos []tree.IdentifierInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.ID.String())
	}
	return out
}

func TestIdentifiersStable(t *testing.T) {
	build := func() *tree.Rule {
		return ttest.WorstRule("r", "Stack",
			tree.NewLeaf("main", "web1", "HTTP"),
			ttest.WorstRule("r-db", "DB", tree.NewLeaf("main", "db1", "Postgres")),
		)
	}

	first := build().Identifiers(tree.Identifier{}, map[string]struct{}{})
	second := build().Identifiers(tree.Identifier{}, map[string]struct{}{})
	require.Equal(t, identifierStrings(first), identifierStrings(second))

	// recomputing on the same tree instance is stable too
	rule := build()
	again := rule.Identifiers(tree.Identifier{}, map[string]struct{}{})
	andAgain := rule.Identifiers(tree.Identifier{}, map[string]struct{}{})
	require.Equal(t, identifierStrings(again), identifierStrings(andAgain))
}

func TestIdentifiersDisambiguateDuplicateNames(t *testing.T) {
	rule := ttest.WorstRule("r", "Stack",
		tree.NewLeaf("main", "web1", "HTTP"),
		tree.NewLeaf("main", "web1", "HTTP"),
		ttest.WorstRule("r-a", "Twin"),
		ttest.WorstRule("r-b", "Twin"),
	)

	infos := rule.Identifiers(tree.Identifier{}, map[string]struct{}{})
	ids := identifierStrings(infos)
	require.Equal(t, []string{
		"1:Stack",
		"1:Stack/1:web1|HTTP",
		"1:Stack/2:web1|HTTP",
		"1:Stack/1:Twin",
		"1:Stack/2:Twin",
	}, ids)

	seen := make(map[string]struct{})
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "identifier %s assigned twice", id)
		seen[id] = struct{}{}
	}
}

func TestIdentifiersCoverEveryNode(t *testing.T) {
	leafHTTP := tree.NewLeaf("main", "web1", "HTTP")
	inner := ttest.WorstRule("r-inner", "Inner", leafHTTP)
	root := ttest.WorstRule("r-root", "Root", inner, tree.NewLeaf("main", "web1", ""))

	infos := root.Identifiers(tree.Identifier{}, map[string]struct{}{})
	require.Len(t, infos, 4)
	require.Same(t, root, infos[0].Node)
	require.Same(t, inner, infos[1].Node)
	require.Same(t, leafHTTP, infos[2].Node)
}
