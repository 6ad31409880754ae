package defs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statetreelib/go-statetree/internal/defs"
	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/internal/tree"
	"github.com/statetreelib/go-statetree/internal/ttest"
)

var demoTopology = ttest.Topology{
	"web1": {Site: "main", Services: []string{"HTTP", "CPU"}},
	"db1":  {Site: "main", Services: []string{"Postgres", "Disk"}},
}

const demoDocument = `
packs:
  - id: default
    title: Default
    rules:
      - id: r-web
        title: Website
        state_messages:
          1: website degraded
        aggregation_function:
          kind: worst
        nodes:
          - type: leaf
            site: main
            host: web1
            service: HTTP
          - type: leaf
            host: web1
            service: CPU
      - id: r-db
        title: Database
        aggregation_function:
          kind: worst
        nodes:
          - type: wildcard
            hosts: [db1]
      - id: r-shop
        title: Webshop
        aggregation_function:
          kind: worst
        nodes:
          - type: rule
            rule: r-web
          - type: rule
            rule: r-db
aggregations:
  - id: webshop
    branches: [r-shop]
    groups: [Shops]
    group_paths:
      - [prod, shops]
    computation_options:
      escalate_downtimes_as_warn: true
`

func compileDemo(t *testing.T) *tree.CompiledAggregation {
	t.Helper()
	doc, err := defs.Parse([]byte(demoDocument))
	require.NoError(t, err)
	aggregations, err := defs.Compile(doc, demoTopology)
	require.NoError(t, err)
	require.Len(t, aggregations, 1)
	return aggregations[0]
}

func TestCompileDocument(t *testing.T) {
	aggregation := compileDemo(t)

	require.Equal(t, "webshop", aggregation.ID)
	require.Equal(t, []string{"Shops"}, aggregation.Groups.Names)
	require.Equal(t, [][]string{{"prod", "shops"}}, aggregation.Groups.Paths)
	require.True(t, aggregation.ComputationOptions.EscalateDowntimesAsWarn)
	require.Nil(t, aggregation.FrozenInfo)

	require.Len(t, aggregation.Branches, 1)
	shop := aggregation.Branches[0]
	require.Equal(t, "Webshop", shop.Properties.Title)
	require.Equal(t, "default", shop.PackID)
	require.Len(t, shop.Nodes, 2)

	web := shop.Nodes[0].(*tree.Rule)
	require.Equal(t, "website degraded", web.Properties.StateMessages[status.Warn])
	// the CPU leaf had no explicit site, the topology fills it in
	cpu := web.Nodes[1].(*tree.Leaf)
	require.Equal(t, "main", cpu.SiteID)
}

func TestCompileExpandsWildcards(t *testing.T) {
	aggregation := compileDemo(t)
	db := aggregation.Branches[0].Nodes[1].(*tree.Rule)

	names := make([]string, 0, len(db.Nodes))
	for _, node := range db.Nodes {
		require.Equal(t, tree.LeafKind, node.Kind())
		names = append(names, node.ComparableName())
	}
	require.Equal(t, []string{"main:db1:Disk", "main:db1:Postgres"}, names)
}

func TestCompiledDocumentComputes(t *testing.T) {
	aggregation := compileDemo(t)
	sn := ttest.NewSnapshot().
		Service("main", "web1", "HTTP").
		Service("main", "web1", "CPU", ttest.WithState(status.Warn)).
		Service("main", "db1", "Postgres").
		Service("main", "db1", "Disk").
		Build()

	results := aggregation.ComputeBranches(aggregation.Branches, sn)
	require.Len(t, results, 1)
	require.Equal(t, status.Warn, results[0].ActualResult.State)
}

func TestCompileFrozenReference(t *testing.T) {
	doc, err := defs.Parse([]byte(`
packs:
  - id: default
    rules:
      - id: r
        title: R
        aggregation_function:
          kind: worst
        nodes:
          - type: leaf
            host: web1
aggregations:
  - id: frozen-copy
    branches: [r]
    frozen:
      aggregation_id: webshop
      branch_title: Webshop
`))
	require.NoError(t, err)
	aggregations, err := defs.Compile(doc, demoTopology)
	require.NoError(t, err)
	require.NotNil(t, aggregations[0].FrozenInfo)
	require.Equal(t, "webshop", aggregations[0].FrozenInfo.BasedOnAggregationID)
	require.Equal(t, "Webshop", aggregations[0].FrozenInfo.BasedOnBranchTitle)
}

func TestCompileErrors(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		document string
		wantErr  string
	}{
		{
			desc: "unknown branch rule",
			document: `
aggregations:
  - id: a
    branches: [missing]
`,
			wantErr: `unknown rule "missing"`,
		},
		{
			desc: "duplicate rule id",
			document: `
packs:
  - id: p1
    rules:
      - id: r
        aggregation_function: {kind: worst}
  - id: p2
    rules:
      - id: r
        aggregation_function: {kind: worst}
`,
			wantErr: `duplicate rule id "r"`,
		},
		{
			desc: "reference cycle",
			document: `
packs:
  - id: default
    rules:
      - id: r-a
        aggregation_function: {kind: worst}
        nodes:
          - type: rule
            rule: r-b
      - id: r-b
        aggregation_function: {kind: worst}
        nodes:
          - type: rule
            rule: r-a
aggregations:
  - id: a
    branches: [r-a]
`,
			wantErr: `rule "r-a" references itself`,
		},
		{
			desc: "unknown aggregation function",
			document: `
packs:
  - id: default
    rules:
      - id: r
        aggregation_function: {kind: quorum}
aggregations:
  - id: a
    branches: [r]
`,
			wantErr: "unknown aggregation function",
		},
		{
			desc: "leaf without host",
			document: `
packs:
  - id: default
    rules:
      - id: r
        aggregation_function: {kind: worst}
        nodes:
          - type: leaf
            service: HTTP
aggregations:
  - id: a
    branches: [r]
`,
			wantErr: "leaf reference without host",
		},
		{
			desc: "wildcard without hosts",
			document: `
packs:
  - id: default
    rules:
      - id: r
        aggregation_function: {kind: worst}
        nodes:
          - type: wildcard
aggregations:
  - id: a
    branches: [r]
`,
			wantErr: "wildcard reference without hosts",
		},
		{
			desc: "unknown node reference type",
			document: `
packs:
  - id: default
    rules:
      - id: r
        aggregation_function: {kind: worst}
        nodes:
          - type: group
aggregations:
  - id: a
    branches: [r]
`,
			wantErr: `unknown node reference type "group"`,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			doc, err := defs.Parse([]byte(tc.document))
			require.NoError(t, err)
			_, err = defs.Compile(doc, demoTopology)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := defs.Parse([]byte("packs: ["))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode definitions")
}
