// Package defs loads aggregation tree definitions from YAML and compiles
// them into computable trees: rule references are resolved, aggregation
// function specs are parsed and wildcards are expanded against a topology
// index. Every configuration problem (unknown rule, unknown function kind,
// reference cycle) surfaces here, before any computation is attempted.
package defs

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/statetreelib/go-statetree/internal/fn"
	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/internal/tree"
)

// Document is the root of a definitions file
type Document struct {
	Packs        []Pack           `yaml:"packs"`
	Aggregations []AggregationDef `yaml:"aggregations"`
}

// Pack groups rule definitions under one id
type Pack struct {
	ID    string    `yaml:"id"`
	Title string    `yaml:"title"`
	Rules []RuleDef `yaml:"rules"`
}

// RuleDef describes one rule: display properties, the aggregation function
// spec and the ordered child references.
type RuleDef struct {
	ID                  string                 `yaml:"id"`
	Title               string                 `yaml:"title"`
	Comment             string                 `yaml:"comment"`
	DocuURL             string                 `yaml:"docu_url"`
	Icon                string                 `yaml:"icon"`
	StateMessages       map[int]string         `yaml:"state_messages"`
	AggregationFunction fn.Spec                `yaml:"aggregation_function"`
	Nodes               []NodeRef              `yaml:"nodes"`
	NodeVisualization   map[string]interface{} `yaml:"node_visualization"`
}

// NodeRef references one child of a rule: another rule by id, a concrete
// host/service leaf, or a wildcard over a host list.
type NodeRef struct {
	Type string `yaml:"type"`
	// Rule is the referenced rule id (type "rule")
	Rule string `yaml:"rule,omitempty"`
	// Site/Host/Service describe a leaf (type "leaf"); an empty site is
	// resolved through the topology index
	Site    string `yaml:"site,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Service string `yaml:"service,omitempty"`
	// Hosts lists the wildcard hosts (type "wildcard")
	Hosts        []string `yaml:"hosts,omitempty"`
	IncludeHosts bool     `yaml:"include_hosts,omitempty"`
}

// AggregationDef describes one aggregation: its branches (by rule id),
// grouping and computation options.
type AggregationDef struct {
	ID                 string                  `yaml:"id"`
	Branches           []string                `yaml:"branches"`
	GroupNames         []string                `yaml:"groups"`
	GroupPaths         [][]string              `yaml:"group_paths"`
	ComputationOptions tree.ComputationOptions `yaml:"computation_options"`
	Visualization      map[string]interface{}  `yaml:"visualization"`
	Frozen             *FrozenRef              `yaml:"frozen,omitempty"`
}

// FrozenRef marks an aggregation definition as frozen from another one
type FrozenRef struct {
	AggregationID string `yaml:"aggregation_id"`
	BranchTitle   string `yaml:"branch_title"`
}

// Parse decodes a definitions document
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	return &doc, nil
}

// Compile resolves a document into compiled aggregations. Wildcards are
// expanded against topo, so the returned trees contain only leaves and
// rules.
func Compile(doc *Document, topo tree.TopologyIndex) ([]*tree.CompiledAggregation, error) {
	index, err := indexRules(doc)
	if err != nil {
		return nil, err
	}

	compiler := &compiler{rules: index, topo: topo}
	aggregations := make([]*tree.CompiledAggregation, 0, len(doc.Aggregations))
	for _, def := range doc.Aggregations {
		aggregation, err := compiler.compileAggregation(def)
		if err != nil {
			return nil, fmt.Errorf("aggregation %q: %w", def.ID, err)
		}
		aggregations = append(aggregations, aggregation)
	}
	return aggregations, nil
}

type ruleEntry struct {
	packID string
	def    RuleDef
}

func indexRules(doc *Document) (map[string]ruleEntry, error) {
	index := make(map[string]ruleEntry)
	for _, pack := range doc.Packs {
		for _, rule := range pack.Rules {
			if _, dup := index[rule.ID]; dup {
				return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
			}
			index[rule.ID] = ruleEntry{packID: pack.ID, def: rule}
		}
	}
	return index, nil
}

type compiler struct {
	rules map[string]ruleEntry
	topo  tree.TopologyIndex
}

func (c *compiler) compileAggregation(
	def AggregationDef,
) (*tree.CompiledAggregation, error) {
	branches := make([]*tree.Rule, 0, len(def.Branches))
	for _, ruleID := range def.Branches {
		branch, err := c.compileRule(ruleID, map[string]struct{}{})
		if err != nil {
			return nil, err
		}
		tree.Postprocess(branch, c.topo)
		branches = append(branches, branch)
	}

	aggregation := &tree.CompiledAggregation{
		ID:                       def.ID,
		Branches:                 branches,
		ComputationOptions:       def.ComputationOptions,
		AggregationVisualization: def.Visualization,
		Groups: tree.Groups{
			Names: def.GroupNames,
			Paths: def.GroupPaths,
		},
	}
	if def.Frozen != nil {
		aggregation.FrozenInfo = &tree.FrozenInfo{
			BasedOnAggregationID: def.Frozen.AggregationID,
			BasedOnBranchTitle:   def.Frozen.BranchTitle,
		}
	}
	return aggregation, nil
}

// compileRule resolves a rule definition and its subtree. visiting carries
// the rule ids on the current resolution path for cycle detection.
func (c *compiler) compileRule(
	ruleID string,
	visiting map[string]struct{},
) (*tree.Rule, error) {
	entry, ok := c.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", ruleID)
	}
	if _, onPath := visiting[ruleID]; onPath {
		return nil, fmt.Errorf("rule %q references itself", ruleID)
	}
	visiting[ruleID] = struct{}{}
	defer delete(visiting, ruleID)

	function, err := entry.def.AggregationFunction.Resolve()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", ruleID, err)
	}

	nodes := make([]tree.CompiledNode, 0, len(entry.def.Nodes))
	for i, ref := range entry.def.Nodes {
		node, err := c.compileNode(ref, visiting)
		if err != nil {
			return nil, fmt.Errorf("rule %q node %d: %w", ruleID, i, err)
		}
		nodes = append(nodes, node)
	}

	messages := make(map[status.State]string, len(entry.def.StateMessages))
	for code, message := range entry.def.StateMessages {
		messages[status.State(code)] = message
	}

	rule := tree.NewRule(
		entry.def.ID,
		entry.packID,
		nodes,
		tree.RuleProperties{
			Title:         entry.def.Title,
			Comment:       entry.def.Comment,
			DocuURL:       entry.def.DocuURL,
			Icon:          entry.def.Icon,
			StateMessages: messages,
		},
		function,
	)
	rule.NodeVisualization = entry.def.NodeVisualization
	return rule, nil
}

func (c *compiler) compileNode(
	ref NodeRef,
	visiting map[string]struct{},
) (tree.CompiledNode, error) {
	switch ref.Type {
	case "rule":
		return c.compileRule(ref.Rule, visiting)
	case "leaf":
		if ref.Host == "" {
			return nil, fmt.Errorf("leaf reference without host")
		}
		site := ref.Site
		if site == "" {
			if resolved, _, ok := c.topo.LookupHost(ref.Host); ok {
				site = resolved
			}
		}
		return tree.NewLeaf(site, ref.Host, ref.Service), nil
	case "wildcard":
		if len(ref.Hosts) == 0 {
			return nil, fmt.Errorf("wildcard reference without hosts")
		}
		return tree.NewWildcardExpansion(ref.Hosts, ref.IncludeHosts), nil
	default:
		return nil, fmt.Errorf("unknown node reference type %q", ref.Type)
	}
}
