package tree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/statetreelib/go-statetree/internal/status"
)

// Groups are the visualization groups an aggregation is filed under
type Groups struct {
	Names []string
	Paths [][]string
}

// Serialize dumps the groups into the structural wire shape
func (g Groups) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"names": g.Names,
		"paths": g.Paths,
	}
}

// FrozenInfo marks a compiled aggregation as the frozen copy of another one:
// its result tree stays stable even when the source definition changes.
// Freezing is a persistence concern of the caller; inside the computation it
// only shows up through the FreezeAggregations option.
type FrozenInfo struct {
	BasedOnAggregationID string
	BasedOnBranchTitle   string
}

// CompiledAggregation owns the top-level rule branches of one aggregation
// together with the options and metadata of its computation.
type CompiledAggregation struct {
	ID                       string
	Branches                 []*Rule
	ComputationOptions       ComputationOptions
	AggregationVisualization map[string]interface{}
	Groups                   Groups
	FrozenInfo               *FrozenInfo
}

// ComputeBranches evaluates the given branches against one snapshot.
// Branches whose compute prunes entirely are skipped. The expensive assumed
// pass runs only for branches whose required elements intersect the
// currently overridden entities.
func (a *CompiledAggregation) ComputeBranches(
	branches []*Rule,
	sn *status.Snapshot,
) []*ResultBundle {
	assumedKeys := sn.AssumedKeys()
	results := make([]*ResultBundle, 0, len(branches))
	for _, branch := range branches {
		useAssumed := assumedKeys.Intersects(branch.RequiredElements())
		if result := branch.Compute(a.ComputationOptions, sn, useAssumed); result != nil {
			results = append(results, result)
		}
	}
	return results
}

// ComputeBranchesParallel evaluates independent branches concurrently.
// Computation is pure relative to the snapshot, and branches share no nodes,
// so no locking is needed as long as the snapshot is not mutated during the
// pass. Result order follows branch order.
func (a *CompiledAggregation) ComputeBranchesParallel(
	branches []*Rule,
	sn *status.Snapshot,
) []*ResultBundle {
	assumedKeys := sn.AssumedKeys()
	slots := make([]*ResultBundle, len(branches))
	var wg sync.WaitGroup
	for i, branch := range branches {
		wg.Add(1)
		go func(i int, branch *Rule) {
			defer wg.Done()
			useAssumed := assumedKeys.Intersects(branch.RequiredElements())
			slots[i] = branch.Compute(a.ComputationOptions, sn, useAssumed)
		}(i, branch)
	}
	wg.Wait()

	results := make([]*ResultBundle, 0, len(branches))
	for _, result := range slots {
		if result != nil {
			results = append(results, result)
		}
	}
	return results
}

// AssignIdentifiers computes the stable identifiers of every node in every
// branch. The used-ID set is threaded across branches, so identifiers are
// unique within the whole aggregation.
func (a *CompiledAggregation) AssignIdentifiers() []IdentifierInfo {
	used := make(map[string]struct{})
	var infos []IdentifierInfo
	for _, branch := range a.Branches {
		infos = append(infos, branch.Identifiers(Identifier{}, used)...)
	}
	return infos
}

// LegacyResult converts a computed branch bundle into the legacy response
// shape consumed by the presentation layer.
func (a *CompiledAggregation) LegacyResult(bundle *ResultBundle) map[string]interface{} {
	branch, ok := bundle.Instance.(*Rule)
	if !ok {
		panic(fmt.Sprintf("branch bundle rooted in non-rule node %T", bundle.Instance))
	}

	effective := bundle.EffectiveResult()
	response := map[string]interface{}{
		"aggr_tree":            a.renderTree(branch),
		"aggr_treestate":       a.renderTreeState(bundle, true),
		"aggr_state":           renderState(&bundle.ActualResult),
		"aggr_assumed_state":   renderState(bundle.AssumedResult),
		"aggr_effective_state": renderState(&effective),
		"aggr_id":              branch.Properties.Title,
		"aggr_name":            branch.Properties.Title,
		"aggr_output":          bundle.ActualResult.Output,
		"aggr_hosts":           branch.RequiredHosts(),
		"aggr_type":            "multi",
	}
	response["tree"] = response["aggr_tree"]
	return response
}

// renderTreeState walks the bundle depth-first into the legacy 4-slot shape:
// actual summary, assumed summary (or nil), the node's own descriptive
// record, and the rendered children (omitted for leaves).
func (a *CompiledAggregation) renderTreeState(
	bundle *ResultBundle,
	isTopLevel bool,
) []interface{} {
	state := []interface{}{
		renderState(&bundle.ActualResult),
		renderState(bundle.AssumedResult),
	}
	if isTopLevel {
		state = append(state, a.renderTree(bundle.Instance.(*Rule)))
	} else {
		state = append(state, a.renderNode(bundle.Instance))
	}
	if len(bundle.NestedResults) > 0 {
		nested := make([]interface{}, 0, len(bundle.NestedResults))
		for _, child := range bundle.NestedResults {
			nested = append(nested, a.renderTreeState(child, false))
		}
		state = append(state, nested)
	}
	return state
}

// renderTree renders a branch root enriched with aggregation-level metadata
func (a *CompiledAggregation) renderTree(branch *Rule) map[string]interface{} {
	groupTree := append([]string{}, a.Groups.Names...)
	for _, path := range a.Groups.Paths {
		groupTree = append(groupTree, strings.Join(path, "/"))
	}
	response := a.renderNode(branch)
	response["aggr_group_tree"] = groupTree
	response["aggr_type"] = "multi"
	response["aggregation_id"] = a.ID
	response["downtime_aggr_warn"] = a.ComputationOptions.EscalateDowntimesAsWarn
	response["use_hard_states"] = a.ComputationOptions.UseHardStates
	response["node_visualization"] = a.AggregationVisualization
	return response
}

// renderNode renders one node's descriptive record. The variant set is
// closed at compile time; any other type reaching this point is a
// programming error, not a recoverable condition.
func (a *CompiledAggregation) renderNode(node CompiledNode) map[string]interface{} {
	switch n := node.(type) {
	case *Leaf:
		result := map[string]interface{}{
			"type":     1,
			"host":     [2]string{n.SiteID, n.HostName},
			"reqhosts": n.RequiredHosts(),
			"title":    n.HostName,
		}
		if n.ServiceDescription != "" {
			result["service"] = n.ServiceDescription
			result["title"] = fmt.Sprintf("%s - %s", n.HostName, n.ServiceDescription)
		}
		return result
	case *Rule:
		nodes := make([]map[string]interface{}, 0, len(n.Nodes))
		for _, child := range n.Nodes {
			nodes = append(nodes, a.renderNode(child))
		}
		result := map[string]interface{}{
			"type":              2,
			"title":             n.Properties.Title,
			"docu_url":          n.Properties.DocuURL,
			"rule_id":           n.ID,
			"reqhosts":          n.RequiredHosts(),
			"nodes":             nodes,
			"rule_layout_style": n.NodeVisualization,
		}
		if n.Properties.Icon != "" {
			result["icon"] = n.Properties.Icon
		}
		return result
	default:
		panic(fmt.Sprintf("unknown node type %T", node))
	}
}

// renderState summarizes one compute result; nil in, nil out
func renderState(result *ComputeResult) map[string]interface{} {
	if result == nil {
		return nil
	}
	return map[string]interface{}{
		"state":             int(result.State),
		"acknowledged":      result.Acknowledged,
		"in_downtime":       result.DowntimeState > DowntimeNone,
		"in_service_period": result.InServicePeriod,
		"output":            result.Output,
	}
}

// Serialize dumps the aggregation into the structural wire shape, suitable
// for persisting frozen aggregations.
func (a *CompiledAggregation) Serialize() map[string]interface{} {
	branches := make([]map[string]interface{}, 0, len(a.Branches))
	for _, branch := range a.Branches {
		branches = append(branches, branch.Serialize())
	}
	return map[string]interface{}{
		"id":                        a.ID,
		"branches":                  branches,
		"aggregation_visualization": a.AggregationVisualization,
		"computation_options": map[string]interface{}{
			"use_hard_states":            a.ComputationOptions.UseHardStates,
			"escalate_downtimes_as_warn": a.ComputationOptions.EscalateDowntimesAsWarn,
			"freeze_aggregations":        a.ComputationOptions.FreezeAggregations,
		},
		"groups": a.Groups.Serialize(),
	}
}

func (a *CompiledAggregation) String() string {
	return fmt.Sprintf("Aggregation: %s, NumBranches: %d", a.ID, len(a.Branches))
}
