package tree

import (
	"fmt"
	"sort"

	"github.com/statetreelib/go-statetree/internal/fn"
	"github.com/statetreelib/go-statetree/internal/status"
)

// RuleProperties are the display properties of a rule node
type RuleProperties struct {
	Title         string
	Comment       string
	DocuURL       string
	Icon          string
	StateMessages map[status.State]string
}

// Serialize dumps the properties into the structural wire shape
func (p RuleProperties) Serialize() map[string]interface{} {
	messages := make(map[string]string, len(p.StateMessages))
	for state, message := range p.StateMessages {
		messages[fmt.Sprintf("%d", int(state))] = message
	}
	return map[string]interface{}{
		"title":          p.Title,
		"comment":        p.Comment,
		"docu_url":       p.DocuURL,
		"icon":           p.Icon,
		"state_messages": messages,
	}
}

// Rule is a composite node: it owns an ordered list of child nodes and folds
// their results through an aggregation function. Children are owned
// exclusively, no node is shared between two parents.
type Rule struct {
	ID         string
	PackID     string
	Nodes      []CompiledNode
	Properties RuleProperties
	Function   fn.AggregationFunction
	// NodeVisualization is opaque layout metadata passed through to renderers
	NodeVisualization map[string]interface{}

	// requiredElements memoizes the union of the children's element sets.
	// It is dropped whenever the child list changes during postprocessing;
	// Compute never writes it concurrently because the memo is filled
	// before computation by the branch orchestration (ComputeBranches).
	requiredElements status.ElementSet
}

// NewRule builds a rule node
func NewRule(
	id string,
	packID string,
	nodes []CompiledNode,
	properties RuleProperties,
	function fn.AggregationFunction,
) *Rule {
	return &Rule{
		ID:         id,
		PackID:     packID,
		Nodes:      nodes,
		Properties: properties,
		Function:   function,
	}
}

// Kind implements CompiledNode
func (r *Rule) Kind() NodeKind { return RuleKind }

// ComparableName implements CompiledNode
func (r *Rule) ComparableName() string { return r.Properties.Title }

// RequiredElements implements CompiledNode. The set is computed lazily and
// memoized; InvalidateRequiredElements drops the memo.
func (r *Rule) RequiredElements() status.ElementSet {
	if r.requiredElements == nil {
		elements := make(status.ElementSet)
		for _, node := range r.Nodes {
			elements.AddAll(node.RequiredElements())
		}
		r.requiredElements = elements
	}
	return r.requiredElements
}

// InvalidateRequiredElements drops the memoized element set. Must be called
// whenever the child list is structurally altered; postprocessing does so.
func (r *Rule) InvalidateRequiredElements() {
	r.requiredElements = nil
}

// RequiredHosts returns the distinct hosts below this rule, sorted
func (r *Rule) RequiredHosts() []status.HostSpec {
	seen := make(map[status.HostSpec]struct{})
	for element := range r.RequiredElements() {
		seen[element.HostSpec()] = struct{}{}
	}
	hosts := make([]status.HostSpec, 0, len(seen))
	for spec := range seen {
		hosts = append(hosts, spec)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Site != hosts[j].Site {
			return hosts[i].Site < hosts[j].Site
		}
		return hosts[i].Host < hosts[j].Host
	})
	return hosts
}

// ServicesOfHost implements CompiledNode
func (r *Rule) ServicesOfHost(host string) map[string]struct{} {
	services := make(map[string]struct{})
	for _, node := range r.Nodes {
		for service := range node.ServicesOfHost(host) {
			services[service] = struct{}{}
		}
	}
	return services
}

// CompilePostprocess implements CompiledNode: children get postprocessed and
// flattened in place, then the memoized element set is dropped since the
// child list may have changed.
func (r *Rule) CompilePostprocess(
	usedServices map[string]map[string]struct{},
	topo TopologyIndex,
) []CompiledNode {
	var nodes []CompiledNode
	for _, node := range r.Nodes {
		nodes = append(nodes, node.CompilePostprocess(usedServices, topo)...)
	}
	r.Nodes = nodes
	r.InvalidateRequiredElements()
	return []CompiledNode{r}
}

// Identifiers implements CompiledNode
func (r *Rule) Identifiers(parent Identifier, used map[string]struct{}) []IdentifierInfo {
	own := claimIdentifier(parent, r.Properties.Title, used)
	infos := []IdentifierInfo{{ID: own, Node: r}}
	for _, node := range r.Nodes {
		infos = append(infos, node.Identifiers(own, used)...)
	}
	return infos
}

// Compute implements CompiledNode. Children that return nil are pruned; a
// rule whose children are all pruned is itself pruned.
func (r *Rule) Compute(
	opts ComputationOptions,
	sn *status.Snapshot,
	useAssumed bool,
) *ResultBundle {
	var bundles []*ResultBundle
	for _, node := range r.Nodes {
		if bundle := node.Compute(opts, sn, useAssumed); bundle != nil {
			bundles = append(bundles, bundle)
		}
	}
	if len(bundles) == 0 {
		return nil
	}

	actualResults := make([]ComputeResult, 0, len(bundles))
	for _, bundle := range bundles {
		actualResults = append(actualResults, bundle.ActualResult)
	}
	actual := r.foldResults(actualResults, opts)

	if !useAssumed {
		return &ResultBundle{ActualResult: actual, NestedResults: bundles, Instance: r}
	}

	assumedResults := make([]ComputeResult, 0, len(bundles))
	for _, bundle := range bundles {
		assumedResults = append(assumedResults, bundle.EffectiveResult())
	}
	assumed := r.foldResults(assumedResults, opts)
	return &ResultBundle{
		ActualResult:  actual,
		AssumedResult: &assumed,
		NestedResults: bundles,
		Instance:      r,
	}
}

// foldResults folds the children's results into the rule's own result. The
// same fold serves the actual and the assumed pass.
func (r *Rule) foldResults(results []ComputeResult, opts ComputationOptions) ComputeResult {
	states := make([]status.State, 0, len(results))
	for _, result := range results {
		states = append(states, result.State)
	}
	state := r.Function.Aggregate(states)

	// Downtime escalation is re-applied at every level: the folded value
	// only decides whether any downtime surfaces, the severity follows this
	// rule's own escalation option.
	downtimeStates := make([]status.State, 0, len(results))
	for _, result := range results {
		downtimeStates = append(downtimeStates, status.State(result.DowntimeState))
	}
	downtimeState := DowntimeNone
	if r.Function.Aggregate(downtimeStates) > 0 {
		downtimeState = DowntimeCrit
		if opts.EscalateDowntimesAsWarn {
			downtimeState = DowntimeWarn
		}
	}

	// A non-OK rule counts as acknowledged iff zeroing out every
	// acknowledged child folds to OK, i.e. every contributor to the bad
	// state is itself acknowledged. The substitution is applied to every
	// aggregation-function kind alike.
	acknowledged := false
	if state != status.OK {
		substituted := make([]status.State, 0, len(results))
		for _, result := range results {
			if result.Acknowledged {
				substituted = append(substituted, status.OK)
			} else {
				substituted = append(substituted, result.State)
			}
		}
		acknowledged = r.Function.Aggregate(substituted) == status.OK
	}

	// Worst-case semantics: any out-of-period child that the strategy would
	// surface as CRIT makes the rule out-of-period.
	periodStates := make([]status.State, 0, len(results))
	for _, result := range results {
		if result.InServicePeriod {
			periodStates = append(periodStates, status.OK)
		} else {
			periodStates = append(periodStates, status.Crit)
		}
	}
	inServicePeriod := r.Function.Aggregate(periodStates) == status.OK

	return ComputeResult{
		State:           state,
		DowntimeState:   downtimeState,
		Acknowledged:    acknowledged,
		Output:          r.Properties.StateMessages[state],
		InServicePeriod: inServicePeriod,
		StateMessages:   r.Properties.StateMessages,
	}
}

// Serialize implements CompiledNode
func (r *Rule) Serialize() map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(r.Nodes))
	for _, node := range r.Nodes {
		nodes = append(nodes, node.Serialize())
	}
	return map[string]interface{}{
		"id":                   r.ID,
		"pack_id":              r.PackID,
		"type":                 string(r.Kind()),
		"required_hosts":       serializeHostSpecs(r.RequiredHosts()),
		"nodes":                nodes,
		"aggregation_function": r.Function.Spec(),
		"node_visualization":   r.NodeVisualization,
		"properties":           r.Properties.Serialize(),
	}
}

func (r *Rule) String() string {
	rules, leaves := 0, 0
	for _, node := range r.Nodes {
		switch node.Kind() {
		case RuleKind:
			rules++
		case LeafKind:
			leaves++
		}
	}
	return fmt.Sprintf("Rule[%s, %d rules, %d leaves]", r.Properties.Title, rules, leaves)
}
