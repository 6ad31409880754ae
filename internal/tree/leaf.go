package tree

import (
	"fmt"

	"github.com/statetreelib/go-statetree/internal/status"
)

// Leaf references exactly one monitored host (ServiceDescription == "") or
// one service on a host.
type Leaf struct {
	SiteID             string
	HostName           string
	ServiceDescription string
}

// NewLeaf builds a leaf node
func NewLeaf(siteID, hostName, serviceDescription string) *Leaf {
	return &Leaf{
		SiteID:             siteID,
		HostName:           hostName,
		ServiceDescription: serviceDescription,
	}
}

// Kind implements CompiledNode
func (l *Leaf) Kind() NodeKind { return LeafKind }

// ElementKey returns the snapshot key of the referenced entity
func (l *Leaf) ElementKey() status.ElementKey {
	return status.ElementKey{
		Site:    l.SiteID,
		Host:    l.HostName,
		Service: l.ServiceDescription,
	}
}

// RequiredHosts returns the hosts this leaf depends on, used for
// dependency and locking purposes by callers
func (l *Leaf) RequiredHosts() []status.HostSpec {
	return []status.HostSpec{{Site: l.SiteID, Host: l.HostName}}
}

// RequiredElements implements CompiledNode
func (l *Leaf) RequiredElements() status.ElementSet {
	return status.ElementSet{l.ElementKey(): {}}
}

// ServicesOfHost implements CompiledNode
func (l *Leaf) ServicesOfHost(host string) map[string]struct{} {
	if host == l.HostName && l.ServiceDescription != "" {
		return map[string]struct{}{l.ServiceDescription: {}}
	}
	return nil
}

// CompilePostprocess implements CompiledNode; a leaf is already concrete
func (l *Leaf) CompilePostprocess(map[string]map[string]struct{}, TopologyIndex) []CompiledNode {
	return []CompiledNode{l}
}

// ComparableName implements CompiledNode
func (l *Leaf) ComparableName() string {
	return l.SiteID + ":" + l.HostName + ":" + l.ServiceDescription
}

func (l *Leaf) identifierName() string {
	if l.ServiceDescription == "" {
		return l.HostName
	}
	return l.HostName + "|" + l.ServiceDescription
}

// Identifiers implements CompiledNode
func (l *Leaf) Identifiers(parent Identifier, used map[string]struct{}) []IdentifierInfo {
	return []IdentifierInfo{{ID: claimIdentifier(parent, l.identifierName(), used), Node: l}}
}

// Compute implements CompiledNode.
//
// A missing entity (the snapshot has no row, or the row carries no usable
// state) prunes the leaf unless FreezeAggregations keeps it as an explicit
// UNKNOWN "not found" result.
func (l *Leaf) Compute(
	opts ComputationOptions,
	sn *status.Snapshot,
	useAssumed bool,
) *ResultBundle {
	hostDowntimeDepth, entity, found := l.getEntity(sn)
	if !found || !entity.Defined() {
		if opts.FreezeAggregations {
			notFound := "Host not found"
			if l.ServiceDescription != "" {
				notFound = "Service not found"
			}
			return &ResultBundle{
				ActualResult: ComputeResult{
					State:  status.Unknown,
					Output: notFound,
				},
				Instance: l,
			}
		}
		return nil
	}

	downtimeState := DowntimeNone
	if entity.ScheduledDowntimeDepth != 0 || hostDowntimeDepth > 0 {
		downtimeState = DowntimeCrit
		if opts.EscalateDowntimesAsWarn {
			downtimeState = DowntimeWarn
		}
	}

	state := status.Pending
	if entity.HasBeenChecked {
		state = entity.State
		if opts.UseHardStates {
			state = entity.HardState
		}
		// Host states live in their own space, equalize before folding
		if l.ServiceDescription == "" {
			state = status.MapHostState(state)
		}
	}

	var assumedResult *ComputeResult
	if useAssumed {
		if assumedState, ok := sn.AssumedState(l.ElementKey()); ok {
			assumedResult = &ComputeResult{
				State:           assumedState,
				DowntimeState:   downtimeState,
				Acknowledged:    entity.Acknowledged,
				Output:          fmt.Sprintf("Assumed to be %s", l.stateName(assumedState)),
				InServicePeriod: entity.InServicePeriod,
			}
		}
	}

	return &ResultBundle{
		ActualResult: ComputeResult{
			State:           state,
			DowntimeState:   downtimeState,
			Acknowledged:    entity.Acknowledged,
			Output:          entity.Output,
			InServicePeriod: entity.InServicePeriod,
		},
		AssumedResult: assumedResult,
		Instance:      l,
	}
}

// Serialize implements CompiledNode
func (l *Leaf) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"type":                string(l.Kind()),
		"required_hosts":      serializeHostSpecs(l.RequiredHosts()),
		"site_id":             l.SiteID,
		"host_name":           l.HostName,
		"service_description": l.ServiceDescription,
	}
}

func (l *Leaf) String() string {
	return fmt.Sprintf(
		"Leaf[Site %s, Host: %s, Service %s]",
		l.SiteID, l.HostName, l.ServiceDescription,
	)
}

func (l *Leaf) stateName(s status.State) string {
	if l.ServiceDescription != "" {
		return status.ServiceStateName(s)
	}
	return status.HostStateName(s)
}

// getEntity resolves the referenced entity in the snapshot. The host's
// downtime depth is reported separately: a service inherits downtime from
// its host.
func (l *Leaf) getEntity(sn *status.Snapshot) (int, status.Entity, bool) {
	host, ok := sn.Host(status.HostSpec{Site: l.SiteID, Host: l.HostName})
	if !ok {
		return 0, status.Entity{}, false
	}
	if l.ServiceDescription == "" {
		return host.ScheduledDowntimeDepth, host.Entity, true
	}
	service, ok := host.Services[l.ServiceDescription]
	if !ok {
		return 0, status.Entity{}, false
	}
	return host.ScheduledDowntimeDepth, service, true
}

func serializeHostSpecs(specs []status.HostSpec) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		out = append(out, map[string]interface{}{
			"site_id":   spec.Site,
			"host_name": spec.Host,
		})
	}
	return out
}
