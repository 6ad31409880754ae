package status

import "strings"

// HostSpec identifies one host on one site
type HostSpec struct {
	Site string
	Host string
}

// ElementKey identifies one monitored entity: a host (Service == "") or a
// service on a host. It is the key used for required-element sets and for
// assumed-state overrides.
type ElementKey struct {
	Site    string
	Host    string
	Service string
}

// HostSpec returns the host part of the element key
func (k ElementKey) HostSpec() HostSpec {
	return HostSpec{Site: k.Site, Host: k.Host}
}

// IsService reports whether the key addresses a service rather than a host
func (k ElementKey) IsService() bool {
	return k.Service != ""
}

func (k ElementKey) String() string {
	return strings.Join([]string{k.Site, k.Host, k.Service}, ":")
}

// ElementSet is a set of element keys
type ElementSet map[ElementKey]struct{}

// Add inserts a key into the set
func (es ElementSet) Add(key ElementKey) {
	es[key] = struct{}{}
}

// AddAll inserts every key of other into the set
func (es ElementSet) AddAll(other ElementSet) {
	for key := range other {
		es[key] = struct{}{}
	}
}

// Contains reports membership of a single key
func (es ElementSet) Contains(key ElementKey) bool {
	_, ok := es[key]
	return ok
}

// Intersects reports whether the two sets share at least one key
func (es ElementSet) Intersects(other ElementSet) bool {
	small, large := es, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for key := range small {
		if _, ok := large[key]; ok {
			return true
		}
	}
	return false
}

// Entity is the point-in-time status of one host or service as delivered by
// the snapshot provider.
type Entity struct {
	HasBeenChecked         bool
	State                  State
	HardState              State
	ScheduledDowntimeDepth int
	Acknowledged           bool
	InServicePeriod        bool
	Output                 string
}

// Defined reports whether the entity row carries usable state columns.
// Availability queries may deliver service rows without host information;
// those rows count as missing.
func (e Entity) Defined() bool {
	return e.State != Undefined && e.HardState != Undefined
}

// HostStatus is the status of one host plus all of its services
type HostStatus struct {
	Entity
	Services map[string]Entity
}

// Snapshot is an immutable view of the monitored world as of one instant.
// It must be captured once per evaluation pass and not mutated while
// computations read it; under that discipline concurrent branch computations
// need no locking.
type Snapshot struct {
	Hosts         map[HostSpec]HostStatus
	AssumedStates map[ElementKey]State
}

// Host looks up one host's status
func (s *Snapshot) Host(spec HostSpec) (HostStatus, bool) {
	host, ok := s.Hosts[spec]
	return host, ok
}

// AssumedState returns the operator override for an element, if one is set
func (s *Snapshot) AssumedState(key ElementKey) (State, bool) {
	state, ok := s.AssumedStates[key]
	return state, ok
}

// AssumedKeys returns the set of elements that currently carry an override
func (s *Snapshot) AssumedKeys() ElementSet {
	keys := make(ElementSet, len(s.AssumedStates))
	for key := range s.AssumedStates {
		keys.Add(key)
	}
	return keys
}
