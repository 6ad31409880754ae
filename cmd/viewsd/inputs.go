package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/statetreelib/go-statetree/localcheck"
	"github.com/statetreelib/go-statetree/stree"
)

// statusDocument is the YAML status-snapshot input. The same document doubles
// as the topology index: a host's site and service names are exactly what the
// wildcard expansion needs.
type statusDocument struct {
	Hosts   []hostEntry   `yaml:"hosts"`
	Assumed []assumedItem `yaml:"assumed"`
}

type hostEntry struct {
	Site           string         `yaml:"site"`
	Name           string         `yaml:"name"`
	State          int            `yaml:"state"`
	HasBeenChecked *bool          `yaml:"has_been_checked"`
	DowntimeDepth  int            `yaml:"downtime_depth"`
	Acknowledged   bool           `yaml:"acknowledged"`
	ServicePeriod  *bool          `yaml:"in_service_period"`
	Output         string         `yaml:"output"`
	Services       []serviceEntry `yaml:"services"`
	// LocalOutput points to a file of local-check agent output whose parsed
	// results are merged in as additional services
	LocalOutput string `yaml:"local_output"`
}

type serviceEntry struct {
	Name           string `yaml:"name"`
	State          int    `yaml:"state"`
	HardState      *int   `yaml:"hard_state"`
	HasBeenChecked *bool  `yaml:"has_been_checked"`
	DowntimeDepth  int    `yaml:"downtime_depth"`
	Acknowledged   bool   `yaml:"acknowledged"`
	ServicePeriod  *bool  `yaml:"in_service_period"`
	Output         string `yaml:"output"`
}

type assumedItem struct {
	Site    string `yaml:"site"`
	Host    string `yaml:"host"`
	Service string `yaml:"service"`
	State   int    `yaml:"state"`
}

// inputs bundles one loaded evaluation pass: the snapshot and the topology
// view over the same data.
type inputs struct {
	snapshot *stree.Snapshot
	topology topology
}

type topology map[string]topologyHost

type topologyHost struct {
	site     string
	services []string
}

// LookupHost implements stree.TopologyIndex
func (t topology) LookupHost(host string) (string, []string, bool) {
	entry, ok := t[host]
	return entry.site, entry.services, ok
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// loadInputs reads the status document and builds snapshot + topology.
// Referenced local-check output files are resolved relative to the status
// file.
func loadInputs(path string, now time.Time) (*inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	var doc statusDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	snapshot := &stree.Snapshot{
		Hosts:         make(map[stree.HostSpec]stree.HostStatus),
		AssumedStates: make(map[stree.ElementKey]stree.State),
	}
	topo := make(topology, len(doc.Hosts))

	for _, host := range doc.Hosts {
		services := make(map[string]stree.Entity, len(host.Services))
		for _, service := range host.Services {
			hardState := service.State
			if service.HardState != nil {
				hardState = *service.HardState
			}
			services[service.Name] = stree.Entity{
				HasBeenChecked:         boolOr(service.HasBeenChecked, true),
				State:                  stree.State(service.State),
				HardState:              stree.State(hardState),
				ScheduledDowntimeDepth: service.DowntimeDepth,
				Acknowledged:           service.Acknowledged,
				InServicePeriod:        boolOr(service.ServicePeriod, true),
				Output:                 service.Output,
			}
		}

		if host.LocalOutput != "" {
			localPath := host.LocalOutput
			if !filepath.IsAbs(localPath) {
				localPath = filepath.Join(filepath.Dir(path), localPath)
			}
			raw, err := os.ReadFile(localPath)
			if err != nil {
				return nil, fmt.Errorf("host %s: read local output: %w", host.Name, err)
			}
			section := localcheck.Parse(splitLines(string(raw)), now)
			for item, entity := range section.Entities() {
				services[item] = entity
			}
		}

		spec := stree.HostSpec{Site: host.Site, Host: host.Name}
		snapshot.Hosts[spec] = stree.HostStatus{
			Entity: stree.Entity{
				HasBeenChecked:         boolOr(host.HasBeenChecked, true),
				State:                  stree.State(host.State),
				HardState:              stree.State(host.State),
				ScheduledDowntimeDepth: host.DowntimeDepth,
				Acknowledged:           host.Acknowledged,
				InServicePeriod:        boolOr(host.ServicePeriod, true),
				Output:                 host.Output,
			},
			Services: services,
		}

		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		topo[host.Name] = topologyHost{site: host.Site, services: names}
	}

	for _, assumed := range doc.Assumed {
		key := stree.ElementKey{Site: assumed.Site, Host: assumed.Host, Service: assumed.Service}
		snapshot.AssumedStates[key] = stree.State(assumed.State)
	}

	return &inputs{snapshot: snapshot, topology: topo}, nil
}

func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimRight(line, "\r"); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
