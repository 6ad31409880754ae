/*
Package stree offers an aggregation engine for hierarchical business views
over monitored hosts and services.

Operators define trees whose leaves reference individual host or service
checks and whose interior rules combine child states through pluggable
aggregation strategies (worst-of, best-of, count-based thresholds). Computing
a compiled tree against a point-in-time status snapshot yields one rolled-up
state per branch, with downtime escalation, acknowledgment and service-period
membership propagated through every level, plus an optional "assumed" result
tree when operator overrides are in effect.

The package is a facade: it re-exports the node model, the aggregation
strategies, the status snapshot types and the YAML definition loader from the
internal packages.

Typical usage:

	doc, err := stree.ParseDefinitions(raw)
	if err != nil { ... }
	aggregations, err := stree.CompileDefinitions(doc, topology)
	if err != nil { ... }
	for _, aggregation := range aggregations {
		results := aggregation.ComputeBranches(aggregation.Branches, snapshot)
		for _, bundle := range results {
			response := aggregation.LegacyResult(bundle)
			...
		}
	}

Computation is pure relative to one immutable snapshot: capture the snapshot
once per evaluation pass, do not mutate it while computing, and independent
branches may be computed concurrently (see ComputeBranchesParallel).
*/
package stree
