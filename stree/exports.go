package stree

import (
	"github.com/statetreelib/go-statetree/internal/defs"
	"github.com/statetreelib/go-statetree/internal/fn"
	"github.com/statetreelib/go-statetree/internal/status"
	"github.com/statetreelib/go-statetree/internal/tree"
)

// State is a monitoring state code
type State = status.State

// The 4-state aggregation space plus the pending sentinel
const (
	Pending = status.Pending
	OK      = status.OK
	Warn    = status.Warn
	Crit    = status.Crit
	Unknown = status.Unknown
)

// Host-level states as reported by the monitoring core
const (
	HostUp          = status.HostUp
	HostDown        = status.HostDown
	HostUnreachable = status.HostUnreachable
)

// ServiceStateName renders a service state code for humans
var ServiceStateName = status.ServiceStateName

// HostStateName renders a host state code for humans
var HostStateName = status.HostStateName

// Snapshot is an immutable view of the monitored world as of one instant
type Snapshot = status.Snapshot

// Entity is the point-in-time status of one host or service
type Entity = status.Entity

// HostStatus is the status of one host plus all of its services
type HostStatus = status.HostStatus

// HostSpec identifies one host on one site
type HostSpec = status.HostSpec

// ElementKey identifies one monitored entity (host or service)
type ElementKey = status.ElementKey

// ElementSet is a set of element keys
type ElementSet = status.ElementSet

// CompiledNode is one node of a compiled aggregation tree
type CompiledNode = tree.CompiledNode

// Leaf references exactly one monitored host or service
type Leaf = tree.Leaf

// NewLeaf builds a leaf node
var NewLeaf = tree.NewLeaf

// Rule is a composite node folding its children through an aggregation
// function
type Rule = tree.Rule

// NewRule builds a rule node
var NewRule = tree.NewRule

// RuleProperties are the display properties of a rule node
type RuleProperties = tree.RuleProperties

// WildcardExpansion is a pre-compile placeholder expanded into leaves
type WildcardExpansion = tree.WildcardExpansion

// NewWildcardExpansion builds a wildcard placeholder
var NewWildcardExpansion = tree.NewWildcardExpansion

// Postprocess expands every wildcard below a branch root against a topology
// index
var Postprocess = tree.Postprocess

// TopologyIndex resolves host names during wildcard expansion
type TopologyIndex = tree.TopologyIndex

// ComputationOptions configure one computation pass
type ComputationOptions = tree.ComputationOptions

// ComputeResult is the computed status of one node
type ComputeResult = tree.ComputeResult

// ResultBundle is the computed result tree of one node
type ResultBundle = tree.ResultBundle

// DowntimeState encodes how scheduled downtime escalates into the result
type DowntimeState = tree.DowntimeState

// Downtime escalation values
const (
	DowntimeNone = tree.DowntimeNone
	DowntimeWarn = tree.DowntimeWarn
	DowntimeCrit = tree.DowntimeCrit
)

// Identifier is the stable path identifier of a node
type Identifier = tree.Identifier

// IdentifierInfo pairs an assigned identifier with its node
type IdentifierInfo = tree.IdentifierInfo

// CompiledAggregation owns the top-level branches of one aggregation
type CompiledAggregation = tree.CompiledAggregation

// Groups are the visualization groups an aggregation is filed under
type Groups = tree.Groups

// FrozenInfo marks a compiled aggregation as the frozen copy of another one
type FrozenInfo = tree.FrozenInfo

// AggregationFunction reduces a sequence of child states to one parent state
type AggregationFunction = fn.AggregationFunction

// FunctionSpec is the tagged configuration of an aggregation function
type FunctionSpec = fn.Spec

// Worst yields the n-th most severe child state
type Worst = fn.Worst

// Best yields the n-th least severe child state
type Best = fn.Best

// CountOK yields OK/WARN/CRIT from the count of OK children
type CountOK = fn.CountOK

// Threshold is a count_ok threshold, absolute or percentage
type Threshold = fn.Threshold

// ParseThreshold parses "2" or "50%" into a Threshold
var ParseThreshold = fn.ParseThreshold

// Definitions is a parsed tree-definitions document
type Definitions = defs.Document

// ParseDefinitions decodes a YAML definitions document
var ParseDefinitions = defs.Parse

// CompileDefinitions resolves a document into compiled aggregations
var CompileDefinitions = defs.Compile
