// Package metrics implements the Metrics Surface (C8): a write-only
// interface recording routing passes, agent utilisation, coordination
// decisions, and typed bottlenecks. It is queried by external collaborators
// and never read by the core itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BottleneckKind is the closed taxonomy of detectable bottlenecks (spec §4.8).
type BottleneckKind string

const (
	BottleneckRoutingLatency BottleneckKind = "RoutingLatency"
	BottleneckAgentCapacity  BottleneckKind = "AgentCapacity"
	BottleneckForgeAPIRate   BottleneckKind = "ForgeApiRate"
	BottleneckWorkCompletion BottleneckKind = "WorkCompletion"
	BottleneckDecisionTime   BottleneckKind = "DecisionTime"
)

// Severity is the bottleneck's recorded severity.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// RoutingOutcome summarizes one router pass for recording.
type RoutingOutcome struct {
	DurationSeconds float64
	ItemsEvaluated  int
	AgentsAvailable int
	ProposalsMade   int
}

// Surface is the write-only interface the core's components depend on.
// Every method is lock-free at the call site: the Prometheus client
// library's own counters/gauges/histograms are safe for concurrent use
// without any caller-side synchronisation (spec §5 "metrics writes are
// lock-free and may interleave").
type Surface interface {
	RecordRoutingPass(outcome RoutingOutcome)
	RecordAgentUtilisation(agentID string, owned, max int)
	RecordDecision(component string, meta map[string]any)
	RecordBottleneck(kind BottleneckKind, severity Severity, meta map[string]any)
	RecordBundleDeparture(windowStart string, itemCount int, degraded bool)
}

// prometheusSurface is the production Surface, backed by a private
// prometheus.Registry (never the global DefaultRegisterer, so multiple
// coordinator instances — as in tests — never collide on metric names).
type prometheusSurface struct {
	registry *prometheus.Registry

	routingPasses   prometheus.Counter
	routingDuration prometheus.Histogram
	itemsEvaluated  prometheus.Histogram
	agentsAvailable prometheus.Gauge
	proposalsMade   prometheus.Counter

	agentUtilisation *prometheus.GaugeVec
	decisions        *prometheus.CounterVec
	bottlenecks      *prometheus.CounterVec
	bundleDepartures *prometheus.CounterVec
}

// New builds a Surface registered against a fresh, private registry and
// returns both the Surface and the registry (so a caller can expose it via
// an HTTP handler if it chooses — the core itself never does this, per
// spec's "read by external collaborators" framing).
func New() (Surface, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	s := &prometheusSurface{
		registry: reg,
		routingPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_routing_passes_total",
			Help: "Total router passes executed.",
		}),
		routingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "taskforge_routing_pass_duration_seconds",
			Help: "Router pass duration.",
		}),
		itemsEvaluated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "taskforge_routing_items_evaluated",
			Help: "Items evaluated per router pass.",
		}),
		agentsAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskforge_agents_available",
			Help: "Agents available at last routing pass.",
		}),
		proposalsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_proposals_total",
			Help: "Total assignment proposals produced.",
		}),
		agentUtilisation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskforge_agent_utilisation_ratio",
			Help: "Owned/max capacity ratio per agent.",
		}, []string{"agent_id"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskforge_decisions_total",
			Help: "Coordination decisions by component.",
		}, []string{"component"}),
		bottlenecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskforge_bottlenecks_total",
			Help: "Detected bottlenecks by kind and severity.",
		}, []string{"kind", "severity"}),
		bundleDepartures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskforge_bundle_departures_total",
			Help: "Bundle departures by outcome.",
		}, []string{"degraded"}),
	}

	reg.MustRegister(
		s.routingPasses, s.routingDuration, s.itemsEvaluated, s.agentsAvailable,
		s.proposalsMade, s.agentUtilisation, s.decisions, s.bottlenecks, s.bundleDepartures,
	)

	return s, reg
}

func (s *prometheusSurface) RecordRoutingPass(o RoutingOutcome) {
	s.routingPasses.Inc()
	s.routingDuration.Observe(o.DurationSeconds)
	s.itemsEvaluated.Observe(float64(o.ItemsEvaluated))
	s.agentsAvailable.Set(float64(o.AgentsAvailable))
	s.proposalsMade.Add(float64(o.ProposalsMade))
}

func (s *prometheusSurface) RecordAgentUtilisation(agentID string, owned, max int) {
	ratio := 0.0
	if max > 0 {
		ratio = float64(owned) / float64(max)
	}
	s.agentUtilisation.WithLabelValues(agentID).Set(ratio)
}

func (s *prometheusSurface) RecordDecision(component string, meta map[string]any) {
	s.decisions.WithLabelValues(component).Inc()
}

func (s *prometheusSurface) RecordBottleneck(kind BottleneckKind, severity Severity, meta map[string]any) {
	s.bottlenecks.WithLabelValues(string(kind), string(severity)).Inc()
}

func (s *prometheusSurface) RecordBundleDeparture(windowStart string, itemCount int, degraded bool) {
	label := "false"
	if degraded {
		label = "true"
	}
	s.bundleDepartures.WithLabelValues(label).Inc()
}

// noOpSurface discards every write; used where a caller doesn't need
// metrics (unit tests of other components).
type noOpSurface struct{}

// NoOp returns a Surface that discards everything.
func NoOp() Surface { return noOpSurface{} }

func (noOpSurface) RecordRoutingPass(RoutingOutcome)                       {}
func (noOpSurface) RecordAgentUtilisation(string, int, int)                {}
func (noOpSurface) RecordDecision(string, map[string]any)                  {}
func (noOpSurface) RecordBottleneck(BottleneckKind, Severity, map[string]any) {}
func (noOpSurface) RecordBundleDeparture(string, int, bool)                {}
