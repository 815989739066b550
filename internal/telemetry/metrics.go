package telemetry

import (
	"errors"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temirov/simmigrate/internal/events"
)

const (
	metricsNamespaceConstant          = "simmigrate"
	stageLabelConstant                = "stage"
	outcomeLabelConstant              = "outcome"
	identityLabelConstant             = "identity"
	resultLabelConstant               = "result"
	finalStateLabelConstant           = "final_state"
	dryRunLabelConstant               = "dry_run"
	outcomeResolvedValueConstant      = "resolved"
	outcomeSkippedValueConstant       = "skipped"
	outcomeFailedValueConstant        = "failed"
	outcomeMutatedValueConstant       = "mutated"
	outcomePreviewedValueConstant     = "previewed"
	resultSucceededValueConstant      = "succeeded"
	resultFailedValueConstant         = "failed"
	metricsPathMissingMessageConstant = "metrics file path not provided"
)

// ErrMetricsPathMissing indicates WriteTextfile was called without a destination.
var ErrMetricsPathMissing = errors.New(metricsPathMissingMessageConstant)

// MetricsObserver turns migration events into Prometheus counters on a private registry.
type MetricsObserver struct {
	registry        *prometheus.Registry
	items           *prometheus.CounterVec
	authentications *prometheus.CounterVec
	runs            *prometheus.CounterVec
	stageInputs     *prometheus.GaugeVec
}

// NewMetricsObserver builds a MetricsObserver with its own registry.
func NewMetricsObserver() *MetricsObserver {
	observer := &MetricsObserver{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "items",
				Name:      "total",
				Help:      "Items classified per stage and outcome.",
			},
			[]string{stageLabelConstant, outcomeLabelConstant},
		),
		authentications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "authentication",
				Name:      "attempts_total",
				Help:      "Authentication attempts per identity and result.",
			},
			[]string{identityLabelConstant, resultLabelConstant},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "runs",
				Name:      "total",
				Help:      "Completed runs per final state.",
			},
			[]string{finalStateLabelConstant, dryRunLabelConstant},
		),
		stageInputs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespaceConstant,
				Subsystem: "stage",
				Name:      "input_items",
				Help:      "Items entering each stage in the most recent run.",
			},
			[]string{stageLabelConstant},
		),
	}
	observer.registry.MustRegister(observer.items, observer.authentications, observer.runs, observer.stageInputs)
	return observer
}

// Registry exposes the underlying registry.
func (observer *MetricsObserver) Registry() *prometheus.Registry {
	return observer.registry
}

// Observe implements events.Observer.
func (observer *MetricsObserver) Observe(event events.Event) {
	switch event.Kind {
	case events.KindAuthenticationSucceeded:
		observer.authentications.WithLabelValues(string(event.Identity), resultSucceededValueConstant).Inc()
	case events.KindAuthenticationFailed, events.KindConfigurationMissing:
		if len(event.Identity) > 0 {
			observer.authentications.WithLabelValues(string(event.Identity), resultFailedValueConstant).Inc()
		}
	case events.KindItemResolved:
		observer.items.WithLabelValues(string(event.Stage), outcomeResolvedValueConstant).Inc()
	case events.KindItemSkipped:
		observer.items.WithLabelValues(string(event.Stage), outcomeSkippedValueConstant).Inc()
	case events.KindItemFailed:
		observer.items.WithLabelValues(string(event.Stage), outcomeFailedValueConstant).Inc()
	case events.KindItemMutated:
		observer.items.WithLabelValues(string(event.Stage), outcomeMutatedValueConstant).Inc()
	case events.KindItemPreviewed:
		observer.items.WithLabelValues(string(event.Stage), outcomePreviewedValueConstant).Inc()
	case events.KindStageCompleted:
		observer.stageInputs.WithLabelValues(string(event.Stage)).Set(float64(event.Counts.Input))
	case events.KindRunSummary:
		if event.Summary != nil {
			observer.runs.WithLabelValues(event.Summary.FinalState, strconv.FormatBool(event.Summary.DryRun)).Inc()
		}
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (observer *MetricsObserver) WriteTextfile(path string) error {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return ErrMetricsPathMissing
	}
	return prometheus.WriteToTextfile(trimmedPath, observer.registry)
}

