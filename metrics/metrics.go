// Package metrics counts what an ETL run did, per source, in a Prometheus
// registry that can be dumped for the node exporter's textfile collector.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "idpkg"

// Run holds the counters of one ETL run. It implements etl.Observer.
type Run struct {
	Registry *prometheus.Registry

	filesProcessed    *prometheus.CounterVec
	filesSkipped      *prometheus.CounterVec
	statementsMerged  *prometheus.CounterVec
	recordsProjected  *prometheus.CounterVec
	contexts          prometheus.Gauge
	datasetStatements *prometheus.GaugeVec
}

// NewRun registers a fresh set of collectors in their own registry.
func NewRun() *Run {
	r := &Run{
		Registry: prometheus.NewRegistry(),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Source files read and transformed.",
		}, []string{"source"}),
		filesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Source files that contributed nothing to the merged graph.",
		}, []string{"source", "reason"}),
		statementsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_merged_total",
			Help:      "Statements added to named graphs, before deduplication.",
		}, []string{"source"}),
		recordsProjected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_projected_total",
			Help:      "Protein region records in the flat model.",
		}, []string{"source"}),
		contexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contexts",
			Help:      "Named graphs in the merged dataset.",
		}),
		datasetStatements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_statements",
			Help:      "Statements in each output dataset.",
		}, []string{"dataset"}),
	}
	r.Registry.MustRegister(
		r.filesProcessed,
		r.filesSkipped,
		r.statementsMerged,
		r.recordsProjected,
		r.contexts,
		r.datasetStatements,
	)
	return r
}

func (r *Run) FileProcessed(source string, merged, records int) {
	r.filesProcessed.WithLabelValues(source).Inc()
	r.statementsMerged.WithLabelValues(source).Add(float64(merged))
	r.recordsProjected.WithLabelValues(source).Add(float64(records))
}

func (r *Run) FileSkipped(source, reason string) {
	r.filesSkipped.WithLabelValues(source, reason).Inc()
}

// SetTotals records the final size of the outputs.
func (r *Run) SetTotals(contexts, merged, flat int) {
	r.contexts.Set(float64(contexts))
	r.datasetStatements.WithLabelValues("idpkg").Set(float64(merged))
	r.datasetStatements.WithLabelValues("idpcentral").Set(float64(flat))
}

// WriteTextfile writes the registry in the text exposition format. The file
// is replaced atomically.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
