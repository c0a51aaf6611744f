// Package metrics counts what a path generation run did. Counters live in a
// private Prometheus registry so a run can be exported as a textfile.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "pathgen"

// Run holds the counters of one run. It is safe for concurrent use.
type Run struct {
	registry *prometheus.Registry

	thresholdHits prometheus.Counter
	seeds         prometheus.Counter
	records       prometheus.Counter
	paths         *prometheus.CounterVec
}

// NewRun registers a fresh set of counters.
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		thresholdHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iteration_threshold_hits_total",
			Help:      "Searches aborted because the iteration budget ran out.",
		}),
		seeds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeds_processed_total",
			Help:      "Call sites of interesting functions that were searched.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Path and annotation records written.",
		}),
		paths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "half_paths_total",
			Help:      "Deduplicated half paths found, by search direction.",
		}, []string{"direction"}),
	}

	r.registry.MustRegister(r.thresholdHits, r.seeds, r.records, r.paths)
	return r
}

// IncThresholdHits counts one aborted search.
func (r *Run) IncThresholdHits() {
	r.thresholdHits.Inc()
}

// AddHalfPaths counts half paths found in one direction.
func (r *Run) AddHalfPaths(direction string, n int) {
	r.paths.WithLabelValues(direction).Add(float64(n))
}

// IncSeeds counts one processed seed.
func (r *Run) IncSeeds() {
	r.seeds.Inc()
}

// AddRecords counts emitted records.
func (r *Run) AddRecords(n int) {
	r.records.Add(float64(n))
}

func (r *Run) ThresholdHits() uint64 {
	return r.counter("iteration_threshold_hits_total", "")
}

func (r *Run) Seeds() uint64 {
	return r.counter("seeds_processed_total", "")
}

func (r *Run) Records() uint64 {
	return r.counter("records_emitted_total", "")
}

// HalfPaths returns the half paths counted for direction.
func (r *Run) HalfPaths(direction string) uint64 {
	return r.counter("half_paths_total", direction)
}

// counter reads a counter back from the registry. A non-empty direction
// selects one series of a labelled counter.
func (r *Run) counter(name, direction string) uint64 {
	families, err := r.registry.Gather()
	if err != nil {
		return 0
	}

	var total float64
	for _, family := range families {
		if family.GetName() != namespace+"_"+name {
			continue
		}
		for _, m := range family.GetMetric() {
			if direction != "" && !hasLabel(m.GetLabel(), "direction", direction) {
				continue
			}
			total += m.GetCounter().GetValue()
		}
	}
	return uint64(total)
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

// WriteTextfile writes the counters in the Prometheus text format.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Report prints the end-of-run summary.
func (r *Run) Report(w io.Writer) {
	fmt.Fprintln(w, "Metrics")
	fmt.Fprintln(w, "=======")
	fmt.Fprintf(w, "Visit threshold hits: %d\n", r.ThresholdHits())
	fmt.Fprintf(w, "Seeds processed: %d\n", r.Seeds())
	fmt.Fprintf(w, "Half paths: %d forward, %d backward\n", r.HalfPaths("forward"), r.HalfPaths("backward"))
	fmt.Fprintf(w, "Records emitted: %d\n", r.Records())
}
