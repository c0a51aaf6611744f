package kcontext

import (
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
	"github.com/smith-xyz/golang-pathgen/pkg/models"
	"github.com/smith-xyz/golang-pathgen/pkg/oracle"
	"github.com/smith-xyz/golang-pathgen/pkg/path"
)

// StitchMetrics extends Metrics with per-direction half path counts.
type StitchMetrics interface {
	Metrics
	AddHalfPaths(direction string, n int)
}

// Stitcher joins backward and forward half paths around a seed into
// records. One Stitcher may serve concurrent seeds as long as each call
// gets its own Marks.
type Stitcher struct {
	graph    *flowgraph.Graph
	handlers *oracle.Handlers
	opts     models.PathOptions
	metrics  StitchMetrics
}

// NewStitcher returns a stitcher over g. handlers may be nil when error
// annotations are disabled.
func NewStitcher(g *flowgraph.Graph, handlers *oracle.Handlers, opts models.PathOptions, m StitchMetrics) *Stitcher {
	if handlers == nil {
		handlers = oracle.New()
	}
	return &Stitcher{graph: g, handlers: handlers, opts: opts, metrics: m}
}

func (s *Stitcher) searchOptions(dir Direction) Options {
	opts := Options{
		MaxLength:       s.opts.MaxLength,
		IterationFactor: s.opts.IterationFactor,
		Direction:       dir,
		On:              s.handlers.On,
		Off:             s.handlers.Off,
	}
	if dir == Backward {
		opts.On, opts.Off = s.handlers.Off, s.handlers.On
	}
	return opts
}

// Stitch returns the records for one seed in emission order. Annotation
// records precede the path they were derived from; duplicates are dropped.
func (s *Stitcher) Stitch(seed flowgraph.VertexID, marks *flowgraph.Marks) []models.Record {
	var metrics Metrics
	if s.metrics != nil {
		metrics = s.metrics
	}

	forward := Search(s.graph, seed, s.searchOptions(Forward), marks, metrics)
	backward := Search(s.graph, seed, s.searchOptions(Backward), marks, metrics)

	if s.metrics != nil {
		s.metrics.AddHalfPaths(Forward.String(), len(forward))
		s.metrics.AddHalfPaths(Backward.String(), len(backward))
	}

	var records []models.Record
	emitted := make(map[string]struct{})
	emit := func(r models.Record) {
		key := r.Text()
		if _, ok := emitted[key]; ok {
			return
		}
		emitted[key] = struct{}{}
		records = append(records, r)
	}

	combined := make(map[string]struct{})
	for _, f := range forward {
		for _, b := range backward {
			if !f.ValidMatch(b) {
				continue
			}

			sig := b.Signature() + f.Signature()
			if _, ok := combined[sig]; ok {
				continue
			}
			combined[sig] = struct{}{}

			full := join(b, f)

			if s.opts.CallerAnnotations {
				for _, r := range callerRecords(full) {
					emit(r)
				}
			}

			if s.opts.ErrorAnnotations {
				annotations, keep := annotateErrors(full, s.handlers, s.opts.ReturnMarker)
				for _, r := range annotations {
					emit(r)
				}
				if !keep {
					continue
				}
			}

			if out := full.Output(); len(out) > 0 {
				emit(models.Record(out))
			}
		}
	}

	return records
}

// join builds backward-reversed -> seed -> forward. Both halves start at
// the seed, so the backward copy drops it before being reversed.
func join(backward, forward *path.Path) *path.Path {
	full := backward.Clone()
	full.Remove(backward.Vertices()[0])
	full.Reverse()
	for _, v := range forward.Vertices() {
		full.Add(v)
	}
	return full
}

func callerRecords(p *path.Path) []models.Record {
	g := p.Graph()
	var records []models.Record
	for _, v := range p.OutputVertices() {
		records = append(records, models.Record{"CALLER_" + g.FunctionOf(v), p.CallName(v)})
	}
	return records
}
