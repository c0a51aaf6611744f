// Package generator drives a path generation run: it finds the call sites of
// interesting functions, stitches paths around each of them on a worker pool
// and writes the records in a deterministic order.
package generator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/smith-xyz/golang-pathgen/pkg/config"
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
	"github.com/smith-xyz/golang-pathgen/pkg/kcontext"
	"github.com/smith-xyz/golang-pathgen/pkg/metrics"
	"github.com/smith-xyz/golang-pathgen/pkg/models"
	"github.com/smith-xyz/golang-pathgen/pkg/utils"
)

// ErrNoOracle is returned when error annotations are requested for a
// source without handler information.
var ErrNoOracle = errors.New("error annotations need a handler oracle")

// Generator produces path records for one Source
type Generator struct {
	source   *Source
	opts     models.PathOptions
	metrics  *metrics.Run
	logger   *slog.Logger
	instr    *utils.Instrumentation
	stitcher *kcontext.Stitcher
}

// New creates a generator. A nil m gets a fresh metrics.Run.
func New(src *Source, opts models.PathOptions, m *metrics.Run, logger *slog.Logger, verbose bool) (*Generator, error) {
	if opts.ErrorAnnotations && src.Handlers == nil {
		return nil, ErrNoOracle
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if m == nil {
		m = metrics.NewRun()
	}

	return &Generator{
		source:   src,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		instr:    utils.NewInstrumentation(logger, verbose),
		stitcher: kcontext.NewStitcher(src.Graph, src.Handlers, opts, m),
	}, nil
}

// Metrics returns the counters of the run.
func (g *Generator) Metrics() *metrics.Run {
	return g.metrics
}

// Seeds returns the call sites whose callee is interesting, sorted by label.
func (g *Generator) Seeds(interesting config.Interesting) []flowgraph.VertexID {
	graph := g.source.Graph

	var seeds []flowgraph.VertexID
	found := make(map[string]bool)
	for id := flowgraph.VertexID(0); int(id) < graph.NumVertices(); id++ {
		target := graph.CallTarget(id)
		if target == flowgraph.NoVertex {
			continue
		}
		fn := graph.FunctionOf(target)
		if interesting.Contains(fn) {
			seeds = append(seeds, id)
			found[fn] = true
		}
	}

	for _, name := range interesting.Sorted() {
		if !found[name] {
			g.logger.Debug("No call sites found", "function", name)
		}
	}

	sort.Slice(seeds, func(i, j int) bool {
		return graph.Label(seeds[i]) < graph.Label(seeds[j])
	})
	return seeds
}

// Run stitches the paths of every seed and writes one record per line to w.
// Seeds are searched concurrently but records keep the seed order.
func (g *Generator) Run(ctx context.Context, interesting config.Interesting, w io.Writer) (models.RunSummary, error) {
	seeds := g.Seeds(interesting)
	g.logger.Debug("Discovered seeds", "count", len(seeds), "workers", g.opts.Workers)

	results := make([][]models.Record, len(seeds))
	err := g.instr.TimedOperation("stitch paths", func() error {
		return g.stitchAll(ctx, seeds, results)
	})
	if err != nil {
		return models.RunSummary{}, err
	}

	out := bufio.NewWriter(w)
	records := 0
	for _, recs := range results {
		for _, r := range recs {
			if _, err := fmt.Fprintln(out, r.String()); err != nil {
				return models.RunSummary{}, fmt.Errorf("failed to write record: %w", err)
			}
		}
		records += len(recs)
	}
	if err := out.Flush(); err != nil {
		return models.RunSummary{}, fmt.Errorf("failed to write records: %w", err)
	}
	g.metrics.AddRecords(records)

	return models.RunSummary{
		Seeds:         len(seeds),
		Records:       records,
		ThresholdHits: int(g.metrics.ThresholdHits()),
	}, nil
}

func (g *Generator) stitchAll(ctx context.Context, seeds []flowgraph.VertexID, results [][]models.Record) error {
	progress := g.instr.NewProgressTracker("seeds", len(seeds))
	defer progress.Complete()

	pool := make(chan *flowgraph.Marks, g.opts.Workers)
	for i := 0; i < g.opts.Workers; i++ {
		pool <- flowgraph.NewMarks(g.source.Graph)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)

	for i, seed := range seeds {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			marks := <-pool
			defer func() { pool <- marks }()
			marks.Reset()

			results[i] = g.stitcher.Stitch(seed, marks)
			g.metrics.IncSeeds()
			progress.Update(1)
			return nil
		})
	}

	return eg.Wait()
}
