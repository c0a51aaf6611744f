package generator

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/smith-xyz/golang-pathgen/pkg/config"
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
	"github.com/smith-xyz/golang-pathgen/pkg/oracle"
	"github.com/smith-xyz/golang-pathgen/pkg/ssagraph"
	"github.com/smith-xyz/golang-pathgen/pkg/utils"
)

// Source is a flow graph together with the oracle describing its error
// handlers. Handlers is nil when no oracle is available.
type Source struct {
	Graph    *flowgraph.Graph
	Handlers *oracle.Handlers
}

// FromPackages loads the Go packages matched by patterns relative to dir and
// builds the flow graph and handler oracle for the module they belong to.
func FromPackages(dir string, patterns []string, cfg *config.Config, logger *slog.Logger, verbose bool) (*Source, error) {
	phases := utils.NewInstrumentation(logger, verbose).NewPhaseTracker("build flow graph")

	phases.StartPhase("load packages")
	loader := ssagraph.NewLoader(dir, patterns, logger)
	if err := loader.SetAlgorithm(cfg.SSA.Algorithm); err != nil {
		return nil, fmt.Errorf("failed to set call graph algorithm: %w", err)
	}
	loader.SetTests(cfg.SSA.Tests)

	program, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %w", patterns, err)
	}

	phases.StartPhase("translate SSA")
	builder := ssagraph.NewBuilder(program, config.NewContextAwareConfig(cfg, program.RootModule), logger)
	graph := builder.Build()

	phases.StartPhase("find error handlers")
	handlers := builder.Handlers()

	phases.Complete(graph.NumVertices())
	return &Source{Graph: graph, Handlers: handlers}, nil
}

// FromEdgelist reads a graph dump and, when oracleFile is set, the handler
// oracle saved alongside it.
func FromEdgelist(graphFile, oracleFile string) (*Source, error) {
	f, err := os.Open(graphFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph %s: %w", graphFile, err)
	}
	defer f.Close()

	graph, err := flowgraph.ReadEdgelist(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph %s: %w", graphFile, err)
	}

	src := &Source{Graph: graph}
	if oracleFile != "" {
		if src.Handlers, err = oracle.Load(oracleFile); err != nil {
			return nil, err
		}
	}
	return src, nil
}
