// Package ssagraph turns Go packages into a flow graph and an error
// handling oracle using the SSA form from golang.org/x/tools.
package ssagraph

import (
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Algorithms lists the call graph algorithms used to resolve indirect calls.
var Algorithms = []string{"static", "cha", "rta", "vta"}

// Program is a loaded and built SSA program.
type Program struct {
	Prog       *ssa.Program
	Packages   []*ssa.Package
	CallGraph  *callgraph.Graph
	RootModule string
}

// Loader loads Go packages and builds their SSA form
type Loader struct {
	dir       string
	patterns  []string
	algorithm string
	tests     bool
	logger    *slog.Logger
}

// NewLoader creates a loader for patterns resolved relative to dir.
func NewLoader(dir string, patterns []string, logger *slog.Logger) *Loader {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	return &Loader{
		dir:       dir,
		patterns:  patterns,
		algorithm: "cha",
		logger:    logger,
	}
}

// SetAlgorithm sets the call graph algorithm to use
func (l *Loader) SetAlgorithm(algorithm string) error {
	if algorithm == "" {
		algorithm = "cha"
	}
	for _, a := range Algorithms {
		if a == algorithm {
			l.algorithm = algorithm
			return nil
		}
	}
	return fmt.Errorf("unsupported call graph algorithm: %s. Supported algorithms: static, cha, rta, vta", algorithm)
}

// SetTests includes test packages in the load.
func (l *Loader) SetTests(tests bool) {
	l.tests = tests
}

// Load loads the packages, builds SSA for them and their dependencies and
// computes the call graph.
func (l *Loader) Load() (*Program, error) {
	l.logger.Debug("Loading packages", "dir", l.dir, "patterns", l.patterns)

	cfg := &packages.Config{
		Mode:  packages.LoadAllSyntax | packages.NeedDeps | packages.NeedImports | packages.NeedModule,
		Dir:   l.dir,
		Tests: l.tests,
		Fset:  token.NewFileSet(),
	}

	pkgs, err := packages.Load(cfg, l.patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages matched %v", l.patterns)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("errors encountered during package loading")
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	l.logger.Debug("Built SSA program", "packages", len(ssaPkgs))

	graph, err := l.callGraph(prog, roots(ssaPkgs))
	if err != nil {
		return nil, fmt.Errorf("failed to generate call graph with %s algorithm: %w", l.algorithm, err)
	}

	root := FindModuleName(l.dir)
	l.logger.Debug("Resolved root module", "module", root, "call_graph_nodes", len(graph.Nodes))

	return &Program{
		Prog:       prog,
		Packages:   ssaPkgs,
		CallGraph:  graph,
		RootModule: root,
	}, nil
}

func roots(pkgs []*ssa.Package) []*ssa.Function {
	var fns []*ssa.Function
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		if main := pkg.Func("main"); main != nil {
			fns = append(fns, main)
		}
		if init := pkg.Func("init"); init != nil {
			fns = append(fns, init)
		}
	}
	return fns
}

func (l *Loader) callGraph(prog *ssa.Program, roots []*ssa.Function) (*callgraph.Graph, error) {
	switch l.algorithm {
	case "static":
		return static.CallGraph(prog), nil

	case "cha":
		return cha.CallGraph(prog), nil

	case "rta":
		if len(roots) == 0 {
			l.logger.Debug("No main or init functions found, using an empty call graph")
			return &callgraph.Graph{Nodes: make(map[*ssa.Function]*callgraph.Node)}, nil
		}
		result := rta.Analyze(roots, true)
		if result == nil || result.CallGraph == nil {
			return nil, fmt.Errorf("RTA analysis returned nil")
		}
		return result.CallGraph, nil

	case "vta":
		return vta.CallGraph(ssautil.AllFunctions(prog), cha.CallGraph(prog)), nil

	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", l.algorithm)
	}
}

// FindModuleName walks up from dir to the nearest go.mod and returns its
// module path, or "" when there is none.
func FindModuleName(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if content, err := os.ReadFile(goModPath); err == nil {
			parsed, err := modfile.Parse(goModPath, content, nil)
			if err == nil && parsed.Module != nil {
				return parsed.Module.Mod.Path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
