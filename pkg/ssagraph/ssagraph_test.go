package ssagraph

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/smith-xyz/golang-pathgen/pkg/config"
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestModule writes a Go module with the given files to a temp dir.
func createTestModule(t *testing.T, module string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	goMod := "module " + module + "\n\ngo 1.21\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644); err != nil {
		t.Fatalf("Failed to write go.mod: %v", err)
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func buildModule(t *testing.T, dir, algorithm string) *Builder {
	t.Helper()

	loader := NewLoader(dir, []string{"./..."}, discardLogger())
	if err := loader.SetAlgorithm(algorithm); err != nil {
		t.Fatalf("SetAlgorithm failed: %v", err)
	}
	program, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	base, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	b := NewBuilder(program, config.NewContextAwareConfig(base, program.RootModule), discardLogger())
	b.Build()
	return b
}

// callSitesTo returns the vertices with a Call edge into the named function.
func callSitesTo(g *flowgraph.Graph, fn string) []flowgraph.VertexID {
	entry := g.Lookup(fn)
	if entry == flowgraph.NoVertex {
		return nil
	}
	var sites []flowgraph.VertexID
	for _, e := range g.InEdges(entry) {
		if edge := g.Edge(e); edge.Kind == flowgraph.Call {
			sites = append(sites, edge.From)
		}
	}
	return sites
}

const errPathSource = `package main

func interesting() {}

func foo3() error { return nil }

func foo4() {}

func foo6() {}

func main() {
	interesting()
	if err := foo3(); err != nil {
		foo4()
	}
	foo6()
}
`

func TestBuildCallPairs(t *testing.T) {
	dir := createTestModule(t, "test.example/callpairs", map[string]string{
		"main.go": `package main

import "fmt"

func main() {
	hello()
	hello()
}

func hello() {
	fmt.Println("hello")
}
`,
	})
	b := buildModule(t, dir, "cha")
	g := b.Graph()

	if g.Entry() == flowgraph.NoVertex {
		t.Fatal("Expected a main.0 entry vertex")
	}
	mainEntry := g.Lookup("main")
	if mainEntry == flowgraph.NoVertex {
		t.Fatal("Expected an entry vertex for main")
	}
	if out := g.OutEdges(g.Entry()); len(out) != 1 || g.Edge(out[0]).To != mainEntry {
		t.Error("Expected main.0 to lead to main only")
	}

	sites := callSitesTo(g, "hello")
	if len(sites) != 2 {
		t.Fatalf("Expected 2 call sites of hello, got %d", len(sites))
	}
	for _, site := range sites {
		if g.FunctionOf(site) != "main" {
			t.Errorf("Call site %s should belong to main", g.Label(site))
		}
		ret := g.ReturnTarget(site)
		if ret == flowgraph.NoVertex {
			t.Fatalf("Call site %s has no return edge", g.Label(site))
		}
		if g.Vertex(site).Location.Empty() {
			t.Errorf("Call site %s has no location", g.Label(site))
		}

		found := false
		for _, e := range g.InEdges(ret) {
			if g.Edge(e).Kind == flowgraph.MayReturn && g.FunctionOf(g.Edge(e).From) == "hello" {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected a may-return edge from hello into %s", g.Label(ret))
		}
	}

	leaf := g.Lookup("fmt_Println")
	if leaf == flowgraph.NoVertex {
		t.Fatal("Expected a leaf vertex for fmt.Println")
	}
	if len(g.OutEdges(leaf)) != 0 {
		t.Error("Library functions should be leaves")
	}
}

func TestDeferAndGoAreCallSites(t *testing.T) {
	dir := createTestModule(t, "test.example/spawn", map[string]string{
		"main.go": `package main

func cleanup() {}

func worker() {}

func main() {
	defer cleanup()
	go worker()
}
`,
	})
	g := buildModule(t, dir, "cha").Graph()

	for _, fn := range []string{"cleanup", "worker"} {
		sites := callSitesTo(g, fn)
		if len(sites) != 1 {
			t.Fatalf("Expected one call site of %s, got %d", fn, len(sites))
		}
		if g.FunctionOf(sites[0]) != "main" {
			t.Errorf("Call site of %s should belong to main", fn)
		}
		if g.ReturnTarget(sites[0]) == flowgraph.NoVertex {
			t.Errorf("Call site of %s has no return edge", fn)
		}
		if g.FunctionOf(g.CallTarget(sites[0])) != fn {
			t.Errorf("Call site of %s targets %s", fn, g.Label(g.CallTarget(sites[0])))
		}
	}
}

func TestBuildWithoutMain(t *testing.T) {
	dir := createTestModule(t, "test.example/lib", map[string]string{
		"lib.go": `package lib

func A() { B() }

func B() {}
`,
	})
	g := buildModule(t, dir, "static").Graph()

	mains := 0
	for _, e := range g.OutEdges(g.Entry()) {
		if g.Edge(e).Kind == flowgraph.Main {
			mains++
		}
	}
	if mains != 2 {
		t.Errorf("Expected main edges to both functions, got %d", mains)
	}
	if len(callSitesTo(g, "lib_B")) != 1 {
		t.Error("Expected one call site of lib_B")
	}
}

func TestFunctionNames(t *testing.T) {
	dir := createTestModule(t, "test.example/names", map[string]string{
		"main.go": `package main

import "test.example/names/store"

type Server struct{}

func (s *Server) Start() error { return store.Open() }

func main() {
	s := &Server{}
	run := func() { _ = s.Start() }
	run()
}
`,
		"store/store.go": `package store

func Open() error { return nil }
`,
	})
	b := buildModule(t, dir, "cha")

	want := map[string]bool{"main": false, "Server_Start": false, "main_1": false, "store_Open": false}
	for _, name := range b.Functions() {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected function %q, got %v", name, b.Functions())
		}
	}
}

func TestInterfaceCallTargetSet(t *testing.T) {
	dir := createTestModule(t, "test.example/shapes", map[string]string{
		"main.go": `package main

type Shape interface{ Area() int }

type Circle struct{}

func (Circle) Area() int { return 3 }

type Square struct{}

func (Square) Area() int { return 4 }

func total(s Shape) int { return s.Area() }

func main() {
	_ = total(Circle{}) + total(Square{})
}
`,
	})
	g := buildModule(t, dir, "cha").Graph()

	var site flowgraph.VertexID = flowgraph.NoVertex
	for id := 0; id < g.NumVertices(); id++ {
		if ts := g.Vertex(flowgraph.VertexID(id)).TargetSet; ts != nil && ts.Name == "Shape.Area" {
			site = flowgraph.VertexID(id)
		}
	}
	if site == flowgraph.NoVertex {
		t.Fatal("Expected a call vertex with target set Shape.Area")
	}
	if g.FunctionOf(site) != "total" {
		t.Errorf("Expected the dynamic call inside total, got %s", g.Label(site))
	}

	targets := g.Vertex(site).TargetSet.Targets
	for _, want := range []string{"Circle_Area", "Square_Area"} {
		found := false
		for _, got := range targets {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %s among targets %v", want, targets)
		}
	}
	if !g.IsCall(site) || g.ReturnTarget(site) == flowgraph.NoVertex {
		t.Error("Expected the dynamic call to keep a call/return pair")
	}
}

func TestHandlersDetectErrNil(t *testing.T) {
	dir := createTestModule(t, "test.example/errpath", map[string]string{"main.go": errPathSource})
	b := buildModule(t, dir, "cha")
	h := b.Handlers()

	if h.Len() != 1 {
		t.Fatalf("Expected 1 classified branch, got %d", h.Len())
	}

	tested, ok := h.TestedFunctionFor("main.b1")
	if !ok || tested != "foo3" {
		t.Errorf("Expected main.b1 to handle foo3, got %q (%v)", tested, ok)
	}
	if !h.IsOn("main.b1") {
		t.Error("Expected the then-block to be the error handler")
	}
	if _, join := h.Off["main.b2"]; !h.IsNot("main.b2") || !join {
		t.Error("Expected the if.done block to be both the non-error side and the join")
	}

	for branch := range h.TestedFunction {
		if b.Graph().Lookup(branch) == flowgraph.NoVertex {
			t.Errorf("Branch label %s is not a graph vertex", branch)
		}
	}
}

func TestHandlersIgnoreNonCallConditions(t *testing.T) {
	dir := createTestModule(t, "test.example/plain", map[string]string{
		"main.go": `package main

var flag = 3

func foo() {}

func main() {
	if flag != 0 {
		foo()
	}
}
`,
	})
	h := buildModule(t, dir, "cha").Handlers()
	if h.Len() != 0 {
		t.Errorf("Expected no classified branches, got %d", h.Len())
	}
}

func TestSetAlgorithm(t *testing.T) {
	loader := NewLoader(".", nil, discardLogger())

	for _, algo := range Algorithms {
		if err := loader.SetAlgorithm(algo); err != nil {
			t.Errorf("SetAlgorithm(%q) failed: %v", algo, err)
		}
	}
	if err := loader.SetAlgorithm("pointer"); err == nil {
		t.Error("Expected an error for an unknown algorithm")
	}
}

func TestFindModuleName(t *testing.T) {
	dir := createTestModule(t, "test.example/nested", map[string]string{"cmd/tool/main.go": "package main\n\nfunc main() {}\n"})

	if got := FindModuleName(filepath.Join(dir, "cmd", "tool")); got != "test.example/nested" {
		t.Errorf("Expected test.example/nested, got %q", got)
	}
}
