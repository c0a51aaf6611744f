package flowgraph

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func v(label string) Vertex {
	return Vertex{Label: label}
}

func TestAddCallPair(t *testing.T) {
	g := New()
	added := g.Add(v("main.1"), v("foo"), v("main.2"))

	if got := g.Edge(added.Edge1).Kind; got != Call {
		t.Errorf("Expected first edge to be call, got %q", got)
	}
	if got := g.Edge(added.Edge2).Kind; got != Return {
		t.Errorf("Expected second edge to be ret, got %q", got)
	}
	if !g.IsCall(added.From) {
		t.Error("Expected main.1 to be a call vertex")
	}
	if g.CallTarget(added.From) != g.Lookup("foo") {
		t.Error("Call target should be foo")
	}
	if g.ReturnTarget(added.From) != g.Lookup("main.2") {
		t.Error("Return target should be main.2")
	}
}

func TestAddRetagsExistingEdge(t *testing.T) {
	g := New()
	first := g.Add(v("main.1"), v("main.2"))
	second := g.Add(v("main.1"), v("foo"), v("main.2"))

	if first.Edge1 != second.Edge2 {
		t.Fatalf("Expected the fallthrough edge to be reused, got %d and %d", first.Edge1, second.Edge2)
	}
	if g.NumEdges() != 2 {
		t.Errorf("Expected 2 edges, got %d", g.NumEdges())
	}
	if got := g.Edge(first.Edge1).Kind; got != Return {
		t.Errorf("Expected reused edge to become ret, got %q", got)
	}

	// A plain re-add keeps the existing tag.
	g.Add(v("main.1"), v("main.2"))
	if got := g.Edge(first.Edge1).Kind; got != Return {
		t.Errorf("Expected ret tag to survive a fallthrough re-add, got %q", got)
	}
}

func TestAddOverwritesAttributes(t *testing.T) {
	g := New()
	g.Add(Vertex{Label: "main.1", Location: Location{File: "a.go", Line: 3}})
	g.Add(Vertex{Label: "main.1", Location: Location{File: "b.go", Line: 9}})

	if g.NumVertices() != 1 {
		t.Fatalf("Expected 1 vertex, got %d", g.NumVertices())
	}
	if loc := g.Vertex(g.Lookup("main.1")).Location; loc.File != "b.go" || loc.Line != 9 {
		t.Errorf("Expected last write to win, got %v", loc)
	}
}

func TestAddEmptyLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for empty label")
		}
	}()
	New().Add(Vertex{})
}

func TestLookup(t *testing.T) {
	g := New()
	if g.Lookup("missing") != NoVertex {
		t.Error("Expected NoVertex for a missing label")
	}
	if g.Entry() != NoVertex {
		t.Error("Expected no entry before main.0 is created")
	}

	id := g.FindOrCreate(EntryLabel)
	if g.Entry() != id {
		t.Error("Expected main.0 to become the entry vertex")
	}
}

func TestFunctionOf(t *testing.T) {
	g := New()
	g.Add(v("func1.b0.out"))
	g.Add(Vertex{Label: "weird", Function: "owner"})
	g.Add(v("leaf"))

	tests := []struct {
		label    string
		expected string
	}{
		{"func1.b0.out", "func1"},
		{"weird", "owner"},
		{"leaf", "leaf"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := g.FunctionOf(g.Lookup(tt.label)); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsReturnPoint(t *testing.T) {
	g := New()
	g.Add(v("f.1"), v("f.2"))
	g.Add(v("f.3"), v("main.2"))
	g.AddMayReturn(g.Lookup("f.3"), g.Lookup("main.2"))

	if g.IsReturnPoint(g.Lookup("f.1")) {
		t.Error("f.1 has a plain successor and should not be a return point")
	}
	if !g.IsReturnPoint(g.Lookup("f.2")) {
		t.Error("f.2 has no successors and should be a return point")
	}
	if !g.IsReturnPoint(g.Lookup("f.3")) {
		t.Error("f.3 has a may-return edge and should be a return point")
	}
}

func TestAddMain(t *testing.T) {
	g := New()
	g.Add(v("func1"))
	e := g.AddMain(g.Lookup("func1"))

	edge := g.Edge(e)
	if edge.From != g.Entry() || edge.Kind != Main {
		t.Errorf("Expected main edge from the entry, got %+v", edge)
	}
}

func TestMarks(t *testing.T) {
	g := New()
	a := g.FindOrCreate("a")
	b := g.FindOrCreate("b")
	m := NewMarks(g)

	m.Mark(a)
	m.Mark(a)
	if !m.Visited(a) || m.Visited(b) {
		t.Fatal("Unexpected visited state after marking a")
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 marked vertex, got %d", m.Len())
	}

	late := g.FindOrCreate("late")
	m.Mark(late)
	if !m.Visited(late) {
		t.Error("Expected vertices created after the marks to be markable")
	}

	m.Unmark(a)
	if m.Visited(a) || m.Len() != 1 {
		t.Error("Expected a to be unmarked")
	}

	m.Reset()
	if m.Visited(late) || m.Len() != 0 {
		t.Error("Expected reset to clear everything")
	}
}

func exportGraph() *Graph {
	g := New()
	g.Add(v(EntryLabel), v("main"))
	g.Add(v("main"), v("main.1"))
	g.Add(Vertex{Label: "main.1", Location: Location{File: "main.go", Line: 4}}, v("foo"), v("main.2"))
	g.Add(v("foo"), v("foo.1"))
	g.Add(v("foo.1"), v("foo.2"))
	g.AddMayReturn(g.Lookup("foo.2"), g.Lookup("main.2"))
	return g
}

func TestWriteDotRestricted(t *testing.T) {
	g := exportGraph()

	var buf bytes.Buffer
	if err := g.WriteDot(&buf, "main"); err != nil {
		t.Fatalf("WriteDot failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{`"main"`, `"main.1 (main.go:4)"`, `"main.2"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in restricted dot output:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{`"foo.1"`, `"main.0"`, `"call"`} {
		if strings.Contains(out, unwanted) {
			t.Errorf("Did not expect %s in restricted dot output:\n%s", unwanted, out)
		}
	}
}

func TestWriteDotUnknownStart(t *testing.T) {
	err := exportGraph().WriteDot(&bytes.Buffer{}, "nope")
	if !errors.Is(err, ErrUnknownStart) {
		t.Errorf("Expected ErrUnknownStart, got %v", err)
	}
}

func TestEdgelistRoundTrip(t *testing.T) {
	g := exportGraph()

	var buf bytes.Buffer
	if err := g.WriteEdgelist(&buf); err != nil {
		t.Fatalf("WriteEdgelist failed: %v", err)
	}
	if !strings.Contains(buf.String(), "main.1 foo call main.go:4\n") {
		t.Errorf("Expected call edge with location, got:\n%s", buf.String())
	}

	back, err := ReadEdgelist(&buf)
	if err != nil {
		t.Fatalf("ReadEdgelist failed: %v", err)
	}
	if back.NumEdges() != g.NumEdges() {
		t.Fatalf("Expected %d edges, got %d", g.NumEdges(), back.NumEdges())
	}

	for i := 0; i < g.NumEdges(); i++ {
		e := g.Edge(EdgeID(i))
		from, to := back.Lookup(g.Label(e.From)), back.Lookup(g.Label(e.To))
		if from == NoVertex || to == NoVertex {
			t.Fatalf("Missing vertices for edge %s -> %s", g.Label(e.From), g.Label(e.To))
		}
		found := false
		for _, id := range back.OutEdges(from) {
			if back.Edge(id).To == to {
				found = true
				if back.Edge(id).Kind != e.Kind {
					t.Errorf("Edge %s -> %s: expected kind %q, got %q", g.Label(e.From), g.Label(e.To), e.Kind, back.Edge(id).Kind)
				}
			}
		}
		if !found {
			t.Errorf("Edge %s -> %s lost in round trip", g.Label(e.From), g.Label(e.To))
		}
	}

	if back.Entry() == NoVertex {
		t.Error("Expected main.0 to be the entry of the parsed graph")
	}
}

func TestEdgelistKeepsVertexAttributes(t *testing.T) {
	g := New()
	g.Add(Vertex{
		Label:     "main.1",
		Location:  Location{File: "main.go", Line: 9},
		TargetSet: &TargetSet{Name: "io.Reader.Read", Targets: []string{"bytes_Reader_Read", "os_File_Read"}},
		LabelIDs:  []int{3, 7},
	}, v("os_File_Read"), v("main.2"))
	g.Add(Vertex{Label: "main.b0", Function: "Server_Start"}, v("main.1"))
	g.Add(v("orphan"))

	var buf bytes.Buffer
	if err := g.WriteEdgelist(&buf); err != nil {
		t.Fatalf("WriteEdgelist failed: %v", err)
	}

	back, err := ReadEdgelist(&buf)
	if err != nil {
		t.Fatalf("ReadEdgelist failed: %v\n%s", err, buf.String())
	}

	call := back.Vertex(back.Lookup("main.1"))
	if call.TargetSet == nil || call.TargetSet.Name != "io.Reader.Read" {
		t.Fatalf("Target set lost in round trip: %+v", call.TargetSet)
	}
	if strings.Join(call.TargetSet.Targets, ",") != "bytes_Reader_Read,os_File_Read" {
		t.Errorf("Unexpected targets %v", call.TargetSet.Targets)
	}
	if len(call.LabelIDs) != 2 || call.LabelIDs[0] != 3 || call.LabelIDs[1] != 7 {
		t.Errorf("Unexpected label ids %v", call.LabelIDs)
	}
	if call.Location != (Location{File: "main.go", Line: 9}) {
		t.Errorf("Unexpected location %v", call.Location)
	}
	if back.CallTarget(back.Lookup("main.1")) != back.Lookup("os_File_Read") {
		t.Error("Expected the call edge to survive")
	}

	if fn := back.FunctionOf(back.Lookup("main.b0")); fn != "Server_Start" {
		t.Errorf("Expected explicit function Server_Start, got %s", fn)
	}
	if back.Lookup("orphan") == NoVertex {
		t.Error("Expected the edgeless vertex to survive")
	}
	if back.NumVertices() != g.NumVertices() {
		t.Errorf("Expected %d vertices, got %d", g.NumVertices(), back.NumVertices())
	}
}

func TestReadEdgelistErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"single field", "main.1\n"},
		{"too many fields", "a b call x.go:1 extra\n"},
		{"bad location", "a b nowhere\n"},
		{"bad line number", "a b x.go:abc\n"},
		{"vertex line without label", "@\n"},
		{"unknown vertex attribute", "@ a color=red\n"},
		{"bad label id", "@ a ids=1,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadEdgelist(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
