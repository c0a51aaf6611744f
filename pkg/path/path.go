// Package path holds the ordered vertex sequences produced by the
// context-sensitive search and the views derived from them.
package path

import (
	"fmt"
	"strings"

	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
)

// Path is an ordered sequence of vertices of one graph. Visible call sites
// and the parent sequence are maintained as vertices are added.
type Path struct {
	graph *flowgraph.Graph
	marks *flowgraph.Marks

	vertices []flowgraph.VertexID
	outputs  []flowgraph.VertexID

	parents      []string
	parentsValid bool

	// Prefix is prepended to every emitted call name.
	Prefix string
	// ReturnMarker enables RETURN_ tokens in Output when non-empty.
	ReturnMarker string

	HandlerOn   map[flowgraph.VertexID]struct{}
	NoHandlerOn map[flowgraph.VertexID]struct{}
}

// New returns an empty path over g. Rewind clears popped vertices in marks,
// which may be nil.
func New(g *flowgraph.Graph, marks *flowgraph.Marks) *Path {
	return &Path{
		graph:        g,
		marks:        marks,
		parentsValid: true,
		HandlerOn:    make(map[flowgraph.VertexID]struct{}),
		NoHandlerOn:  make(map[flowgraph.VertexID]struct{}),
	}
}

// Clone rebuilds the path by replaying Add, so derived state is recomputed.
// The clone shares the graph and prefix but not the marks.
func (p *Path) Clone() *Path {
	c := New(p.graph, nil)
	c.Prefix = p.Prefix
	for _, v := range p.vertices {
		c.Add(v)
	}
	return c
}

// Add appends v. A call vertex becomes visible when no callee is already
// an open frame of the path.
func (p *Path) Add(v flowgraph.VertexID) {
	if !p.graph.Contains(v) {
		panic(fmt.Sprintf("path: add of unknown vertex %d", v))
	}

	visible := p.isVisibleCall(v)
	p.vertices = append(p.vertices, v)
	if visible {
		p.outputs = append(p.outputs, v)
	}

	name := p.graph.FunctionOf(v)
	parents := p.ParentSequence()
	if len(parents) == 0 || parents[len(parents)-1] != name {
		p.parents = append(p.parents, name)
	}
}

func (p *Path) isVisibleCall(v flowgraph.VertexID) bool {
	if !p.graph.IsCall(v) {
		return false
	}

	parents := p.ParentSequence()
	for _, e := range p.graph.OutEdges(v) {
		edge := p.graph.Edge(e)
		if edge.Kind != flowgraph.Call {
			continue
		}
		callee := p.graph.FunctionOf(edge.To)
		for _, name := range parents {
			if name == callee {
				return false
			}
		}
	}
	return true
}

// Remove erases every occurrence of v.
func (p *Path) Remove(v flowgraph.VertexID) {
	p.vertices = without(p.vertices, v)
	p.outputs = without(p.outputs, v)
	p.parentsValid = false
}

func without(ids []flowgraph.VertexID, v flowgraph.VertexID) []flowgraph.VertexID {
	kept := ids[:0]
	for _, id := range ids {
		if id != v {
			kept = append(kept, id)
		}
	}
	return kept
}

// RemoveCall erases every visible call vertex whose call name is name.
func (p *Path) RemoveCall(name string) {
	var doomed []flowgraph.VertexID
	for _, v := range p.outputs {
		if p.CallName(v) == name {
			doomed = append(doomed, v)
		}
	}
	for _, v := range doomed {
		p.Remove(v)
	}
}

// Reverse reverses the vertex and visible-call order in place.
func (p *Path) Reverse() {
	reverse(p.vertices)
	reverse(p.outputs)
	p.parentsValid = false
}

func reverse(ids []flowgraph.VertexID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// NeedsRewind reports whether the path is non-empty and does not end at v.
func (p *Path) NeedsRewind(v flowgraph.VertexID) bool {
	return len(p.vertices) > 0 && p.vertices[len(p.vertices)-1] != v
}

// Rewind pops vertices until v is last or the path is empty. Popped
// vertices are unmarked; v keeps its mark.
func (p *Path) Rewind(v flowgraph.VertexID) {
	if !p.graph.Contains(v) {
		panic(fmt.Sprintf("path: rewind to unknown vertex %d", v))
	}
	if !p.NeedsRewind(v) {
		return
	}

	for len(p.vertices) > 0 && p.vertices[len(p.vertices)-1] != v {
		last := p.vertices[len(p.vertices)-1]
		p.vertices = p.vertices[:len(p.vertices)-1]

		if p.marks != nil {
			p.marks.Unmark(last)
		}
		if n := len(p.outputs); n > 0 && p.outputs[n-1] == last {
			p.outputs = p.outputs[:n-1]
		}
	}
	p.parentsValid = false
}

// ValidMatch reports whether the shorter parent sequence is a prefix of the longer.
func (p *Path) ValidMatch(other *Path) bool {
	a, b := p.ParentSequence(), other.ParentSequence()
	if len(a) > len(b) {
		a, b = b, a
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParentSequence is the run-length collapsed list of enclosing functions.
func (p *Path) ParentSequence() []string {
	if p.parentsValid {
		return p.parents
	}

	p.parents = p.parents[:0]
	for _, v := range p.vertices {
		name := p.graph.FunctionOf(v)
		if len(p.parents) == 0 || p.parents[len(p.parents)-1] != name {
			p.parents = append(p.parents, name)
		}
	}
	p.parentsValid = true
	return p.parents
}

// CallName returns the name printed for a call vertex: the normalized
// target-set name of an indirect call, otherwise the callee's function.
func (p *Path) CallName(v flowgraph.VertexID) string {
	if ts := p.graph.Vertex(v).TargetSet; ts != nil && ts.Name != "" {
		return normalize(ts.Name)
	}
	if target := p.graph.CallTarget(v); target != flowgraph.NoVertex {
		return p.graph.FunctionOf(target)
	}
	return ""
}

func normalize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' {
			return '_'
		}
		return r
	}, name)
}

// Signature identifies the path by its visible call sites.
func (p *Path) Signature() string {
	var sb strings.Builder
	for _, v := range p.outputs {
		sb.WriteString(p.graph.Label(v))
	}
	return sb.String()
}

// Output renders the visible calls in order, with RETURN_ tokens at return
// points when a return marker is set.
func (p *Path) Output() []string {
	visible := make(map[flowgraph.VertexID]struct{}, len(p.outputs))
	for _, v := range p.outputs {
		visible[v] = struct{}{}
	}

	var out []string
	inErr, inNoErr := false, false

	for _, v := range p.vertices {
		if _, ok := visible[v]; ok {
			out = append(out, p.Prefix+p.CallName(v))
		}

		if _, ok := p.HandlerOn[v]; ok {
			inErr = true
			inNoErr = false
		}
		if _, ok := p.NoHandlerOn[v]; ok {
			inNoErr = true
		}

		if p.ReturnMarker != "" && p.graph.IsReturnPoint(v) {
			switch {
			case inErr:
				out = append(out, "RETURN_ERR")
			case inNoErr:
				out = append(out, "RETURN_NO_ERR")
			default:
				out = append(out, "RETURN_"+p.ReturnMarker)
			}
		}
	}
	return out
}

// IsVisible reports whether v is one of the recorded visible call vertices.
func (p *Path) IsVisible(v flowgraph.VertexID) bool {
	for _, o := range p.outputs {
		if o == v {
			return true
		}
	}
	return false
}

// Vertices returns the path's vertices. Callers must not modify the slice.
func (p *Path) Vertices() []flowgraph.VertexID {
	return p.vertices
}

// OutputVertices returns the visible call vertices in path order.
func (p *Path) OutputVertices() []flowgraph.VertexID {
	return p.outputs
}

// Graph returns the graph the path walks.
func (p *Path) Graph() *flowgraph.Graph {
	return p.graph
}

func (p *Path) Len() int {
	return len(p.vertices)
}

func (p *Path) Empty() bool {
	return len(p.vertices) == 0
}

// String lists vertex labels, mostly for test failures and debug logs.
func (p *Path) String() string {
	labels := make([]string, len(p.vertices))
	for i, v := range p.vertices {
		labels[i] = p.graph.Label(v)
	}
	return strings.Join(labels, " -> ")
}
