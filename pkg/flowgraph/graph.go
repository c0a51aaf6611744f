package flowgraph

import (
	"fmt"
	"strings"
)

// EntryLabel is the synthetic root vertex of every graph.
const EntryLabel = "main.0"

// VertexID indexes a vertex inside its Graph.
type VertexID int

// NoVertex is returned by lookups that find nothing.
const NoVertex VertexID = -1

// EdgeID indexes an edge inside its Graph.
type EdgeID int

// EdgeKind tags an edge. The zero value is a plain fallthrough.
type EdgeKind int

const (
	Fallthrough EdgeKind = iota
	// Call goes from a call site to the callee's entry vertex.
	Call
	// Return goes from a call site to the vertex that follows it in the caller.
	Return
	// MayReturn goes from a return vertex to every return site of the function.
	MayReturn
	// Main connects the synthetic root to functions when there is no main.
	Main
)

func (k EdgeKind) String() string {
	switch k {
	case Call:
		return "call"
	case Return:
		return "ret"
	case MayReturn:
		return "may_ret"
	case Main:
		return "main"
	default:
		return ""
	}
}

// ParseEdgeKind is the inverse of EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch s {
	case "call":
		return Call, true
	case "ret":
		return Return, true
	case "may_ret":
		return MayReturn, true
	case "main":
		return Main, true
	case "":
		return Fallthrough, true
	}
	return Fallthrough, false
}

// Location is a source position. Line 0 means unknown.
type Location struct {
	File string
	Line int
}

// Empty reports whether the location is unknown.
func (l Location) Empty() bool {
	return l.Line == 0
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// TargetSet names the possible callees of an indirect call site.
type TargetSet struct {
	Name    string
	Targets []string
}

// Vertex is one node of the flow graph, addressed by its stack label.
type Vertex struct {
	Label     string
	Function  string
	Location  Location
	TargetSet *TargetSet
	LabelIDs  []int
}

// Edge is a directed, typed connection between two vertices.
type Edge struct {
	From VertexID
	To   VertexID
	Kind EdgeKind
}

// Added reports the vertices and edges touched by Graph.Add.
type Added struct {
	From  VertexID
	To1   VertexID
	To2   VertexID
	Edge1 EdgeID
	Edge2 EdgeID
}

// Graph is an append-only, label-addressed interprocedural flow graph.
// It is not safe for concurrent mutation; concurrent reads are fine.
type Graph struct {
	vertices []Vertex
	edges    []Edge
	out      [][]EdgeID
	in       [][]EdgeID
	labels   map[string]VertexID
	pairs    map[[2]VertexID]EdgeID
	entry    VertexID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		labels: make(map[string]VertexID),
		pairs:  make(map[[2]VertexID]EdgeID),
		entry:  NoVertex,
	}
}

// Add inserts or updates from and connects it to the optional targets.
// With two targets the first edge is a Call and the second a Return.
// Existing vertices are overwritten with the given attributes.
func (g *Graph) Add(from Vertex, to ...Vertex) Added {
	if from.Label == "" {
		panic("flowgraph: add called with an empty label")
	}
	if len(to) > 2 {
		panic(fmt.Sprintf("flowgraph: add called with %d targets", len(to)))
	}

	added := Added{From: g.put(from), To1: NoVertex, To2: NoVertex, Edge1: -1, Edge2: -1}

	if len(to) > 0 && to[0].Label != "" {
		added.To1 = g.put(to[0])
		added.Edge1 = g.AddEdge(added.From, added.To1, Fallthrough)
	}

	if len(to) > 1 && to[1].Label != "" {
		added.To2 = g.put(to[1])
		added.Edge2 = g.AddEdge(added.From, added.To2, Return)
		if added.Edge1 >= 0 {
			g.edges[added.Edge1].Kind = Call
		}
	}

	return added
}

func (g *Graph) put(v Vertex) VertexID {
	id := g.FindOrCreate(v.Label)
	g.vertices[id] = v
	return id
}

// AddEdge connects from and to. A second edge between the same pair is
// never created: the existing edge is returned and re-tagged unless kind
// is Fallthrough.
func (g *Graph) AddEdge(from, to VertexID, kind EdgeKind) EdgeID {
	g.mustExist(from)
	g.mustExist(to)

	key := [2]VertexID{from, to}
	if id, ok := g.pairs[key]; ok {
		if kind != Fallthrough {
			g.edges[id].Kind = kind
		}
		return id
	}

	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{From: from, To: to, Kind: kind})
	g.out[from] = append(g.out[from], id)
	g.in[to] = append(g.in[to], id)
	g.pairs[key] = id
	return id
}

// AddMayReturn connects a return vertex to a possible return site.
func (g *Graph) AddMayReturn(from, to VertexID) EdgeID {
	return g.AddEdge(from, to, MayReturn)
}

// AddMain connects the synthetic root to a function entry.
func (g *Graph) AddMain(to VertexID) EdgeID {
	return g.AddEdge(g.FindOrCreate(EntryLabel), to, Main)
}

// FindOrCreate returns the vertex for label, creating an empty one if needed.
func (g *Graph) FindOrCreate(label string) VertexID {
	if label == "" {
		panic("flowgraph: vertex with an empty label")
	}
	if id, ok := g.labels[label]; ok {
		return id
	}

	id := VertexID(len(g.vertices))
	g.vertices = append(g.vertices, Vertex{Label: label})
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.labels[label] = id

	if label == EntryLabel {
		g.entry = id
	}
	return id
}

// Lookup returns the vertex for label or NoVertex.
func (g *Graph) Lookup(label string) VertexID {
	if id, ok := g.labels[label]; ok {
		return id
	}
	return NoVertex
}

// Entry returns the synthetic root or NoVertex if it was never created.
func (g *Graph) Entry() VertexID {
	return g.entry
}

// Vertex returns the attributes of id. The pointer stays valid until the next insertion.
func (g *Graph) Vertex(id VertexID) *Vertex {
	g.mustExist(id)
	return &g.vertices[id]
}

// Label is shorthand for Vertex(id).Label.
func (g *Graph) Label(id VertexID) string {
	return g.Vertex(id).Label
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) Edge {
	return g.edges[id]
}

// OutEdges lists the outgoing edges of id in insertion order.
func (g *Graph) OutEdges(id VertexID) []EdgeID {
	g.mustExist(id)
	return g.out[id]
}

// InEdges lists the incoming edges of id in insertion order.
func (g *Graph) InEdges(id VertexID) []EdgeID {
	g.mustExist(id)
	return g.in[id]
}

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int {
	return len(g.vertices)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// Contains reports whether id names a vertex of g.
func (g *Graph) Contains(id VertexID) bool {
	return id >= 0 && int(id) < len(g.vertices)
}

// FunctionOf returns the enclosing function of id: the explicit attribute
// when set, otherwise the label up to its first dot.
func (g *Graph) FunctionOf(id VertexID) string {
	v := g.Vertex(id)
	if v.Function != "" {
		return v.Function
	}
	return FunctionFromLabel(v.Label)
}

// FunctionFromLabel returns the part of a stack label before the first dot.
func FunctionFromLabel(label string) string {
	if idx := strings.IndexByte(label, '.'); idx >= 0 {
		return label[:idx]
	}
	return label
}

// IsCall reports whether id has an outgoing Call edge.
func (g *Graph) IsCall(id VertexID) bool {
	return g.CallTarget(id) != NoVertex
}

// CallTarget returns the callee entry of a call site or NoVertex.
func (g *Graph) CallTarget(id VertexID) VertexID {
	for _, e := range g.OutEdges(id) {
		if g.edges[e].Kind == Call {
			return g.edges[e].To
		}
	}
	return NoVertex
}

// ReturnTarget returns the continuation of a call site or NoVertex.
func (g *Graph) ReturnTarget(id VertexID) VertexID {
	for _, e := range g.OutEdges(id) {
		if g.edges[e].Kind == Return {
			return g.edges[e].To
		}
	}
	return NoVertex
}

// IsReturnPoint reports whether control leaves the function at id.
func (g *Graph) IsReturnPoint(id VertexID) bool {
	out := g.OutEdges(id)
	if len(out) == 0 {
		return true
	}
	for _, e := range out {
		if g.edges[e].Kind == MayReturn {
			return true
		}
	}
	return false
}

func (g *Graph) mustExist(id VertexID) {
	if !g.Contains(id) {
		panic(fmt.Sprintf("flowgraph: vertex %d does not exist", id))
	}
}
