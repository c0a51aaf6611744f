package flowgraph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownStart is returned when a dot export is restricted to a label
// the graph does not contain.
var ErrUnknownStart = errors.New("start label not found in graph")

// WriteDot writes the graph in Graphviz format. With a non-empty start only
// the vertices reachable from it are written, without descending into
// callees or following may-return edges.
func (g *Graph) WriteDot(w io.Writer, start string) error {
	keep := func(VertexID) bool { return true }

	if start != "" {
		root := g.Lookup(start)
		if root == NoVertex {
			return fmt.Errorf("%w: %s", ErrUnknownStart, start)
		}
		reachable := g.reachableWithinFunction(root)
		keep = func(id VertexID) bool { return reachable[id] }
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph G {")

	for id := range g.vertices {
		vid := VertexID(id)
		if !keep(vid) {
			continue
		}
		fmt.Fprintf(bw, "%d[label=%s];\n", id, strconv.Quote(g.dotLabel(vid)))
	}

	for _, e := range g.edges {
		if !keep(e.From) || !keep(e.To) {
			continue
		}
		if e.Kind == Fallthrough {
			fmt.Fprintf(bw, "%d->%d ;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(bw, "%d->%d [label=%s];\n", e.From, e.To, strconv.Quote(e.Kind.String()))
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (g *Graph) dotLabel(id VertexID) string {
	v := g.vertices[id]
	if v.Location.Empty() {
		return v.Label
	}
	return fmt.Sprintf("%s (%s)", v.Label, v.Location)
}

func (g *Graph) reachableWithinFunction(root VertexID) map[VertexID]bool {
	seen := map[VertexID]bool{root: true}
	stack := []VertexID{root}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, eid := range g.out[cur] {
			e := g.edges[eid]
			if e.Kind == Call || e.Kind == MayReturn || seen[e.To] {
				continue
			}
			seen[e.To] = true
			stack = append(stack, e.To)
		}
	}
	return seen
}

// WriteEdgelist writes one "source target [kind] [file:line]" line per
// edge, sorted by source and target label. The location is the source's.
// Vertices with attributes an edge line cannot carry, or with no edges at
// all, are written first as "@ label [fn=] [ts=] [targets=] [ids=] [file:line]".
func (g *Graph) WriteEdgelist(w io.Writer) error {
	bw := bufio.NewWriter(w)

	order := make([]VertexID, len(g.vertices))
	for i := range order {
		order[i] = VertexID(i)
	}
	sort.Slice(order, func(i, j int) bool {
		return g.vertices[order[i]].Label < g.vertices[order[j]].Label
	})
	for _, id := range order {
		if line, ok := g.attributeLine(id); ok {
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return err
			}
		}
	}

	ids := make([]EdgeID, len(g.edges))
	for i := range ids {
		ids[i] = EdgeID(i)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.edges[ids[i]], g.edges[ids[j]]
		la, lb := g.vertices[a.From].Label, g.vertices[b.From].Label
		if la != lb {
			return la < lb
		}
		return g.vertices[a.To].Label < g.vertices[b.To].Label
	})

	for _, id := range ids {
		e := g.edges[id]
		from := g.vertices[e.From]
		line := from.Label + " " + g.vertices[e.To].Label
		if kind := e.Kind.String(); kind != "" {
			line += " " + kind
		}
		if !from.Location.Empty() {
			line += " " + from.Location.String()
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (g *Graph) attributeLine(id VertexID) (string, bool) {
	v := g.vertices[id]
	var fields []string

	if v.Function != "" && v.Function != FunctionFromLabel(v.Label) {
		fields = append(fields, "fn="+v.Function)
	}
	if ts := v.TargetSet; ts != nil {
		fields = append(fields, "ts="+ts.Name)
		if len(ts.Targets) > 0 {
			fields = append(fields, "targets="+strings.Join(ts.Targets, ","))
		}
	}
	if len(v.LabelIDs) > 0 {
		ids := make([]string, len(v.LabelIDs))
		for i, n := range v.LabelIDs {
			ids[i] = strconv.Itoa(n)
		}
		fields = append(fields, "ids="+strings.Join(ids, ","))
	}

	isolated := len(g.out[id]) == 0 && len(g.in[id]) == 0
	if len(fields) == 0 && !isolated {
		return "", false
	}
	if !v.Location.Empty() {
		fields = append(fields, v.Location.String())
	}
	return strings.Join(append([]string{"@", v.Label}, fields...), " "), true
}
