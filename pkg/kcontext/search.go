// Package kcontext finds bounded, context-sensitive paths around call sites
// of interesting functions and stitches them into annotated records.
package kcontext

import (
	"fmt"

	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
	"github.com/smith-xyz/golang-pathgen/pkg/path"
)

// Direction selects which edges a search follows.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// DefaultIterationFactor multiplied by the maximum path length bounds the
// work of one search.
const DefaultIterationFactor = 1000

// Options configures one search.
type Options struct {
	MaxLength       int
	IterationFactor int
	Direction       Direction

	// On and Off are the handler label sets for this direction. The search
	// itself does not consult them.
	On  map[string]struct{}
	Off map[string]struct{}
}

// Metrics receives search events. Implementations must be safe for
// concurrent use when searches run in parallel.
type Metrics interface {
	IncThresholdHits()
}

// Search enumerates simple paths of at most MaxLength vertices leaving seed
// in the given direction, without entering callees. Paths are deduplicated
// by callsite signature. A seed that is not a call site yields nothing.
func Search(g *flowgraph.Graph, seed flowgraph.VertexID, opts Options, marks *flowgraph.Marks, m Metrics) []*path.Path {
	if !g.Contains(seed) {
		panic(fmt.Sprintf("kcontext: search from unknown vertex %d", seed))
	}
	if !g.IsCall(seed) {
		return nil
	}

	if marks == nil {
		marks = flowgraph.NewMarks(g)
	}

	factor := opts.IterationFactor
	if factor <= 0 {
		factor = DefaultIterationFactor
	}
	budget := factor * opts.MaxLength

	p := path.New(g, marks)
	p.Add(seed)
	marks.Mark(seed)

	stack := frontier(g, nil, seed, opts.Direction)
	seen := make(map[string]struct{})
	var result []*path.Path

	emit := func() {
		sig := p.Signature()
		if _, ok := seen[sig]; ok {
			return
		}
		seen[sig] = struct{}{}
		result = append(result, p.Clone())
	}

	iterations := 0
	for len(stack) > 0 {
		e := g.Edge(stack[len(stack)-1])
		stack = stack[:len(stack)-1]

		if p.Len() >= opts.MaxLength {
			continue
		}

		iterations++
		if iterations > budget {
			if m != nil {
				m.IncThresholdHits()
			}
			break
		}

		tail, head := e.From, e.To
		if opts.Direction == Backward {
			tail, head = e.To, e.From
		}

		if p.NeedsRewind(tail) {
			emit()
			p.Rewind(tail)
		}

		if marks.Visited(head) {
			continue
		}

		p.Add(head)
		marks.Mark(head)
		stack = frontier(g, stack, head, opts.Direction)
	}

	if !p.Empty() {
		for _, v := range p.Vertices() {
			marks.Unmark(v)
		}
		emit()
	}

	return result
}

// frontier pushes the edges a search may follow out of v. Call sites are
// atomic: forward searches never take a Call edge into the callee and
// backward searches never climb a MayReturn edge out of one.
func frontier(g *flowgraph.Graph, stack []flowgraph.EdgeID, v flowgraph.VertexID, dir Direction) []flowgraph.EdgeID {
	if dir == Forward {
		for _, e := range g.OutEdges(v) {
			if g.Edge(e).Kind != flowgraph.Call {
				stack = append(stack, e)
			}
		}
		return stack
	}

	for _, e := range g.InEdges(v) {
		if g.Edge(e).Kind != flowgraph.MayReturn {
			stack = append(stack, e)
		}
	}
	return stack
}
