package kcontext

import (
	"slices"

	"github.com/smith-xyz/golang-pathgen/pkg/models"
	"github.com/smith-xyz/golang-pathgen/pkg/oracle"
	"github.com/smith-xyz/golang-pathgen/pkg/path"
)

// annotateErrors relates calls on p to the error checks around them. It
// sets the path's return marker and the handler membership sets that
// Output consults. keep is false when the path has no visible call left
// once tested calls are removed.
func annotateErrors(p *path.Path, h *oracle.Handlers, returnMarker string) (records []models.Record, keep bool) {
	g := p.Graph()
	p.ReturnMarker = returnMarker

	// A call whose result is tested on an error branch of this path is
	// reported through the ERR_ records instead.
	for _, v := range slices.Clone(p.Vertices()) {
		if !h.IsOn(g.Label(v)) {
			continue
		}
		if tested, ok := h.TestedFunctionFor(g.Label(v)); ok {
			p.RemoveCall(tested)
		}
	}

	if len(p.OutputVertices()) == 0 {
		return nil, false
	}

	var errPathFor, noErrPathFor []string
	emittedErr := false

	for _, v := range p.Vertices() {
		label := g.Label(v)

		if h.IsOn(label) {
			p.HandlerOn[v] = struct{}{}
			if tested, ok := h.TestedFunctionFor(label); ok {
				errPathFor = append(errPathFor, tested)
			}
		}
		if h.IsNot(label) {
			p.NoHandlerOn[v] = struct{}{}
			if tested, ok := h.TestedFunctionFor(label); ok {
				noErrPathFor = append(noErrPathFor, tested)
			}
		}

		if !p.IsVisible(v) {
			continue
		}
		call := p.CallName(v)

		for _, tested := range errPathFor {
			records = append(records, models.Record{"ERR_" + tested, call})
			emittedErr = true
		}
		for _, tested := range noErrPathFor {
			if slices.Contains(errPathFor, call) || slices.Contains(errPathFor, tested) {
				continue
			}
			records = append(records, models.Record{"NO_ERR_" + tested, call})
		}
	}

	if !emittedErr {
		for _, tested := range errPathFor {
			records = append(records, models.Record{"ERR_" + tested})
		}
	}

	return records, true
}
