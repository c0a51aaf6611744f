package ssagraph

import (
	"go/constant"
	"go/token"

	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-pathgen/pkg/oracle"
)

// Handlers classifies the branches that test a call result against nil or
// a constant. The error side of the branch is where v != nil, v == nil is
// false, or v < 0 holds. Build must have run first.
func (b *Builder) Handlers() *oracle.Handlers {
	h := oracle.New()

	for _, fn := range b.functions {
		name := b.names[fn]
		var pdom *postDominators

		for _, blk := range fn.Blocks {
			if len(blk.Instrs) == 0 || len(blk.Succs) != 2 {
				continue
			}
			branch, ok := blk.Instrs[len(blk.Instrs)-1].(*ssa.If)
			if !ok {
				continue
			}

			tested, errSide, ok := b.classifyBranch(branch)
			if !ok {
				continue
			}

			if pdom == nil {
				pdom = newPostDominators(fn)
			}

			handler, other := blk.Succs[errSide], blk.Succs[1-errSide]
			if pdom.postDominates(handler, other) {
				// The error side is where both sides meet: nothing handles the error.
				continue
			}

			joinLabel := ""
			if join := pdom.nearestCommon(handler, other); join != nil {
				joinLabel = blockLabel(name, join)
			}

			h.AddBranch(b.labels[branch], tested, blockLabel(name, handler), blockLabel(name, other), joinLabel)
		}
	}

	b.logger.Debug("Classified error branches", "branches", h.Len())
	return h
}

// classifyBranch returns the tested function and the index of the error
// successor for an if on a comparison between a call result and a constant.
func (b *Builder) classifyBranch(branch *ssa.If) (string, int, bool) {
	cond, ok := branch.Cond.(*ssa.BinOp)
	if !ok {
		return "", 0, false
	}

	x, y, op := cond.X, cond.Y, cond.Op
	if _, isConst := x.(*ssa.Const); isConst {
		x, y, op = y, x, mirror(op)
	}
	c, ok := y.(*ssa.Const)
	if !ok {
		return "", 0, false
	}

	tested, ok := b.testedCall(x)
	if !ok {
		return "", 0, false
	}

	switch op {
	case token.NEQ:
		return tested, 0, true
	case token.EQL:
		return tested, 1, true
	case token.LSS:
		if isZero(c) {
			return tested, 0, true
		}
	case token.GEQ:
		if isZero(c) {
			return tested, 1, true
		}
	}
	return "", 0, false
}

func (b *Builder) testedCall(v ssa.Value) (string, bool) {
	switch val := v.(type) {
	case *ssa.Call:
		return b.callName(val)
	case *ssa.Extract:
		if call, ok := val.Tuple.(*ssa.Call); ok {
			return b.callName(call)
		}
	}
	return "", false
}

func mirror(op token.Token) token.Token {
	switch op {
	case token.LSS:
		return token.GTR
	case token.GTR:
		return token.LSS
	case token.LEQ:
		return token.GEQ
	case token.GEQ:
		return token.LEQ
	}
	return op
}

func isZero(c *ssa.Const) bool {
	if c.Value == nil {
		return false
	}
	switch c.Value.Kind() {
	case constant.Int, constant.Float:
		return constant.Sign(c.Value) == 0
	}
	return false
}
