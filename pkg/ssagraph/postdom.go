package ssagraph

import "golang.org/x/tools/go/ssa"

// postDominators holds, for every block of a function, the set of blocks
// that lie on every path from it to a block without successors.
type postDominators struct {
	fn   *ssa.Function
	sets [][]bool
}

func newPostDominators(fn *ssa.Function) *postDominators {
	n := len(fn.Blocks)
	sets := make([][]bool, n)
	for i, blk := range fn.Blocks {
		sets[i] = make([]bool, n)
		if len(blk.Succs) == 0 {
			sets[i][i] = true
			continue
		}
		for j := range sets[i] {
			sets[i][j] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for i := n - 1; i >= 0; i-- {
			blk := fn.Blocks[i]
			if len(blk.Succs) == 0 {
				continue
			}

			next := make([]bool, n)
			for j := range next {
				next[j] = true
			}
			for _, succ := range blk.Succs {
				for j := range next {
					next[j] = next[j] && sets[succ.Index][j]
				}
			}
			next[i] = true

			if !equalSets(next, sets[i]) {
				sets[i] = next
				changed = true
			}
		}
	}

	return &postDominators{fn: fn, sets: sets}
}

func equalSets(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// postDominates reports whether every path from blk to an exit passes through d.
func (p *postDominators) postDominates(d, blk *ssa.BasicBlock) bool {
	return p.sets[blk.Index][d.Index]
}

// nearestCommon returns the closest block post-dominating both a and b, or
// nil when they only meet at the function exit.
func (p *postDominators) nearestCommon(a, b *ssa.BasicBlock) *ssa.BasicBlock {
	best, bestSize := -1, -1
	for j := range p.sets[a.Index] {
		if !p.sets[a.Index][j] || !p.sets[b.Index][j] {
			continue
		}
		// The nearest common post-dominator is post-dominated by all the others.
		size := 0
		for _, in := range p.sets[j] {
			if in {
				size++
			}
		}
		if size > bestSize {
			best, bestSize = j, size
		}
	}
	if best < 0 {
		return nil
	}
	return p.fn.Blocks[best]
}
