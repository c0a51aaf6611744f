package ssagraph

import (
	"fmt"
	"go/token"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/smith-xyz/golang-pathgen/pkg/config"
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
)

// Builder translates the user-defined functions of a Program into a flow
// graph. Functions outside the analyzed module become leaf callees.
type Builder struct {
	program  *Program
	classify *config.ContextAwareConfig
	logger   *slog.Logger

	graph     *flowgraph.Graph
	functions []*ssa.Function
	names     map[*ssa.Function]string
	returns   map[*ssa.Function][]flowgraph.VertexID
	labels    map[ssa.Instruction]string
	sites     map[ssa.CallInstruction][]*ssa.Function
}

// NewBuilder creates a builder for p. classify decides which packages get bodies.
func NewBuilder(p *Program, classify *config.ContextAwareConfig, logger *slog.Logger) *Builder {
	return &Builder{
		program:  p,
		classify: classify,
		logger:   logger,
		graph:    flowgraph.New(),
		names:    make(map[*ssa.Function]string),
		returns:  make(map[*ssa.Function][]flowgraph.VertexID),
		labels:   make(map[ssa.Instruction]string),
		sites:    make(map[ssa.CallInstruction][]*ssa.Function),
	}
}

// Build produces the flow graph. It must be called once, before Handlers.
func (b *Builder) Build() *flowgraph.Graph {
	b.indexCallSites()
	b.collectFunctions()

	for _, fn := range b.functions {
		name := b.names[fn]
		b.graph.Add(flowgraph.Vertex{Label: name, Function: name, Location: b.position(fn.Pos())})
	}
	for _, fn := range b.functions {
		b.addBody(fn)
	}

	b.addReturnEdges()
	b.addRoot()

	b.logger.Debug("Built flow graph",
		"functions", len(b.functions),
		"vertices", b.graph.NumVertices(),
		"edges", b.graph.NumEdges())

	return b.graph
}

// Graph returns the graph being built.
func (b *Builder) Graph() *flowgraph.Graph {
	return b.graph
}

func (b *Builder) indexCallSites() {
	if b.program.CallGraph == nil {
		return
	}
	for _, node := range b.program.CallGraph.Nodes {
		if node == nil {
			continue
		}
		for _, edge := range node.Out {
			if edge.Site == nil || edge.Callee == nil || edge.Callee.Func == nil {
				continue
			}
			b.sites[edge.Site] = append(b.sites[edge.Site], edge.Callee.Func)
		}
	}

	for site, callees := range b.sites {
		sort.Slice(callees, func(i, j int) bool {
			return callees[i].String() < callees[j].String()
		})
		b.sites[site] = dedupe(callees)
	}
}

func dedupe(fns []*ssa.Function) []*ssa.Function {
	out := fns[:0]
	for i, fn := range fns {
		if i > 0 && fns[i-1] == fn {
			continue
		}
		out = append(out, fn)
	}
	return out
}

func (b *Builder) collectFunctions() {
	for fn := range ssautil.AllFunctions(b.program.Prog) {
		if !b.hasBody(fn) {
			continue
		}
		b.functions = append(b.functions, fn)
	}
	sort.Slice(b.functions, func(i, j int) bool {
		return b.functions[i].String() < b.functions[j].String()
	})

	taken := make(map[string]bool)
	for _, fn := range b.functions {
		name := FunctionName(fn)
		for i := 2; taken[name]; i++ {
			name = fmt.Sprintf("%s_%d", FunctionName(fn), i)
		}
		taken[name] = true
		b.names[fn] = name
	}
}

func (b *Builder) hasBody(fn *ssa.Function) bool {
	if fn == nil || len(fn.Blocks) == 0 || fn.Synthetic != "" {
		return false
	}
	if fn.TypeParams().Len() > 0 {
		return false
	}
	pkg := packageOf(fn)
	return pkg != nil && b.classify.IsUserDefined(pkg.Path())
}

func (b *Builder) name(fn *ssa.Function) string {
	if name, ok := b.names[fn]; ok {
		return name
	}
	return FunctionName(fn)
}

func blockLabel(fn string, blk *ssa.BasicBlock) string {
	return fmt.Sprintf("%s.b%d", fn, blk.Index)
}

func (b *Builder) addBody(fn *ssa.Function) {
	name := b.names[fn]
	entry := b.graph.Lookup(name)
	b.graph.AddEdge(entry, b.graph.FindOrCreate(blockLabel(name, fn.Blocks[0])), flowgraph.Fallthrough)

	counter := 0
	for _, blk := range fn.Blocks {
		prev := b.graph.Add(flowgraph.Vertex{Label: blockLabel(name, blk), Function: name}).From
		var pending ssa.CallInstruction
		returns := false

		for _, instr := range blk.Instrs {
			switch instr.(type) {
			case *ssa.Call, *ssa.Defer, *ssa.Go, *ssa.If, *ssa.Return, *ssa.Panic:
			default:
				continue
			}

			counter++
			v := flowgraph.Vertex{
				Label:    fmt.Sprintf("%s.%d", name, counter),
				Function: name,
				Location: b.position(instr.Pos()),
			}
			b.labels[instr] = v.Label

			// Deferred and spawned calls are placed where the statement is.
			call, isCall := instr.(ssa.CallInstruction)
			if isCall {
				v.TargetSet = b.targetSet(call)
			}
			if _, ok := instr.(*ssa.Return); ok {
				returns = true
			}

			cur := b.graph.Add(v).From
			b.link(prev, cur, pending)

			pending = nil
			if isCall {
				pending = call
			}
			prev = cur
		}

		out := b.graph.Add(flowgraph.Vertex{Label: blockLabel(name, blk) + ".out", Function: name}).From
		b.link(prev, out, pending)

		if returns {
			b.returns[fn] = append(b.returns[fn], out)
		}
		for _, succ := range blk.Succs {
			b.graph.AddEdge(out, b.graph.FindOrCreate(blockLabel(name, succ)), flowgraph.Fallthrough)
		}
	}
}

// link connects two consecutive vertices. When prev is a call site the
// edge to next becomes its Return edge and a Call edge goes to the callee.
func (b *Builder) link(prev, next flowgraph.VertexID, call ssa.CallInstruction) {
	b.graph.AddEdge(prev, next, flowgraph.Fallthrough)
	if call == nil {
		return
	}

	callee := b.calleeVertex(call)
	if callee == flowgraph.NoVertex {
		return
	}
	b.graph.AddEdge(prev, callee, flowgraph.Call)
	b.graph.AddEdge(prev, next, flowgraph.Return)
}

// calleeVertex returns the entry of the called function: the static callee,
// else the first resolved target, else a leaf for the interface method.
func (b *Builder) calleeVertex(call ssa.CallInstruction) flowgraph.VertexID {
	common := call.Common()
	if fn := common.StaticCallee(); fn != nil {
		return b.functionVertex(fn)
	}
	if targets := b.sites[call]; len(targets) > 0 {
		return b.functionVertex(targets[0])
	}
	if common.IsInvoke() {
		return b.leaf(sanitize(targetSetName(common)))
	}
	return flowgraph.NoVertex
}

func (b *Builder) functionVertex(fn *ssa.Function) flowgraph.VertexID {
	return b.leaf(b.name(fn))
}

func (b *Builder) leaf(name string) flowgraph.VertexID {
	if id := b.graph.Lookup(name); id != flowgraph.NoVertex {
		return id
	}
	return b.graph.Add(flowgraph.Vertex{Label: name, Function: name}).From
}

func (b *Builder) targetSet(call ssa.CallInstruction) *flowgraph.TargetSet {
	common := call.Common()
	if common.StaticCallee() != nil {
		return nil
	}

	targets := b.sites[call]
	if !common.IsInvoke() && len(targets) < 2 {
		return nil
	}

	name := targetSetName(common)
	if name == "" {
		return nil
	}

	ts := &flowgraph.TargetSet{Name: name}
	for _, fn := range targets {
		ts.Targets = append(ts.Targets, b.name(fn))
	}
	return ts
}

// addReturnEdges connects every returning block of a function to the
// return site of every call into it.
func (b *Builder) addReturnEdges() {
	for _, fn := range b.functions {
		rets := b.returns[fn]
		if len(rets) == 0 {
			continue
		}

		entry := b.graph.Lookup(b.names[fn])
		for _, e := range b.graph.InEdges(entry) {
			edge := b.graph.Edge(e)
			if edge.Kind != flowgraph.Call {
				continue
			}
			site := b.graph.ReturnTarget(edge.From)
			if site == flowgraph.NoVertex {
				continue
			}
			for _, ret := range rets {
				b.graph.AddMayReturn(ret, site)
			}
		}
	}
}

// addRoot connects main.0 to main, or to every function when the analyzed
// packages have no main.
func (b *Builder) addRoot() {
	root := b.graph.Add(flowgraph.Vertex{Label: flowgraph.EntryLabel}).From

	for _, fn := range b.functions {
		if fn.Name() == "main" && fn.Signature.Recv() == nil && fn.Parent() == nil && packageOf(fn).Name() == "main" {
			b.graph.AddEdge(root, b.graph.Lookup(b.names[fn]), flowgraph.Fallthrough)
			return
		}
	}

	for _, fn := range b.functions {
		b.graph.AddMain(b.graph.Lookup(b.names[fn]))
	}
}

func (b *Builder) position(pos token.Pos) flowgraph.Location {
	if !pos.IsValid() || b.program.Prog == nil {
		return flowgraph.Location{}
	}
	p := b.program.Prog.Fset.Position(pos)
	return flowgraph.Location{File: filepath.Base(p.Filename), Line: p.Line}
}

// Functions lists the names of the functions that got a body, sorted.
func (b *Builder) Functions() []string {
	names := make([]string, 0, len(b.functions))
	for _, fn := range b.functions {
		names = append(names, b.names[fn])
	}
	sort.Strings(names)
	return names
}

// callName mirrors the name a path prints for the call instruction.
func (b *Builder) callName(call ssa.CallInstruction) (string, bool) {
	label, ok := b.labels[call]
	if !ok {
		return "", false
	}
	id := b.graph.Lookup(label)
	if ts := b.graph.Vertex(id).TargetSet; ts != nil && ts.Name != "" {
		return strings.ReplaceAll(ts.Name, ".", "_"), true
	}
	target := b.graph.CallTarget(id)
	if target == flowgraph.NoVertex {
		return "", false
	}
	return b.graph.FunctionOf(target), true
}
