package flowgraph

// Marks is a search-local visited set. A vertex is marked when its stamp
// equals the current generation, so Reset only bumps the generation.
type Marks struct {
	stamps     []uint32
	generation uint32
	marked     int
}

// NewMarks returns an empty visited set sized for g.
func NewMarks(g *Graph) *Marks {
	return &Marks{
		stamps:     make([]uint32, g.NumVertices()),
		generation: 1,
	}
}

// Mark adds id to the set.
func (m *Marks) Mark(id VertexID) {
	m.grow(id)
	if m.stamps[id] == m.generation {
		return
	}
	m.stamps[id] = m.generation
	m.marked++
}

// Unmark removes id from the set.
func (m *Marks) Unmark(id VertexID) {
	if !m.Visited(id) {
		return
	}
	m.stamps[id] = 0
	m.marked--
}

// Visited reports whether id is in the set.
func (m *Marks) Visited(id VertexID) bool {
	return int(id) < len(m.stamps) && m.stamps[id] == m.generation
}

// Len returns the number of marked vertices.
func (m *Marks) Len() int {
	return m.marked
}

// Reset unmarks everything.
func (m *Marks) Reset() {
	m.marked = 0
	m.generation++
	if m.generation == 0 {
		clear(m.stamps)
		m.generation = 1
	}
}

func (m *Marks) grow(id VertexID) {
	if int(id) < len(m.stamps) {
		return
	}
	stamps := make([]uint32, int(id)+1)
	copy(stamps, m.stamps)
	m.stamps = stamps
}
