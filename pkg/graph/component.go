package graph

// UnionFind is a disjoint-set forest over node indices 0..n-1. Smaller
// sets are attached under larger ones and Find halves paths as it walks.
type UnionFind struct {
	parent []uint32
	size   []uint32
	sets   int
}

// NewUnionFind returns n singleton sets.
func NewUnionFind(n uint32) *UnionFind {
	uf := &UnionFind{
		parent: make([]uint32, n),
		size:   make([]uint32, n),
		sets:   int(n),
	}
	for i := uint32(0); i < n; i++ {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

// Find returns the root of x's set.
func (uf *UnionFind) Find(x uint32) uint32 {
	for p := uf.parent[x]; p != x; p = uf.parent[x] {
		uf.parent[x] = uf.parent[p]
		x = p
	}
	return x
}

// Union joins the sets of x and y and reports whether they were separate.
func (uf *UnionFind) Union(x, y uint32) bool {
	a, b := uf.Find(x), uf.Find(y)
	if a == b {
		return false
	}
	if uf.size[a] < uf.size[b] {
		a, b = b, a
	}
	uf.parent[b] = a
	uf.size[a] += uf.size[b]
	uf.sets--
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// Sets returns the number of disjoint sets.
func (uf *UnionFind) Sets() int { return uf.sets }

func connect(g *WeightedGraph) *UnionFind {
	uf := NewUnionFind(g.NumNodes)
	for _, e := range g.Edges {
		uf.Union(e.U, e.V)
	}
	return uf
}

// Components labels every node with its connected component. Labels are
// dense and numbered in order of each component's lowest node index, so
// they are stable for a given graph.
func Components(g *WeightedGraph) (labels []int, count int) {
	uf := connect(g)
	labels = make([]int, g.NumNodes)
	byRoot := make(map[uint32]int, uf.Sets())
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		label, ok := byRoot[root]
		if !ok {
			label = len(byRoot)
			byRoot[root] = label
		}
		labels[i] = label
	}
	return labels, len(byRoot)
}

// LargestComponent returns the node indices of the largest connected
// component in ascending order. Ties go to the component with the lowest
// node index.
func LargestComponent(g *WeightedGraph) []uint32 {
	labels, count := Components(g)
	if count == 0 {
		return nil
	}
	sizes := make([]int, count)
	for _, l := range labels {
		sizes[l]++
	}
	best := 0
	for l, n := range sizes {
		if n > sizes[best] {
			best = l
		}
	}

	nodes := make([]uint32, 0, sizes[best])
	for i, l := range labels {
		if l == best {
			nodes = append(nodes, uint32(i))
		}
	}
	return nodes
}
