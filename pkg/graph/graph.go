package graph

import (
	"github.com/paulmach/orb"

	"urban_router/pkg/geo"
	"urban_router/pkg/network"
)

// Edge is an undirected edge carrying every cost attribute consumers price.
type Edge struct {
	U, V             uint32
	DistanceKm       float64
	Weight           float64 // distance scaled by congestion
	TimeMin          float64 // normal-traffic travel time
	Flow             float64 // vehicles per hour in the graph's period
	CapacityVPH      float64
	Condition        float64
	HasTraffic       bool
	Provenance       network.Provenance
	Mode             network.Mode
	LineID           string  // transit edges only
	HeadwayMin       float64 // bus edges only
	ConstructionCost float64 // potential roads only
}

// Other returns the endpoint of e that is not u.
func (e *Edge) Other(u uint32) uint32 {
	if e.U == u {
		return e.V
	}
	return e.U
}

// WeightedGraph is an undirected graph in CSR (Compressed Sparse Row) format.
// Each edge appears as two arcs. It is built per request and never mutated
// after construction.
type WeightedGraph struct {
	NumNodes    uint32
	IDs         []network.NodeID // len: NumNodes
	Location    []orb.Point      // len: NumNodes
	Edges       []Edge           // in insertion order
	FirstOut    []uint32         // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are arcs from node i
	Head        []uint32         // len: 2 * len(Edges); neighbour for each arc
	ArcEdge     []uint32         // len: 2 * len(Edges); edge index for each arc
	Period      network.Period
	Coordinates geo.Coordinates

	index map[network.NodeID]uint32
	pairs map[[2]uint32]uint32
}

// Index returns the dense index of id.
func (g *WeightedGraph) Index(id network.NodeID) (uint32, bool) {
	i, ok := g.index[id]
	return i, ok
}

// EdgesFrom returns the range of arc indices for arcs leaving node u.
func (g *WeightedGraph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Arc returns the neighbour and edge for arc a.
func (g *WeightedGraph) Arc(a uint32) (uint32, *Edge) {
	return g.Head[a], &g.Edges[g.ArcEdge[a]]
}

// Degree returns the number of edges incident to u.
func (g *WeightedGraph) Degree(u uint32) int {
	return int(g.FirstOut[u+1] - g.FirstOut[u])
}

// EdgeBetween returns the index of the edge joining u and v.
func (g *WeightedGraph) EdgeBetween(u, v uint32) (int, bool) {
	i, ok := g.pairs[pairKey(u, v)]
	return int(i), ok
}

// StraightLine returns the straight-line distance in km between two nodes.
func (g *WeightedGraph) StraightLine(u, v uint32) float64 {
	return g.Coordinates.Distance(g.Location[u], g.Location[v])
}

func pairKey(u, v uint32) [2]uint32 {
	if u > v {
		u, v = v, u
	}
	return [2]uint32{u, v}
}
