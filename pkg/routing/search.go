package routing

import (
	"context"
	"fmt"
	"math"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
)

// numModes is the number of arrival modes tracked per node.
const numModes = uint32(network.ModeBus) + 1

const noState = math.MaxUint32

// CostFunc prices traversing e after arriving at its tail by prev. prev is
// network.ModeNone at the origin. Costs may depend on e and prev only.
// A negative, NaN or infinite cost makes the edge impassable.
type CostFunc func(e *graph.Edge, prev network.Mode) float64

// Heuristic estimates the remaining cost from node u to the destination.
// A* returns optimal paths only when it never overestimates.
type Heuristic func(u uint32) float64

// Path is a route through a WeightedGraph.
type Path struct {
	Nodes []network.NodeID
	Index []uint32
	Edges []*graph.Edge
	Cost  float64
}

// DistanceKm returns the summed edge distance.
func (p *Path) DistanceKm() float64 {
	var d float64
	for _, e := range p.Edges {
		d += e.DistanceKm
	}
	return d
}

// TimeMin returns the summed normal travel time.
func (p *Path) TimeMin() float64 {
	var t float64
	for _, e := range p.Edges {
		t += e.TimeMin
	}
	return t
}

// Transfers counts the places where consecutive edges differ in mode.
func (p *Path) Transfers() int {
	n := 0
	for i := 1; i < len(p.Edges); i++ {
		if p.Edges[i].Mode != p.Edges[i-1].Mode {
			n++
		}
	}
	return n
}

// FindPath returns the cheapest path from origin to dest under cost. It runs
// Dijkstra when h is nil and A* otherwise. The context is checked at every
// node expansion.
func FindPath(ctx context.Context, g *graph.WeightedGraph, origin, dest network.NodeID, cost CostFunc, h Heuristic) (*Path, error) {
	src, ok := g.Index(origin)
	if !ok {
		return nil, &NodeNotFoundError{ID: origin}
	}
	dst, ok := g.Index(dest)
	if !ok {
		return nil, &NodeNotFoundError{ID: dest}
	}

	labels, _ := graph.Components(g)
	noPath := &NoPathError{From: origin, To: dest, FromComponent: labels[src], ToComponent: labels[dst]}
	if labels[src] != labels[dst] {
		return nil, noPath
	}

	p, err := search(ctx, g, src, func(u uint32) bool { return u == dst }, cost, h)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, noPath
	}
	return p, nil
}

// NearestOf returns the cheapest path from origin to any node other than
// origin for which isTarget holds. Ties go to the node settled first.
func NearestOf(ctx context.Context, g *graph.WeightedGraph, origin network.NodeID, isTarget func(u uint32) bool, cost CostFunc) (*Path, error) {
	src, ok := g.Index(origin)
	if !ok {
		return nil, &NodeNotFoundError{ID: origin}
	}
	p, err := search(ctx, g, src, func(u uint32) bool { return u != src && isTarget(u) }, cost, nil)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no target reachable from %s", ErrNoRoute, origin)
	}
	return p, nil
}

// search runs a label-setting search over (node, arrival mode) states and
// returns nil when no target is reachable.
func search(ctx context.Context, g *graph.WeightedGraph, src uint32, isTarget func(uint32) bool, cost CostFunc, h Heuristic) (*Path, error) {
	if h == nil {
		h = func(uint32) float64 { return 0 }
	}

	n := g.NumNodes * numModes
	dist := make([]float64, n)
	pred := make([]uint32, n)
	predEdge := make([]uint32, n)
	settled := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noState
	}

	start := src*numModes + uint32(network.ModeNone)
	dist[start] = 0
	var pq MinHeap
	pq.Push(start, h(src))

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s := pq.Pop().State
		if settled[s] {
			continue
		}
		settled[s] = true

		u, mode := s/numModes, network.Mode(s%numModes)
		if isTarget(u) {
			return buildPath(g, s, dist[s], pred, predEdge), nil
		}

		first, last := g.EdgesFrom(u)
		for a := first; a < last; a++ {
			v, e := g.Arc(a)
			c := cost(e, mode)
			if c < 0 || math.IsNaN(c) || math.IsInf(c, 1) {
				continue
			}
			next := v*numModes + uint32(e.Mode)
			if settled[next] {
				continue
			}
			if d := dist[s] + c; d < dist[next] {
				dist[next] = d
				pred[next] = s
				predEdge[next] = g.ArcEdge[a]
				pq.Push(next, d+h(v))
			}
		}
	}
	return nil, nil
}

func buildPath(g *graph.WeightedGraph, end uint32, cost float64, pred, predEdge []uint32) *Path {
	var states []uint32
	for s := end; s != noState; s = pred[s] {
		states = append(states, s)
	}

	p := &Path{
		Nodes: make([]network.NodeID, len(states)),
		Index: make([]uint32, len(states)),
		Edges: make([]*graph.Edge, 0, len(states)-1),
		Cost:  cost,
	}
	for i := range states {
		s := states[len(states)-1-i]
		p.Index[i] = s / numModes
		p.Nodes[i] = g.IDs[s/numModes]
		if i > 0 {
			p.Edges = append(p.Edges, &g.Edges[predEdge[s]])
		}
	}
	return p
}
