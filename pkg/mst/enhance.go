package mst

import (
	"context"
	"errors"
	"sort"

	log "github.com/sirupsen/logrus"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

// DefaultCriticalFactor scales the weight of edges touching a critical node
// before EnhancedTree runs Kruskal.
const DefaultCriticalFactor = 0.1

// Tree is a set of edges of a WeightedGraph.
type Tree struct {
	Edges       []int            // indices into the graph's Edges, ascending
	Added       []network.NodeID // critical nodes spliced in by Enhance
	Unreachable []network.NodeID // critical nodes with no path to the tree
}

// Enhance connects every critical node that has no tree edge. For each, it
// finds the lowest-weight path in g to the nearest tree node and splices that
// path's edges into the tree.
func Enhance(ctx context.Context, g *graph.WeightedGraph, tree []int, critical []network.NodeID) (*Tree, error) {
	in := make(map[int]bool, len(tree))
	onTree := make([]bool, g.NumNodes)
	for _, i := range tree {
		in[i] = true
		onTree[g.Edges[i].U] = true
		onTree[g.Edges[i].V] = true
	}
	seeded := len(tree) > 0

	out := &Tree{Edges: append([]int(nil), tree...)}
	for _, id := range critical {
		u, ok := g.Index(id)
		if !ok {
			log.WithField("node", id).Warn("Critical node not in graph")
			out.Unreachable = append(out.Unreachable, id)
			continue
		}
		if onTree[u] {
			continue
		}
		if !seeded {
			onTree[u] = true
			seeded = true
			continue
		}

		p, err := routing.NearestOf(ctx, g, id, func(v uint32) bool { return onTree[v] }, routing.WeightCost)
		if errors.Is(err, routing.ErrNoRoute) {
			log.WithField("node", id).Warn("Could not find a path to connect critical node")
			out.Unreachable = append(out.Unreachable, id)
			continue
		}
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{"node": id, "path": p.Nodes}).Debug("Splicing critical node into tree")
		for _, e := range p.Edges {
			idx := edgeIndex(g, e)
			if !in[idx] {
				in[idx] = true
				out.Edges = append(out.Edges, idx)
			}
		}
		for _, v := range p.Index {
			onTree[v] = true
		}
		out.Added = append(out.Added, id)
	}
	sort.Ints(out.Edges)
	return out, nil
}

// EnhancedTree scales edges incident to critical nodes by factor (once per
// critical endpoint), builds a minimum spanning forest and then runs Enhance.
// factor <= 0 selects DefaultCriticalFactor.
func EnhancedTree(ctx context.Context, g *graph.WeightedGraph, critical []network.NodeID, factor float64) (*Tree, error) {
	if factor <= 0 {
		factor = DefaultCriticalFactor
	}
	mask := make([]bool, g.NumNodes)
	for _, id := range critical {
		if u, ok := g.Index(id); ok {
			mask[u] = true
		}
	}
	tree, err := Kruskal(ctx, g, func(e *graph.Edge) float64 {
		w := e.Weight
		if mask[e.U] {
			w *= factor
		}
		if mask[e.V] {
			w *= factor
		}
		return w
	})
	if err != nil {
		return nil, err
	}
	return Enhance(ctx, g, tree, critical)
}

func edgeIndex(g *graph.WeightedGraph, e *graph.Edge) int {
	i, _ := g.EdgeBetween(e.U, e.V)
	return i
}
