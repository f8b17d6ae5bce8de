package mst

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
)

// line returns A-B-C-D joined by 1 km roads plus an isolated node E.
func line(t *testing.T) *graph.WeightedGraph {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 1, 0, 0))
		b.AddNode(nt.Neighbourhood("B", 1, 1, 0))
		b.AddNode(nt.Neighbourhood("C", 1, 2, 0))
		b.AddNode(nt.Facility("D", "Medical", 3, 0))
		b.AddNode(nt.Facility("E", "School", 9, 9))
		b.AddRoad(nt.Road("A", "B", 1, 1000, 10))
		b.AddRoad(nt.Road("B", "C", 1, 1000, 10))
		b.AddRoad(nt.Road("C", "D", 1, 1000, 10))
	})
	return graph.BuildRoadGraph(n, network.Morning, false)
}

func TestEnhanceSplicesMissingNodes(t *testing.T) {
	g := line(t)

	tree, err := Enhance(context.Background(), g, []int{0}, []network.NodeID{"D", "E", "Z"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, tree.Edges)
	assert.Equal(t, []network.NodeID{"D"}, tree.Added)
	assert.Equal(t, []network.NodeID{"E", "Z"}, tree.Unreachable)
}

func TestEnhanceSeedsEmptyTree(t *testing.T) {
	g := line(t)

	tree, err := Enhance(context.Background(), g, nil, []network.NodeID{"D", "A"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, tree.Edges)
	assert.Equal(t, []network.NodeID{"A"}, tree.Added)
	assert.Empty(t, tree.Unreachable)
}

func TestEnhanceKeepsConnectedTree(t *testing.T) {
	g := line(t)
	tree, err := Enhance(context.Background(), g, []int{0, 1, 2}, []network.NodeID{"A", "D"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, tree.Edges)
	assert.Empty(t, tree.Added)
}

func TestEnhancedTreeCairo(t *testing.T) {
	n := nt.Cairo(t)
	g := graph.BuildRoadGraph(n, network.Morning, false)

	tree, err := EnhancedTree(context.Background(), g, n.CriticalNodes(), 0)
	require.NoError(t, err)
	assert.Len(t, tree.Edges, int(g.NumNodes)-1)
	assert.Empty(t, tree.Added)
	assert.Empty(t, tree.Unreachable)

	labels, count := graph.Components(subgraph(g, tree.Edges))
	assert.Equal(t, 1, count)
	assert.Len(t, labels, int(g.NumNodes))
}

// subgraph returns g restricted to the given edges.
func subgraph(g *graph.WeightedGraph, edges []int) *graph.WeightedGraph {
	out := *g
	out.Edges = make([]graph.Edge, 0, len(edges))
	for _, i := range edges {
		out.Edges = append(out.Edges, g.Edges[i])
	}
	return &out
}
