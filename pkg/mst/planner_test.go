package mst

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
)

func pairs(edges []SelectedEdge) [][2]network.NodeID {
	out := make([][2]network.NodeID, len(edges))
	for i, e := range edges {
		out[i] = [2]network.NodeID{e.From, e.To}
	}
	return out
}

func TestPlanPrefersExistingRoads(t *testing.T) {
	res, err := Plan(context.Background(), nt.Cairo(t), DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, res.Proposed)
	assert.ElementsMatch(t, [][2]network.NodeID{
		{"1", "8"}, {"2", "5"}, {"3", "5"}, {"3", "8"},
		{"5", "F1"}, {"3", "F9"}, {"1", "F10"}, {"1", "12"},
	}, pairs(res.Existing))
	assert.InDelta(t, 66.2, res.TotalDistanceKm, 1e-9)
	assert.True(t, res.TotalCost.IsZero())

	assert.Equal(t, 8, res.CriticalNodes)
	assert.Equal(t, 1, res.CriticalComponents)
	assert.Equal(t, 7, res.CriticalInducedEdges)
	assert.True(t, res.CriticalConnectivityOK)

	ce := res.CostEffectiveness
	assert.True(t, decimal.NewFromInt(6620000).Equal(ce.AnnualMaintenance), ce.AnnualMaintenance.String())
	assert.Equal(t, 14, ce.CandidateEdges)
	assert.Equal(t, 8, ce.SelectedEdges)
	assert.InDelta(t, (1-8.0/14)*100, ce.EdgeReductionPct, 1e-9)
}

func TestPlanPotentialOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeExisting = false
	res, err := Plan(context.Background(), nt.Cairo(t), opts)
	require.NoError(t, err)

	assert.Empty(t, res.Existing)
	assert.Len(t, res.Proposed, 5)
	assert.True(t, decimal.NewFromInt(2350).Equal(res.TotalCost), res.TotalCost.String())
	assert.InDelta(t, 81.7, res.TotalDistanceKm, 1e-9)

	assert.False(t, res.CriticalConnectivityOK)
	assert.Equal(t, 5, res.CriticalComponents)
	// The induced critical subgraph is a forest.
	assert.Equal(t, res.CriticalNodes-res.CriticalComponents, res.CriticalInducedEdges)
}

func TestPlanExistingPairShadowsPotentialOnlyWhenIncluded(t *testing.T) {
	n := nt.Cairo(t)

	// Without existing roads the candidate set holds every potential road,
	// including 1-3, which also exists as a road.
	opts := DefaultOptions()
	opts.IncludeExisting = false
	res, err := Plan(context.Background(), n, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, res.CostEffectiveness.CandidateEdges)
	assert.Contains(t, pairs(res.Proposed), [2]network.NodeID{"1", "3"})

	// With existing roads the existing 1-3 takes the pair.
	res, err = Plan(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 14, res.CostEffectiveness.CandidateEdges)
	assert.NotContains(t, pairs(res.Proposed), [2]network.NodeID{"1", "3"})
}

func TestPlanInducedForestProperty(t *testing.T) {
	n := nt.Cairo(t)
	for _, existing := range []bool{true, false} {
		for _, pop := range []bool{true, false} {
			res, err := Plan(context.Background(), n, Options{IncludeExisting: existing, PrioritizePopulation: pop})
			require.NoError(t, err)
			assert.Equal(t, res.CriticalNodes-res.CriticalComponents, res.CriticalInducedEdges)
			assert.Equal(t, res.CriticalComponents <= 1, res.CriticalConnectivityOK)
		}
	}
}

func TestPlanBridgesWithProposedRoad(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 60000, 0, 0))
		b.AddNode(nt.Neighbourhood("B", 1000, 1, 0))
		b.AddNode(nt.Facility("H", "Medical", 5, 0))
		b.AddRoad(nt.Road("A", "B", 1, 1000, 8))
		b.AddRoad(nt.Proposed("B", "H", 4, 2000, 10))
		b.AddRoad(nt.Proposed("A", "H", 5, 2000, 80))
	})

	res, err := Plan(context.Background(), n, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Proposed, 1)
	assert.Equal(t, [2]network.NodeID{"B", "H"}, pairs(res.Proposed)[0])
	assert.False(t, res.CriticalConnectivityOK, "A and H are joined only through B")

	res, err = Plan(context.Background(), n, Options{IncludeExisting: true})
	require.NoError(t, err)
	assert.Equal(t, [2]network.NodeID{"B", "H"}, pairs(res.Proposed)[0])
}

func TestPlannerWeightPopulation(t *testing.T) {
	nodes := []network.Node{
		nt.Neighbourhood("A", 60000, 0, 0),
		nt.Facility("F", "Medical", 1, 0),
		nt.Neighbourhood("C", 15000, 2, 0),
	}
	critical := []bool{true, true, false}

	both := &graph.Edge{U: 0, V: 1, DistanceKm: 10, Provenance: network.Potential, ConstructionCost: 50}
	// 10 x 0.5 x 1/(1+65000/100000) x (1+1)
	assert.InDelta(t, 10*0.5/1.65*2, plannerWeight(both, nodes, critical, true), 1e-9)
	assert.InDelta(t, 20, plannerWeight(both, nodes, critical, false), 1e-9)

	one := &graph.Edge{U: 1, V: 2, DistanceKm: 10, Provenance: network.Potential}
	assert.InDelta(t, 10*0.7/1.2, plannerWeight(one, nodes, critical, true), 1e-9)

	existing := &graph.Edge{U: 0, V: 2, DistanceKm: 10, CapacityVPH: 2000, Condition: 5, Provenance: network.Existing}
	assert.InDelta(t, 10*0.3*0.94*0.9, plannerWeight(existing, nodes, critical, true), 1e-9)
}

func TestKruskalTieBreaksByInputOrder(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 1, 0, 0))
		b.AddNode(nt.Neighbourhood("B", 1, 1, 0))
		b.AddNode(nt.Neighbourhood("C", 1, 0, 1))
		b.AddRoad(nt.Road("A", "B", 1, 1000, 10))
		b.AddRoad(nt.Road("B", "C", 1, 1000, 10))
		b.AddRoad(nt.Road("A", "C", 1, 1000, 10))
	})
	g := graph.BuildRoadGraph(n, network.Morning, false)
	for i := 0; i < 5; i++ {
		tree, err := Kruskal(context.Background(), g, func(e *graph.Edge) float64 { return e.DistanceKm })
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, tree)
	}
}

func TestPlanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Plan(ctx, nt.Cairo(t), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKruskalCancelledWhileRunning(t *testing.T) {
	g := graph.BuildRoadGraph(nt.Cairo(t), network.Morning, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	tree, err := Kruskal(ctx, g, func(e *graph.Edge) float64 {
		calls++
		if calls == len(g.Edges)/2 {
			cancel()
		}
		return e.DistanceKm
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, tree)
	assert.Equal(t, len(g.Edges), calls)
}

func TestEnhancedTreeCancelled(t *testing.T) {
	n := nt.Cairo(t)
	g := graph.BuildRoadGraph(n, network.Morning, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EnhancedTree(ctx, g, n.CriticalNodes(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
