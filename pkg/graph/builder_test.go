package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
)

func edgeFor(t *testing.T, g *WeightedGraph, a, b network.NodeID) *Edge {
	t.Helper()
	u, ok := g.Index(a)
	require.True(t, ok, "node %s", a)
	v, ok := g.Index(b)
	require.True(t, ok, "node %s", b)
	i, ok := g.EdgeBetween(u, v)
	require.True(t, ok, "edge %s-%s", a, b)
	return &g.Edges[i]
}

func TestZeroTrafficWeightEqualsDistance(t *testing.T) {
	g := BuildRoadGraph(nt.Chain(t), network.Morning, false)

	require.Len(t, g.Edges, 2)
	for _, e := range g.Edges {
		assert.Equal(t, e.DistanceKm, e.Weight)
		assert.Equal(t, 0.0, e.Flow)
		assert.InDelta(t, 6.0, e.TimeMin, 1e-9, "5 km at 50 km/h")
	}
}

func TestCongestionWeight(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 1, 0, 0))
		b.AddNode(nt.Neighbourhood("B", 1, 4, 0))
		b.AddRoad(nt.Road("A", "B", 4, 2000, 10))
		b.AddTraffic(network.TrafficRecord{From: "B", To: "A", Volume: [network.NumPeriods]float64{1000, 0, 3000, 0}})
	})

	morning := edgeFor(t, BuildRoadGraph(n, network.Morning, false), "A", "B")
	assert.Equal(t, 1000.0, morning.Flow)
	assert.InDelta(t, 6.0, morning.Weight, 1e-9)
	assert.True(t, morning.HasTraffic)
	assert.InDelta(t, 4*60/(50*0.5), morning.TimeMin, 1e-9)

	evening := edgeFor(t, BuildRoadGraph(n, network.Evening, false), "A", "B")
	assert.InDelta(t, 10.0, evening.Weight, 1e-9)
	assert.InDelta(t, 4*60/(50*0.2), evening.TimeMin, 1e-9, "traffic factor floors at 0.2")
}

func TestPotentialRoads(t *testing.T) {
	n := nt.Cairo(t)

	without := BuildRoadGraph(n, network.Morning, false)
	with := BuildRoadGraph(n, network.Morning, true)
	assert.Len(t, without.Edges, 10)
	// 1-3 is proposed but already exists, so only four of five are added.
	assert.Len(t, with.Edges, 14)

	e := edgeFor(t, with, "1", "3")
	assert.Equal(t, network.Existing, e.Provenance)
	assert.Equal(t, 11.5, e.DistanceKm)

	p := edgeFor(t, with, "2", "F1")
	assert.Equal(t, network.Potential, p.Provenance)
	assert.Equal(t, 0.0, p.Flow)
	assert.Equal(t, p.DistanceKm, p.Weight)
	assert.Equal(t, 450.0, p.ConstructionCost)

	pot := BuildPotentialGraph(n, network.Morning)
	assert.Len(t, pot.Edges, 5)
	assert.Equal(t, network.Potential, edgeFor(t, pot, "1", "3").Provenance)
}

func TestCSRArcs(t *testing.T) {
	g := BuildRoadGraph(nt.Chain(t), network.Morning, false)
	b, _ := g.Index("B")
	assert.Equal(t, 2, g.Degree(b))

	start, end := g.EdgesFrom(b)
	var seen []network.NodeID
	for a := start; a < end; a++ {
		v, e := g.Arc(a)
		assert.Equal(t, v, e.Other(b))
		seen = append(seen, g.IDs[v])
	}
	assert.Equal(t, []network.NodeID{"A", "C"}, seen)
}

func TestMultimodalReplacement(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 1, 0, 0))
		b.AddNode(nt.Neighbourhood("B", 1, 2, 0))
		b.AddNode(nt.Neighbourhood("C", 1, 8, 0))
		b.AddNode(nt.Neighbourhood("D", 1, 8, 3))
		// A-B: road 2 km at condition 6 takes 4 min, the metro hop 2+2 min: a tie.
		b.AddRoad(nt.Road("A", "B", 2, 1000, 6))
		// B-C: road 6 km at condition 5 takes 14.4 min, the metro hop 8 min.
		b.AddRoad(nt.Road("B", "C", 6, 1000, 5))
		b.AddLine(nt.Line("M1", network.ModeMetro, 1000, 0, "A", "B", "C"))
		// C-D has no road; the bus hop uses the straight-line distance.
		b.AddLine(nt.Line("B7", network.ModeBus, 1000, 20, "C", "D"))
	})
	g := BuildMultimodalGraph(n, network.Morning)

	ab := edgeFor(t, g, "A", "B")
	assert.Equal(t, network.ModeRoad, ab.Mode, "ties keep the road")
	assert.Equal(t, 4.0, ab.TimeMin)

	bc := edgeFor(t, g, "B", "C")
	assert.Equal(t, network.ModeMetro, bc.Mode)
	assert.Equal(t, "M1", bc.LineID)
	assert.Equal(t, 6.0, bc.DistanceKm, "transit reuses road distance")
	assert.InDelta(t, 8.0, bc.TimeMin, 1e-9)

	cd := edgeFor(t, g, "C", "D")
	assert.Equal(t, network.ModeBus, cd.Mode)
	assert.InDelta(t, 3.0, cd.DistanceKm, 1e-9)
	assert.Equal(t, 5.0, cd.HeadwayMin, "60/20 floors at 5")
	assert.InDelta(t, 3*60/25.0+2.5, cd.TimeMin, 1e-9)
}

func TestBusHeadway(t *testing.T) {
	tests := []struct {
		fleet int
		want  float64
	}{
		{0, 60},
		{1, 60},
		{4, 15},
		{12, 5},
		{30, 5},
	}
	for _, tt := range tests {
		if got := BusHeadwayMin(tt.fleet); got != tt.want {
			t.Errorf("BusHeadwayMin(%d) = %v, want %v", tt.fleet, got, tt.want)
		}
	}
}

func TestRoadTimeMin(t *testing.T) {
	if got := RoadTimeMin(10, 10, 0, 1000); math.Abs(got-12) > 1e-9 {
		t.Errorf("RoadTimeMin free flow = %v, want 12", got)
	}
	if got := RoadTimeMin(10, 0, 0, 1000); !math.IsInf(got, 1) {
		t.Errorf("RoadTimeMin condition 0 = %v, want +Inf", got)
	}
	if got := CongestionFactor(500, 0); got != 1 {
		t.Errorf("CongestionFactor zero capacity = %v, want 1", got)
	}
}
