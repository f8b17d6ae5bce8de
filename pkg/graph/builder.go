package graph

import (
	"math"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"urban_router/pkg/network"
)

const (
	roadBaseSpeedKmh = 50.0
	minTrafficFactor = 0.2
	metroSpeedKmh    = 60.0
	metroDwellMin    = 2.0
	busSpeedKmh      = 25.0
	minBusHeadwayMin = 5.0
	maxBusHeadwayMin = 60.0
)

// CongestionFactor returns 1 + flow/capacity, or 1 when capacity is not positive.
func CongestionFactor(flow, capacity float64) float64 {
	if capacity <= 0 {
		return 1
	}
	return 1 + flow/capacity
}

// RoadTimeMin returns the normal travel time in minutes over a road. Speed is
// 50 km/h scaled by condition/10 and slowed by congestion, never below 20%.
func RoadTimeMin(distanceKm, condition, flow, capacity float64) float64 {
	speed := roadBaseSpeedKmh * condition / 10
	factor := 1.0
	if capacity > 0 {
		factor = math.Max(minTrafficFactor, 1-flow/capacity)
	}
	if speed <= 0 {
		return math.Inf(1)
	}
	return distanceKm * 60 / (speed * factor)
}

// BusHeadwayMin returns minutes between buses for a fleet, clamped to 5..60.
func BusHeadwayMin(fleet int) float64 {
	if fleet <= 0 {
		return maxBusHeadwayMin
	}
	return math.Min(maxBusHeadwayMin, math.Max(minBusHeadwayMin, 60/float64(fleet)))
}

// TransitTimeMin returns the scheduled time over one transit hop.
func TransitTimeMin(mode network.Mode, distanceKm float64, fleet int) float64 {
	switch mode {
	case network.ModeMetro:
		return distanceKm*60/metroSpeedKmh + metroDwellMin
	case network.ModeBus:
		return distanceKm*60/busSpeedKmh + BusHeadwayMin(fleet)/2
	}
	return math.Inf(1)
}

type builder struct {
	net *network.Network
	g   *WeightedGraph
}

func newBuilder(net *network.Network, period network.Period) *builder {
	nodes := net.Nodes()
	g := &WeightedGraph{
		NumNodes:    uint32(len(nodes)),
		IDs:         make([]network.NodeID, len(nodes)),
		Location:    make([]orb.Point, len(nodes)),
		Period:      period,
		Coordinates: net.Coordinates(),
		index:       make(map[network.NodeID]uint32, len(nodes)),
		pairs:       make(map[[2]uint32]uint32),
	}
	for i, n := range nodes {
		g.IDs[i] = n.ID
		g.Location[i] = n.Location
		g.index[n.ID] = uint32(i)
	}
	return &builder{net: net, g: g}
}

// addRoad appends a road unless its endpoint pair already has an edge.
func (b *builder) addRoad(r network.RoadEdge) {
	u, uok := b.g.index[r.From]
	v, vok := b.g.index[r.To]
	if !uok || !vok {
		return
	}
	if _, dup := b.g.pairs[pairKey(u, v)]; dup {
		log.WithField("road", r.Name()).Debug("Skipping road: endpoint pair already connected")
		return
	}

	e := Edge{
		U:                u,
		V:                v,
		DistanceKm:       r.DistanceKm,
		CapacityVPH:      r.CapacityVPH,
		Condition:        r.Condition,
		Provenance:       r.Provenance,
		Mode:             network.ModeRoad,
		ConstructionCost: r.ConstructionCost,
	}
	switch r.Provenance {
	case network.Existing:
		e.Flow = b.net.TrafficVolume(r.From, r.To, b.g.Period)
		e.HasTraffic = b.net.HasTraffic(r.From, r.To)
	case network.Potential:
		e.Flow = 0
	}
	e.Weight = r.DistanceKm * CongestionFactor(e.Flow, e.CapacityVPH)
	e.TimeMin = RoadTimeMin(r.DistanceKm, r.Condition, e.Flow, r.CapacityVPH)
	b.push(e)
}

// offerTransit adds a transit hop, replacing the pair's current edge only
// when the hop is strictly faster.
func (b *builder) offerTransit(line network.TransitLine, from, to network.NodeID) {
	u, uok := b.g.index[from]
	v, vok := b.g.index[to]
	if !uok || !vok || u == v {
		return
	}
	existing, has := b.g.pairs[pairKey(u, v)]

	dist := b.g.StraightLine(u, v)
	if has {
		dist = b.g.Edges[existing].DistanceKm
	}
	e := Edge{
		U:          u,
		V:          v,
		DistanceKm: dist,
		Weight:     dist,
		TimeMin:    TransitTimeMin(line.Mode, dist, line.FleetSize),
		Provenance: network.Existing,
		Mode:       line.Mode,
		LineID:     line.ID,
	}
	if line.Mode == network.ModeBus {
		e.HeadwayMin = BusHeadwayMin(line.FleetSize)
	}

	if !has {
		b.push(e)
		return
	}
	if e.TimeMin < b.g.Edges[existing].TimeMin {
		b.g.Edges[existing] = e
	}
}

func (b *builder) push(e Edge) {
	b.g.pairs[pairKey(e.U, e.V)] = uint32(len(b.g.Edges))
	b.g.Edges = append(b.g.Edges, e)
}

// finish lays the edges out as CSR arcs. Arcs of a node keep edge order.
func (b *builder) finish() *WeightedGraph {
	g := b.g
	n := g.NumNodes
	firstOut := make([]uint32, n+1)
	for _, e := range g.Edges {
		firstOut[e.U+1]++
		firstOut[e.V+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}

	numArcs := 2 * len(g.Edges)
	head := make([]uint32, numArcs)
	arcEdge := make([]uint32, numArcs)
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for i, e := range g.Edges {
		head[pos[e.U]] = e.V
		arcEdge[pos[e.U]] = uint32(i)
		pos[e.U]++
		head[pos[e.V]] = e.U
		arcEdge[pos[e.V]] = uint32(i)
		pos[e.V]++
	}

	g.FirstOut = firstOut
	g.Head = head
	g.ArcEdge = arcEdge
	return g
}

// BuildRoadGraph builds the road graph for a period. Existing roads come
// first in load order; potential roads follow when requested and never
// replace an existing road between the same pair. Isolated nodes are kept.
func BuildRoadGraph(net *network.Network, period network.Period, includePotential bool) *WeightedGraph {
	b := newBuilder(net, period)
	for _, r := range net.RoadEdges(includePotential) {
		b.addRoad(r)
	}
	return b.finish()
}

// BuildPotentialGraph builds a graph of potential roads only.
func BuildPotentialGraph(net *network.Network, period network.Period) *WeightedGraph {
	b := newBuilder(net, period)
	for _, r := range net.PotentialRoads() {
		b.addRoad(r)
	}
	return b.finish()
}

// BuildMultimodalGraph builds the existing road graph and folds in every
// metro and bus hop.
func BuildMultimodalGraph(net *network.Network, period network.Period) *WeightedGraph {
	b := newBuilder(net, period)
	for _, r := range net.RoadEdges(false) {
		b.addRoad(r)
	}
	for _, line := range net.TransitLines(network.ModeNone) {
		for i := 1; i < len(line.Stops); i++ {
			b.offerTransit(line, line.Stops[i-1], line.Stops[i])
		}
	}
	return b.finish()
}
