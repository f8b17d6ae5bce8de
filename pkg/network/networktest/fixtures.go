// Package networktest provides small networks for tests.
package networktest

import (
	"testing"

	"github.com/paulmach/orb"

	"urban_router/pkg/geo"
	"urban_router/pkg/network"
)

// Build runs fill against a fresh planar Builder and fails the test if any
// record is dropped.
func Build(t testing.TB, fill func(b *network.Builder)) *network.Network {
	t.Helper()
	return BuildWith(t, network.Options{Coordinates: geo.Planar}, fill)
}

// BuildWith is Build with explicit options.
func BuildWith(t testing.TB, opts network.Options, fill func(b *network.Builder)) *network.Network {
	t.Helper()
	b := network.NewBuilder(opts)
	fill(b)
	n, diag := b.Build()
	if diag.Dropped != 0 {
		t.Fatalf("fixture dropped %d records: %v", diag.Dropped, diag.Warnings)
	}
	return n
}

// Neighbourhood returns a neighbourhood node at (x, y).
func Neighbourhood(id string, pop int, x, y float64) network.Node {
	return network.Node{
		ID:         network.NodeID(id),
		Kind:       network.Neighbourhood,
		Name:       id,
		Location:   orb.Point{x, y},
		Population: pop,
		District:   "residential",
	}
}

// Facility returns a facility node at (x, y).
func Facility(id, typ string, x, y float64) network.Node {
	return network.Node{
		ID:           network.NodeID(id),
		Kind:         network.Facility,
		Name:         id,
		Location:     orb.Point{x, y},
		FacilityType: typ,
	}
}

// Road returns an existing road.
func Road(from, to string, km, capacity, condition float64) network.RoadEdge {
	return network.RoadEdge{
		From:        network.NodeID(from),
		To:          network.NodeID(to),
		DistanceKm:  km,
		CapacityVPH: capacity,
		Condition:   condition,
		Provenance:  network.Existing,
	}
}

// Proposed returns a potential road.
func Proposed(from, to string, km, capacity, cost float64) network.RoadEdge {
	return network.RoadEdge{
		From:             network.NodeID(from),
		To:               network.NodeID(to),
		DistanceKm:       km,
		CapacityVPH:      capacity,
		Provenance:       network.Potential,
		ConstructionCost: cost,
	}
}

// Traffic returns a traffic record with the same volume in every period.
func Traffic(from, to string, vph float64) network.TrafficRecord {
	return network.TrafficRecord{
		From:   network.NodeID(from),
		To:     network.NodeID(to),
		Volume: [network.NumPeriods]float64{vph, vph, vph, vph},
	}
}

// Line returns a transit line over stops.
func Line(id string, mode network.Mode, passengers, fleet int, stops ...string) network.TransitLine {
	ids := make([]network.NodeID, len(stops))
	for i, s := range stops {
		ids[i] = network.NodeID(s)
	}
	return network.TransitLine{
		ID:              id,
		Name:            id,
		Mode:            mode,
		Stops:           ids,
		DailyPassengers: passengers,
		FleetSize:       fleet,
	}
}

// Demand returns a demand record.
func Demand(from, to string, trips int) network.DemandRecord {
	return network.DemandRecord{From: network.NodeID(from), To: network.NodeID(to), DailyTrips: trips}
}

// Chain returns A-B-C joined by 5 km roads (capacity 1000, condition 10)
// with no traffic.
func Chain(t testing.TB) *network.Network {
	t.Helper()
	return Build(t, func(b *network.Builder) {
		b.AddNode(Neighbourhood("A", 1000, 0, 0))
		b.AddNode(Neighbourhood("B", 1000, 5, 0))
		b.AddNode(Neighbourhood("C", 1000, 10, 0))
		b.AddRoad(Road("A", "B", 5, 1000, 10))
		b.AddRoad(Road("B", "C", 5, 1000, 10))
	})
}

// Disjoint returns two components {A,B} and {C,D}.
func Disjoint(t testing.TB) *network.Network {
	t.Helper()
	return Build(t, func(b *network.Builder) {
		b.AddNode(Neighbourhood("A", 1000, 0, 0))
		b.AddNode(Neighbourhood("B", 1000, 1, 0))
		b.AddNode(Neighbourhood("C", 1000, 10, 0))
		b.AddNode(Neighbourhood("D", 1000, 11, 0))
		b.AddRoad(Road("A", "B", 1, 1000, 10))
		b.AddRoad(Road("C", "D", 1, 1000, 10))
	})
}

// Cairo returns a small geographic network modelled on greater Cairo with
// existing and proposed roads, traffic, one metro line, one bus route and demand.
// Road lengths are never shorter than the straight line between their ends.
func Cairo(t testing.TB) *network.Network {
	t.Helper()
	return BuildWith(t, network.DefaultOptions(), func(b *network.Builder) {
		for _, n := range []network.Node{
			named(Neighbourhood("1", 250000, 31.2497, 29.9626), "Maadi"),
			named(Neighbourhood("2", 500000, 31.3656, 30.0511), "Nasr City"),
			named(Neighbourhood("3", 100000, 31.2357, 30.0444), "Downtown Cairo"),
			named(Neighbourhood("5", 200000, 31.3425, 30.0911), "Heliopolis"),
			named(Neighbourhood("8", 550000, 31.2118, 29.9870), "Giza"),
			named(Neighbourhood("12", 45000, 31.3333, 29.8500), "Helwan"),
			named(Facility("F1", "Airport", 31.4058, 30.1222), "Cairo International Airport"),
			named(Facility("F9", "Medical", 31.2290, 30.0300), "Qasr El Eyni Hospital"),
			named(Facility("F10", "Medical", 31.2500, 29.9500), "Maadi Military Hospital"),
		} {
			b.AddNode(n)
		}
		for _, r := range []network.RoadEdge{
			Road("1", "3", 11.5, 3000, 7),
			Road("1", "8", 5.7, 2500, 6),
			Road("2", "3", 15.7, 2800, 8),
			Road("2", "5", 6.2, 3000, 9),
			Road("3", "5", 14.4, 3200, 7),
			Road("3", "8", 8.5, 2800, 6),
			Road("5", "F1", 8.8, 3500, 9),
			Road("3", "F9", 2.2, 2000, 7),
			Road("1", "F10", 1.8, 1500, 8),
			Road("1", "12", 18.6, 2000, 5),
			Proposed("2", "F1", 11.0, 4000, 450),
			Proposed("12", "F10", 17.1, 2500, 300),
			Proposed("1", "2", 18.6, 3500, 600),
			Proposed("8", "12", 24.0, 2000, 800),
			Proposed("1", "3", 11.0, 4000, 200),
		} {
			b.AddRoad(r)
		}
		for _, tr := range []network.TrafficRecord{
			{From: "1", To: "3", Volume: [4]float64{2800, 1500, 2600, 800}},
			{From: "2", To: "3", Volume: [4]float64{2500, 1200, 2300, 600}},
			{From: "2", To: "5", Volume: [4]float64{2600, 1300, 2400, 700}},
			{From: "3", To: "5", Volume: [4]float64{2900, 1500, 2700, 800}},
			{From: "1", To: "8", Volume: [4]float64{2200, 1100, 2000, 500}},
			{From: "5", To: "F1", Volume: [4]float64{3000, 1800, 2800, 900}},
		} {
			b.AddTraffic(tr)
		}
		b.AddLine(Line("M1", network.ModeMetro, 1500000, 0, "12", "1", "3", "5"))
		b.AddLine(Line("B1", network.ModeBus, 35000, 15, "1", "3", "F9"))
		for _, d := range []network.DemandRecord{
			Demand("1", "3", 15000),
			Demand("2", "F1", 8000),
			Demand("8", "2", 12000),
			Demand("5", "3", 18000),
			Demand("12", "8", 3000),
			Demand("8", "5", 22000),
			Demand("2", "8", 16000),
		} {
			b.AddDemand(d)
		}
	})
}

func named(n network.Node, name string) network.Node {
	n.Name = name
	return n
}
