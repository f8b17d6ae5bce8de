// Package analysis reports congestion, transit gaps and network statistics.
package analysis

import (
	"sort"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

const (
	suggestionThreshold = 15000
	busSuggestionLimit  = 20000
)

// RoadCongestion is the load on one existing road in a period.
type RoadCongestion struct {
	From        network.NodeID `json:"from"`
	To          network.NodeID `json:"to"`
	Name        string         `json:"name"`
	VolumeVPH   float64        `json:"volume_vph"`
	CapacityVPH float64        `json:"capacity_vph"`
	Ratio       float64        `json:"ratio"`
	Level       string         `json:"level"`
}

// Congestion returns volume/capacity for every existing road with capacity,
// most congested first. Roads without a traffic record have level Unknown.
func Congestion(net *network.Network, period network.Period) []RoadCongestion {
	var out []RoadCongestion
	for _, r := range net.RoadEdges(false) {
		if r.CapacityVPH <= 0 {
			continue
		}
		vol := net.TrafficVolume(r.From, r.To, period)
		c := RoadCongestion{
			From:        r.From,
			To:          r.To,
			Name:        net.Name(r.From) + " - " + net.Name(r.To),
			VolumeVPH:   vol,
			CapacityVPH: r.CapacityVPH,
			Ratio:       vol / r.CapacityVPH,
			Level:       "Unknown",
		}
		if net.HasTraffic(r.From, r.To) {
			c.Level = routing.TrafficLevel(c.Ratio)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ratio > out[j].Ratio })
	return out
}

// Suggestion proposes transit for an unserved high-demand pair.
type Suggestion struct {
	From       network.NodeID `json:"from"`
	To         network.NodeID `json:"to"`
	FromName   string         `json:"from_name"`
	ToName     string         `json:"to_name"`
	Demand     int            `json:"demand"`
	Suggestion string         `json:"suggestion"`
}

// Suggestions lists demand pairs above 15000 daily trips that no metro or
// bus line serves with both endpoints.
func Suggestions(net *network.Network) []Suggestion {
	lines := net.TransitLines(network.ModeNone)
	var out []Suggestion
	for _, d := range net.DemandRecords() {
		if d.DailyTrips <= suggestionThreshold || served(lines, d.From, d.To) {
			continue
		}
		s := Suggestion{
			From:       d.From,
			To:         d.To,
			FromName:   net.Name(d.From),
			ToName:     net.Name(d.To),
			Demand:     d.DailyTrips,
			Suggestion: "New bus route",
		}
		if d.DailyTrips >= busSuggestionLimit {
			s.Suggestion = "Consider metro extension"
		}
		out = append(out, s)
	}
	return out
}

func served(lines []network.TransitLine, a, b network.NodeID) bool {
	for _, l := range lines {
		if l.HasStops(a, b) {
			return true
		}
	}
	return false
}

// Connectivity describes the existing road graph.
type Connectivity struct {
	AverageDegree    float64 `json:"average_degree"`
	Density          float64 `json:"density"`
	Connected        bool    `json:"connected"`
	Components       int     `json:"components"`
	LargestComponent int     `json:"largest_component"`
}

// Stats summarises a network.
type Stats struct {
	TotalPopulation int            `json:"total_population"`
	Neighbourhoods  int            `json:"neighbourhoods"`
	Districts       map[string]int `json:"districts"`
	Facilities      int            `json:"facilities"`
	FacilityTypes   map[string]int `json:"facility_types"`
	CriticalNodes   int            `json:"critical_nodes"`
	Roads           int            `json:"roads"`
	PotentialRoads  int            `json:"potential_roads"`
	TotalRoadKm     float64        `json:"total_road_length_km"`
	PotentialRoadKm float64        `json:"potential_road_length_km"`
	MetroLines      int            `json:"metro_lines"`
	BusRoutes       int            `json:"bus_routes"`
	DemandPairs     int            `json:"demand_pairs"`
	Connectivity    Connectivity   `json:"connectivity"`
}

// Statistics computes Stats over the existing road network.
func Statistics(net *network.Network) Stats {
	s := Stats{
		Districts:     make(map[string]int),
		FacilityTypes: make(map[string]int),
		CriticalNodes: len(net.CriticalNodes()),
		MetroLines:    len(net.TransitLines(network.ModeMetro)),
		BusRoutes:     len(net.TransitLines(network.ModeBus)),
		DemandPairs:   len(net.DemandRecords()),
	}
	for _, n := range net.Nodes() {
		switch n.Kind {
		case network.Neighbourhood:
			s.Neighbourhoods++
			s.TotalPopulation += n.Population
			if n.District != "" {
				s.Districts[n.District]++
			}
		case network.Facility:
			s.Facilities++
			if n.FacilityType != "" {
				s.FacilityTypes[n.FacilityType]++
			}
		}
	}
	for _, r := range net.RoadEdges(false) {
		s.Roads++
		s.TotalRoadKm += r.DistanceKm
	}
	for _, r := range net.PotentialRoads() {
		s.PotentialRoads++
		s.PotentialRoadKm += r.DistanceKm
	}

	g := graph.BuildRoadGraph(net, network.Morning, false)
	if nodes := float64(g.NumNodes); nodes > 0 {
		edges := float64(len(g.Edges))
		s.Connectivity.AverageDegree = 2 * edges / nodes
		if nodes > 1 {
			s.Connectivity.Density = 2 * edges / (nodes * (nodes - 1))
		}
	}
	_, s.Connectivity.Components = graph.Components(g)
	s.Connectivity.Connected = s.Connectivity.Components == 1
	s.Connectivity.LargestComponent = len(graph.LargestComponent(g))
	return s
}
