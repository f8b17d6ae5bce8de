package network

import (
	"slices"

	"urban_router/pkg/geo"
)

type pair struct{ a, b NodeID }

// Network is the loaded transportation network. It is immutable after
// Builder.Build and safe for concurrent readers.
type Network struct {
	version   string
	opts      Options
	coords    geo.Coordinates
	nodes     []Node
	index     map[NodeID]int
	roads     []RoadEdge
	lines     []TransitLine
	traffic   map[pair][NumPeriods]float64
	demand    []DemandRecord
	demandIdx map[pair]int
}

// Version identifies this load. Every Build produces a new version.
func (n *Network) Version() string { return n.version }

// Coordinates returns the resolved coordinate system (never geo.Auto).
func (n *Network) Coordinates() geo.Coordinates { return n.coords }

// CriticalPopulation returns the population threshold for critical neighbourhoods.
func (n *Network) CriticalPopulation() int { return n.opts.CriticalPopulation }

// Nodes returns all nodes in load order.
func (n *Network) Nodes() []Node { return slices.Clone(n.nodes) }

// NumNodes returns the number of nodes.
func (n *Network) NumNodes() int { return len(n.nodes) }

// Node returns the node with the given id.
func (n *Network) Node(id NodeID) (Node, error) {
	i, ok := n.index[id]
	if !ok {
		return Node{}, &NotFoundError{ID: id}
	}
	return n.nodes[i], nil
}

// Has reports whether id is a node of the network.
func (n *Network) Has(id NodeID) bool {
	_, ok := n.index[id]
	return ok
}

// Name returns the node's name, or its id when unknown or unnamed.
func (n *Network) Name(id NodeID) string {
	if i, ok := n.index[id]; ok && n.nodes[i].Name != "" {
		return n.nodes[i].Name
	}
	return string(id)
}

// RoadEdges returns existing roads, followed by potential roads when requested,
// each group in load order.
func (n *Network) RoadEdges(includePotential bool) []RoadEdge {
	out := make([]RoadEdge, 0, len(n.roads))
	for _, e := range n.roads {
		if e.Provenance == Existing {
			out = append(out, e)
		}
	}
	if includePotential {
		out = append(out, n.PotentialRoads()...)
	}
	return out
}

// PotentialRoads returns proposed roads in load order.
func (n *Network) PotentialRoads() []RoadEdge {
	var out []RoadEdge
	for _, e := range n.roads {
		if e.Provenance == Potential {
			out = append(out, e)
		}
	}
	return out
}

// TransitLines returns lines of the given mode; ModeNone returns all lines.
func (n *Network) TransitLines(mode Mode) []TransitLine {
	var out []TransitLine
	for _, l := range n.lines {
		if mode == ModeNone || l.Mode == mode {
			l.Stops = slices.Clone(l.Stops)
			out = append(out, l)
		}
	}
	return out
}

// TrafficVolume returns the volume between u and v in period p, or 0 if absent.
func (n *Network) TrafficVolume(u, v NodeID, p Period) float64 {
	if !p.Valid() {
		return 0
	}
	return n.traffic[pair{u, v}][p]
}

// HasTraffic reports whether a traffic record applies to u-v.
func (n *Network) HasTraffic(u, v NodeID) bool {
	_, ok := n.traffic[pair{u, v}]
	return ok
}

// Demand returns the daily trips from u to v, or 0 if absent.
func (n *Network) Demand(u, v NodeID) int {
	if i, ok := n.demandIdx[pair{u, v}]; ok {
		return n.demand[i].DailyTrips
	}
	return 0
}

// DemandRecords returns all demand records in load order.
func (n *Network) DemandRecords() []DemandRecord { return slices.Clone(n.demand) }

// Critical reports whether id is a facility or a neighbourhood whose population
// exceeds the critical threshold.
func (n *Network) Critical(id NodeID) bool {
	i, ok := n.index[id]
	if !ok {
		return false
	}
	node := n.nodes[i]
	return node.Kind == Facility || node.Population > n.opts.CriticalPopulation
}

// CriticalNodes returns the ids of all critical nodes in load order.
func (n *Network) CriticalNodes() []NodeID {
	var out []NodeID
	for _, node := range n.nodes {
		if n.Critical(node.ID) {
			out = append(out, node.ID)
		}
	}
	return out
}

// Distance returns the straight-line distance in km between two nodes.
func (n *Network) Distance(u, v NodeID) (float64, error) {
	a, err := n.Node(u)
	if err != nil {
		return 0, err
	}
	b, err := n.Node(v)
	if err != nil {
		return 0, err
	}
	return n.coords.Distance(a.Location, b.Location), nil
}
