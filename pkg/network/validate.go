package network

import "math"

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks the node's invariants.
func (n Node) Validate() error {
	rec := "node " + string(n.ID)
	switch {
	case n.ID == "":
		return invalid("node", "empty id")
	case n.Kind != Neighbourhood && n.Kind != Facility:
		return invalid(rec, "unknown kind %d", n.Kind)
	case n.Population < 0:
		return invalid(rec, "negative population %d", n.Population)
	case n.Kind == Facility && n.Population != 0:
		return invalid(rec, "facility with population %d", n.Population)
	case !finite(n.Location[0]) || !finite(n.Location[1]):
		return invalid(rec, "non-finite coordinates")
	}
	return nil
}

// Validate checks the road's invariants.
func (e RoadEdge) Validate() error {
	rec := e.Name()
	switch {
	case e.From == "" || e.To == "":
		return invalid(rec, "missing endpoint")
	case e.From == e.To:
		return invalid(rec, "self loop")
	case e.Provenance != Existing && e.Provenance != Potential:
		return invalid(rec, "unknown provenance %d", e.Provenance)
	case !finite(e.DistanceKm) || e.DistanceKm <= 0:
		return invalid(rec, "distance %v must be positive", e.DistanceKm)
	case !finite(e.CapacityVPH) || e.CapacityVPH <= 0:
		return invalid(rec, "capacity %v must be positive", e.CapacityVPH)
	case !finite(e.Condition) || e.Condition < 1 || e.Condition > 10:
		return invalid(rec, "condition %v outside 1..10", e.Condition)
	case !finite(e.ConstructionCost) || e.ConstructionCost < 0:
		return invalid(rec, "negative construction cost %v", e.ConstructionCost)
	case e.Provenance == Existing && e.ConstructionCost != 0:
		return invalid(rec, "existing road with construction cost")
	}
	return nil
}

// Validate checks the traffic record's invariants.
func (r TrafficRecord) Validate() error {
	rec := "traffic " + string(r.From) + "-" + string(r.To)
	if r.From == "" || r.To == "" {
		return invalid(rec, "missing endpoint")
	}
	for p, v := range r.Volume {
		if !finite(v) || v < 0 {
			return invalid(rec, "%s volume %v must be non-negative", Period(p), v)
		}
	}
	return nil
}

// Validate checks the line's invariants.
func (l TransitLine) Validate() error {
	rec := l.Mode.String() + " line " + l.ID
	switch {
	case l.ID == "":
		return invalid("transit line", "empty id")
	case !l.Mode.IsTransit():
		return invalid(rec, "mode must be metro or bus")
	case len(l.Stops) < 2:
		return invalid(rec, "%d stops, need at least 2", len(l.Stops))
	case l.DailyPassengers < 0:
		return invalid(rec, "negative daily passengers")
	case l.FleetSize < 0:
		return invalid(rec, "negative fleet size")
	}
	for i := 1; i < len(l.Stops); i++ {
		if l.Stops[i] == l.Stops[i-1] {
			return invalid(rec, "repeated consecutive stop %s", l.Stops[i])
		}
	}
	return nil
}

// Validate checks the demand record's invariants.
func (d DemandRecord) Validate() error {
	rec := "demand " + string(d.From) + "-" + string(d.To)
	switch {
	case d.From == "" || d.To == "":
		return invalid(rec, "missing endpoint")
	case d.From == d.To:
		return invalid(rec, "origin equals destination")
	case d.DailyTrips < 0:
		return invalid(rec, "negative trips")
	}
	return nil
}
