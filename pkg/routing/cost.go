package routing

import (
	"fmt"
	"math"
	"strings"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
)

// DistanceCost prices an edge by its length in km.
func DistanceCost(e *graph.Edge, _ network.Mode) float64 { return e.DistanceKm }

// WeightCost prices an edge by its congestion-adjusted length.
func WeightCost(e *graph.Edge, _ network.Mode) float64 { return e.Weight }

// TravelTimeCost prices an edge by its normal travel time in minutes.
func TravelTimeCost(e *graph.Edge, _ network.Mode) float64 { return e.TimeMin }

// Vehicle is an emergency vehicle type.
type Vehicle uint8

const (
	Ambulance Vehicle = iota
	FireTruck
	Police
)

var vehicleProfiles = [...]struct {
	name          string
	baseSpeedKmh  float64
	priorityRatio float64
}{
	Ambulance: {"ambulance", 60, 0.8},
	FireTruck: {"fire_truck", 55, 0.85},
	Police:    {"police", 70, 0.9},
}

func (v Vehicle) String() string {
	if int(v) < len(vehicleProfiles) {
		return vehicleProfiles[v].name
	}
	return fmt.Sprintf("vehicle(%d)", uint8(v))
}

// BaseSpeedKmh is the vehicle's free-flow speed.
func (v Vehicle) BaseSpeedKmh() float64 { return vehicleProfiles[v].baseSpeedKmh }

// PriorityFactor scales travel time for signal and lane priority.
func (v Vehicle) PriorityFactor() float64 { return vehicleProfiles[v].priorityRatio }

// ParseVehicle parses a vehicle name.
func ParseVehicle(s string) (Vehicle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ambulance":
		return Ambulance, nil
	case "fire", "fire_truck", "firetruck", "fire truck":
		return FireTruck, nil
	case "police":
		return Police, nil
	}
	return 0, &network.InvalidInputError{Record: "vehicle", Reason: fmt.Sprintf("unknown vehicle %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (v Vehicle) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Vehicle) UnmarshalText(b []byte) error {
	parsed, err := ParseVehicle(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

const (
	minEmergencyTrafficImpact = 0.3
	emergencyCongestionShare  = 0.7
)

// EmergencyTimeMin returns the minutes an emergency vehicle needs for e.
// Congestion slows the vehicle to at most 30% of its base speed.
func EmergencyTimeMin(e *graph.Edge, v Vehicle) float64 {
	impact := 1.0
	if e.CapacityVPH > 0 {
		impact = math.Max(minEmergencyTrafficImpact, 1-emergencyCongestionShare*e.Flow/e.CapacityVPH)
	}
	return e.DistanceKm * 60 / (v.BaseSpeedKmh() * impact) * v.PriorityFactor()
}

// EmergencyCost prices edges by emergency travel time for v.
func EmergencyCost(v Vehicle) CostFunc {
	return func(e *graph.Edge, _ network.Mode) float64 { return EmergencyTimeMin(e, v) }
}

// HeuristicSpeedKmh is the reference speed of the emergency A* heuristic.
const HeuristicSpeedKmh = 90.0

// TimeHeuristic estimates straight-line minutes to dest at speedKmh. It is
// admissible only while no edge is traversed faster than speedKmh.
func TimeHeuristic(g *graph.WeightedGraph, dest uint32, speedKmh float64) Heuristic {
	return func(u uint32) float64 {
		return g.StraightLine(u, dest) * 60 / speedKmh
	}
}

// MetroBoardingMin is the fixed wait when boarding a metro.
const MetroBoardingMin = 3.0

// BoardingWaitMin returns the wait incurred when switching onto e's mode.
func BoardingWaitMin(e *graph.Edge) float64 {
	switch e.Mode {
	case network.ModeBus:
		return e.HeadwayMin / 2
	case network.ModeMetro:
		return MetroBoardingMin
	}
	return 0
}

// MultimodalCost prices an edge by scheduled time plus a boarding wait
// whenever the traveller switches onto a transit mode.
func MultimodalCost(e *graph.Edge, prev network.Mode) float64 {
	c := e.TimeMin
	if e.Mode != prev && e.Mode.IsTransit() {
		c += BoardingWaitMin(e)
	}
	return c
}
