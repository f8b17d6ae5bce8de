package network

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// NodeID is the stable key of a neighbourhood or facility.
type NodeID string

// Kind distinguishes neighbourhoods from facilities.
type Kind uint8

const (
	Neighbourhood Kind = iota
	Facility
)

func (k Kind) String() string {
	switch k {
	case Neighbourhood:
		return "neighbourhood"
	case Facility:
		return "facility"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind parses "neighbourhood" or "facility".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neighbourhood", "neighborhood":
		return Neighbourhood, nil
	case "facility":
		return Facility, nil
	}
	return 0, &InvalidInputError{Record: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// Provenance records whether a road exists or is a proposed construction.
type Provenance uint8

const (
	Existing Provenance = iota
	Potential
)

func (p Provenance) String() string {
	switch p {
	case Existing:
		return "existing"
	case Potential:
		return "potential"
	}
	return fmt.Sprintf("provenance(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Provenance) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provenance) UnmarshalText(b []byte) error {
	v, err := ParseProvenance(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProvenance parses "existing" or "potential".
func ParseProvenance(s string) (Provenance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "existing":
		return Existing, nil
	case "potential", "proposed":
		return Potential, nil
	}
	return 0, &InvalidInputError{Record: "provenance", Reason: fmt.Sprintf("unknown provenance %q", s)}
}

// Mode is the means of travel along an edge. ModeNone marks "not yet travelling".
type Mode uint8

const (
	ModeNone Mode = iota
	ModeRoad
	ModeMetro
	ModeBus
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRoad:
		return "road"
	case ModeMetro:
		return "metro"
	case ModeBus:
		return "bus"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// IsTransit reports whether m is a scheduled transit mode.
func (m Mode) IsTransit() bool { return m == ModeMetro || m == ModeBus }

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*m = ModeNone
		return nil
	}
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode parses "road", "metro" or "bus".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "road", "car", "drive":
		return ModeRoad, nil
	case "metro", "subway":
		return ModeMetro, nil
	case "bus":
		return ModeBus, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// Period is one of the four daily traffic windows.
type Period uint8

const (
	Morning Period = iota
	Afternoon
	Evening
	Night
)

// NumPeriods is the number of daily traffic windows.
const NumPeriods = 4

// Periods returns all periods in canonical order.
func Periods() []Period { return []Period{Morning, Afternoon, Evening, Night} }

func (p Period) String() string {
	switch p {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	case Evening:
		return "evening"
	case Night:
		return "night"
	}
	return fmt.Sprintf("period(%d)", uint8(p))
}

// Valid reports whether p is one of the four named periods.
func (p Period) Valid() bool { return p < NumPeriods }

// ParsePeriod parses a period name. Peak suffixes are accepted.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning", "morning_peak", "morning peak":
		return Morning, nil
	case "afternoon":
		return Afternoon, nil
	case "evening", "evening_peak", "evening peak":
		return Evening, nil
	case "night":
		return Night, nil
	}
	return 0, &InvalidInputError{Record: "period", Reason: fmt.Sprintf("unknown period %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	v, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Node is a neighbourhood or facility. Location is (x, y), read as (lon, lat)
// when the network uses geographic coordinates.
type Node struct {
	ID           NodeID
	Kind         Kind
	Name         string
	Location     orb.Point
	Population   int    // neighbourhoods only
	District     string // neighbourhood land use, e.g. "residential"
	FacilityType string // facilities only, e.g. "medical"
}

// RoadEdge is an undirected road between two nodes.
type RoadEdge struct {
	From, To         NodeID
	DistanceKm       float64
	CapacityVPH      float64
	Condition        float64 // 1..10
	Provenance       Provenance
	ConstructionCost float64 // potential roads only, million currency units
}

// Name returns a stable label for diagnostics.
func (e RoadEdge) Name() string {
	return fmt.Sprintf("%s road %s-%s", e.Provenance, e.From, e.To)
}

// TrafficRecord holds per-period volumes in vehicles per hour.
type TrafficRecord struct {
	From, To NodeID
	Volume   [NumPeriods]float64
}

// TransitLine is a metro line or bus route over an ordered list of stops.
type TransitLine struct {
	ID              string
	Name            string
	Mode            Mode
	Stops           []NodeID
	DailyPassengers int
	FleetSize       int // buses only
}

// HasStops reports whether both a and b are stops of the line.
func (l TransitLine) HasStops(a, b NodeID) bool {
	var foundA, foundB bool
	for _, s := range l.Stops {
		foundA = foundA || s == a
		foundB = foundB || s == b
	}
	return foundA && foundB
}

// DemandRecord is the number of daily trips from one node to another.
type DemandRecord struct {
	From, To   NodeID
	DailyTrips int
}
