// Package ingest reads and writes transport datasets as directories of JSON
// or CSV files and feeds them to a network.Builder.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"urban_router/pkg/network"
)

// Base names of the dataset files, without extension.
const (
	NeighbourhoodsFile = "neighbourhoods"
	FacilitiesFile     = "facilities"
	ExistingRoadsFile  = "roads_existing"
	PotentialRoadsFile = "roads_potential"
	TrafficFile        = "traffic"
	MetroLinesFile     = "metro_lines"
	BusRoutesFile      = "bus_routes"
	DemandFile         = "demand"
)

// ID is a node or line id. In JSON it may be a string or a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// IDList is a list of ids. In JSON it may be an array or a comma-separated string.
type IDList []ID

func (l *IDList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = splitIDs(s)
		return nil
	}
	var ids []ID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

func splitIDs(s string) IDList {
	var out IDList
	for _, part := range strings.Split(strings.Trim(s, `"`), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, ID(part))
		}
	}
	return out
}

func (l IDList) nodeIDs() []network.NodeID {
	out := make([]network.NodeID, len(l))
	for i, id := range l {
		out[i] = network.NodeID(id)
	}
	return out
}

type NeighbourhoodRecord struct {
	ID         ID      `json:"id"`
	Name       string  `json:"name"`
	Population int     `json:"population"`
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

type FacilityRecord struct {
	ID   ID      `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type RoadRecord struct {
	From             ID      `json:"from"`
	To               ID      `json:"to"`
	DistanceKm       float64 `json:"distance_km"`
	CapacityVPH      float64 `json:"capacity_vph"`
	Condition        float64 `json:"condition,omitempty"`
	ConstructionCost float64 `json:"construction_cost,omitempty"`
}

type TrafficRow struct {
	From      ID      `json:"from"`
	To        ID      `json:"to"`
	Morning   float64 `json:"morning"`
	Afternoon float64 `json:"afternoon"`
	Evening   float64 `json:"evening"`
	Night     float64 `json:"night"`
}

type MetroRecord struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Stations        IDList `json:"stations"`
	DailyPassengers int    `json:"daily_passengers"`
}

type BusRecord struct {
	ID              ID     `json:"id"`
	Stops           IDList `json:"stops"`
	Buses           int    `json:"buses"`
	DailyPassengers int    `json:"daily_passengers"`
}

type DemandRow struct {
	From            ID  `json:"from"`
	To              ID  `json:"to"`
	DailyPassengers int `json:"daily_passengers"`
}

// Dataset is a complete set of records, as produced by the OSM importer.
type Dataset struct {
	Neighbourhoods []NeighbourhoodRecord
	Facilities     []FacilityRecord
	ExistingRoads  []RoadRecord
	PotentialRoads []RoadRecord
	Traffic        []TrafficRow
	MetroLines     []MetroRecord
	BusRoutes      []BusRecord
	Demand         []DemandRow
}

// Apply adds every record to b. Invalid records are dropped by the Builder.
func (d *Dataset) Apply(b *network.Builder) {
	for _, r := range d.Neighbourhoods {
		_ = b.AddNode(r.node())
	}
	for _, r := range d.Facilities {
		_ = b.AddNode(r.node())
	}
	for _, r := range d.ExistingRoads {
		_ = b.AddRoad(r.road(network.Existing))
	}
	for _, r := range d.PotentialRoads {
		_ = b.AddRoad(r.road(network.Potential))
	}
	for _, r := range d.Traffic {
		_ = b.AddTraffic(r.record())
	}
	for _, r := range d.MetroLines {
		_ = b.AddLine(r.line())
	}
	for _, r := range d.BusRoutes {
		_ = b.AddLine(r.line())
	}
	for _, r := range d.Demand {
		_ = b.AddDemand(r.record())
	}
}

func (r NeighbourhoodRecord) node() network.Node {
	return network.Node{
		ID:         network.NodeID(r.ID),
		Kind:       network.Neighbourhood,
		Name:       r.Name,
		Location:   orb.Point{r.X, r.Y},
		Population: r.Population,
		District:   r.Type,
	}
}

func (r FacilityRecord) node() network.Node {
	return network.Node{
		ID:           network.NodeID(r.ID),
		Kind:         network.Facility,
		Name:         r.Name,
		Location:     orb.Point{r.X, r.Y},
		FacilityType: r.Type,
	}
}

func (r RoadRecord) road(p network.Provenance) network.RoadEdge {
	e := network.RoadEdge{
		From:        network.NodeID(r.From),
		To:          network.NodeID(r.To),
		DistanceKm:  r.DistanceKm,
		CapacityVPH: r.CapacityVPH,
		Condition:   r.Condition,
		Provenance:  p,
	}
	if p == network.Potential {
		e.ConstructionCost = r.ConstructionCost
	}
	return e
}

func (r TrafficRow) record() network.TrafficRecord {
	return network.TrafficRecord{
		From:   network.NodeID(r.From),
		To:     network.NodeID(r.To),
		Volume: [network.NumPeriods]float64{r.Morning, r.Afternoon, r.Evening, r.Night},
	}
}

func (r MetroRecord) line() network.TransitLine {
	return network.TransitLine{
		ID:              string(r.ID),
		Name:            r.Name,
		Mode:            network.ModeMetro,
		Stops:           r.Stations.nodeIDs(),
		DailyPassengers: r.DailyPassengers,
	}
}

func (r BusRecord) line() network.TransitLine {
	return network.TransitLine{
		ID:              string(r.ID),
		Name:            string(r.ID),
		Mode:            network.ModeBus,
		Stops:           r.Stops.nodeIDs(),
		DailyPassengers: r.DailyPassengers,
		FleetSize:       r.Buses,
	}
}

func (r DemandRow) record() network.DemandRecord {
	return network.DemandRecord{From: network.NodeID(r.From), To: network.NodeID(r.To), DailyTrips: r.DailyPassengers}
}

// Format is a dataset file format.
type Format uint8

const (
	JSON Format = iota
	CSV
)

func (f Format) String() string {
	if f == CSV {
		return "csv"
	}
	return "json"
}

// Ext returns the file extension, with the dot.
func (f Format) Ext() string { return "." + f.String() }

// ParseFormat parses "json" or "csv".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	}
	return JSON, &network.InvalidInputError{Record: "format", Reason: "unknown dataset format " + strconv.Quote(s)}
}
