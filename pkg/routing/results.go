package routing

import (
	"fmt"
	"strings"

	"urban_router/pkg/network"
)

// Metric selects what a normal route minimises.
type Metric uint8

const (
	ByTime Metric = iota
	ByDistance
)

func (m Metric) String() string {
	if m == ByDistance {
		return "distance"
	}
	return "time"
}

// ParseMetric parses "time" or "distance".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "time", "fastest":
		return ByTime, nil
	case "distance", "shortest":
		return ByDistance, nil
	}
	return ByTime, &network.InvalidInputError{Record: "metric", Reason: fmt.Sprintf("unknown metric %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// RouteRequest asks for a normal road route.
type RouteRequest struct {
	Origin, Dest network.NodeID
	Period       network.Period
	Metric       Metric
}

// EmergencyRequest asks for an emergency vehicle route.
type EmergencyRequest struct {
	Origin, Dest network.NodeID
	Period       network.Period
	Vehicle      Vehicle
}

// TransitRequest asks for a multimodal itinerary. MaxTransfers <= 0 means no cap.
type TransitRequest struct {
	Origin, Dest network.NodeID
	Period       network.Period
	MaxTransfers int
}

// FacilityRequest asks for the nearest facility of a type; an empty type matches any.
type FacilityRequest struct {
	Origin       network.NodeID
	FacilityType string
	Period       network.Period
}

// Segment is one edge of a route.
type Segment struct {
	From       network.NodeID `json:"from"`
	To         network.NodeID `json:"to"`
	FromName   string         `json:"from_name"`
	ToName     string         `json:"to_name"`
	DistanceKm float64        `json:"distance_km"`
	TimeMin    float64        `json:"time_min"`
	Mode       network.Mode   `json:"mode"`
	LineID     string         `json:"line_id,omitempty"`
}

// RouteResult is the output of a normal route query.
type RouteResult struct {
	Origin          network.NodeID   `json:"origin"`
	Dest            network.NodeID   `json:"destination"`
	Period          network.Period   `json:"period"`
	Metric          Metric           `json:"metric"`
	Path            []network.NodeID `json:"path"`
	PathNames       []string         `json:"path_names"`
	Segments        []Segment        `json:"segments"`
	TotalDistanceKm float64          `json:"total_distance_km"`
	TotalTimeMin    float64          `json:"total_time_min"`
}

// SegmentDetail annotates an emergency route segment.
type SegmentDetail struct {
	Segment
	TrafficLevel         string `json:"traffic_level"`
	CriticalIntersection bool   `json:"critical_intersection"`
	IsFacility           bool   `json:"is_facility"`
	FacilityType         string `json:"facility_type,omitempty"`
}

// EmergencyResult is the output of an emergency route query.
type EmergencyResult struct {
	RouteResult
	Vehicle            Vehicle         `json:"vehicle"`
	Details            []SegmentDetail `json:"details"`
	NormalTimeMin      float64         `json:"normal_time_min"`
	TimeSavedMin       float64         `json:"time_saved_min"`
	PercentImprovement float64         `json:"percent_improvement"`
}

// Leg is a run of consecutive segments on the same mode and line.
type Leg struct {
	Mode       network.Mode     `json:"mode"`
	LineID     string           `json:"line_id,omitempty"`
	Stops      []network.NodeID `json:"stops"`
	StopNames  []string         `json:"stop_names"`
	DistanceKm float64          `json:"distance_km"`
	TimeMin    float64          `json:"time_min"`
}

// TransitResult is the output of a multimodal query.
type TransitResult struct {
	RouteResult
	Legs                 []Leg `json:"legs"`
	Transfers            int   `json:"transfers"`
	MaxTransfers         int   `json:"max_transfers"`
	MaxTransfersExceeded bool  `json:"max_transfers_exceeded"`
}

// FacilityResult is the route to the nearest matching facility.
type FacilityResult struct {
	RouteResult
	Facility     network.NodeID `json:"facility"`
	FacilityName string         `json:"facility_name"`
	FacilityType string         `json:"facility_type"`
}

// TrafficLevel classifies a volume/capacity ratio.
func TrafficLevel(ratio float64) string {
	switch {
	case ratio > 0.8:
		return "High"
	case ratio > 0.5:
		return "Medium"
	default:
		return "Low"
	}
}
