package api

import (
	"urban_router/pkg/analysis"
	"urban_router/pkg/network"
)

// RouteRequest is the JSON body for POST /api/v1/route, /emergency and /transit.
// Each endpoint is a node id, or a location snapped to the nearest node.
type RouteRequest struct {
	Origin              string      `json:"origin"`
	Destination         string      `json:"destination"`
	OriginLocation      *LatLngJSON `json:"origin_location,omitempty"`
	DestinationLocation *LatLngJSON `json:"destination_location,omitempty"`
	Period              string      `json:"period"`

	Metric       string `json:"metric,omitempty"`        // route: time or distance
	Vehicle      string `json:"vehicle,omitempty"`       // emergency
	MaxTransfers int    `json:"max_transfers,omitempty"` // transit
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NodeJSON is a network node in GET /api/v1/nodes.
type NodeJSON struct {
	ID           network.NodeID `json:"id"`
	Kind         network.Kind   `json:"kind"`
	Name         string         `json:"name"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Population   int            `json:"population,omitempty"`
	District     string         `json:"district,omitempty"`
	FacilityType string         `json:"facility_type,omitempty"`
	Critical     bool           `json:"critical"`
}

// NodesResponse is the JSON response for GET /api/v1/nodes.
type NodesResponse struct {
	Coordinates string     `json:"coordinates"`
	Nodes       []NodeJSON `json:"nodes"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error      string  `json:"error"`
	Field      string  `json:"field,omitempty"`
	Node       string  `json:"node,omitempty"`
	DistanceKm float64 `json:"distance_km,omitempty"`

	// Set for no_route_found when the endpoints lie in different components.
	FromComponent *int `json:"from_component,omitempty"`
	ToComponent   *int `json:"to_component,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Version string `json:"version"`
	analysis.Stats
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
