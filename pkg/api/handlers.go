package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"urban_router/pkg/allocation"
	"urban_router/pkg/analysis"
	"urban_router/pkg/mst"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

const maxBodyBytes = 4096

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router  routing.Router
	net     *network.Network
	locator *routing.Locator
	stats   StatsResponse
	bus     allocation.BusOptions
	metro   allocation.MetroOptions
}

// Options are the optimizer defaults the handlers run with.
type Options struct {
	Bus   allocation.BusOptions
	Metro allocation.MetroOptions
	// MaxLocateKm bounds how far a location may be from its snapped node.
	MaxLocateKm float64
}

// DefaultOptions returns the package defaults of each optimizer.
func DefaultOptions() Options {
	return Options{Bus: allocation.DefaultBusOptions(), Metro: allocation.DefaultMetroOptions()}
}

// NewHandlers creates handlers answering queries about net through router.
func NewHandlers(router routing.Router, net *network.Network, opts Options) *Handlers {
	return &Handlers{
		router:  router,
		net:     net,
		locator: routing.NewLocator(net, opts.MaxLocateKm),
		stats:   StatsResponse{Version: net.Version(), Stats: analysis.Statistics(net)},
		bus:     opts.Bus,
		metro:   opts.Metro,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(c *gin.Context) {
	req, origin, dest, ok := h.bindRoute(c)
	if !ok {
		return
	}
	metric, err := routing.ParseMetric(req.Metric)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_metric", "metric")
		return
	}
	period, ok := bodyPeriod(c, req.Period)
	if !ok {
		return
	}

	result, err := h.router.Route(c.Request.Context(), routing.RouteRequest{Origin: origin, Dest: dest, Period: period, Metric: metric})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleEmergency handles POST /api/v1/emergency.
func (h *Handlers) HandleEmergency(c *gin.Context) {
	req, origin, dest, ok := h.bindRoute(c)
	if !ok {
		return
	}
	vehicle, err := routing.ParseVehicle(req.Vehicle)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_vehicle", "vehicle")
		return
	}
	period, ok := bodyPeriod(c, req.Period)
	if !ok {
		return
	}

	result, err := h.router.Emergency(c.Request.Context(), routing.EmergencyRequest{Origin: origin, Dest: dest, Period: period, Vehicle: vehicle})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleTransit handles POST /api/v1/transit.
func (h *Handlers) HandleTransit(c *gin.Context) {
	req, origin, dest, ok := h.bindRoute(c)
	if !ok {
		return
	}
	if req.MaxTransfers < 0 {
		writeError(c, http.StatusBadRequest, "invalid_max_transfers", "max_transfers")
		return
	}
	period, ok := bodyPeriod(c, req.Period)
	if !ok {
		return
	}

	result, err := h.router.Transit(c.Request.Context(), routing.TransitRequest{Origin: origin, Dest: dest, Period: period, MaxTransfers: req.MaxTransfers})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleNearest handles GET /api/v1/nearest?origin=&type=&period=, or with
// lat and lng in place of origin.
func (h *Handlers) HandleNearest(c *gin.Context) {
	period, ok := queryPeriod(c)
	if !ok {
		return
	}
	origin := network.NodeID(strings.TrimSpace(c.Query("origin")))
	if origin == "" {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			writeError(c, http.StatusBadRequest, "invalid_request", "origin")
			return
		}
		if origin, ok = h.snap(c, &LatLngJSON{Lat: lat, Lng: lng}, "origin"); !ok {
			return
		}
	}

	result, err := h.router.NearestFacility(c.Request.Context(), routing.FacilityRequest{
		Origin:       origin,
		FacilityType: c.Query("type"),
		Period:       period,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleInfrastructure handles GET /api/v1/infrastructure.
func (h *Handlers) HandleInfrastructure(c *gin.Context) {
	opts := mst.DefaultOptions()
	var ok bool
	if opts.Period, ok = queryPeriod(c); !ok {
		return
	}
	if opts.PrioritizePopulation, ok = queryBool(c, "prioritize_population", opts.PrioritizePopulation); !ok {
		return
	}
	if opts.IncludeExisting, ok = queryBool(c, "include_existing", opts.IncludeExisting); !ok {
		return
	}

	plan, err := mst.Plan(c.Request.Context(), h.net, opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// BusesResponse is the JSON response for GET /api/v1/buses.
type BusesResponse struct {
	*allocation.BusPlan
	Warning string `json:"warning,omitempty"`
}

// HandleBuses handles GET /api/v1/buses.
func (h *Handlers) HandleBuses(c *gin.Context) {
	opts := h.bus
	var ok bool
	if opts.MaxBuses, ok = queryInt(c, "max_buses", opts.MaxBuses); !ok {
		return
	}
	if opts.DemandThreshold, ok = queryInt(c, "threshold", opts.DemandThreshold); !ok {
		return
	}

	plan, err := allocation.OptimizeBusCoverage(c.Request.Context(), h.net, opts)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := BusesResponse{BusPlan: plan}
	if err := plan.Exhaustion(); err != nil {
		resp.Warning = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleMetro handles GET /api/v1/metro.
func (h *Handlers) HandleMetro(c *gin.Context) {
	schedules, err := allocation.OptimizeMetroSchedule(c.Request.Context(), h.net, h.metro)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": schedules})
}

// HandleTraffic handles GET /api/v1/traffic?period=.
func (h *Handlers) HandleTraffic(c *gin.Context) {
	period, ok := queryPeriod(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "roads": analysis.Congestion(h.net, period)})
}

// HandleSuggestions handles GET /api/v1/suggestions.
func (h *Handlers) HandleSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": analysis.Suggestions(h.net)})
}

// HandleNodes handles GET /api/v1/nodes.
func (h *Handlers) HandleNodes(c *gin.Context) {
	nodes := h.net.Nodes()
	resp := NodesResponse{Coordinates: h.net.Coordinates().String(), Nodes: make([]NodeJSON, len(nodes))}
	for i, n := range nodes {
		resp.Nodes[i] = NodeJSON{
			ID:           n.ID,
			Kind:         n.Kind,
			Name:         n.Name,
			X:            n.Location[0],
			Y:            n.Location[1],
			Population:   n.Population,
			District:     n.District,
			FacilityType: n.FacilityType,
			Critical:     h.net.Critical(n.ID),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.net.Version()})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats)
}

// bindRoute decodes a route body and resolves both endpoints. On failure the
// error response is already written.
func (h *Handlers) bindRoute(c *gin.Context) (req RouteRequest, origin, dest network.NodeID, ok bool) {
	// Enforce Content-Type.
	if c.ContentType() != "application/json" {
		writeError(c, http.StatusBadRequest, "invalid_request", "")
		return req, "", "", false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "")
		return req, "", "", false
	}
	if origin, ok = h.endpoint(c, req.Origin, req.OriginLocation, "origin"); !ok {
		return req, "", "", false
	}
	if dest, ok = h.endpoint(c, req.Destination, req.DestinationLocation, "destination"); !ok {
		return req, "", "", false
	}
	return req, origin, dest, true
}

func (h *Handlers) endpoint(c *gin.Context, id string, loc *LatLngJSON, field string) (network.NodeID, bool) {
	if id = strings.TrimSpace(id); id != "" {
		return network.NodeID(id), true
	}
	if loc == nil {
		writeError(c, http.StatusBadRequest, "missing_endpoint", field)
		return "", false
	}
	return h.snap(c, loc, field)
}

// snap resolves a location to the nearest network node.
func (h *Handlers) snap(c *gin.Context, ll *LatLngJSON, field string) (network.NodeID, bool) {
	if err := validateCoord(*ll); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_coordinates", field)
		return "", false
	}
	node, km, err := h.locator.Nearest(orb.Point{ll.Lng, ll.Lat})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "point_too_far_from_network", Field: field, DistanceKm: km})
		return "", false
	}
	return node.ID, true
}

func bodyPeriod(c *gin.Context, s string) (network.Period, bool) {
	if strings.TrimSpace(s) == "" {
		return network.Morning, true
	}
	p, err := network.ParsePeriod(s)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_period", "period")
		return 0, false
	}
	return p, true
}

func queryPeriod(c *gin.Context) (network.Period, bool) {
	return bodyPeriod(c, c.Query("period"))
}

func queryBool(c *gin.Context, name string, def bool) (bool, bool) {
	s, present := c.GetQuery(name)
	if !present {
		return def, true
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_parameter", name)
		return def, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	s, present := c.GetQuery(name)
	if !present {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_parameter", name)
		return def, false
	}
	return v, true
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

// writeServiceError maps a core error onto a status and error code.
func writeServiceError(c *gin.Context, err error) {
	var missing *routing.NodeNotFoundError
	var netMissing *network.NotFoundError
	var noPath *routing.NoPathError
	switch {
	case errors.As(err, &missing):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "node_not_found", Node: string(missing.ID)})
	case errors.As(err, &netMissing):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "node_not_found", Node: string(netMissing.ID)})
	case errors.As(err, &noPath):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Error:         "no_route_found",
			FromComponent: &noPath.FromComponent,
			ToComponent:   &noPath.ToComponent,
		})
	case errors.Is(err, routing.ErrNoRoute):
		writeError(c, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, network.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, "invalid_request", "")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		log.WithField("request_id", c.GetString(requestIDKey)).Errorf("Request failed: %v", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeError(c *gin.Context, status int, code, field string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Field: field})
}
