package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
	"urban_router/pkg/routing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockRouter implements routing.Router for testing.
type mockRouter struct {
	route func(ctx context.Context) (*routing.RouteResult, error)
}

func (m *mockRouter) Route(ctx context.Context, _ routing.RouteRequest) (*routing.RouteResult, error) {
	return m.route(ctx)
}

func (m *mockRouter) Emergency(context.Context, routing.EmergencyRequest) (*routing.EmergencyResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRouter) Transit(context.Context, routing.TransitRequest) (*routing.TransitResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRouter) NearestFacility(context.Context, routing.FacilityRequest) (*routing.FacilityResult, error) {
	return nil, errors.New("not implemented")
}

func newTestRouter(t *testing.T, net *network.Network, router routing.Router, cfg ServerConfig) *gin.Engine {
	t.Helper()
	if router == nil {
		router = routing.NewService(net, nil)
	}
	return NewRouter(cfg, NewHandlers(router, net, DefaultOptions()))
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHandleRoute_Success(t *testing.T) {
	r := newTestRouter(t, nt.Chain(t), nil, DefaultConfig(":0"))

	w := do(r, "POST", "/api/v1/route", `{"origin":"A","destination":"C","metric":"distance","period":"evening"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp routing.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []network.NodeID{"A", "B", "C"}, resp.Path)
	assert.InDelta(t, 10.0, resp.TotalDistanceKm, 1e-9)
	assert.Equal(t, network.Evening, resp.Period)
	assert.Equal(t, routing.ByDistance, resp.Metric)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHandleRoute_SnapsLocations(t *testing.T) {
	r := newTestRouter(t, nt.Chain(t), nil, DefaultConfig(":0"))

	w := do(r, "POST", "/api/v1/route", `{"origin_location":{"lat":0.2,"lng":0.1},"destination_location":{"lat":0.1,"lng":9.8}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp routing.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, network.NodeID("A"), resp.Origin)
	assert.Equal(t, network.NodeID("C"), resp.Dest)

	w = do(r, "POST", "/api/v1/route", `{"origin":"A","destination_location":{"lat":80,"lng":80}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp2 := decodeError(t, w)
	assert.Equal(t, "point_too_far_from_network", resp2.Error)
	assert.Equal(t, "destination", resp2.Field)
	assert.Greater(t, resp2.DistanceKm, 5.0)

	w = do(r, "POST", "/api/v1/route", `{"origin":"A","destination_location":{"lat":91,"lng":0}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_coordinates", decodeError(t, w).Error)
}

func TestHandleRoute_BadRequests(t *testing.T) {
	r := newTestRouter(t, nt.Chain(t), nil, DefaultConfig(":0"))

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"invalid json", "not json", "invalid_request", ""},
		{"missing origin", `{"destination":"C"}`, "missing_endpoint", "origin"},
		{"missing destination", `{"origin":"A"}`, "missing_endpoint", "destination"},
		{"bad period", `{"origin":"A","destination":"C","period":"noon"}`, "invalid_period", "period"},
		{"bad metric", `{"origin":"A","destination":"C","metric":"scenic"}`, "invalid_metric", "metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, "POST", "/api/v1/route", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestHandleRoute_MissingContentType(t *testing.T) {
	r := newTestRouter(t, nt.Chain(t), nil, DefaultConfig(":0"))
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(`{"origin":"A","destination":"C"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRoute_ServiceErrors(t *testing.T) {
	net := nt.Chain(t)
	body := `{"origin":"A","destination":"C"}`

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown node", &routing.NodeNotFoundError{ID: "Z"}, http.StatusNotFound, "node_not_found"},
		{"no route", &routing.NoPathError{From: "A", To: "C"}, http.StatusNotFound, "no_route_found"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "request_timeout"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRouter{route: func(context.Context) (*routing.RouteResult, error) { return nil, tt.err }}
			w := do(newTestRouter(t, net, mock, DefaultConfig(":0")), "POST", "/api/v1/route", body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}

	w := do(newTestRouter(t, net, nil, DefaultConfig(":0")), "POST", "/api/v1/route", `{"origin":"A","destination":"Q"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Q", decodeError(t, w).Node)
}

func TestHandleRoute_NoPathReportsComponents(t *testing.T) {
	r := newTestRouter(t, nt.Disjoint(t), nil, DefaultConfig(":0"))

	w := do(r, "POST", "/api/v1/route", `{"origin":"A","destination":"C"}`)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	resp := decodeError(t, w)
	assert.Equal(t, "no_route_found", resp.Error)
	require.NotNil(t, resp.FromComponent)
	require.NotNil(t, resp.ToComponent)
	assert.Equal(t, 0, *resp.FromComponent)
	assert.Equal(t, 1, *resp.ToComponent)
	assert.Contains(t, w.Body.String(), `"from_component":0`)
}

func TestHandleEmergency(t *testing.T) {
	r := newTestRouter(t, nt.Cairo(t), nil, DefaultConfig(":0"))

	w := do(r, "POST", "/api/v1/emergency", `{"origin":"12","destination":"F1","vehicle":"fire_truck"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp routing.EmergencyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, routing.FireTruck, resp.Vehicle)
	assert.Equal(t, network.NodeID("F1"), resp.Path[len(resp.Path)-1])
	assert.LessOrEqual(t, resp.TotalTimeMin, resp.NormalTimeMin)

	w = do(r, "POST", "/api/v1/emergency", `{"origin":"12","destination":"F1","vehicle":"helicopter"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "vehicle", decodeError(t, w).Field)
}

func TestHandleTransit(t *testing.T) {
	r := newTestRouter(t, nt.Cairo(t), nil, DefaultConfig(":0"))

	w := do(r, "POST", "/api/v1/transit", `{"origin":"12","destination":"F9","max_transfers":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp routing.TransitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Legs)
	assert.Equal(t, 3, resp.MaxTransfers)

	w = do(r, "POST", "/api/v1/transit", `{"origin":"12","destination":"F9","max_transfers":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleNearest(t *testing.T) {
	r := newTestRouter(t, nt.Cairo(t), nil, DefaultConfig(":0"))

	w := do(r, "GET", "/api/v1/nearest?origin=8&type=Medical", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp routing.FacilityResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, network.NodeID("F9"), resp.Facility)

	w = do(r, "GET", "/api/v1/nearest?lat=29.987&lng=31.2118&type=medical", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, network.NodeID("8"), resp.Origin)

	w = do(r, "GET", "/api/v1/nearest?type=Zoo&origin=8", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, "GET", "/api/v1/nearest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInfrastructure(t *testing.T) {
	r := newTestRouter(t, nt.Cairo(t), nil, DefaultConfig(":0"))

	w := do(r, "GET", "/api/v1/infrastructure", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Existing []json.RawMessage `json:"existing_roads_used"`
		Proposed []json.RawMessage `json:"new_roads_proposed"`
		OK       bool              `json:"critical_connectivity_ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Existing, 8)
	assert.True(t, resp.OK)

	w = do(r, "GET", "/api/v1/infrastructure?include_existing=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Proposed, 5)

	w = do(r, "GET", "/api/v1/infrastructure?include_existing=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "include_existing", decodeError(t, w).Field)
}

func TestHandleBuses(t *testing.T) {
	r := newTestRouter(t, nt.Cairo(t), nil, DefaultConfig(":0"))

	w := do(r, "GET", "/api/v1/buses", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp BusesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Routes, 4)
	assert.Empty(t, resp.Warning)

	w = do(r, "GET", "/api/v1/buses?max_buses=50", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = BusesResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CapacityLimited)
	assert.NotEmpty(t, resp.Warning)

	w = do(r, "GET", "/api/v1/buses?max_buses=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalysisEndpoints(t *testing.T) {
	net := nt.Cairo(t)
	r := newTestRouter(t, net, nil, DefaultConfig(":0"))

	w := do(r, "GET", "/api/v1/metro", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var metro struct {
		Lines []struct {
			LineID string `json:"line_id"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metro))
	require.Len(t, metro.Lines, 1)
	assert.Equal(t, "M1", metro.Lines[0].LineID)

	w = do(r, "GET", "/api/v1/traffic?period=afternoon", "")
	require.Equal(t, http.StatusOK, w.Code)
	var traffic struct {
		Period network.Period `json:"period"`
		Roads  []struct {
			From  network.NodeID `json:"from"`
			To    network.NodeID `json:"to"`
			Level string         `json:"level"`
		} `json:"roads"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &traffic))
	assert.Equal(t, network.Afternoon, traffic.Period)
	assert.Len(t, traffic.Roads, 10)
	assert.Equal(t, network.NodeID("F1"), traffic.Roads[0].To)
	assert.Equal(t, "Medium", traffic.Roads[0].Level)

	w = do(r, "GET", "/api/v1/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sugg struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sugg))
	assert.Len(t, sugg.Suggestions, 2)

	w = do(r, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, net.Version(), stats.Version)
	assert.Equal(t, 1645000, stats.TotalPopulation)

	w = do(r, "GET", "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var nodes NodesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nodes))
	assert.Equal(t, "geographic", nodes.Coordinates)
	require.Len(t, nodes.Nodes, 9)
	assert.Equal(t, "Maadi", nodes.Nodes[0].Name)
	assert.Equal(t, network.Neighbourhood, nodes.Nodes[0].Kind)
	assert.True(t, nodes.Nodes[0].Critical)
	assert.Equal(t, network.Facility, nodes.Nodes[6].Kind)
	assert.Equal(t, "Airport", nodes.Nodes[6].FacilityType)
}

func TestHandleHealth_RequestID(t *testing.T) {
	net := nt.Chain(t)
	r := newTestRouter(t, net, nil, DefaultConfig(":0"))

	w := do(r, "GET", "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Version: net.Version()}, resp)
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set(requestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestCORS(t *testing.T) {
	net := nt.Chain(t)
	preflight := func(r http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest("OPTIONS", "/api/v1/route", nil)
		req.Header.Set("Origin", "https://maps.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	cfg := DefaultConfig(":0")
	cfg.CORSOrigins = []string{"https://maps.example.com"}
	w := preflight(newTestRouter(t, net, nil, cfg))
	assert.Equal(t, "https://maps.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(newTestRouter(t, net, nil, DefaultConfig(":0")))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestTimeout(t *testing.T) {
	mock := &mockRouter{route: func(ctx context.Context) (*routing.RouteResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cfg := DefaultConfig(":0")
	cfg.RequestTimeout = 10 * time.Millisecond
	w := do(newTestRouter(t, nt.Chain(t), mock, cfg), "POST", "/api/v1/route", `{"origin":"A","destination":"C"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "request_timeout", decodeError(t, w).Error)
}

func TestRecovery(t *testing.T) {
	mock := &mockRouter{route: func(context.Context) (*routing.RouteResult, error) { panic("kaboom") }}
	w := do(newTestRouter(t, nt.Chain(t), mock, DefaultConfig(":0")), "POST", "/api/v1/route", `{"origin":"A","destination":"C"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decodeError(t, w).Error)
}

func TestConcurrencyLimit(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mock := &mockRouter{route: func(context.Context) (*routing.RouteResult, error) {
		close(started)
		<-release
		return &routing.RouteResult{}, nil
	}}
	cfg := DefaultConfig(":0")
	cfg.MaxConcurrent = 1
	r := newTestRouter(t, nt.Chain(t), mock, cfg)

	done := make(chan int)
	go func() {
		done <- do(r, "POST", "/api/v1/route", `{"origin":"A","destination":"C"}`).Code
	}()
	<-started

	w := do(r, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}
