package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
)

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, req RouteRequest) (*RouteResult, error)
	Emergency(ctx context.Context, req EmergencyRequest) (*EmergencyResult, error)
	Transit(ctx context.Context, req TransitRequest) (*TransitResult, error)
	NearestFacility(ctx context.Context, req FacilityRequest) (*FacilityResult, error)
}

// Cache stores encoded results. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CacheKey identifies a cached result. Version ties it to one network load.
type CacheKey struct {
	Version      string
	Kind         string
	Origin, Dest network.NodeID
	Period       network.Period
	Mode         string
}

func (k CacheKey) String() string {
	return strings.Join([]string{"route", k.Version, k.Kind, string(k.Origin), string(k.Dest), k.Period.String(), k.Mode}, ":")
}

// Service implements Router over an immutable network. A fresh graph is built
// for every query, so a Service is safe for concurrent use.
type Service struct {
	net   *network.Network
	cache Cache
}

// NewService creates a routing service. cache may be nil.
func NewService(net *network.Network, cache Cache) *Service {
	return &Service{net: net, cache: cache}
}

// Network returns the network the service routes over.
func (s *Service) Network() *network.Network { return s.net }

// Route computes a normal road route minimising time or distance.
func (s *Service) Route(ctx context.Context, req RouteRequest) (*RouteResult, error) {
	key := CacheKey{Version: s.net.Version(), Kind: "road", Origin: req.Origin, Dest: req.Dest, Period: req.Period, Mode: req.Metric.String()}
	return cached(ctx, s, key, func() (*RouteResult, error) {
		g := graph.BuildRoadGraph(s.net, req.Period, false)
		cost := TravelTimeCost
		if req.Metric == ByDistance {
			cost = DistanceCost
		}
		p, err := FindPath(ctx, g, req.Origin, req.Dest, cost, nil)
		if err != nil {
			return nil, err
		}
		res := s.describe(p, req.Period, func(e *graph.Edge, _ network.Mode) float64 { return e.TimeMin })
		res.Origin, res.Dest, res.Metric = req.Origin, req.Dest, req.Metric
		return res, nil
	})
}

// Emergency computes an A* route for an emergency vehicle and compares it
// with a normal traversal of the same path.
func (s *Service) Emergency(ctx context.Context, req EmergencyRequest) (*EmergencyResult, error) {
	key := CacheKey{Version: s.net.Version(), Kind: "emergency", Origin: req.Origin, Dest: req.Dest, Period: req.Period, Mode: req.Vehicle.String()}
	return cached(ctx, s, key, func() (*EmergencyResult, error) {
		g := graph.BuildRoadGraph(s.net, req.Period, false)
		var h Heuristic
		if dst, ok := g.Index(req.Dest); ok {
			h = TimeHeuristic(g, dst, HeuristicSpeedKmh)
		}
		cost := EmergencyCost(req.Vehicle)
		p, err := FindPath(ctx, g, req.Origin, req.Dest, cost, h)
		if err != nil {
			return nil, err
		}

		res := &EmergencyResult{
			RouteResult: *s.describe(p, req.Period, cost),
			Vehicle:     req.Vehicle,
		}
		res.Origin, res.Dest = req.Origin, req.Dest
		res.NormalTimeMin = p.TimeMin()
		res.TimeSavedMin = res.NormalTimeMin - res.TotalTimeMin
		if res.NormalTimeMin > 0 {
			res.PercentImprovement = res.TimeSavedMin / res.NormalTimeMin * 100
		}

		for i, e := range p.Edges {
			d := SegmentDetail{Segment: res.Segments[i], TrafficLevel: "Unknown"}
			if e.HasTraffic && e.CapacityVPH > 0 {
				d.TrafficLevel = TrafficLevel(e.Flow / e.CapacityVPH)
			}
			d.CriticalIntersection = g.Degree(p.Index[i+1]) > 2
			if node, err := s.net.Node(p.Nodes[i+1]); err == nil && node.Kind == network.Facility {
				d.IsFacility = true
				d.FacilityType = node.FacilityType
			}
			res.Details = append(res.Details, d)
		}
		return res, nil
	})
}

// Transit computes a multimodal itinerary over roads, metro and buses.
// MaxTransfers is advisory: exceeding it is flagged, not enforced.
func (s *Service) Transit(ctx context.Context, req TransitRequest) (*TransitResult, error) {
	key := CacheKey{Version: s.net.Version(), Kind: "transit", Origin: req.Origin, Dest: req.Dest, Period: req.Period, Mode: strconv.Itoa(req.MaxTransfers)}
	return cached(ctx, s, key, func() (*TransitResult, error) {
		g := graph.BuildMultimodalGraph(s.net, req.Period)
		p, err := FindPath(ctx, g, req.Origin, req.Dest, MultimodalCost, nil)
		if err != nil {
			return nil, err
		}

		res := &TransitResult{
			RouteResult:  *s.describe(p, req.Period, MultimodalCost),
			Legs:         Legs(s.net, p, MultimodalCost),
			Transfers:    p.Transfers(),
			MaxTransfers: req.MaxTransfers,
		}
		res.Origin, res.Dest = req.Origin, req.Dest
		res.MaxTransfersExceeded = req.MaxTransfers > 0 && res.Transfers > req.MaxTransfers
		if res.MaxTransfersExceeded {
			log.WithFields(log.Fields{"origin": req.Origin, "dest": req.Dest}).
				Infof("Itinerary needs %d transfers, above the cap of %d", res.Transfers, req.MaxTransfers)
		}
		return res, nil
	})
}

// NearestFacility finds the facility of the requested type with the lowest
// normal travel time from the origin.
func (s *Service) NearestFacility(ctx context.Context, req FacilityRequest) (*FacilityResult, error) {
	key := CacheKey{Version: s.net.Version(), Kind: "facility", Origin: req.Origin, Period: req.Period, Mode: strings.ToLower(req.FacilityType)}
	return cached(ctx, s, key, func() (*FacilityResult, error) {
		g := graph.BuildRoadGraph(s.net, req.Period, false)
		nodes := s.net.Nodes()
		isTarget := func(u uint32) bool {
			n := nodes[u]
			return n.Kind == network.Facility &&
				(req.FacilityType == "" || strings.EqualFold(n.FacilityType, req.FacilityType))
		}
		p, err := NearestOf(ctx, g, req.Origin, isTarget, TravelTimeCost)
		if err != nil {
			return nil, err
		}

		target := nodes[p.Index[len(p.Index)-1]]
		res := &FacilityResult{
			RouteResult:  *s.describe(p, req.Period, TravelTimeCost),
			Facility:     target.ID,
			FacilityName: target.Name,
			FacilityType: target.FacilityType,
		}
		res.Origin, res.Dest = req.Origin, target.ID
		return res, nil
	})
}

// describe turns a path into a RouteResult, timing each segment with timer.
func (s *Service) describe(p *Path, period network.Period, timer CostFunc) *RouteResult {
	res := &RouteResult{
		Period:    period,
		Path:      p.Nodes,
		PathNames: make([]string, len(p.Nodes)),
		Segments:  make([]Segment, 0, len(p.Edges)),
	}
	for i, id := range p.Nodes {
		res.PathNames[i] = s.net.Name(id)
	}
	prev := network.ModeNone
	for i, e := range p.Edges {
		seg := Segment{
			From:       p.Nodes[i],
			To:         p.Nodes[i+1],
			FromName:   res.PathNames[i],
			ToName:     res.PathNames[i+1],
			DistanceKm: e.DistanceKm,
			TimeMin:    timer(e, prev),
			Mode:       e.Mode,
			LineID:     e.LineID,
		}
		res.Segments = append(res.Segments, seg)
		res.TotalDistanceKm += seg.DistanceKm
		res.TotalTimeMin += seg.TimeMin
		prev = e.Mode
	}
	return res
}

// Legs groups consecutive path edges that share mode and line.
func Legs(net *network.Network, p *Path, timer CostFunc) []Leg {
	var legs []Leg
	prev := network.ModeNone
	for i, e := range p.Edges {
		if len(legs) == 0 || legs[len(legs)-1].Mode != e.Mode || legs[len(legs)-1].LineID != e.LineID {
			legs = append(legs, Leg{
				Mode:      e.Mode,
				LineID:    e.LineID,
				Stops:     []network.NodeID{p.Nodes[i]},
				StopNames: []string{net.Name(p.Nodes[i])},
			})
		}
		leg := &legs[len(legs)-1]
		leg.Stops = append(leg.Stops, p.Nodes[i+1])
		leg.StopNames = append(leg.StopNames, net.Name(p.Nodes[i+1]))
		leg.DistanceKm += e.DistanceKm
		leg.TimeMin += timer(e, prev)
		prev = e.Mode
	}
	return legs
}

// cached returns the cached result for key, or computes and stores it.
// Errors are never cached.
func cached[T any](ctx context.Context, s *Service, key CacheKey, compute func() (*T, error)) (*T, error) {
	k := key.String()
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, k)
		if err != nil {
			log.WithError(err).WithField("key", k).Warn("Route cache read failed")
		} else if ok {
			var v T
			if err := json.Unmarshal(b, &v); err == nil {
				return &v, nil
			}
			log.WithField("key", k).Warn("Discarding undecodable cache entry")
		}
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		if err := s.cache.Set(ctx, k, b); err != nil {
			log.WithError(err).WithField("key", k).Warn("Route cache write failed")
		}
	}
	return v, nil
}
