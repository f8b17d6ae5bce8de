// Package allocation assigns bus fleets to high-demand corridors and picks
// metro train frequencies per period.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

const (
	busSpeedKmh         = 30.0
	passengersPerBusBlk = 1000.0 // one bus per 1000 riders per 30 minutes of route
	busBlockMin         = 30.0
	minFrequencyMin     = 5
	maxFrequencyMin     = 60
)

// BusOptions bounds the bus coverage problem.
type BusOptions struct {
	MaxBuses        int
	DemandThreshold int     // pairs at or below this many daily trips are ignored
	TargetCoverage  float64 // fraction of candidate demand; reported only
}

// DefaultBusOptions returns a fleet of 100, a 5000 trip threshold and an 85% target.
func DefaultBusOptions() BusOptions {
	return BusOptions{MaxBuses: 100, DemandThreshold: 5000, TargetCoverage: 0.85}
}

// BusRoute is a corridor chosen for bus service.
type BusRoute struct {
	ID            string           `json:"route_id"`
	From          network.NodeID   `json:"from"`
	To            network.NodeID   `json:"to"`
	FromName      string           `json:"from_name"`
	ToName        string           `json:"to_name"`
	Stops         []network.NodeID `json:"stops"`
	StopNames     []string         `json:"stop_names"`
	DistanceKm    float64          `json:"distance_km"`
	TravelTimeMin float64          `json:"travel_time_min"`
	Demand        int              `json:"demand"`
	BusesNeeded   int              `json:"buses_needed"`
	BusesAssigned int              `json:"buses_assigned"`
	FrequencyMin  int              `json:"frequency_min"`
}

// BusPlan is the output of OptimizeBusCoverage.
type BusPlan struct {
	Routes          []BusRoute `json:"routes"`
	Candidates      int        `json:"candidates"`
	Unreachable     int        `json:"unreachable"`
	TotalDemand     int        `json:"total_demand"`
	CoveredDemand   int        `json:"covered_demand"`
	CoveragePct     float64    `json:"coverage_pct"`
	TargetCoverage  float64    `json:"target_coverage"`
	TargetMet       bool       `json:"target_met"`
	BusesNeeded     int        `json:"buses_needed"`
	BusesUsed       int        `json:"buses_used"`
	MaxBuses        int        `json:"max_buses"`
	CapacityLimited bool       `json:"capacity_limited"`
}

// Exhaustion returns a CapacityExhaustedError when the fleet could not cover
// every reachable candidate, and nil otherwise.
func (p *BusPlan) Exhaustion() error {
	if !p.CapacityLimited {
		return nil
	}
	return &CapacityExhaustedError{
		Needed:    p.BusesNeeded,
		Available: p.MaxBuses,
		Unserved:  p.Candidates - p.Unreachable - len(p.Routes),
	}
}

type candidate struct {
	rec     network.DemandRecord
	path    *routing.Path
	timeMin float64
	buses   int
}

// BusesNeeded returns the buses a corridor needs: one per 1000 daily riders
// per 30 minutes of travel, at least one.
func BusesNeeded(demand int, travelTimeMin float64) int {
	return max(1, int(math.Ceil(float64(demand)/passengersPerBusBlk*travelTimeMin/busBlockMin)))
}

// OptimizeBusCoverage picks demand corridors not served by metro and assigns
// buses to them. When the fleet is too small it solves a 0/1 knapsack that
// maximises covered demand, then scales every assignment by
// MaxBuses/BusesNeeded.
func OptimizeBusCoverage(ctx context.Context, net *network.Network, opts BusOptions) (*BusPlan, error) {
	if opts.MaxBuses <= 0 {
		return nil, &network.InvalidInputError{Record: "bus options", Reason: fmt.Sprintf("max buses must be positive, got %d", opts.MaxBuses)}
	}

	metro := net.TransitLines(network.ModeMetro)
	var cands []*candidate
	for _, d := range net.DemandRecords() {
		if d.DailyTrips <= opts.DemandThreshold || coveredByMetro(metro, d.From, d.To) {
			continue
		}
		cands = append(cands, &candidate{rec: d})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].rec.DailyTrips > cands[j].rec.DailyTrips })

	// Distances do not depend on the period.
	g := graph.BuildRoadGraph(net, network.Morning, false)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, c := range cands {
		c := c
		eg.Go(func() error {
			p, err := routing.FindPath(egCtx, g, c.rec.From, c.rec.To, routing.DistanceCost, nil)
			if errors.Is(err, routing.ErrNoRoute) {
				log.WithFields(log.Fields{"from": c.rec.From, "to": c.rec.To}).Debug("Skipping corridor with no road path")
				return nil
			}
			if err != nil {
				return err
			}
			c.path = p
			c.timeMin = p.DistanceKm() / busSpeedKmh * 60
			c.buses = BusesNeeded(c.rec.DailyTrips, c.timeMin)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	plan := &BusPlan{Candidates: len(cands), MaxBuses: opts.MaxBuses, TargetCoverage: opts.TargetCoverage}
	var routable []*candidate
	for _, c := range cands {
		if c.path == nil {
			plan.Unreachable++
			continue
		}
		routable = append(routable, c)
		plan.TotalDemand += c.rec.DailyTrips
		plan.BusesNeeded += c.buses
	}

	chosen := routable
	if plan.BusesNeeded > opts.MaxBuses {
		plan.CapacityLimited = true
		weights := make([]int, len(routable))
		values := make([]int, len(routable))
		for i, c := range routable {
			weights[i], values[i] = c.buses, c.rec.DailyTrips
		}
		chosen = nil
		for _, i := range knapsack(weights, values, opts.MaxBuses) {
			chosen = append(chosen, routable[i])
		}
	}

	next := len(net.TransitLines(network.ModeBus)) + 1
	for _, c := range chosen {
		assigned := min(c.buses, max(1, int(float64(c.buses)*float64(opts.MaxBuses)/float64(plan.BusesNeeded))))
		r := BusRoute{
			ID:            fmt.Sprintf("BR%d", next),
			From:          c.rec.From,
			To:            c.rec.To,
			FromName:      net.Name(c.rec.From),
			ToName:        net.Name(c.rec.To),
			Stops:         c.path.Nodes,
			StopNames:     make([]string, len(c.path.Nodes)),
			DistanceKm:    c.path.DistanceKm(),
			TravelTimeMin: c.timeMin,
			Demand:        c.rec.DailyTrips,
			BusesNeeded:   c.buses,
			BusesAssigned: assigned,
			FrequencyMin:  frequencyMin(assigned, c.timeMin),
		}
		for i, id := range r.Stops {
			r.StopNames[i] = net.Name(id)
		}
		plan.Routes = append(plan.Routes, r)
		plan.CoveredDemand += r.Demand
		plan.BusesUsed += assigned
		next++
	}

	if plan.TotalDemand > 0 {
		plan.CoveragePct = float64(plan.CoveredDemand) / float64(plan.TotalDemand) * 100
	}
	plan.TargetMet = plan.CoveragePct >= opts.TargetCoverage*100

	entry := log.WithFields(log.Fields{
		"routes":   len(plan.Routes),
		"coverage": fmt.Sprintf("%.1f%%", plan.CoveragePct),
		"buses":    plan.BusesUsed,
	})
	if err := plan.Exhaustion(); err != nil {
		entry.WithError(err).Warn("Bus fleet exhausted")
	} else {
		entry.Info("Optimized bus coverage")
	}
	return plan, nil
}

func coveredByMetro(lines []network.TransitLine, a, b network.NodeID) bool {
	for _, l := range lines {
		if l.HasStops(a, b) {
			return true
		}
	}
	return false
}

// frequencyMin returns minutes between departures, clamped to 5..60.
func frequencyMin(buses int, travelTimeMin float64) int {
	if travelTimeMin <= 0 {
		return minFrequencyMin
	}
	return min(maxFrequencyMin, max(minFrequencyMin, int(float64(buses)*60/travelTimeMin)))
}

// knapsack solves the 0/1 knapsack by O(n*capacity) dynamic programming and
// returns the chosen item indices in ascending order.
func knapsack(weights, values []int, capacity int) []int {
	n := len(weights)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, capacity+1)
	}
	for i := 1; i <= n; i++ {
		w, v := weights[i-1], values[i-1]
		for c := 0; c <= capacity; c++ {
			dp[i][c] = dp[i-1][c]
			if w <= c && dp[i-1][c-w]+v > dp[i][c] {
				dp[i][c] = dp[i-1][c-w] + v
			}
		}
	}

	var chosen []int
	c := capacity
	for i := n; i > 0; i-- {
		if dp[i][c] != dp[i-1][c] {
			chosen = append(chosen, i-1)
			c -= weights[i-1]
		}
	}
	slices.Reverse(chosen)
	return chosen
}
