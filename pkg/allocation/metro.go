package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

const (
	metroAvgSpeedKmh     = 40.0
	fallbackStationGapKm = 5.0
	congestionScaleVPH   = 5000.0
)

// periodShare is the fraction of daily riders travelling in each period.
var periodShare = [network.NumPeriods]float64{
	network.Morning:   0.35,
	network.Afternoon: 0.15,
	network.Evening:   0.40,
	network.Night:     0.10,
}

// PeriodShare returns the fraction of daily riders travelling in p.
func PeriodShare(p network.Period) float64 { return periodShare[p] }

// MetroOptions prices train operation.
type MetroOptions struct {
	TrainCapacity    int
	Fare             decimal.Decimal
	CostPerTrainHour decimal.Decimal
	MinTrains        int
	MaxTrains        int
	Peak             []network.Period
	OffPeak          []network.Period
}

// DefaultMetroOptions returns 1000 riders per train, a fare of 5, 5000 per
// train-hour and 1..15 trains per hour.
func DefaultMetroOptions() MetroOptions {
	return MetroOptions{
		TrainCapacity:    1000,
		Fare:             decimal.NewFromInt(5),
		CostPerTrainHour: decimal.NewFromInt(5000),
		MinTrains:        1,
		MaxTrains:        15,
		Peak:             []network.Period{network.Morning, network.Evening},
		OffPeak:          []network.Period{network.Afternoon, network.Night},
	}
}

func (o MetroOptions) validate() error {
	switch {
	case o.TrainCapacity <= 0:
		return &network.InvalidInputError{Record: "metro options", Reason: "train capacity must be positive"}
	case o.MinTrains < 1 || o.MaxTrains < o.MinTrains:
		return &network.InvalidInputError{Record: "metro options", Reason: fmt.Sprintf("bad train range %d..%d", o.MinTrains, o.MaxTrains)}
	}
	for _, p := range append(append([]network.Period(nil), o.Peak...), o.OffPeak...) {
		if !p.Valid() {
			return &network.InvalidInputError{Record: "metro options", Reason: fmt.Sprintf("unknown period %d", p)}
		}
	}
	return nil
}

// PeriodSchedule is the chosen service level for one period.
type PeriodSchedule struct {
	Period          network.Period  `json:"period"`
	Peak            bool            `json:"peak"`
	TrainsPerHour   int             `json:"trains_per_hour"`
	IntervalMin     int             `json:"interval_min"`
	CapacityPerHour int             `json:"capacity_per_hour"`
	Demand          float64         `json:"demand"`
	Congestion      float64         `json:"congestion_multiplier"`
	Revenue         decimal.Decimal `json:"revenue"`
	Cost            decimal.Decimal `json:"cost"`
	NetBenefit      decimal.Decimal `json:"net_benefit"`
}

// MetroSchedule is the schedule of one metro line.
type MetroSchedule struct {
	LineID          string           `json:"line_id"`
	Name            string           `json:"name"`
	Stations        []network.NodeID `json:"stations"`
	StationNames    []string         `json:"station_names"`
	TotalDistanceKm float64          `json:"total_distance_km"`
	TravelTimeMin   float64          `json:"travel_time_min"`
	DailyPassengers int              `json:"daily_passengers"`
	Periods         []PeriodSchedule `json:"schedule"`
}

// Frequency is the outcome of running a given number of trains per hour.
type Frequency struct {
	Trains                 int
	Revenue, Cost, Benefit decimal.Decimal
}

// BestFrequency scans MinTrains..MaxTrains and returns the train count with
// the highest net benefit. Ties go to fewer trains.
func BestFrequency(demand float64, opts MetroOptions) Frequency {
	var best Frequency
	for trains := opts.MinTrains; trains <= opts.MaxTrains; trains++ {
		served := min(demand, float64(trains*opts.TrainCapacity))
		f := Frequency{
			Trains:  trains,
			Revenue: decimal.NewFromFloat(served).Mul(opts.Fare),
			Cost:    decimal.NewFromInt(int64(trains)).Mul(opts.CostPerTrainHour),
		}
		f.Benefit = f.Revenue.Sub(f.Cost)
		if best.Trains == 0 || f.Benefit.GreaterThan(best.Benefit) {
			best = f
		}
	}
	return best
}

// OptimizeMetroSchedule picks trains per hour for every metro line and every
// peak and off-peak period. Periods are independent; lines run in parallel.
func OptimizeMetroSchedule(ctx context.Context, net *network.Network, opts MetroOptions) ([]MetroSchedule, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	lines := net.TransitLines(network.ModeMetro)
	out := make([]MetroSchedule, len(lines))
	g := graph.BuildRoadGraph(net, network.Morning, false)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, line := range lines {
		i, line := i, line
		eg.Go(func() error {
			s, err := scheduleLine(egCtx, net, g, line, opts)
			if err != nil {
				return fmt.Errorf("schedule %s: %w", line.ID, err)
			}
			out[i] = *s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	log.WithField("lines", len(out)).Info("Optimized metro schedules")
	return out, nil
}

func scheduleLine(ctx context.Context, net *network.Network, g *graph.WeightedGraph, line network.TransitLine, opts MetroOptions) (*MetroSchedule, error) {
	s := &MetroSchedule{
		LineID:          line.ID,
		Name:            line.Name,
		Stations:        line.Stops,
		StationNames:    make([]string, len(line.Stops)),
		DailyPassengers: line.DailyPassengers,
	}
	for i, id := range line.Stops {
		s.StationNames[i] = net.Name(id)
	}

	// Road edges along the line, for the congestion multiplier.
	var along []*graph.Edge
	for i := 1; i < len(line.Stops); i++ {
		a, b := line.Stops[i-1], line.Stops[i]
		p, err := routing.FindPath(ctx, g, a, b, routing.DistanceCost, nil)
		switch {
		case err == nil:
			s.TotalDistanceKm += p.DistanceKm()
			along = append(along, p.Edges...)
		case errors.Is(err, routing.ErrNoRoute) || errors.Is(err, network.ErrNotFound):
			gap, derr := net.Distance(a, b)
			if derr != nil {
				gap = fallbackStationGapKm
			}
			s.TotalDistanceKm += gap
		default:
			return nil, err
		}
	}
	s.TravelTimeMin = s.TotalDistanceKm / metroAvgSpeedKmh * 60

	add := func(p network.Period, peak bool) {
		congestion := congestionMultiplier(net, g, along, p)
		demand := float64(line.DailyPassengers) * periodShare[p] * congestion
		f := BestFrequency(demand, opts)
		s.Periods = append(s.Periods, PeriodSchedule{
			Period:          p,
			Peak:            peak,
			TrainsPerHour:   f.Trains,
			IntervalMin:     60 / f.Trains,
			CapacityPerHour: f.Trains * opts.TrainCapacity,
			Demand:          demand,
			Congestion:      congestion,
			Revenue:         f.Revenue,
			Cost:            f.Cost,
			NetBenefit:      f.Benefit,
		})
	}
	for _, p := range opts.Peak {
		add(p, true)
	}
	for _, p := range opts.OffPeak {
		add(p, false)
	}
	return s, nil
}

// congestionMultiplier is 1 + the mean recorded volume over edges/5000.
// Edges without a traffic record do not count.
func congestionMultiplier(net *network.Network, g *graph.WeightedGraph, edges []*graph.Edge, p network.Period) float64 {
	var sum float64
	var n int
	for _, e := range edges {
		u, v := g.IDs[e.U], g.IDs[e.V]
		if !net.HasTraffic(u, v) {
			continue
		}
		sum += net.TrafficVolume(u, v, p)
		n++
	}
	if n == 0 {
		return 1
	}
	return 1 + sum/float64(n)/congestionScaleVPH
}
