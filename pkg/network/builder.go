package network

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"urban_router/pkg/geo"
)

// DefaultCriticalPopulation is the population above which a neighbourhood is critical.
const DefaultCriticalPopulation = 50000

// defaultPotentialCondition is assumed for proposed roads that carry no condition.
const defaultPotentialCondition = 5

// Options configures how a Network is assembled.
type Options struct {
	CriticalPopulation int
	Coordinates        geo.Coordinates
}

// DefaultOptions returns the standard network options.
func DefaultOptions() Options {
	return Options{CriticalPopulation: DefaultCriticalPopulation, Coordinates: geo.Auto}
}

// Warning is a record that was dropped during load.
type Warning struct {
	Record string
	Err    error
}

// Diagnostics summarises what was dropped while loading a network.
type Diagnostics struct {
	Dropped  int
	Warnings []Warning
}

// Builder accumulates records and produces an immutable Network.
// A Builder is not safe for concurrent use.
type Builder struct {
	opts    Options
	nodes   []Node
	seen    map[NodeID]struct{}
	roads   []RoadEdge
	traffic []TrafficRecord
	lines   []TransitLine
	demand  []DemandRecord
	diag    Diagnostics
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts Options) *Builder {
	if opts.CriticalPopulation <= 0 {
		opts.CriticalPopulation = DefaultCriticalPopulation
	}
	return &Builder{opts: opts, seen: make(map[NodeID]struct{})}
}

// Reject records a record dropped before it reached the Builder, such as an
// unparseable CSV row.
func (b *Builder) Reject(record string, err error) {
	b.diag.Dropped++
	b.diag.Warnings = append(b.diag.Warnings, Warning{Record: record, Err: err})
	log.WithField("record", record).Warnf("Dropped record: %v", err)
}

// AddNode adds a node. Invalid or duplicate nodes are dropped and the reason returned.
func (b *Builder) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		b.Reject("node "+string(n.ID), err)
		return err
	}
	if _, dup := b.seen[n.ID]; dup {
		err := invalid("node "+string(n.ID), "duplicate id")
		b.Reject("node "+string(n.ID), err)
		return err
	}
	b.seen[n.ID] = struct{}{}
	b.nodes = append(b.nodes, n)
	return nil
}

// AddRoad adds a road. A potential road without a condition gets the default.
func (b *Builder) AddRoad(e RoadEdge) error {
	if e.Provenance == Potential && e.Condition == 0 {
		e.Condition = defaultPotentialCondition
	}
	if err := e.Validate(); err != nil {
		b.Reject(e.Name(), err)
		return err
	}
	b.roads = append(b.roads, e)
	return nil
}

// AddTraffic adds a traffic record.
func (b *Builder) AddTraffic(r TrafficRecord) error {
	if err := r.Validate(); err != nil {
		b.Reject(fmt.Sprintf("traffic %s-%s", r.From, r.To), err)
		return err
	}
	b.traffic = append(b.traffic, r)
	return nil
}

// AddLine adds a metro line or bus route.
func (b *Builder) AddLine(l TransitLine) error {
	if err := l.Validate(); err != nil {
		b.Reject(fmt.Sprintf("%s line %s", l.Mode, l.ID), err)
		return err
	}
	l.Stops = append([]NodeID(nil), l.Stops...)
	b.lines = append(b.lines, l)
	return nil
}

// AddDemand adds a demand record.
func (b *Builder) AddDemand(d DemandRecord) error {
	if err := d.Validate(); err != nil {
		b.Reject(fmt.Sprintf("demand %s-%s", d.From, d.To), err)
		return err
	}
	b.demand = append(b.demand, d)
	return nil
}

// Build resolves references and returns the immutable Network. Records that
// reference unknown nodes are dropped with a NotFoundError warning.
func (b *Builder) Build() (*Network, Diagnostics) {
	n := &Network{
		version:   uuid.NewString(),
		opts:      b.opts,
		nodes:     append([]Node(nil), b.nodes...),
		index:     make(map[NodeID]int, len(b.nodes)),
		traffic:   make(map[pair][NumPeriods]float64),
		demandIdx: make(map[pair]int),
	}
	points := make([]orb.Point, len(n.nodes))
	for i, node := range n.nodes {
		n.index[node.ID] = i
		points[i] = node.Location
	}
	n.coords = b.opts.Coordinates
	if n.coords == geo.Auto {
		n.coords = geo.Detect(points)
	}

	missing := func(record string, ids ...NodeID) bool {
		for _, id := range ids {
			if _, ok := n.index[id]; !ok {
				b.Reject(record, &NotFoundError{ID: id, Referrer: record})
				return true
			}
		}
		return false
	}

	for _, e := range b.roads {
		if missing(e.Name(), e.From, e.To) {
			continue
		}
		n.roads = append(n.roads, e)
	}

	direct := make(map[pair][NumPeriods]float64, len(b.traffic))
	var order []pair
	for _, r := range b.traffic {
		if missing(fmt.Sprintf("traffic %s-%s", r.From, r.To), r.From, r.To) {
			continue
		}
		k := pair{r.From, r.To}
		if _, ok := direct[k]; !ok {
			order = append(order, k)
		}
		direct[k] = r.Volume
	}
	for _, k := range order {
		n.traffic[k] = direct[k]
		rev := pair{k.b, k.a}
		if _, explicit := direct[rev]; !explicit {
			n.traffic[rev] = direct[k]
		}
	}

	for _, l := range b.lines {
		if missing(fmt.Sprintf("%s line %s", l.Mode, l.ID), l.Stops...) {
			continue
		}
		n.lines = append(n.lines, l)
	}

	for _, d := range b.demand {
		if missing(fmt.Sprintf("demand %s-%s", d.From, d.To), d.From, d.To) {
			continue
		}
		k := pair{d.From, d.To}
		if i, ok := n.demandIdx[k]; ok {
			n.demand[i] = d
			continue
		}
		n.demandIdx[k] = len(n.demand)
		n.demand = append(n.demand, d)
	}

	log.WithField("version", n.version).Infof("Loaded network: %d nodes, %d roads, %d transit lines, %d demand pairs (%d records dropped, %s coordinates)",
		len(n.nodes), len(n.roads), len(n.lines), len(n.demand), b.diag.Dropped, n.coords)

	diag := Diagnostics{Dropped: b.diag.Dropped, Warnings: append([]Warning(nil), b.diag.Warnings...)}
	return n, diag
}
