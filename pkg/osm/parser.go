// Package osm imports OpenStreetMap PBF extracts as transport datasets.
package osm

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/rtree"

	"urban_router/pkg/geo"
	"urban_router/pkg/ingest"
)

const (
	// DefaultCondition is assigned to every imported road.
	DefaultCondition = 7
	// DefaultConnectorKm is how far a POI may be from the road network.
	DefaultConnectorKm = 2.0
	// connectorCapacity is the capacity of the access road linking a POI.
	connectorCapacity = 600
	// minRoadKm keeps zero-length links valid.
	minRoadKm = 0.01
)

// roadCapacity is the assumed capacity in vehicles/hour per highway class.
var roadCapacity = map[string]float64{
	"motorway":       6000,
	"motorway_link":  3000,
	"trunk":          5000,
	"trunk_link":     2500,
	"primary":        4000,
	"primary_link":   2000,
	"secondary":      3000,
	"secondary_link": 1500,
	"tertiary":       2000,
	"tertiary_link":  1000,
	"unclassified":   1200,
	"residential":    1200,
	"living_street":  600,
	"service":        600,
}

// facilityTypes maps amenity (and aeroway) values to facility types.
var facilityTypes = map[string]string{
	"hospital":     "Medical",
	"clinic":       "Medical",
	"school":       "Education",
	"university":   "Education",
	"college":      "Education",
	"police":       "Police",
	"fire_station": "Fire Station",
	"aerodrome":    "Airport",
}

// places lists place values imported as neighbourhoods when they carry a population.
var places = map[string]bool{
	"city":          true,
	"town":          true,
	"suburb":        true,
	"quarter":       true,
	"neighbourhood": true,
	"village":       true,
	"hamlet":        true,
}

// isRoad returns true if the way is a road vehicles can use.
func isRoad(tags osm.Tags) bool {
	if _, ok := roadCapacity[tags.Find("highway")]; !ok {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	// Time-dependent direction.
	return tags.Find("oneway") != "reversible"
}

// population parses a population tag such as "12,500" or "12 500".
func population(tags osm.Tags) (int, bool) {
	v := strings.NewReplacer(",", "", " ", "", "_", "", ".", "").Replace(tags.Find("population"))
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func facilityType(tags osm.Tags) (string, bool) {
	if t, ok := facilityTypes[tags.Find("amenity")]; ok {
		return t, true
	}
	if tags.Find("aeroway") == "aerodrome" {
		return facilityTypes["aerodrome"], true
	}
	return "", false
}

// Options configures the importer.
type Options struct {
	// BBox, if non-zero, keeps only nodes inside it.
	BBox orb.Bound
	// ConnectorKm is the largest POI-to-junction link; <= 0 selects DefaultConnectorKm.
	ConnectorKm float64
}

func (o Options) inside(p orb.Point) bool {
	return o.BBox == (orb.Bound{}) || o.BBox.Contains(p)
}

// Stats counts what an import produced and skipped.
type Stats struct {
	Ways            int
	Junctions       int
	Roads           int
	Neighbourhoods  int
	Facilities      int
	SkippedSegments int
	FarPOIs         int
}

type way struct {
	nodes    []osm.NodeID
	capacity float64
}

type poi struct {
	id         osm.NodeID
	name       string
	at         orb.Point
	population int
	facility   string
}

// Collector accumulates OSM ways and nodes and assembles them into a dataset.
// Ways must be added before nodes so that road nodes are recognised.
type Collector struct {
	opts   Options
	ways   []way
	refs   map[osm.NodeID]int
	coords map[osm.NodeID]orb.Point
	pois   []poi
}

// NewCollector returns an empty Collector.
func NewCollector(opts Options) *Collector {
	if opts.ConnectorKm <= 0 {
		opts.ConnectorKm = DefaultConnectorKm
	}
	return &Collector{
		opts:   opts,
		refs:   make(map[osm.NodeID]int),
		coords: make(map[osm.NodeID]orb.Point),
	}
}

// AddWay records a road way. Other ways are ignored.
func (c *Collector) AddWay(w *osm.Way) {
	if !isRoad(w.Tags) || len(w.Nodes) < 2 {
		return
	}
	ids := make([]osm.NodeID, len(w.Nodes))
	for i, wn := range w.Nodes {
		ids[i] = wn.ID
		c.refs[wn.ID]++
	}
	// Both ends of a way are always segment boundaries.
	c.refs[ids[0]]++
	c.refs[ids[len(ids)-1]]++
	c.ways = append(c.ways, way{nodes: ids, capacity: roadCapacity[w.Tags.Find("highway")]})
}

// AddNode records the location of a road node, or a place or amenity POI.
func (c *Collector) AddNode(n *osm.Node) {
	p := orb.Point{n.Lon, n.Lat}
	if !c.opts.inside(p) {
		return
	}
	if _, ok := c.refs[n.ID]; ok {
		c.coords[n.ID] = p
	}
	if places[n.Tags.Find("place")] {
		if pop, ok := population(n.Tags); ok {
			c.pois = append(c.pois, poi{id: n.ID, name: n.Tags.Find("name"), at: p, population: pop})
			return
		}
	}
	if t, ok := facilityType(n.Tags); ok {
		c.pois = append(c.pois, poi{id: n.ID, name: n.Tags.Find("name"), at: p, facility: t})
	}
}

func junctionID(id osm.NodeID) ingest.ID { return ingest.ID("j" + strconv.FormatInt(int64(id), 10)) }
func poiID(id osm.NodeID) ingest.ID      { return ingest.ID("p" + strconv.FormatInt(int64(id), 10)) }

// Dataset compresses every way into junction-to-junction roads and links each
// POI to its nearest junction.
func (c *Collector) Dataset() (*ingest.Dataset, Stats) {
	stats := Stats{Ways: len(c.ways)}
	ds := &ingest.Dataset{}

	// A node is a junction when shared by ways, at a way end, or next to a
	// node that was never located (missing or outside the box).
	junction := make(map[osm.NodeID]bool)
	for _, w := range c.ways {
		for i, id := range w.nodes {
			if _, ok := c.coords[id]; !ok {
				continue
			}
			if c.refs[id] > 1 || !c.located(w.nodes, i-1) || !c.located(w.nodes, i+1) {
				junction[id] = true
			}
		}
	}

	type key struct{ a, b osm.NodeID }
	roads := make(map[key]int)
	used := make(map[osm.NodeID]bool)
	emit := func(a, b osm.NodeID, km, capacity float64) {
		if a == b {
			return
		}
		k := key{min(a, b), max(a, b)}
		if i, dup := roads[k]; dup {
			r := &ds.ExistingRoads[i]
			r.DistanceKm = min(r.DistanceKm, max(km, minRoadKm))
			return
		}
		roads[k] = len(ds.ExistingRoads)
		used[a], used[b] = true, true
		ds.ExistingRoads = append(ds.ExistingRoads, ingest.RoadRecord{
			From:        junctionID(a),
			To:          junctionID(b),
			DistanceKm:  max(km, minRoadKm),
			CapacityVPH: capacity,
			Condition:   DefaultCondition,
		})
	}

	for _, w := range c.ways {
		var (
			start osm.NodeID
			prev  orb.Point
			km    float64
			open  bool
		)
		for _, id := range w.nodes {
			p, ok := c.coords[id]
			if !ok {
				if open {
					stats.SkippedSegments++
				}
				open = false
				continue
			}
			if !open {
				start, prev, km, open = id, p, 0, true
				continue
			}
			km += geo.HaversineKm(prev, p)
			prev = p
			if junction[id] {
				emit(start, id, km, w.capacity)
				start, km = id, 0
			}
		}
	}

	// Junctions in id order keep the output stable.
	ids := make([]osm.NodeID, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var tree rtree.RTreeG[osm.NodeID]
	for _, id := range ids {
		p := c.coords[id]
		ds.Neighbourhoods = append(ds.Neighbourhoods, ingest.NeighbourhoodRecord{
			ID: junctionID(id), Type: "Junction", X: p[0], Y: p[1],
		})
		tree.Insert(p, p, id)
	}
	stats.Junctions = len(ids)
	stats.Roads = len(ds.ExistingRoads)

	for _, pt := range c.pois {
		j, km, ok := nearestJunction(&tree, c.coords, pt.at)
		if !ok || km > c.opts.ConnectorKm {
			stats.FarPOIs++
			log.WithFields(log.Fields{"node": pt.id, "name": pt.name}).Debug("POI too far from the road network")
			continue
		}
		id := poiID(pt.id)
		if pt.facility != "" {
			ds.Facilities = append(ds.Facilities, ingest.FacilityRecord{
				ID: id, Name: pt.name, Type: pt.facility, X: pt.at[0], Y: pt.at[1],
			})
			stats.Facilities++
		} else {
			ds.Neighbourhoods = append(ds.Neighbourhoods, ingest.NeighbourhoodRecord{
				ID: id, Name: pt.name, Population: pt.population, Type: "Residential", X: pt.at[0], Y: pt.at[1],
			})
			stats.Neighbourhoods++
		}
		ds.ExistingRoads = append(ds.ExistingRoads, ingest.RoadRecord{
			From:        id,
			To:          junctionID(j),
			DistanceKm:  max(km, minRoadKm),
			CapacityVPH: connectorCapacity,
			Condition:   DefaultCondition,
		})
	}
	return ds, stats
}

func (c *Collector) located(ids []osm.NodeID, i int) bool {
	if i < 0 || i >= len(ids) {
		return false
	}
	_, ok := c.coords[ids[i]]
	return ok
}

// nearestJunction takes the first few candidates by box distance, re-ranks them
// by equirectangular distance since degrees of longitude shrink with latitude,
// and returns the winner's great-circle distance.
func nearestJunction(tree *rtree.RTreeG[osm.NodeID], coords map[osm.NodeID]orb.Point, p orb.Point) (osm.NodeID, float64, bool) {
	const candidates = 8
	var (
		best   osm.NodeID
		bestKm float64
		found  bool
		seen   int
	)
	pt := [2]float64{p[0], p[1]}
	tree.Nearby(
		rtree.BoxDist[float64, osm.NodeID](pt, pt, nil),
		func(_, _ [2]float64, id osm.NodeID, _ float64) bool {
			km := geo.EquirectangularKm(p, coords[id])
			if !found || km < bestKm {
				best, bestKm, found = id, km, true
			}
			seen++
			return seen < candidates
		},
	)
	if !found {
		return 0, 0, false
	}
	return best, geo.HaversineKm(p, coords[best]), true
}

// Import reads an OSM PBF file and returns the dataset it describes.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Import(ctx context.Context, rs io.ReadSeeker, opts Options) (*ingest.Dataset, Stats, error) {
	c := NewCollector(opts)

	// Pass 1: road ways.
	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		if w, ok := scanner.Object().(*osm.Way); ok {
			c.AddWay(w)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, Stats{}, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	log.Infof("Pass 1 complete: %d ways, %d referenced nodes", len(c.ways), len(c.refs))

	// Pass 2: node coordinates and POIs.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, Stats{}, fmt.Errorf("seek for pass 2: %w", err)
	}
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		if n, ok := scanner.Object().(*osm.Node); ok {
			c.AddNode(n)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, Stats{}, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	log.Infof("Pass 2 complete: %d node coordinates, %d points of interest", len(c.coords), len(c.pois))

	ds, stats := c.Dataset()
	if stats.SkippedSegments > 0 {
		log.Warnf("Skipped %d way segments with missing or out-of-box nodes", stats.SkippedSegments)
	}
	if stats.FarPOIs > 0 {
		log.Warnf("Dropped %d points of interest farther than %.1f km from any road", stats.FarPOIs, c.opts.ConnectorKm)
	}
	log.WithFields(log.Fields{
		"junctions":      stats.Junctions,
		"roads":          stats.Roads,
		"neighbourhoods": stats.Neighbourhoods,
		"facilities":     stats.Facilities,
	}).Info("Import complete")
	return ds, stats, nil
}
