package osm

import (
	"urban_router/pkg/graph"
	"urban_router/pkg/ingest"
)

// KeepLargestComponent drops every node, and every record touching one, outside
// the largest road-connected component of ds. It returns the number of nodes dropped.
// Ties go to the component holding the earliest node.
func KeepLargestComponent(ds *ingest.Dataset) int {
	index := make(map[ingest.ID]uint32, len(ds.Neighbourhoods)+len(ds.Facilities))
	for _, n := range ds.Neighbourhoods {
		index[n.ID] = uint32(len(index))
	}
	for _, f := range ds.Facilities {
		index[f.ID] = uint32(len(index))
	}
	if len(index) == 0 {
		return 0
	}

	uf := graph.NewUnionFind(uint32(len(index)))
	for _, r := range ds.ExistingRoads {
		a, okA := index[r.From]
		b, okB := index[r.To]
		if okA && okB {
			uf.Union(a, b)
		}
	}
	var best uint32
	for i := uint32(1); i < uint32(len(index)); i++ {
		if uf.Size(i) > uf.Size(best) {
			best = i
		}
	}
	root := uf.Find(best)
	keep := func(id ingest.ID) bool {
		i, ok := index[id]
		return ok && uf.Find(i) == root
	}

	before := len(index)
	ds.Neighbourhoods = filter(ds.Neighbourhoods, func(r ingest.NeighbourhoodRecord) bool { return keep(r.ID) })
	ds.Facilities = filter(ds.Facilities, func(r ingest.FacilityRecord) bool { return keep(r.ID) })
	ds.ExistingRoads = filter(ds.ExistingRoads, func(r ingest.RoadRecord) bool { return keep(r.From) && keep(r.To) })
	ds.PotentialRoads = filter(ds.PotentialRoads, func(r ingest.RoadRecord) bool { return keep(r.From) && keep(r.To) })
	ds.Traffic = filter(ds.Traffic, func(r ingest.TrafficRow) bool { return keep(r.From) && keep(r.To) })
	ds.Demand = filter(ds.Demand, func(r ingest.DemandRow) bool { return keep(r.From) && keep(r.To) })
	return before - len(ds.Neighbourhoods) - len(ds.Facilities)
}

func filter[T any](recs []T, keep func(T) bool) []T {
	out := recs[:0]
	for _, r := range recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
