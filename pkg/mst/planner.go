// Package mst selects a minimum-cost road backbone over existing and proposed
// roads and checks that critical nodes stay connected.
package mst

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"urban_router/pkg/graph"
	"urban_router/pkg/network"
)

const (
	existingDiscount        = 0.3
	capacityBonus           = 0.3
	conditionBonus          = 0.2
	populationScale         = 100000.0
	facilityPopulation      = 5000
	bothCriticalFactor      = 0.5
	oneCriticalFactor       = 0.7
	constructionCostFactor  = 0.02
	maintenancePerKmPerYear = 100000
)

// Options selects how the planner weighs candidate roads.
type Options struct {
	Period               network.Period
	PrioritizePopulation bool
	IncludeExisting      bool
}

// DefaultOptions prioritises population and keeps existing roads.
func DefaultOptions() Options {
	return Options{PrioritizePopulation: true, IncludeExisting: true}
}

// SelectedEdge is a road chosen for the backbone.
type SelectedEdge struct {
	From             network.NodeID     `json:"from"`
	To               network.NodeID     `json:"to"`
	FromName         string             `json:"from_name"`
	ToName           string             `json:"to_name"`
	Provenance       network.Provenance `json:"provenance"`
	DistanceKm       float64            `json:"distance_km"`
	CapacityVPH      float64            `json:"capacity_vph"`
	Condition        float64            `json:"condition,omitempty"`
	ConstructionCost float64            `json:"construction_cost,omitempty"`
	Weight           float64            `json:"weight"`
}

// CostEffectiveness summarises what the backbone costs to build and keep.
type CostEffectiveness struct {
	AnnualMaintenance decimal.Decimal `json:"annual_maintenance"`
	Construction      decimal.Decimal `json:"construction"`
	CandidateEdges    int             `json:"candidate_edges"`
	SelectedEdges     int             `json:"selected_edges"`
	EdgeReductionPct  float64         `json:"edge_reduction_pct"`
}

// Infrastructure is the planner's output.
type Infrastructure struct {
	Existing               []SelectedEdge    `json:"existing_roads_used"`
	Proposed               []SelectedEdge    `json:"new_roads_proposed"`
	TotalCost              decimal.Decimal   `json:"total_cost"`
	TotalDistanceKm        float64           `json:"total_distance_km"`
	CriticalNodes          int               `json:"critical_nodes"`
	CriticalComponents     int               `json:"critical_components"`
	CriticalInducedEdges   int               `json:"critical_induced_edges"`
	CriticalConnectivityOK bool              `json:"critical_connectivity_ok"`
	CostEffectiveness      CostEffectiveness `json:"cost_effectiveness"`
}

// Plan computes a minimum spanning forest over the candidate roads using
// population and criticality biased weights. Disconnected critical nodes are
// reported, never repaired.
func Plan(ctx context.Context, net *network.Network, opts Options) (*Infrastructure, error) {
	var g *graph.WeightedGraph
	if opts.IncludeExisting {
		g = graph.BuildRoadGraph(net, opts.Period, true)
	} else {
		g = graph.BuildPotentialGraph(net, opts.Period)
	}
	critical := criticalMask(net, g)
	nodes := net.Nodes()
	weight := func(e *graph.Edge) float64 {
		return plannerWeight(e, nodes, critical, opts.PrioritizePopulation)
	}
	tree, err := Kruskal(ctx, g, weight)
	if err != nil {
		return nil, err
	}

	res := &Infrastructure{TotalCost: decimal.Zero}
	var maintainedKm float64
	for _, i := range tree {
		e := &g.Edges[i]
		sel := SelectedEdge{
			From:        g.IDs[e.U],
			To:          g.IDs[e.V],
			FromName:    nodes[e.U].Name,
			ToName:      nodes[e.V].Name,
			Provenance:  e.Provenance,
			DistanceKm:  e.DistanceKm,
			CapacityVPH: e.CapacityVPH,
			Weight:      weight(e),
		}
		res.TotalDistanceKm += e.DistanceKm
		if e.Provenance == network.Potential {
			sel.ConstructionCost = e.ConstructionCost
			res.TotalCost = res.TotalCost.Add(decimal.NewFromFloat(e.ConstructionCost))
			res.Proposed = append(res.Proposed, sel)
		} else {
			sel.Condition = e.Condition
			maintainedKm += e.DistanceKm
			res.Existing = append(res.Existing, sel)
		}
	}

	res.CriticalNodes, res.CriticalComponents, res.CriticalInducedEdges = criticalConnectivity(g, tree, critical)
	res.CriticalConnectivityOK = res.CriticalComponents <= 1

	ce := &res.CostEffectiveness
	ce.AnnualMaintenance = decimal.NewFromFloat(maintainedKm).Mul(decimal.NewFromInt(maintenancePerKmPerYear)).Round(2)
	ce.Construction = res.TotalCost
	ce.CandidateEdges = len(g.Edges)
	ce.SelectedEdges = len(tree)
	if len(g.Edges) > 0 {
		ce.EdgeReductionPct = (1 - float64(len(tree))/float64(len(g.Edges))) * 100
	}

	log.WithFields(log.Fields{
		"existing":  len(res.Existing),
		"proposed":  len(res.Proposed),
		"critical":  res.CriticalNodes,
		"connected": res.CriticalConnectivityOK,
	}).Info("Planned infrastructure backbone")
	return res, nil
}

// plannerWeight scores a candidate road; lower is more attractive.
func plannerWeight(e *graph.Edge, nodes []network.Node, critical []bool, prioritizePopulation bool) float64 {
	if e.Provenance == network.Existing {
		return e.DistanceKm * existingDiscount *
			(1 - capacityBonus*e.CapacityVPH/10000) *
			(1 - conditionBonus*e.Condition/10)
	}

	w := e.DistanceKm
	if prioritizePopulation {
		switch {
		case critical[e.U] && critical[e.V]:
			w *= bothCriticalFactor
		case critical[e.U] || critical[e.V]:
			w *= oneCriticalFactor
		}
		pop := plannerPopulation(nodes[e.U]) + plannerPopulation(nodes[e.V])
		w *= 1 / (1 + float64(pop)/populationScale)
	}
	return w * (1 + constructionCostFactor*e.ConstructionCost)
}

func plannerPopulation(n network.Node) int {
	if n.Kind == network.Facility {
		return facilityPopulation
	}
	return n.Population
}

// kruskalCheckEvery is how many candidate edges Kruskal scans between
// context checks.
const kruskalCheckEvery = 256

// Kruskal returns the indices of a minimum spanning forest of g under weight.
// Equal weights keep input order.
func Kruskal(ctx context.Context, g *graph.WeightedGraph, weight func(e *graph.Edge) float64) ([]int, error) {
	order := make([]int, len(g.Edges))
	weights := make([]float64, len(g.Edges))
	for i := range g.Edges {
		order[i] = i
		weights[i] = weight(&g.Edges[i])
	}
	sort.SliceStable(order, func(a, b int) bool { return weights[order[a]] < weights[order[b]] })

	uf := graph.NewUnionFind(g.NumNodes)
	var tree []int
	for n, i := range order {
		if n%kruskalCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e := &g.Edges[i]
		if uf.Union(e.U, e.V) {
			tree = append(tree, i)
			if uint32(len(tree))+1 == g.NumNodes {
				break
			}
		}
	}
	sort.Ints(tree)
	return tree, nil
}

func criticalMask(net *network.Network, g *graph.WeightedGraph) []bool {
	mask := make([]bool, g.NumNodes)
	for _, id := range net.CriticalNodes() {
		if i, ok := g.Index(id); ok {
			mask[i] = true
		}
	}
	return mask
}

// criticalConnectivity restricts tree to critical nodes and counts the
// nodes, components and edges of that induced forest.
func criticalConnectivity(g *graph.WeightedGraph, tree []int, critical []bool) (nodes, components, edges int) {
	uf := graph.NewUnionFind(g.NumNodes)
	for _, i := range tree {
		e := &g.Edges[i]
		if critical[e.U] && critical[e.V] {
			uf.Union(e.U, e.V)
			edges++
		}
	}
	roots := make(map[uint32]struct{})
	for u := uint32(0); u < g.NumNodes; u++ {
		if critical[u] {
			nodes++
			roots[uf.Find(u)] = struct{}{}
		}
	}
	return nodes, len(roots), edges
}
