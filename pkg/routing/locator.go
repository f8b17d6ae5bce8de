package routing

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"urban_router/pkg/geo"
	"urban_router/pkg/network"
)

// DefaultMaxLocateKm is the default radius beyond which Nearest gives up.
const DefaultMaxLocateKm = 5.0

// Locator finds the network node closest to a coordinate using an R-tree
// over node locations. Geographic longitudes are scaled by the cosine of the
// mean latitude so box distance ranks like ground distance.
type Locator struct {
	tree   rtree.RTreeG[int]
	net    *network.Network
	nodes  []network.Node
	xScale float64
	maxKm  float64
}

// NewLocator indexes every node of net. maxKm <= 0 selects DefaultMaxLocateKm.
func NewLocator(net *network.Network, maxKm float64) *Locator {
	if maxKm <= 0 {
		maxKm = DefaultMaxLocateKm
	}
	l := &Locator{net: net, nodes: net.Nodes(), xScale: 1, maxKm: maxKm}
	if net.Coordinates() == geo.Geographic && len(l.nodes) > 0 {
		var lat float64
		for _, n := range l.nodes {
			lat += n.Location[1]
		}
		l.xScale = math.Cos(lat / float64(len(l.nodes)) * math.Pi / 180)
	}
	for i, n := range l.nodes {
		p := l.project(n.Location)
		l.tree.Insert(p, p, i)
	}
	return l
}

func (l *Locator) project(p orb.Point) [2]float64 {
	return [2]float64{p[0] * l.xScale, p[1]}
}

// Nearest returns the node closest to p and its distance in km.
func (l *Locator) Nearest(p orb.Point) (network.Node, float64, error) {
	target := l.project(p)
	best := -1
	l.tree.Nearby(
		rtree.BoxDist[float64, int](target, target, nil),
		func(_, _ [2]float64, i int, _ float64) bool {
			best = i
			return false
		},
	)
	if best < 0 {
		return network.Node{}, 0, ErrPointTooFar
	}

	n := l.nodes[best]
	d := l.net.Coordinates().Distance(p, n.Location)
	if d > l.maxKm {
		return network.Node{}, d, ErrPointTooFar
	}
	return n, d, nil
}
