package graph

import (
	"testing"

	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
)

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)
	if uf.Sets() != 5 {
		t.Fatalf("Sets() = %d, want 5", uf.Sets())
	}

	steps := []struct {
		x, y   uint32
		merged bool
		sets   int
	}{
		{0, 1, true, 4},
		{2, 3, true, 3},
		{1, 3, true, 2},
		{0, 2, false, 2},
		{4, 4, false, 2},
	}
	for _, s := range steps {
		if got := uf.Union(s.x, s.y); got != s.merged {
			t.Errorf("Union(%d, %d) = %v, want %v", s.x, s.y, got, s.merged)
		}
		if uf.Sets() != s.sets {
			t.Errorf("after Union(%d, %d): Sets() = %d, want %d", s.x, s.y, uf.Sets(), s.sets)
		}
	}

	if uf.Find(0) != uf.Find(3) {
		t.Error("0 and 3 should share a root")
	}
	if uf.Find(4) == uf.Find(0) {
		t.Error("4 should stay alone")
	}
	if got := uf.Size(2); got != 4 {
		t.Errorf("Size(2) = %d, want 4", got)
	}
}

func TestComponentsDisjoint(t *testing.T) {
	g := BuildRoadGraph(nt.Disjoint(t), network.Morning, false)

	labels, count := Components(g)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	want := map[network.NodeID]int{"A": 0, "B": 0, "C": 1, "D": 1}
	for id, label := range want {
		i, _ := g.Index(id)
		if labels[i] != label {
			t.Errorf("label(%s) = %d, want %d", id, labels[i], label)
		}
	}
}

func TestComponentsIsolatedNode(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		b.AddNode(nt.Neighbourhood("A", 1, 0, 0))
		b.AddNode(nt.Neighbourhood("lonely", 1, 5, 5))
		b.AddNode(nt.Neighbourhood("B", 1, 1, 0))
		b.AddRoad(nt.Road("A", "B", 1, 100, 5))
	})
	g := BuildRoadGraph(n, network.Night, true)

	if g.NumNodes != 3 {
		t.Fatalf("NumNodes = %d, want 3 (isolated nodes are kept)", g.NumNodes)
	}
	labels, count := Components(g)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	lonely, _ := g.Index("lonely")
	if labels[lonely] != 1 || g.Degree(lonely) != 0 {
		t.Errorf("lonely: label %d degree %d, want label 1 degree 0", labels[lonely], g.Degree(lonely))
	}
}

func TestLargestComponent(t *testing.T) {
	n := nt.Build(t, func(b *network.Builder) {
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			b.AddNode(nt.Neighbourhood(id, 1, 0, 0))
		}
		b.AddRoad(nt.Road("d", "e", 1, 100, 5))
		b.AddRoad(nt.Road("a", "b", 1, 100, 5))
		b.AddRoad(nt.Road("b", "c", 1, 100, 5))
	})
	g := BuildRoadGraph(n, network.Morning, false)

	nodes := LargestComponent(g)
	if len(nodes) != 3 {
		t.Fatalf("largest component has %d nodes, want 3", len(nodes))
	}
	for i, want := range []network.NodeID{"a", "b", "c"} {
		if g.IDs[nodes[i]] != want {
			t.Errorf("nodes[%d] = %s, want %s", i, g.IDs[nodes[i]], want)
		}
	}
}
