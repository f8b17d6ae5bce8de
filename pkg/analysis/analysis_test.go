package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urban_router/pkg/network"
	nt "urban_router/pkg/network/networktest"
)

func TestCongestionMorning(t *testing.T) {
	got := Congestion(nt.Cairo(t), network.Morning)
	require.Len(t, got, 10)

	var order [][2]network.NodeID
	for _, c := range got[:6] {
		order = append(order, [2]network.NodeID{c.From, c.To})
		assert.Equal(t, "High", c.Level)
	}
	assert.Equal(t, [][2]network.NodeID{
		{"1", "3"}, {"3", "5"}, {"2", "3"}, {"1", "8"}, {"2", "5"}, {"5", "F1"},
	}, order)
	assert.InDelta(t, 2800.0/3000, got[0].Ratio, 1e-9)
	assert.Equal(t, "Maadi - Downtown Cairo", got[0].Name)

	for _, c := range got[6:] {
		assert.Zero(t, c.Ratio)
		assert.Equal(t, "Unknown", c.Level)
	}
}

func TestCongestionAfternoonLevels(t *testing.T) {
	levels := map[[2]network.NodeID]string{}
	for _, c := range Congestion(nt.Cairo(t), network.Afternoon) {
		levels[[2]network.NodeID{c.From, c.To}] = c.Level
	}
	assert.Equal(t, "Low", levels[[2]network.NodeID{"1", "3"}])
	assert.Equal(t, "Medium", levels[[2]network.NodeID{"5", "F1"}])
}

func TestSuggestions(t *testing.T) {
	got := Suggestions(nt.Cairo(t))
	require.Len(t, got, 2)

	assert.Equal(t, network.NodeID("8"), got[0].From)
	assert.Equal(t, network.NodeID("5"), got[0].To)
	assert.Equal(t, 22000, got[0].Demand)
	assert.Equal(t, "Consider metro extension", got[0].Suggestion)

	assert.Equal(t, "Nasr City", got[1].FromName)
	assert.Equal(t, "Giza", got[1].ToName)
	assert.Equal(t, "New bus route", got[1].Suggestion)
}

func TestStatisticsCairo(t *testing.T) {
	s := Statistics(nt.Cairo(t))

	assert.Equal(t, 1645000, s.TotalPopulation)
	assert.Equal(t, 6, s.Neighbourhoods)
	assert.Equal(t, map[string]int{"residential": 6}, s.Districts)
	assert.Equal(t, 3, s.Facilities)
	assert.Equal(t, map[string]int{"Airport": 1, "Medical": 2}, s.FacilityTypes)
	assert.Equal(t, 8, s.CriticalNodes)
	assert.Equal(t, 10, s.Roads)
	assert.Equal(t, 5, s.PotentialRoads)
	assert.InDelta(t, 93.4, s.TotalRoadKm, 1e-9)
	assert.InDelta(t, 81.7, s.PotentialRoadKm, 1e-9)
	assert.Equal(t, 1, s.MetroLines)
	assert.Equal(t, 1, s.BusRoutes)
	assert.Equal(t, 7, s.DemandPairs)

	c := s.Connectivity
	assert.InDelta(t, 20.0/9, c.AverageDegree, 1e-9)
	assert.InDelta(t, 20.0/72, c.Density, 1e-9)
	assert.True(t, c.Connected)
	assert.Equal(t, 1, c.Components)
	assert.Equal(t, 9, c.LargestComponent)
}

func TestStatisticsDisjoint(t *testing.T) {
	c := Statistics(nt.Disjoint(t)).Connectivity
	assert.False(t, c.Connected)
	assert.Equal(t, 2, c.Components)
	assert.Equal(t, 2, c.LargestComponent)
}

func TestStatisticsEmpty(t *testing.T) {
	s := Statistics(nt.Build(t, func(*network.Builder) {}))
	assert.Zero(t, s.Connectivity.AverageDegree)
	assert.Zero(t, s.Connectivity.Components)
	assert.Zero(t, s.Connectivity.LargestComponent)
}
