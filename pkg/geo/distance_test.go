package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name             string
		a, b             orb.Point
		wantKm           float64
		tolerancePercent float64
	}{
		{
			name:             "Tahrir to Heliopolis",
			a:                orb.Point{31.2357, 30.0444},
			b:                orb.Point{31.3225, 30.0911},
			wantKm:           9.85,
			tolerancePercent: 2,
		},
		{
			name:             "Same point",
			a:                orb.Point{31.2, 30.0},
			b:                orb.Point{31.2, 30.0},
			wantKm:           0,
			tolerancePercent: 0,
		},
		{
			name:             "London to Paris",
			a:                orb.Point{-0.1278, 51.5074},
			b:                orb.Point{2.3522, 48.8566},
			wantKm:           343.5,
			tolerancePercent: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if tt.wantKm == 0 {
				if got != 0 {
					t.Errorf("HaversineKm = %f, want 0", got)
				}
				return
			}
			diff := math.Abs(got-tt.wantKm) / tt.wantKm * 100
			if diff > tt.tolerancePercent {
				t.Errorf("HaversineKm = %.3f km, want ~%.3f km (diff %.2f%%)", got, tt.wantKm, diff)
			}
		})
	}
}

func TestEquirectangularMatchesHaversine(t *testing.T) {
	a := orb.Point{31.2357, 30.0444}
	b := orb.Point{31.2800, 30.0600}
	h := HaversineKm(a, b)
	e := EquirectangularKm(a, b)
	if diff := math.Abs(h-e) / h * 100; diff > 0.5 {
		t.Errorf("equirectangular %.4f vs haversine %.4f (diff %.3f%%)", e, h, diff)
	}
}

func TestDetect(t *testing.T) {
	if got := Detect([]orb.Point{{31.2, 30.0}, {31.3, 30.1}}); got != Geographic {
		t.Errorf("Detect(degrees) = %v, want geographic", got)
	}
	if got := Detect([]orb.Point{{31.2, 30.0}, {250, 40}}); got != Planar {
		t.Errorf("Detect(mixed) = %v, want planar", got)
	}
	if got := Detect(nil); got != Geographic {
		t.Errorf("Detect(nil) = %v, want geographic", got)
	}
}

func TestCoordinatesDistance(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{3, 4}
	if got := Planar.Distance(a, b); got != 5 {
		t.Errorf("Planar.Distance = %f, want 5", got)
	}
	if got := Geographic.Distance(a, b); math.Abs(got-555.8) > 2 {
		t.Errorf("Geographic.Distance = %f, want ~555.8", got)
	}
	if got := Auto.Distance(orb.Point{0, 0}, orb.Point{300, 400}); got != 500 {
		t.Errorf("Auto.Distance(out of range) = %f, want planar 500", got)
	}
}

func TestParseCoordinates(t *testing.T) {
	for in, want := range map[string]Coordinates{"": Auto, "auto": Auto, "Geographic": Geographic, "planar": Planar} {
		got, err := ParseCoordinates(in)
		if err != nil || got != want {
			t.Errorf("ParseCoordinates(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCoordinates("mercator"); err == nil {
		t.Error("ParseCoordinates(mercator) should fail")
	}
}
