package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"urban_router/pkg/network"
)

// Accepted header spellings per column, normalised by normalizeHeader.
var columns = map[string][]string{
	"id":         {"id"},
	"name":       {"name"},
	"population": {"population"},
	"type":       {"type", "district", "facilitytype"},
	"x":          {"xcoordinate", "x", "longitude", "lon"},
	"y":          {"ycoordinate", "y", "latitude", "lat"},
	"from":       {"fromid", "from"},
	"to":         {"toid", "to"},
	"distance":   {"distancekm", "distance"},
	"capacity":   {"currentcapacityvehicleshour", "estimatedcapacityvehicleshour", "capacityvph", "capacity"},
	"condition":  {"condition110", "condition"},
	"cost":       {"constructioncostmillionegp", "constructioncost", "cost"},
	"morning":    {"morningpeakvehh", "morning"},
	"afternoon":  {"afternoonvehh", "afternoon"},
	"evening":    {"eveningpeakvehh", "evening"},
	"night":      {"nightvehh", "night"},
	"line":       {"lineid", "id"},
	"route":      {"routeid", "id"},
	"stations":   {"stationscommaseparatedids", "stations", "stops"},
	"stops":      {"stopscommaseparatedids", "stops"},
	"buses":      {"busesassigned", "buses", "fleetsize"},
	"passengers": {"dailypassengers", "passengers", "dailytrips"},
}

// normalizeHeader lower-cases a header and drops everything but letters and digits.
func normalizeHeader(h string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func headerIndex(header []string) map[string]int {
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := seen[normalizeHeader(h)]; !dup {
			seen[normalizeHeader(h)] = i
		}
	}
	idx := make(map[string]int, len(columns))
	for col, names := range columns {
		for _, n := range names {
			if i, ok := seen[n]; ok {
				idx[col] = i
				break
			}
		}
	}
	return idx
}

// row reads typed fields from one CSV record. The first failure sticks.
type row struct {
	h   map[string]int
	rec []string
	err error
}

func (r *row) raw(col string) (string, bool) {
	i, ok := r.h[col]
	if !ok || i >= len(r.rec) {
		return "", false
	}
	v := strings.TrimSpace(r.rec[i])
	return v, v != ""
}

func (r *row) str(col string) string {
	v, ok := r.raw(col)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing column %q", col)
	}
	return v
}

func (r *row) optStr(col string) string {
	v, _ := r.raw(col)
	return v
}

func (r *row) float(col string) float64 {
	s := r.str(col)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("column %q: %w", col, err)
	}
	return v
}

func (r *row) optFloat(col string) float64 {
	if _, ok := r.raw(col); !ok {
		return 0
	}
	return r.float(col)
}

func (r *row) int(col string) int {
	v := r.float(col)
	if r.err == nil && v != float64(int(v)) {
		r.err = fmt.Errorf("column %q: %v is not a whole number", col, v)
	}
	return int(v)
}

func (r *row) optInt(col string) int {
	if _, ok := r.raw(col); !ok {
		return 0
	}
	return r.int(col)
}

// LoadCSV feeds every CSV file of a dataset directory to b. Columns are
// matched by header name, so their order does not matter. A row missing a
// required column or holding an unparseable number is rejected.
func LoadCSV(dir string, b *network.Builder) error {
	files := []struct {
		base string
		add  func(r *row) (string, func())
	}{
		{NeighbourhoodsFile, func(r *row) (string, func()) {
			rec := NeighbourhoodRecord{ID: ID(r.str("id")), Name: r.optStr("name"), Population: r.int("population"), Type: r.optStr("type"), X: r.float("x"), Y: r.float("y")}
			return "node " + string(rec.ID), func() { _ = b.AddNode(rec.node()) }
		}},
		{FacilitiesFile, func(r *row) (string, func()) {
			rec := FacilityRecord{ID: ID(r.str("id")), Name: r.optStr("name"), Type: r.optStr("type"), X: r.float("x"), Y: r.float("y")}
			return "node " + string(rec.ID), func() { _ = b.AddNode(rec.node()) }
		}},
		{ExistingRoadsFile, func(r *row) (string, func()) {
			rec := RoadRecord{From: ID(r.str("from")), To: ID(r.str("to")), DistanceKm: r.float("distance"), CapacityVPH: r.float("capacity"), Condition: r.float("condition")}
			return fmt.Sprintf("road %s-%s", rec.From, rec.To), func() { _ = b.AddRoad(rec.road(network.Existing)) }
		}},
		{PotentialRoadsFile, func(r *row) (string, func()) {
			rec := RoadRecord{From: ID(r.str("from")), To: ID(r.str("to")), DistanceKm: r.float("distance"), CapacityVPH: r.float("capacity"), Condition: r.optFloat("condition"), ConstructionCost: r.optFloat("cost")}
			return fmt.Sprintf("road %s-%s", rec.From, rec.To), func() { _ = b.AddRoad(rec.road(network.Potential)) }
		}},
		{TrafficFile, func(r *row) (string, func()) {
			rec := TrafficRow{From: ID(r.str("from")), To: ID(r.str("to")), Morning: r.float("morning"), Afternoon: r.float("afternoon"), Evening: r.float("evening"), Night: r.float("night")}
			return fmt.Sprintf("traffic %s-%s", rec.From, rec.To), func() { _ = b.AddTraffic(rec.record()) }
		}},
		{MetroLinesFile, func(r *row) (string, func()) {
			rec := MetroRecord{ID: ID(r.str("line")), Name: r.optStr("name"), Stations: splitIDs(r.str("stations")), DailyPassengers: r.optInt("passengers")}
			return "metro line " + string(rec.ID), func() { _ = b.AddLine(rec.line()) }
		}},
		{BusRoutesFile, func(r *row) (string, func()) {
			rec := BusRecord{ID: ID(r.str("route")), Stops: splitIDs(r.str("stops")), Buses: r.optInt("buses"), DailyPassengers: r.optInt("passengers")}
			return "bus line " + string(rec.ID), func() { _ = b.AddLine(rec.line()) }
		}},
		{DemandFile, func(r *row) (string, func()) {
			rec := DemandRow{From: ID(r.str("from")), To: ID(r.str("to")), DailyPassengers: r.int("passengers")}
			return fmt.Sprintf("demand %s-%s", rec.From, rec.To), func() { _ = b.AddDemand(rec.record()) }
		}},
	}
	for _, f := range files {
		if err := loadCSVFile(b, filepath.Join(dir, f.base+".csv"), f.add); err != nil {
			return err
		}
	}
	return nil
}

func loadCSVFile(b *network.Builder, path string, add func(r *row) (string, func())) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("file", path).Warn("Dataset file missing, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	h := headerIndex(header)

	base := filepath.Base(path)
	for n := 1; ; n++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			b.Reject(fmt.Sprintf("%s row %d", base, n), &network.InvalidInputError{Record: base, Reason: err.Error()})
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rw := &row{h: h, rec: rec}
		name, commit := add(rw)
		if rw.err != nil {
			b.Reject(fmt.Sprintf("%s row %d", base, n), &network.InvalidInputError{Record: name, Reason: rw.err.Error()})
			continue
		}
		commit()
	}
	return nil
}
