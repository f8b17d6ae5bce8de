package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"urban_router/pkg/network"
)

// Load reads a dataset directory in the given format and builds a network.
func Load(dir string, format Format, opts network.Options) (*network.Network, network.Diagnostics, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, network.Diagnostics{}, fmt.Errorf("dataset directory: %w", err)
	}
	b := network.NewBuilder(opts)
	var err error
	switch format {
	case CSV:
		err = LoadCSV(dir, b)
	default:
		err = LoadJSON(dir, b)
	}
	if err != nil {
		return nil, network.Diagnostics{}, err
	}
	n, diag := b.Build()
	return n, diag, nil
}

// LoadJSON feeds every JSON file of a dataset directory to b. A missing file
// is logged and skipped. A record that does not decode is rejected and the
// rest of its file still loads.
func LoadJSON(dir string, b *network.Builder) error {
	steps := []func() error{
		func() error {
			return loadJSONFile(b, dir, NeighbourhoodsFile, func(r NeighbourhoodRecord) { _ = b.AddNode(r.node()) })
		},
		func() error {
			return loadJSONFile(b, dir, FacilitiesFile, func(r FacilityRecord) { _ = b.AddNode(r.node()) })
		},
		func() error {
			return loadJSONFile(b, dir, ExistingRoadsFile, func(r RoadRecord) { _ = b.AddRoad(r.road(network.Existing)) })
		},
		func() error {
			return loadJSONFile(b, dir, PotentialRoadsFile, func(r RoadRecord) { _ = b.AddRoad(r.road(network.Potential)) })
		},
		func() error {
			return loadJSONFile(b, dir, TrafficFile, func(r TrafficRow) { _ = b.AddTraffic(r.record()) })
		},
		func() error {
			return loadJSONFile(b, dir, MetroLinesFile, func(r MetroRecord) { _ = b.AddLine(r.line()) })
		},
		func() error {
			return loadJSONFile(b, dir, BusRoutesFile, func(r BusRecord) { _ = b.AddLine(r.line()) })
		},
		func() error {
			return loadJSONFile(b, dir, DemandFile, func(r DemandRow) { _ = b.AddDemand(r.record()) })
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func loadJSONFile[T any](b *network.Builder, dir, base string, add func(T)) error {
	path := filepath.Join(dir, base+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("file", path).Warn("Dataset file missing, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		b.Reject(base, &network.InvalidInputError{Record: base, Reason: "not a JSON array: " + err.Error()})
		return nil
	}
	for i, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			b.Reject(fmt.Sprintf("%s[%d]", base, i), &network.InvalidInputError{Record: base, Reason: err.Error()})
			continue
		}
		add(rec)
	}
	log.WithFields(log.Fields{"file": path, "records": len(raw)}).Debug("Loaded dataset file")
	return nil
}

// WriteJSON writes ds as a JSON dataset directory, creating it if needed.
func WriteJSON(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return errors.Join(
		writeJSONFile(dir, NeighbourhoodsFile, ds.Neighbourhoods),
		writeJSONFile(dir, FacilitiesFile, ds.Facilities),
		writeJSONFile(dir, ExistingRoadsFile, ds.ExistingRoads),
		writeJSONFile(dir, PotentialRoadsFile, ds.PotentialRoads),
		writeJSONFile(dir, TrafficFile, ds.Traffic),
		writeJSONFile(dir, MetroLinesFile, ds.MetroLines),
		writeJSONFile(dir, BusRoutesFile, ds.BusRoutes),
		writeJSONFile(dir, DemandFile, ds.Demand),
	)
}

func writeJSONFile[T any](dir, base string, recs []T) error {
	if recs == nil {
		recs = []T{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", base, err)
	}
	path := filepath.Join(dir, base+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
