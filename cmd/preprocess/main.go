package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"urban_router/pkg/ingest"
	"urban_router/pkg/osm"
)

// Named bounding boxes as minLat,minLng,maxLat,maxLng.
var regions = map[string][4]float64{
	"cairo":      {29.85, 31.10, 30.20, 31.55},
	"giza":       {29.90, 30.95, 30.10, 31.25},
	"alexandria": {31.10, 29.80, 31.35, 30.10},
}

func main() {
	var (
		input, output, bbox, region string
		connectorKm                 float64
		keepAll                     bool
	)

	cmd := &cobra.Command{
		Use:          "preprocess --input <file.osm.pbf> [--output data] [--region cairo | --bbox minLat,minLng,maxLat,maxLng]",
		Short:        "Import an OpenStreetMap extract as a JSON transport dataset",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := osm.Options{ConnectorKm: connectorKm}
			switch {
			case region != "":
				r, ok := regions[region]
				if !ok {
					return fmt.Errorf("unknown region %q", region)
				}
				opts.BBox = bound(r)
				log.Infof("Using %s bounding box filter: lat [%.2f, %.2f], lng [%.2f, %.2f]", region, r[0], r[2], r[1], r[3])
			case bbox != "":
				var r [4]float64
				if _, err := fmt.Sscanf(bbox, "%f,%f,%f,%f", &r[0], &r[1], &r[2], &r[3]); err != nil {
					return fmt.Errorf("invalid bbox format (expected minLat,minLng,maxLat,maxLng): %w", err)
				}
				if r[0] >= r[2] || r[1] >= r[3] {
					return fmt.Errorf("invalid bbox %q: min must be below max", bbox)
				}
				opts.BBox = bound(r)
				log.Infof("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", r[0], r[2], r[1], r[3])
			}
			return run(cmd.Context(), input, output, opts, keepAll)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "path to .osm.pbf file")
	f.StringVarP(&output, "output", "o", "data", "output dataset directory")
	f.StringVar(&bbox, "bbox", "", "bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 29.85,31.10,30.20,31.55)")
	f.StringVar(&region, "region", "", "named bounding box: cairo, giza or alexandria")
	f.Float64Var(&connectorKm, "connector-km", osm.DefaultConnectorKm, "largest distance linking a place or facility to the road network")
	f.BoolVar(&keepAll, "keep-all", false, "keep every connected component instead of only the largest")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("bbox", "region")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func bound(r [4]float64) orb.Bound {
	return orb.Bound{Min: orb.Point{r[1], r[0]}, Max: orb.Point{r[3], r[2]}}
}

func run(ctx context.Context, input, output string, opts osm.Options, keepAll bool) error {
	start := time.Now()

	// Step 1: Parse OSM data.
	log.Info("Opening OSM file...")
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	log.Info("Importing OSM data...")
	ds, _, err := osm.Import(ctx, f, opts)
	if err != nil {
		return fmt.Errorf("import OSM data: %w", err)
	}
	total := len(ds.Neighbourhoods) + len(ds.Facilities)

	// Step 2: Extract largest connected component.
	if !keepAll {
		log.Info("Extracting largest connected component...")
		dropped := osm.KeepLargestComponent(ds)
		if total > 0 {
			kept := total - dropped
			log.Infof("Largest component: %d nodes (%.1f%%)", kept, float64(kept)/float64(total)*100)
		}
	}
	if len(ds.Neighbourhoods)+len(ds.Facilities) == 0 {
		return fmt.Errorf("no road nodes found in %s", input)
	}

	// Step 3: Write dataset.
	log.Infof("Writing dataset to %s...", output)
	if err := ingest.WriteJSON(output, ds); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	log.WithFields(log.Fields{
		"neighbourhoods": len(ds.Neighbourhoods),
		"facilities":     len(ds.Facilities),
		"roads":          len(ds.ExistingRoads),
	}).Infof("Done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
