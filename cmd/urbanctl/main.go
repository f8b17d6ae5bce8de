// Command urbanctl answers routing, planning and allocation queries against a
// dataset directory and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"urban_router/pkg/allocation"
	"urban_router/pkg/analysis"
	"urban_router/pkg/config"
	"urban_router/pkg/ingest"
	"urban_router/pkg/mst"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath string
	dataDir    string
	format     string
	period     string

	cfg *config.Config
	net *network.Network
	svc *routing.Service
	out io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "urbanctl",
		Short:         "Query an urban transport network from the command line",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVarP(&a.dataDir, "data", "d", "", "dataset directory (overrides config)")
	pf.StringVarP(&a.format, "format", "f", "", "dataset format: csv or json (overrides config)")
	pf.StringVarP(&a.period, "period", "p", "morning", "time period: morning, afternoon, evening or night")

	root.AddCommand(
		a.routeCmd(),
		a.emergencyCmd(),
		a.transitCmd(),
		a.nearestCmd(),
		a.infrastructureCmd(),
		a.busesCmd(),
		a.metroCmd(),
		a.trafficCmd(),
		a.suggestionsCmd(),
		a.statsCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Data.Dir = a.dataDir
	}
	if a.format != "" {
		cfg.Data.Format = a.format
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return err
	}
	// Diagnostics go to stderr so stdout stays valid JSON.
	log.SetOutput(cmd.ErrOrStderr())
	format, err := ingest.ParseFormat(cfg.Data.Format)
	if err != nil {
		return err
	}

	net, diag, err := ingest.Load(cfg.Data.Dir, format, cfg.NetworkOptions())
	if err != nil {
		return err
	}
	for _, w := range diag.Warnings {
		log.WithField("record", w.Record).Warn(w.Err)
	}
	a.cfg, a.net, a.svc = cfg, net, routing.NewService(net, nil)
	return nil
}

func (a *app) periodFlag() (network.Period, error) {
	return network.ParsePeriod(a.period)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) routeCmd() *cobra.Command {
	var metric string
	cmd := &cobra.Command{
		Use:   "route <origin> <destination>",
		Short: "Fastest or shortest road route",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := routing.ParseMetric(metric)
			if err != nil {
				return err
			}
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			res, err := a.svc.Route(cmd.Context(), routing.RouteRequest{
				Origin: network.NodeID(args[0]), Dest: network.NodeID(args[1]), Period: p, Metric: m,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVarP(&metric, "metric", "m", "time", "time or distance")
	return cmd
}

func (a *app) emergencyCmd() *cobra.Command {
	var vehicle string
	cmd := &cobra.Command{
		Use:   "emergency <origin> <destination>",
		Short: "Priority route for an emergency vehicle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := routing.ParseVehicle(vehicle)
			if err != nil {
				return err
			}
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			res, err := a.svc.Emergency(cmd.Context(), routing.EmergencyRequest{
				Origin: network.NodeID(args[0]), Dest: network.NodeID(args[1]), Period: p, Vehicle: v,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVarP(&vehicle, "vehicle", "v", "ambulance", "ambulance, fire_truck or police")
	return cmd
}

func (a *app) transitCmd() *cobra.Command {
	var maxTransfers int
	cmd := &cobra.Command{
		Use:   "transit <origin> <destination>",
		Short: "Multimodal itinerary over roads, metro and buses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			res, err := a.svc.Transit(cmd.Context(), routing.TransitRequest{
				Origin: network.NodeID(args[0]), Dest: network.NodeID(args[1]), Period: p, MaxTransfers: maxTransfers,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().IntVar(&maxTransfers, "max-transfers", 0, "transfer cap to report against (0 = none)")
	return cmd
}

func (a *app) nearestCmd() *cobra.Command {
	var facilityType string
	cmd := &cobra.Command{
		Use:   "nearest <origin>",
		Short: "Route to the nearest facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			res, err := a.svc.NearestFacility(cmd.Context(), routing.FacilityRequest{
				Origin: network.NodeID(args[0]), FacilityType: facilityType, Period: p,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVarP(&facilityType, "type", "t", "", "facility type, e.g. Medical (empty = any)")
	return cmd
}

func (a *app) infrastructureCmd() *cobra.Command {
	opts := mst.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "infrastructure",
		Short: "Cost-aware road backbone connecting every neighbourhood",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			opts.Period = p
			res, err := mst.Plan(cmd.Context(), a.net, opts)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().BoolVar(&opts.PrioritizePopulation, "prioritize-population", opts.PrioritizePopulation, "favour roads between populous nodes")
	cmd.Flags().BoolVar(&opts.IncludeExisting, "include-existing", opts.IncludeExisting, "consider existing roads as well as proposed ones")
	return cmd
}

func (a *app) busesCmd() *cobra.Command {
	var maxBuses, threshold int
	cmd := &cobra.Command{
		Use:   "buses",
		Short: "Allocate a bus fleet to the highest-demand corridors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.cfg.BusOptions()
			if cmd.Flags().Changed("max-buses") {
				opts.MaxBuses = maxBuses
			}
			if cmd.Flags().Changed("threshold") {
				opts.DemandThreshold = threshold
			}
			plan, err := allocation.OptimizeBusCoverage(cmd.Context(), a.net, opts)
			if err != nil {
				return err
			}
			if err := plan.Exhaustion(); err != nil {
				log.Warn(err)
			}
			return a.print(plan)
		},
	}
	cmd.Flags().IntVar(&maxBuses, "max-buses", 0, "fleet size (default from config)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "ignore pairs at or below this daily demand (default from config)")
	return cmd
}

func (a *app) metroCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metro",
		Short: "Profit-maximising metro frequencies per line and period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := allocation.OptimizeMetroSchedule(cmd.Context(), a.net, a.cfg.MetroOptions())
			if err != nil {
				return err
			}
			return a.print(map[string]any{"lines": lines})
		},
	}
}

func (a *app) trafficCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traffic",
		Short: "Road congestion for a period, most congested first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := a.periodFlag()
			if err != nil {
				return err
			}
			return a.print(map[string]any{"period": p, "roads": analysis.Congestion(a.net, p)})
		},
	}
}

func (a *app) suggestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "High-demand pairs with no direct transit service",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.print(map[string]any{"suggestions": analysis.Suggestions(a.net)})
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Network statistics",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.print(analysis.Statistics(a.net))
		},
	}
}
