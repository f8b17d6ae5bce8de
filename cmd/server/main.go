package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"urban_router/pkg/api"
	"urban_router/pkg/cache"
	"urban_router/pkg/config"
	"urban_router/pkg/ingest"
	"urban_router/pkg/network"
	"urban_router/pkg/routing"
)

func main() {
	var configPath, envFile, dataDir string

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve routing, planning and allocation queries over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.Data.Dir = dataDir
			}
			if err := config.SetupLogging(cfg.Log); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "path to a .env file")
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "dataset directory (overrides config)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	log.Infof("Loading %s dataset from %s...", cfg.DataFormat(), cfg.Data.Dir)
	net, diag, err := ingest.Load(cfg.Data.Dir, cfg.DataFormat(), cfg.NetworkOptions())
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	log.WithFields(log.Fields{
		"nodes":       net.NumNodes(),
		"roads":       len(net.RoadEdges(true)),
		"lines":       len(net.TransitLines(network.ModeNone)),
		"dropped":     diag.Dropped,
		"coordinates": net.Coordinates(),
		"version":     net.Version(),
	}).Info("Network loaded")

	var rc routing.Cache
	switch cfg.Cache.Backend {
	case "memory":
		rc = cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	case "redis":
		r, err := cache.DialRedis(ctx, cfg.RedisOptions())
		if err != nil {
			return err
		}
		defer r.Close()
		rc = r
	}

	handlers := api.NewHandlers(routing.NewService(net, rc), net, api.Options{
		Bus:   cfg.BusOptions(),
		Metro: cfg.MetroOptions(),
	})
	srv := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxConcurrent:  cfg.Server.MaxConcurrent,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}, handlers)

	log.Infof("Ready in %s", time.Since(start).Round(time.Millisecond))
	if err := api.ListenAndServe(srv); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
