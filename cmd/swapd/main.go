package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stealthswap/config"
	"stealthswap/core"
	"stealthswap/core/genesis"
	"stealthswap/observability/logging"
	"stealthswap/observability/otel"
	"stealthswap/storage"
)

const envVar = "SWAPD_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis file (overrides config GenesisFile)")
	metricsAddr := flag.String("metrics-addr", "", "Listen address for the Prometheus /metrics endpoint")
	flag.Parse()

	env := os.Getenv(envVar)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("swapd", env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "swapd",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     cfg.Telemetry.Headers,
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node, err := buildNode(cfg, db, logger)
	if err != nil {
		logger.Error("failed to start node", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath := cfg.GenesisFile
	if *genesisFlag != "" {
		genesisPath = *genesisFlag
	}
	if err := bootstrapIfFresh(node, genesisPath, logger); err != nil {
		logger.Error("failed to apply genesis", slog.Any("error", err))
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	logger.Info("swapd ready",
		slog.String("dataDir", cfg.DataDir),
		slog.String("stateRoot", node.StateRoot().Hex()),
	)

	<-ctx.Done()
	logger.Info("shutting down")
}

func buildNode(cfg *config.Config, db storage.Database, logger *slog.Logger) (*core.Node, error) {
	params, err := cfg.AuctionParams()
	if err != nil {
		return nil, err
	}
	opts := []core.NodeOption{
		core.WithLogger(logger),
		core.WithAuctionParams(params),
	}
	treasury, ok, err := cfg.FeeTreasuryAddress()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, core.WithFeeTreasury(treasury))
	}
	if pauses := cfg.Pauses(); pauses != nil {
		opts = append(opts, core.WithPauses(pauses))
	}
	return core.NewNode(db, opts...)
}

// bootstrapIfFresh applies the genesis spec exactly once, on an empty state
// root. Subsequent boots resume from the persisted root.
func bootstrapIfFresh(node *core.Node, genesisPath string, logger *slog.Logger) error {
	if node.StateRoot() != (core.EmptyStateRoot) {
		return nil
	}
	spec, err := genesis.Load(genesisPath)
	if err != nil {
		return err
	}
	if err := node.Bootstrap(func(sp *core.StateProcessor) error {
		return spec.Apply(sp.Manager())
	}); err != nil {
		return err
	}
	logger.Info("genesis applied",
		slog.String("chain", spec.ChainName),
		slog.Int("assets", len(spec.Assets)),
		slog.String("stateRoot", node.StateRoot().Hex()),
	)
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics endpoint listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics endpoint failed", slog.Any("error", err))
	}
}
