// Command marketsim serves the crypto market multi-agent simulator.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/api"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/config"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/engine"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("MARKETSIM_CONFIG"), "path to config file (YAML)")
		cycles     = flag.Int("cycles", 0, "run one simulation for N cycles and exit instead of serving")
		seed       = flag.Int64("seed", 0, "override the configured seed (one-shot mode)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// One-shot mode: run locally, print the summary, skip the server.
	if *cycles > 0 {
		opts := cfg.EngineOptions()
		if *seed != 0 {
			opts.Seed = *seed
		}
		sim := engine.NewSimulation(opts)
		res := sim.RunSimulation(*cycles)

		fmt.Printf("Run %s finished: %d cycles, seed %d\n", res.RunID, res.Cycles, res.Seed)
		fmt.Printf("Price %.2f -> %.2f (%+.2f%%), %d transactions (%d buy / %d sell)\n",
			res.Statistics.InitialPrice, res.Statistics.FinalPrice,
			res.Statistics.PriceChangePercent,
			res.Statistics.TotalTransactions,
			res.Statistics.BuyTransactions, res.Statistics.SellTransactions)
		if res.DroppedMessages > 0 {
			fmt.Printf("Warning: %d messages dropped at the pass ceiling\n", res.DroppedMessages)
		}
		return
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755)
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	// ── HTTP API ──────────────────────────────────────────────────────
	server := api.NewServer(cfg, db)
	server.Start()

	fmt.Printf("marketsim up: market %s starting at %.2f\n",
		cfg.Market.ID, cfg.Market.InitialPrice)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}
