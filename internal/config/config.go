// Package config loads the service configuration from YAML with sane
// defaults for every field, so an empty path yields a runnable setup.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/engine"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Market     MarketConfig     `yaml:"market"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Simulation SimulationConfig `yaml:"simulation"`
	Investors  []InvestorConfig `yaml:"investors,omitempty"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MarketConfig struct {
	ID           string  `yaml:"id"`
	InitialPrice float64 `yaml:"initial_price"`
	PriceFloor   float64 `yaml:"price_floor"`
	WalkPct      float64 `yaml:"walk_pct"`
}

type DispatcherConfig struct {
	MaxPasses int `yaml:"max_passes"`
}

type SimulationConfig struct {
	DefaultCycles int   `yaml:"default_cycles"`
	Seed          int64 `yaml:"seed"` // 0 draws a fresh seed per run
}

type InvestorConfig struct {
	ID            string  `yaml:"id"`
	RiskTolerance float64 `yaml:"risk_tolerance"`
	FiatBalance   float64 `yaml:"fiat_balance"`
	CryptoBalance float64 `yaml:"crypto_balance"`
}

// Load reads the configuration at path. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default is the stock configuration: three-investor roster, port 8080,
// SQLite under ./data.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/marketsim.db"},
		Market: MarketConfig{
			ID:           engine.DefaultMarketID,
			InitialPrice: engine.DefaultInitialPrice,
			PriceFloor:   1.0,
			WalkPct:      5.0,
		},
		Dispatcher: DispatcherConfig{MaxPasses: engine.DefaultMaxPasses},
		Simulation: SimulationConfig{DefaultCycles: 50},
	}
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Market.ID == "" {
		return fmt.Errorf("market.id is required")
	}
	if c.Market.InitialPrice <= 0 {
		return fmt.Errorf("market.initial_price must be positive, got %v", c.Market.InitialPrice)
	}
	if c.Market.PriceFloor <= 0 {
		return fmt.Errorf("market.price_floor must be positive, got %v", c.Market.PriceFloor)
	}
	if c.Market.WalkPct <= 0 || c.Market.WalkPct >= 100 {
		return fmt.Errorf("market.walk_pct %v out of range (0, 100)", c.Market.WalkPct)
	}
	if c.Dispatcher.MaxPasses < 0 {
		return fmt.Errorf("dispatcher.max_passes must not be negative, got %d", c.Dispatcher.MaxPasses)
	}
	if c.Simulation.DefaultCycles < 1 {
		return fmt.Errorf("simulation.default_cycles must be at least 1, got %d", c.Simulation.DefaultCycles)
	}
	seen := make(map[string]bool, len(c.Investors))
	for i, inv := range c.Investors {
		if inv.ID == "" {
			return fmt.Errorf("investors[%d].id is required", i)
		}
		if seen[inv.ID] {
			return fmt.Errorf("investors[%d]: duplicate id %q", i, inv.ID)
		}
		seen[inv.ID] = true
		if inv.ID == c.Market.ID {
			return fmt.Errorf("investors[%d]: id %q collides with the market", i, inv.ID)
		}
		if inv.RiskTolerance < 0 || inv.RiskTolerance > 1 {
			return fmt.Errorf("investors[%d].risk_tolerance %v out of range [0, 1]", i, inv.RiskTolerance)
		}
		if inv.FiatBalance < 0 || inv.CryptoBalance < 0 {
			return fmt.Errorf("investors[%d]: balances must not be negative", i)
		}
	}
	return nil
}

// EngineOptions translates the configuration into run options. An
// empty investors list falls through to the engine's stock roster.
func (c Config) EngineOptions() engine.Options {
	opts := engine.Options{
		MarketID:     c.Market.ID,
		InitialPrice: c.Market.InitialPrice,
		PriceFloor:   c.Market.PriceFloor,
		WalkPct:      c.Market.WalkPct,
		MaxPasses:    c.Dispatcher.MaxPasses,
		Seed:         c.Simulation.Seed,
	}
	for _, inv := range c.Investors {
		opts.Investors = append(opts.Investors, engine.InvestorSpec{
			ID:            inv.ID,
			RiskTolerance: inv.RiskTolerance,
			FiatBalance:   inv.FiatBalance,
			CryptoBalance: inv.CryptoBalance,
		})
	}
	return opts
}
