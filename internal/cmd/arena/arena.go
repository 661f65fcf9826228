// Package arena parses arena service flags and launches the service.
package arena

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/monarena/internal/platform/cmd"
	"github.com/louisbranch/monarena/internal/services/arena/server"
)

// Config holds arena command configuration.
type Config struct {
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8095"`
	GRPCAddr      string        `env:"GRPC_ADDR" envDefault:":8096"`
	DBPath        string        `env:"DB_PATH" envDefault:"data/arena.db"`
	CatalogPath   string        `env:"CATALOG_PATH"`
	TurnTimeout   time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1s"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"monarena"`
	Authority     string        `env:"AUTHORITY"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The arena HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The arena gRPC listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The arena SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Catalog YAML path (embedded sample when empty)")
	fs.DurationVar(&cfg.TurnTimeout, "turn-timeout", cfg.TurnTimeout, "Turn duration before a party forfeits; 0 disables timeouts")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often live battles are checked for timeouts")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", cfg.JWTIssuer, "Expected bearer token issuer")
	fs.StringVar(&cfg.Authority, "authority", cfg.Authority, "Player id of the trusted submission authority")
}

// Run starts the arena service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:      cfg.HTTPAddr,
			GRPCAddr:      cfg.GRPCAddr,
			DBPath:        cfg.DBPath,
			CatalogPath:   cfg.CatalogPath,
			TurnTimeout:   cfg.TurnTimeout,
			SweepInterval: cfg.SweepInterval,
			JWTSecret:     cfg.JWTSecret,
			JWTIssuer:     cfg.JWTIssuer,
			Authority:     cfg.Authority,
		})
	})
}
