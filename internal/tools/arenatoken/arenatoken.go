// Package arenatoken issues bearer tokens and signing secrets for local arena
// use.
package arenatoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/louisbranch/monarena/internal/platform/cmd"
	httpapi "github.com/louisbranch/monarena/internal/services/arena/api/http"
)

// Config holds token tool configuration.
type Config struct {
	Secret  string `env:"JWT_SECRET"`
	Issuer  string `env:"JWT_ISSUER" envDefault:"monarena"`
	Subject string
	Role    string
	TTL     time.Duration
	// NewSecret prints a fresh signing secret instead of a token.
	NewSecret bool
	Bytes     int
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{TTL: 24 * time.Hour, Bytes: 32}
	if err := entrypoint.Load(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Subject, "sub", cfg.Subject, "player id the token identifies")
	fs.StringVar(&cfg.Role, "role", cfg.Role, "role claim; \"authority\" grants the trusted routes")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer")
	fs.BoolVar(&cfg.NewSecret, "new-secret", cfg.NewSecret, "print a new signing secret and exit")
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "secret size in random bytes")
}

// Run writes either a new secret or a signed token to out.
func Run(cfg Config, out io.Writer, reader io.Reader, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if cfg.NewSecret {
		return writeSecret(cfg.Bytes, out, reader)
	}
	if cfg.Subject == "" {
		return errors.New("sub is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	v, err := httpapi.NewVerifier(httpapi.VerifierConfig{Secret: []byte(cfg.Secret), Issuer: cfg.Issuer, Now: now})
	if err != nil {
		return err
	}
	token, err := v.Sign(cfg.Subject, cfg.Role, cfg.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func writeSecret(n int, out io.Writer, reader io.Reader) error {
	if n <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "export MONARENA_JWT_SECRET=%s\n", hex.EncodeToString(buf))
	return err
}
