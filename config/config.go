/*
Package config loads process configuration from environment variables.

PURPOSE:
  All values MUST come from environment variables. No business logic
  should depend on raw env vars - everything goes through Config.

LOAD ORDER:
  Load() optionally loads a .env file first (whenever APP_ENV is not
  "production", mirroring how a developer laptop differs from a real
  deployment target where env vars are injected directly), then reads
  every variable, aggregates every parse error it finds instead of
  stopping at the first one, applies defaults, and finally runs
  Validate().
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the wallet-ledger process needs to run.
type Config struct {
	Env             string // development, production
	HTTPPort        int
	DatabaseURL     string
	TestDatabaseURL string
	SecretKey       string
	APIV1Prefix     string
	ProjectName     string
}

// Load reads Config from the environment, loading a .env file first in
// development if one is present.
func Load() (Config, error) {
	loadDotEnvIfDev()

	var parseErrs []error
	c := Config{}

	c.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if c.Env == "" {
		c.Env = "development"
	}

	port, err := intOrDefault("HTTP_PORT", 8080)
	if err != nil {
		parseErrs = append(parseErrs, err)
	}
	c.HTTPPort = port

	c.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	c.TestDatabaseURL = strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	c.SecretKey = os.Getenv("SECRET_KEY")

	c.APIV1Prefix = strings.TrimSpace(os.Getenv("API_V1_PREFIX"))
	if c.APIV1Prefix == "" {
		c.APIV1Prefix = "/api/v1"
	}

	c.ProjectName = strings.TrimSpace(os.Getenv("PROJECT_NAME"))
	if c.ProjectName == "" {
		c.ProjectName = "wallet-ledger"
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks invariants Load's defaulting cannot fix on its own.
func (c Config) Validate() error {
	var errs []error

	if !isValidEnv(c.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be development or production, got %q", c.Env))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, errors.New("HTTP_PORT must be a valid port number"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.IsProduction() && c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// loadDotEnvIfDev mirrors the pattern of gating .env loading on a
// non-production signal: a real deployment target injects env vars
// directly and should never pick up a stray .env file.
func loadDotEnvIfDev() {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "production" {
		return
	}
	_ = godotenv.Load() // absence of a .env file is not an error
}

func intOrDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func isValidEnv(v string) bool {
	switch v {
	case "development", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(b.String())
}
