/*
main.go - Application entry point.

PURPOSE:
  Initializes and starts the wallet ledger server. Handles
  configuration, dependency injection, bootstrap seeding, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (config.Load)
  2. Initialize the structured logger
  3. Initialize the SQLite store
  4. Bootstrap asset types and their system wallets
  5. Wire the engine and HTTP handler
  6. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

SEE ALSO:
  - api/server.go: router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: database implementation
  - engine/engine.go: the movement protocol
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/wallet-ledger/api"
	"github.com/warp/wallet-ledger/config"
	"github.com/warp/wallet-ledger/engine"
	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/logging"
	"github.com/warp/wallet-ledger/store/sqlite"
)

// defaultAssetCodes lists the asset types provisioned with their
// three system wallets at startup if they do not already exist.
// Override with SEED_ASSET_CODES (comma-separated) for a deployment
// that needs a different starting catalog.
var defaultAssetCodes = []string{"COINS"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err) // logger does not exist yet
	}

	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.RFC3339,
		Prefix:     cfg.ProjectName,
		Output:     os.Stderr,
	})

	store, err := sqlite.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer store.Close()

	ctx := context.Background()
	codes := assetCodesFromEnv()
	if err := bootstrapAssets(ctx, store, codes); err != nil {
		log.Fatal("failed to bootstrap asset types and system wallets", "error", err)
	}

	eng := engine.New(store, log.Logger)
	handler := api.NewHandler(eng, store, cfg.ProjectName, log)
	router := api.NewRouter(handler, cfg.APIV1Prefix)

	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", cfg.HTTPAddr(), "api_prefix", cfg.APIV1Prefix, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}

func assetCodesFromEnv() []string {
	raw := strings.TrimSpace(os.Getenv("SEED_ASSET_CODES"))
	if raw == "" {
		return defaultAssetCodes
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultAssetCodes
	}
	return out
}

// bootstrapAssets ensures every asset code has a catalog entry and its
// three system wallets (TREASURY, MARKETING, REVENUE), creating
// whatever is missing. Idempotent: safe to run on every startup.
func bootstrapAssets(ctx context.Context, store ledger.Store, codes []string) error {
	systemWallets := []struct {
		owner ledger.OwnerID
		kind  ledger.SystemWalletKind
	}{
		{ledger.OwnerTreasury, ledger.SystemWalletTreasury},
		{ledger.OwnerMarketing, ledger.SystemWalletMarketing},
		{ledger.OwnerRevenue, ledger.SystemWalletRevenue},
	}

	for _, code := range codes {
		asset, err := store.Assets().GetByCode(ctx, code)
		if errors.Is(err, ledger.ErrNotFound) {
			asset, err = store.Assets().Create(ctx, code, code)
		}
		if err != nil {
			return err
		}

		for _, sw := range systemWallets {
			_, err := store.Wallets().GetByOwnerAsset(ctx, sw.owner, asset.ID)
			if errors.Is(err, ledger.ErrNotFound) {
				_, err = store.Wallets().ProvisionSystemWallet(ctx, sw.owner, asset.ID, sw.kind)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
