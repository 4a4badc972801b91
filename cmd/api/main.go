package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cost-control-api/internal"
	"cost-control-api/internal/config"
	"cost-control-api/internal/db"
	"cost-control-api/internal/handlers"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/secrets"
	"cost-control-api/pkg/importer"

	"github.com/urfave/cli/v2"
)

var version = "dev"

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "optional YAML config file; environment variables take precedence",
		EnvVars: []string{"CONFIG_FILE"},
	},
	&cli.StringFlag{
		Name:  "listen-addr",
		Usage: "address to listen on for API (overrides LISTEN_ADDR)",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: "cost-control-api",
		Usage: "add 'service' tag to logs",
	},
}

func main() {
	app := &cli.App{
		Name:   "cost-control-api",
		Usage:  "Serve the construction cost control API",
		Flags:  flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := config.LoadAndValidate(cCtx.String("config"))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if addr := cCtx.String("listen-addr"); addr != "" {
		cfg.ListenAddr = addr
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	if cCtx.Bool("log-debug") {
		level = slog.LevelDebug
	}
	logger := logging.Setup(logging.Options{
		JSON:    cfg.LogJSON || cCtx.Bool("log-json"),
		Level:   level,
		Service: cCtx.String("log-service"),
		Version: version,
	})
	slog.SetDefault(logger)

	src := db.Source{
		DSN:          cfg.DatabaseDSN,
		SecretRef:    cfg.DatabaseSecret,
		HostOverride: cfg.RDSProxyEndpoint,
		SSLMode:      cfg.DatabaseSSLMode,
	}
	if src.DSN == "" {
		provider, err := secretProvider(cfg)
		if err != nil {
			return err
		}
		src.Secrets = secrets.NewCache(provider)
	}

	// Nothing is dialed until the first request needs the database.
	client := db.NewClient(db.Opener(src), logger)
	if src.Secrets != nil {
		client.OnAuthFailure = src.Secrets.Clear
	}
	defer client.Close()

	pool := db.NewPool(src)
	defer pool.Close()

	imports := handlers.NewImportsHandler(func(ctx context.Context) (importer.DB, error) {
		return pool.Get(ctx)
	}, cfg.ImportMappingPath)

	server, err := internal.NewServer(cfg, internal.Deps{
		Store:   client,
		Ping:    client.Ping,
		Imports: imports,
		Log:     logger,
	})
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting cost control API",
		"environment", cfg.Environment,
		"jwtIssuer", cfg.JWTIssuer,
		"jwtAudience", cfg.JWTAudience,
		"metrics", cfg.EnableMetrics)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainDuration+30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server shut down")
	return nil
}

// secretProvider builds the provider for the configured secret reference.
// The Vault client is only created when a Vault address is configured.
func secretProvider(cfg *config.Config) (secrets.Provider, error) {
	var router secrets.Router

	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("AWS secrets provider: %w", err)
	}
	router.AWS = awsProvider

	if cfg.VaultAddr != "" {
		vaultProvider, err := secrets.NewVaultProvider(cfg.VaultAddr, cfg.VaultToken)
		if err != nil {
			return nil, fmt.Errorf("vault secrets provider: %w", err)
		}
		router.Vault = vaultProvider
	}
	return router, nil
}
