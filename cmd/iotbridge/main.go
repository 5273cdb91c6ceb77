// iotbridge relays line-oriented device connections to the IoT platform.
//
// Each TCP connection identifies itself with a node id, gets its own
// platform MQTT session, and exchanges frames with the platform until it
// disconnects. An optional admin server exposes health, metrics, session
// management and a live event feed.
//
// Usage:
//
//	iotbridge                      run the bridge (config from IOTBRIDGE_CONFIG)
//	iotbridge hash-password [pw]   print an Argon2id hash for admin.operators
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/iot-bridge/internal/api"
	"github.com/nerrad567/iot-bridge/internal/audit"
	"github.com/nerrad567/iot-bridge/internal/auth"
	"github.com/nerrad567/iot-bridge/internal/bridge"
	"github.com/nerrad567/iot-bridge/internal/deviceclient"
	"github.com/nerrad567/iot-bridge/internal/devicerule"
	"github.com/nerrad567/iot-bridge/internal/identity"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/config"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/database"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/iot-bridge/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is cancelled. Deferred
// cleanup runs in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting iotbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	identities, err := loadIdentities(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := api.NewHub(log)
	regOpts := []bridge.Option{
		bridge.WithMetrics(bridge.NewMetrics(promReg)),
		bridge.WithObserver(hub),
		bridge.WithLogger(log),
		bridge.WithAckPolicy(ackPolicy(cfg.Bridge)),
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		regOpts = append(regOpts, bridge.WithObserver(bridge.TelemetryObserver(influxClient)))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	sessions := bridge.NewRegistry(identities, bridge.DeviceClientFactory(clientOptions(cfg.Platform, log)), regOpts...)
	defer func() {
		log.Info("closing device sessions", "sessions", sessions.Len())
		sessions.Close()
	}()

	tcp := bridge.NewTCPServer(sessions, bridge.TCPConfig{
		Listen:        cfg.Bridge.Listen,
		MaxFrameBytes: cfg.Bridge.MaxFrameBytes,
		WriteTimeout:  cfg.Bridge.WriteTimeout,
	}, log)
	if err := tcp.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge listener: %w", err)
	}
	defer func() {
		if closeErr := tcp.Close(); closeErr != nil {
			log.Error("error closing bridge listener", "error", closeErr)
		}
	}()
	log.Info("bridge listening", "address", tcp.Addr().String(), "auto_ack", cfg.Bridge.AutoAckCommands)

	jobs, err := devicerule.FromConfig(cfg.Rules)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	scheduler := devicerule.NewScheduler(sessions, jobs, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	log.Info("rule scheduler started", "rules", len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Admin.Enabled {
		admin, err := newAdminServer(cfg, log, sessions, identities, db, promReg, hub)
		if err != nil {
			return err
		}
		if err := admin.Start(gctx); err != nil {
			return fmt.Errorf("starting admin server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return admin.Close()
		})
	} else {
		log.Info("admin server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil {
		log.Error("error during shutdown", "error", err)
	}

	log.Info("iotbridge stopped")
	return nil
}

// loadIdentities builds the identity registry, imports the seed file when
// one is configured, and warms the cache.
func loadIdentities(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*identity.Registry, error) {
	identities := identity.NewRegistry(identity.NewSQLiteRepository(db.DB))
	identities.SetLogger(log)

	if cfg.Identities.SeedFile != "" {
		seed, err := identity.LoadSeedFile(cfg.Identities.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("loading identity seed: %w", err)
		}
		n, err := identities.Import(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("importing identity seed: %w", err)
		}
		log.Info("identity seed imported", "path", cfg.Identities.SeedFile, "identities", n)
	}

	if err := identities.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading identity registry: %w", err)
	}
	log.Info("identity registry initialised", "identities", identities.Count())
	return identities, nil
}

func ackPolicy(cfg config.BridgeConfig) bridge.AckPolicy {
	if cfg.AutoAckCommands {
		return bridge.AutoAck{}
	}
	return bridge.ManualAck{}
}

func clientOptions(cfg config.PlatformConfig, log *logging.Logger) deviceclient.Options {
	return deviceclient.Options{
		ServerURI:        cfg.ServerURI,
		TrustAnchor:      cfg.CAFile,
		BridgeID:         cfg.BridgeID,
		QoS:              byte(cfg.QoS), // #nosec G115 -- validated to 0 or 1
		RequestTimeout:   cfg.RequestTimeout,
		ConnectTimeout:   cfg.ConnectTimeout,
		ReconnectInitial: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		ReconnectMax:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		Logger:           log,
	}
}

func newAdminServer(
	cfg *config.Config,
	log *logging.Logger,
	sessions *bridge.Registry,
	identities *identity.Registry,
	db *database.DB,
	gatherer prometheus.Gatherer,
	hub *api.Hub,
) (*api.Server, error) {
	deps := api.Deps{
		Config:     cfg.Admin,
		Logger:     log,
		Sessions:   sessions,
		Identities: identities,
		Database:   db,
		Gatherer:   gatherer,
		Hub:        hub,
		Audit:      audit.NewSQLiteRepository(db.DB),
		Version:    version,
	}

	if len(cfg.Admin.Operators) > 0 {
		ops := make([]auth.Operator, 0, len(cfg.Admin.Operators))
		for _, op := range cfg.Admin.Operators {
			ops = append(ops, auth.Operator{
				Username:     op.Username,
				PasswordHash: op.PasswordHash,
				Role:         auth.Role(op.Role),
			})
		}
		authn, err := auth.NewAuthenticator(ops)
		if err != nil {
			return nil, fmt.Errorf("loading operators: %w", err)
		}
		deps.Auth = authn
		deps.Tokens = auth.NewTokenIssuer(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	} else {
		log.Warn("no admin operators configured, session and identity endpoints are locked")
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating admin server: %w", err)
	}
	return srv, nil
}

// hashPassword prints the Argon2id hash of the password given as the only
// argument, or of the first line of stdin when no argument is given.
func hashPassword(args []string, stdin io.Reader, stdout io.Writer) error {
	var password string
	switch len(args) {
	case 0:
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	case 1:
		password = args[0]
	default:
		return errors.New("usage: iotbridge hash-password [password]")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

// getConfigPath returns IOTBRIDGE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("IOTBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
