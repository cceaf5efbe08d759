// Package serve runs the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geoclock/timekeeper/internal/api"
	"github.com/geoclock/timekeeper/internal/api/auth"
	v2 "github.com/geoclock/timekeeper/internal/api/v2"
	"github.com/geoclock/timekeeper/internal/audit"
	"github.com/geoclock/timekeeper/internal/buildinfo"
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/mqtt"
	"github.com/geoclock/timekeeper/internal/observability"
	"github.com/geoclock/timekeeper/internal/punch"
	"github.com/geoclock/timekeeper/internal/telemetry"
	"github.com/geoclock/timekeeper/internal/workday"
)

// auditDrainTimeout bounds how long shutdown waits for queued audit events.
const auditDrainTimeout = 5 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Start the HTTP API. Stops gracefully on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", viper.GetString("webserver.listen"), "Listen address and port of the HTTP API")
	cmd.Flags().Bool("metrics", viper.GetBool("metrics.enabled"), "Expose Prometheus metrics on /metrics")

	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("metrics.enabled", cmd.Flags().Lookup("metrics")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run serves until ctx is done or the server fails.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("serve")

	if settings.Security.JWTSecret == "" {
		return errors.Newf("security.jwtsecret is required to serve; run 'timekeeper config init' to generate one").
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if _, err := telemetry.InitSentry(&settings.Telemetry.Sentry, telemetry.Options{
		Release: info.Release(),
		Logger:  logger.Global().Module("telemetry"),
	}); err != nil {
		// Telemetry is optional; the API still serves without it.
		log.Warn("error telemetry disabled", logger.Error(err))
	}
	defer telemetry.Flush(telemetry.DefaultFlushTimeout)

	mgr, err := datastore.Open(datastore.OptionsFromSettings(settings, logger.Global().Module("datastore")))
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn("failed to close database", logger.Error(err))
		}
	}()
	repos := repository.New(mgr.DB())

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	zones, err := localday.NewResolver(settings.Policy.DefaultTimezone)
	if err != nil {
		return err
	}

	sink, closeAudit, err := newAuditSink(ctx, settings, repos, m, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	agg := workday.New(repos, workday.Options{
		DailyMinimumMinutes: settings.Policy.DailyMinimumMinutes,
		Workers:             settings.Reconcile.Workers,
		Logger:              logger.Global().Module("workday"),
		Metrics:             m.Reconcile,
	})

	tokens, err := auth.NewTokenService(settings.Security.JWTSecret, settings.Main.Name)
	if err != nil {
		return err
	}

	srv, err := api.New(settings, v2.Deps{
		Repos: repos,
		Ledger: ledger.New(repos, agg, ledger.Options{
			Logger:  logger.Global().Module("ledger"),
			Metrics: m.Ledger,
			Audit:   sink,
		}),
		Punch: punch.NewService(repos, agg, punch.Options{
			Logger: logger.Global().Module("punch"),
			Audit:  sink,
		}),
		Aggregator: agg,
		Zones:      zones,
		Tokens:     tokens,
	},
		api.WithLogger(logger.Global().Module("api")),
		api.WithMetrics(m),
		api.WithVersion(info.GetVersion()))
	if err != nil {
		return err
	}

	log.Info("starting timekeeper",
		logger.String("version", info.GetVersion()),
		logger.String("database", mgr.Path()),
		logger.String("default_timezone", zones.Default().String()))

	return srv.Run(ctx)
}

// newAuditSink builds the asynchronous audit pipeline: the log backend
// always, the audit_logs table and MQTT when configured. The returned
// function drains the queue and disconnects MQTT.
func newAuditSink(ctx context.Context, settings *conf.Settings, repos *repository.Repositories, m *observability.Metrics, log logger.Logger) (audit.Sink, func(), error) {
	backends := audit.MultiSink{audit.NewLogSink(logger.Global().Module("audit"))}
	if settings.Audit.Store {
		backends = append(backends, audit.NewStoreSink(repos.Audit))
	}

	var client mqtt.Client
	if settings.Audit.MQTT.Enabled {
		cfg := mqtt.DefaultConfig()
		cfg.Broker = settings.Audit.MQTT.Broker
		cfg.ClientID = settings.Main.Name
		cfg.Username = settings.Audit.MQTT.Username
		cfg.Password = settings.Audit.MQTT.Password

		var err error
		client, err = mqtt.NewClient(cfg, logger.Global().Module("mqtt"))
		if err != nil {
			return nil, nil, err
		}
		// A failed first attempt keeps retrying in the background; until
		// it connects, MQTT deliveries fail and are counted.
		if err := client.Connect(ctx); err != nil {
			log.Warn("MQTT broker unavailable at startup",
				logger.String("broker", cfg.Broker),
				logger.Error(err))
		}
		backends = append(backends, audit.NewMQTTSink(client, settings.Audit.MQTT.Topic))
	}

	sink := audit.NewAsyncSink(backends, audit.AsyncOptions{
		BufferSize: settings.Audit.BufferSize,
		Workers:    settings.Audit.Workers,
		Logger:     logger.Global().Module("audit"),
		Metrics:    m.Audit,
	})

	closeFn := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
		defer cancel()
		if err := sink.Close(drainCtx); err != nil {
			log.Warn("audit queue not drained", logger.Error(err))
		}
		if client != nil {
			client.Disconnect()
		}
	}
	return sink, closeFn, nil
}
