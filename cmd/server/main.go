package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/m365ops/watchtower/internal/bus"
	"github.com/m365ops/watchtower/internal/config"
	"github.com/m365ops/watchtower/internal/model"
	"github.com/m365ops/watchtower/internal/monitor"
	"github.com/m365ops/watchtower/internal/notify"
	"github.com/m365ops/watchtower/internal/queue"
	"github.com/m365ops/watchtower/internal/report"
	"github.com/m365ops/watchtower/internal/scheduler"
	"github.com/m365ops/watchtower/internal/storage"
)

const (
	exitOK         = 0
	exitRunFailure = 1
	exitBadConfig  = 2
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	validate := flag.Bool("validate", false, "validate the configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadConfig)
	}

	if *validate {
		fmt.Println("configuration OK")
		os.Exit(exitOK)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(exitRunFailure)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting monitoring engine", zap.String("name", cfg.App.Name))

	// Severity routing and notification sinks
	policy, err := notify.NewPolicy(cfg.Slack.Channels, cfg.Slack.MentionRoles)
	if err != nil {
		return fmt.Errorf("failed to build severity policy: %w", err)
	}

	sinks := []notify.Sink{
		notify.NewSlackSink(cfg.Slack.WebhookURL, 10*time.Second, logger),
	}
	if cfg.Email.Enabled {
		sinks = append(sinks, notify.NewEmailSink(notify.EmailSettings{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			From:       cfg.Email.From,
			Recipients: cfg.Email.Recipients,
		}, logger))
	}
	dispatcher := notify.NewDispatcher(policy, logger, sinks...)

	// Deduplication queue
	alertQueue := queue.NewDedupQueue(cfg.SuppressionPeriod(), logger)

	// Optional NATS mirror of accepted alerts
	if cfg.Bus.Enabled {
		nc, err := nats.Connect(cfg.Bus.URL,
			nats.Name(cfg.App.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				logger.Warn("NATS disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("failed to create JetStream context: %w", err)
		}

		mirror := bus.NewMirror(js, logger)
		if err := mirror.Start(); err != nil {
			return fmt.Errorf("failed to start alert mirror: %w", err)
		}
		alertQueue.SetListener(mirror)
	}

	// Optional alert history journal
	var history *storage.SQLiteAlertHistory
	if cfg.Alerting.HistoryPath != "" {
		history, err = storage.NewSQLiteAlertHistory(logger, cfg.Alerting.HistoryPath)
		if err != nil {
			return fmt.Errorf("failed to open alert history: %w", err)
		}
		defer history.Close()
	}

	// Check scheduler and monitors
	opts := scheduler.Options{
		CheckTimeout:     cfg.CheckTimeout(),
		TickInterval:     cfg.TickInterval(),
		MaxAlertsPerHour: cfg.Alerting.MaxAlertsPerHour,
	}
	if history != nil {
		opts.History = history
	}
	sched := scheduler.New(alertQueue, dispatcher, opts, logger)

	if cfg.Monitoring.System.Enabled {
		systemMonitor := monitor.NewSystemMonitor(
			cfg.Monitoring.System.CPUThreshold,
			cfg.Monitoring.System.MemoryThreshold,
			logger)
		if err := sched.Register(systemMonitor, cfg.Interval("system")); err != nil {
			return fmt.Errorf("failed to register system monitor: %w", err)
		}
	}
	for service, url := range cfg.Monitoring.Endpoints {
		endpointMonitor := monitor.NewEndpointMonitor(service, url, logger)
		if err := sched.Register(endpointMonitor, cfg.Interval(service)); err != nil {
			return fmt.Errorf("failed to register endpoint monitor: %w", err)
		}
	}

	// Optional daily summary report
	if cfg.Reports.DailySummary != "" && history != nil {
		route, _ := policy.Resolve(model.SeverityLow)
		reporter := report.NewReporter(cfg.Reports.DailySummary, history, sinks[0], route.Channel, logger)
		if err := reporter.Start(); err != nil {
			return fmt.Errorf("failed to start reporter: %w", err)
		}
		defer reporter.Stop()
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("scheduler failed: %w", err)
	}

	logger.Info("Server shut down gracefully")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}
