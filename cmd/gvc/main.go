// Command gvc runs the GVA vehicle safety controller for one unit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gva-control/gvc/internal/api"
	"github.com/gva-control/gvc/internal/audit"
	"github.com/gva-control/gvc/internal/auth"
	"github.com/gva-control/gvc/internal/clock"
	"github.com/gva-control/gvc/internal/config"
	"github.com/gva-control/gvc/internal/events"
	"github.com/gva-control/gvc/internal/hal"
	"github.com/gva-control/gvc/internal/metrics"
	"github.com/gva-control/gvc/internal/notify"
	"github.com/gva-control/gvc/internal/sequence"
	"github.com/gva-control/gvc/internal/state"
)

const version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:   "gvc",
		Short: "GVA vehicle safety controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the safety controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the controller version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	logger.Info("starting GVA safety controller", "version", version)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded", "unit", cfg.UnitID, "sector", cfg.Sector)

	clk := clock.NewReal()
	instruments := metrics.New()

	hub := events.NewHub(cfg.EventBufferSize, cfg.HeartbeatInterval)

	auditLogger, err := audit.NewLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("initialize audit logger: %w", err)
	}
	logger.Info("audit logger initialized", "path", auditLogger.FilePath())

	relay := hal.NewSimRelay(cfg.UnitID,
		hal.WithClock(clk),
		hal.WithActuationDelay(cfg.RelayActuationDelay),
		hal.WithLogger(logger))

	identity := notify.Identity{UnitID: cfg.UnitID, Sector: cfg.Sector}
	var channel notify.Channel
	var closeChannel func()
	if cfg.BrokerURL != "" {
		mqttChannel, err := notify.NewMQTTChannel(cfg.BrokerURL, cfg.BrokerUsername, cfg.BrokerPassword, identity,
			notify.WithMQTTClock(clk),
			notify.WithMQTTLogger(logger))
		if err != nil {
			return fmt.Errorf("connect notification channel: %w", err)
		}
		channel = mqttChannel
		closeChannel = mqttChannel.Close
		logger.Info("MQTT channel connected", "broker", cfg.BrokerURL)
	} else {
		channel = notify.NewSimChannel(identity,
			notify.WithClock(clk),
			notify.WithConnectDelay(cfg.PublishConnectDelay),
			notify.WithLogger(logger))
		closeChannel = func() {}
		logger.Warn("no broker configured, using simulated notification channel")
	}

	machine := state.NewMachine(
		state.WithClock(clk),
		state.WithSettleDelay(cfg.StateSettleDelay),
		state.WithLogger(logger),
		state.WithObserver(func(previous, next state.State) {
			hub.Emit("stateChanged", map[string]any{
				"unit":     cfg.UnitID,
				"previous": previous,
				"state":    next,
			})
		}))

	sequencer := sequence.NewSequencer(cfg.UnitID, machine, relay, channel,
		sequence.WithTopics(cfg.EmergencyTopic(), cfg.RestoreTopic()),
		sequence.WithClock(clk),
		sequence.WithAuditLogger(auditLogger),
		sequence.WithEventPublisher(hub),
		sequence.WithMetrics(instruments),
		sequence.WithLogger(logger))

	var verifier *auth.Verifier
	if cfg.AuthSecret != "" {
		verifier = auth.NewVerifier(cfg.AuthSecret)
	} else {
		logger.Warn("no auth secret configured, operator endpoints are open")
	}

	server := api.NewServer(sequencer, machine,
		api.WithRelayReader(relay),
		api.WithEventHub(hub),
		api.WithAuth(auth.NewMiddleware(verifier)),
		api.WithMetricsHandler(instruments.Handler()))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	closeChannel()
	if err := auditLogger.Close(); err != nil {
		logger.Error("closing audit logger", "error", err)
	}
	if err := server.Stop(ctx); err != nil {
		logger.Error("stopping http server", "error", err)
	}

	logger.Info("safety controller shutdown complete")
	return nil
}
