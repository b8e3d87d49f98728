package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/fulfillment"
	"github.com/roach88/pos/internal/httpapi"
	"github.com/roach88/pos/internal/metrics"
	"github.com/roach88/pos/internal/outbox"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	NoRelay bool

	// Ready, if set, receives the bound address once the listener is up (for testing).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and relay order events",
		Long: `Serve the HTTP API and run the outbox relay until interrupted.

Order events are published to Kafka when kafka.brokers (or POS_KAFKA_BROKERS)
is set; otherwise they are logged.

Examples:
  pos serve --db ./pos.db
  pos serve --config ./pos.yaml --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.NoRelay, "no-relay", false, "do not run the outbox relay")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	slog.SetDefault(e.logger)

	cfg := e.cfg
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	m := metrics.New()
	svc := fulfillment.New(e.store,
		fulfillment.WithLogger(e.logger),
		fulfillment.WithMetrics(m),
		fulfillment.WithTaxRate(cfg.TaxRate()),
		fulfillment.WithReceiptTitle(cfg.Checkout.ReceiptTitle),
		fulfillment.WithTopic(cfg.Kafka.Topic),
		fulfillment.WithTimeout(cfg.Checkout.Timeout),
	)
	api := httpapi.New(svc, clock.System{}, e.logger, m, httpapi.Options{
		APIKeys:     cfg.Auth.APIKeys,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	relayDone := make(chan struct{})
	if opts.NoRelay {
		close(relayDone)
	} else {
		var publisher outbox.Publisher = outbox.LogPublisher{Logger: e.logger}
		if len(cfg.Kafka.Brokers) > 0 {
			publisher = outbox.NewKafkaPublisher(cfg.Kafka.Brokers)
		}
		defer publisher.Close()

		relay := outbox.NewRelay(e.store, publisher, clock.System{}, e.logger, m)
		relay.BatchSize = cfg.Kafka.BatchSize
		relay.PollInterval = cfg.Kafka.PollInterval
		go func() {
			defer close(relayDone)
			_ = relay.Run(ctx)
		}()
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		cancel()
		<-relayDone
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	e.logger.Info("server listening", "address", addr, "driver", cfg.Database.Driver, "relay", !opts.NoRelay)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", addr)
	if opts.Ready != nil {
		opts.Ready <- addr
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		cancel()
		<-relayDone
		return WrapExitError(ExitFailure, "server error", err)
	}

	e.logger.Info("shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server forced to shutdown", err)
	}
	<-relayDone

	e.logger.Info("server stopped gracefully")
	return nil
}
