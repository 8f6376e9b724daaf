package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/autolot/dealer-admin/internal/config"
	"github.com/autolot/dealer-admin/internal/importsim"
	"github.com/autolot/dealer-admin/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the import simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		if address != "" {
			cfg.Sim.Address = address
		}

		logger := log.InitLog(log.ParseLevel(cfg.Sim.LogLevel))
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting import simulator")
		defer zap.S().Info("Import simulator stopped")

		listener, err := newListener(cfg.Sim.Address)
		if err != nil {
			return fmt.Errorf("creating listener: %w", err)
		}

		server, err := importsim.New(cfg.Sim, listener, logger, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		return server.Run(ctx)
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
