package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theapemachine/qcomposer"
)

var (
	addr     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "qcomposer",
	Short: "Shared qubit composer with live broadcast",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the composer API and broadcast socket",
	RunE:  runServe,
}

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "List the gates the composer accepts",
	Run: func(cmd *cobra.Command, args []string) {
		for _, symbol := range qcomposer.NewRegistry().Symbols() {
			fmt.Fprintln(cmd.OutOrStdout(), symbol)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides QCOMPOSER_ADDR")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides QCOMPOSER_LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, gatesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := qcomposer.LoadConfig()
	if err != nil {
		return err
	}

	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := qcomposer.NewLogger(cfg)
	log.Info().
		Bool("broadcast_measurements", cfg.BroadcastMeasurements).
		Int("rate_limit_burst", cfg.RateLimitBurst).
		Msg("starting composer")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return qcomposer.New(cfg, log).Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
