package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gatepass/internal/gateclient"
)

func newScanCommand() *cobra.Command {
	var (
		server  string
		gateID  string
		hold    time.Duration
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read scanned payloads from stdin and verify them",
		Long: `Reads one payload per line, as a keyboard-wedge QR reader types them,
and prints ALLOW or DENY for each.  Bare token ids are prefixed with the
configured issuer.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup("stderr")
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := gateclient.New(server, gateID, timeout)
			scanner := gateclient.NewScanner(client, cfg.Gate.Issuer, hold, cmd.OutOrStdout(), logger)

			logger.Info("gate ready", "server", server, "gate_id", gateID)
			err = scanner.Run(ctx, os.Stdin)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "GatePass server base URL")
	cmd.Flags().StringVar(&gateID, "gate-id", "", "Gate identifier recorded with every scan")
	cmd.Flags().DurationVar(&hold, "hold", gateclient.DefaultHold, "Ignore a repeated payload for this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Per-request timeout")
	return cmd
}
