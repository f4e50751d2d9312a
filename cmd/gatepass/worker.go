package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gatepass/internal/jobs"
	"github.com/BrandonDHaskell/gatepass/internal/printer"
)

var errNoRedis = errors.New("redis.addr is required for the print worker")

func newWorkerCommand() *cobra.Command {
	var footer string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the ticket print worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup("")
			if err != nil {
				return err
			}
			defer closeLog()

			if cfg.Redis.Addr == "" {
				return errNoRedis
			}
			if cfg.Printer.Addr == "" {
				return printer.ErrNoPrinter
			}

			p := printer.NewNetworkPrinter(cfg.Printer.Addr, cfg.Printer.Timeout)
			handler := jobs.NewTicketHandler(p, cfg.Gate.Location(), footer, logger)
			handler.SetQRMode(printer.ParseQRMode(cfg.Printer.QRMode))

			srv := jobs.NewServer(asynqOptions(cfg.Redis), cfg.Worker.Concurrency, logger)
			logger.Info("print worker starting",
				"redis", cfg.Redis.Addr,
				"printer", cfg.Printer.Addr,
				"qr_mode", cfg.Printer.QRMode,
				"concurrency", cfg.Worker.Concurrency)

			// Run blocks until SIGINT or SIGTERM and shuts down gracefully.
			return srv.Run(jobs.NewServeMux(handler))
		},
	}
	cmd.Flags().StringVar(&footer, "footer", "Present this code at the gate", "Footer line printed under the ticket")
	return cmd
}
