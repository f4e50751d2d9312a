package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gatepass/internal/gateclient"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

func newIssueCommand() *cobra.Command {
	var (
		server        string
		expiryMinutes int
		maxScans      int
		metadata      map[string]string
		printTicket   bool
		qrOut         string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token through the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := types.IssueRequest{Metadata: metadata, Print: printTicket}
			if cmd.Flags().Changed("expiry-minutes") {
				req.ExpiryMinutes = &expiryMinutes
			}
			if cmd.Flags().Changed("max-scans") {
				req.MaxScans = &maxScans
			}

			resp, err := gateclient.New(server, "", 10*time.Second).Issue(cmd.Context(), req)
			if err != nil {
				return err
			}
			if qrOut != "" {
				if err := writeQR(qrOut, resp.QRPNG); err != nil {
					return err
				}
			}
			resp.QRPNG = ""
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "GatePass server base URL")
	cmd.Flags().IntVar(&expiryMinutes, "expiry-minutes", 0, "Minutes until expiry, 0 for never (server default when unset)")
	cmd.Flags().IntVar(&maxScans, "max-scans", 0, "Scan budget (server default when unset)")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "Metadata key=value pairs, e.g. --meta employee_id=E-1001")
	cmd.Flags().BoolVar(&printTicket, "print", false, "Queue a printed ticket")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "Write the QR preview PNG to this path")
	return cmd
}

func writeQR(path, encoded string) error {
	if encoded == "" {
		return fmt.Errorf("server returned no QR preview (http.qr_preview_size is 0)")
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode QR preview: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newGatesCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "gates",
		Short: "List the gates the server has seen scanning",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := gateclient.New(server, "", 10*time.Second).Gates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "GatePass server base URL")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "status TOKEN_ID",
		Short: "Show a token's stored state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := gateclient.New(server, "", 10*time.Second).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "GatePass server base URL")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
