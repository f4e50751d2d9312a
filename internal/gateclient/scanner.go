package gateclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

const DefaultHold = 10 * time.Second

// NormalizePayload trims raw scanner input and prefixes a bare token id with
// issuer.  Input already containing a separator is passed through.
func NormalizePayload(raw, issuer string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "|") {
		return raw
	}
	return issuer + "|" + raw
}

type verifier interface {
	Verify(ctx context.Context, payload string) (types.VerifyResponse, error)
}

// Scanner reads one payload per line, as keyboard-wedge QR readers emit
// them, and writes one result line per verification.  A payload repeated
// inside the hold window is ignored so a code left in front of the reader
// is not scanned twice.
type Scanner struct {
	client verifier
	issuer string
	hold   time.Duration
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time

	last      string
	lockUntil time.Time
}

func NewScanner(client verifier, issuer string, hold time.Duration, out io.Writer, logger *slog.Logger) *Scanner {
	if hold < 0 {
		hold = 0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		client: client,
		issuer: issuer,
		hold:   hold,
		out:    out,
		logger: logger,
		now:    time.Now,
	}
}

// Run processes lines from r until EOF or ctx is done.
func (s *Scanner) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Handle(ctx, sc.Text())
	}
	return sc.Err()
}

// Handle verifies one raw scan.  It reports whether a request was sent.
func (s *Scanner) Handle(ctx context.Context, raw string) bool {
	payload := NormalizePayload(raw, s.issuer)
	if payload == "" {
		return false
	}

	now := s.now()
	if payload == s.last && now.Before(s.lockUntil) {
		return false
	}

	resp, err := s.client.Verify(ctx, payload)
	if err != nil {
		s.logger.Warn("verify failed", "error", err)
		fmt.Fprintf(s.out, "ERROR %v\n", err)
		return true
	}

	s.last = payload
	s.lockUntil = now.Add(s.hold)
	fmt.Fprintln(s.out, FormatResult(resp))
	return true
}

func FormatResult(resp types.VerifyResponse) string {
	if resp.OK {
		line := fmt.Sprintf("ALLOW scan=%d/%d status=%s", resp.ScanCount, resp.MaxScans, resp.Status)
		if resp.Hint != "" {
			line += " hint=" + resp.Hint
		}
		return line
	}
	return "DENY reason=" + resp.Reason
}
