package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const DefaultPort = "9100"

var ErrNoPrinter = errors.New("printer address not configured")

// Printer accepts a rendered ticket.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

// NetworkPrinter writes raw bytes to a JetDirect-style TCP port.
type NetworkPrinter struct {
	Addr    string
	Timeout time.Duration
}

func NewNetworkPrinter(addr string, timeout time.Duration) *NetworkPrinter {
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, DefaultPort)
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NetworkPrinter{Addr: addr, Timeout: timeout}
}

func (p *NetworkPrinter) Print(ctx context.Context, data []byte) error {
	if p.Addr == "" {
		return ErrNoPrinter
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("dial printer %s: %w", p.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write printer %s: %w", p.Addr, err)
	}
	return nil
}
