package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/BrandonDHaskell/gatepass/internal/printer"
)

// TicketHandler prints ticket:print tasks.
type TicketHandler struct {
	printer  printer.Printer
	location *time.Location
	footer   string
	qrMode   printer.QRMode
	logger   *slog.Logger
}

func NewTicketHandler(p printer.Printer, loc *time.Location, footer string, logger *slog.Logger) *TicketHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TicketHandler{printer: p, location: loc, footer: footer, qrMode: printer.QRNative, logger: logger}
}

// SetQRMode switches how the ticket QR is drawn.
func (h *TicketHandler) SetQRMode(m printer.QRMode) { h.qrMode = m }

func (h *TicketHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p TicketPrintPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.Payload == "" {
		return fmt.Errorf("%s for %q has no payload: %w", t.Type(), p.TokenID, asynq.SkipRetry)
	}

	ticket := printer.NewTicket(p.Payload, p.Metadata, p.ExpiresAt, p.MaxScans, h.location)
	ticket.Footer = h.footer
	job, err := printer.Render(ticket, h.qrMode)
	if err != nil {
		// Rendering is deterministic; a retry would fail the same way.
		return fmt.Errorf("render %q: %v: %w", p.TokenID, err, asynq.SkipRetry)
	}
	if err := h.printer.Print(ctx, job); err != nil {
		return err
	}

	h.logger.Info("ticket printed", "token_id", p.TokenID)
	return nil
}

func NewServeMux(h *TicketHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeTicketPrint, h)
	return mux
}

// NewServer builds the print worker.  Only the print queue is consumed.
func NewServer(opt asynq.RedisClientOpt, concurrency int, logger *slog.Logger) *asynq.Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Queues: map[string]int{
			QueuePrint: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("print task failed", "task_type", task.Type(), "error", err)
		}),
	})
}
