package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/BrandonDHaskell/gatepass/internal/events"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PrintEnqueuer is an events.Sink that turns issued-with-print events into
// ticket:print tasks.  Other events are ignored.
type PrintEnqueuer struct {
	client taskClient
}

func NewPrintEnqueuer(client taskClient) *PrintEnqueuer {
	return &PrintEnqueuer{client: client}
}

func (e *PrintEnqueuer) Name() string { return "print-jobs" }

func (e *PrintEnqueuer) Handle(ctx context.Context, ev events.Event) error {
	if ev.Kind != events.KindTokenIssued || !ev.Print {
		return nil
	}

	task, err := NewTicketPrintTask(TicketPrintPayload{
		TokenID:   ev.TokenID,
		Payload:   ev.Payload,
		Metadata:  ev.Metadata,
		ExpiresAt: ev.ExpiresAt,
		MaxScans:  ev.MaxScans,
	})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s for %s: %w", TypeTicketPrint, ev.TokenID, err)
	}
	return nil
}
