package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/printer"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueuePrint, Type: task.Type()}, nil
}

type fakePrinter struct {
	data []byte
	err  error
}

func (p *fakePrinter) Print(_ context.Context, data []byte) error {
	p.data = data
	return p.err
}

// ── Enqueuer ─────────────────────────────────────────────────────────────────

func TestPrintEnqueuer_EnqueuesOnlyPrintRequests(t *testing.T) {
	client := &fakeClient{}
	e := NewPrintEnqueuer(client)
	ctx := context.Background()
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, e.Handle(ctx, events.Event{Kind: events.KindTokenIssued, TokenID: "a"}))
	require.NoError(t, e.Handle(ctx, events.Event{Kind: events.KindScanDecided, TokenID: "b", Print: true}))
	require.NoError(t, e.Handle(ctx, events.Event{
		Kind:      events.KindTokenIssued,
		TokenID:   "c",
		Payload:   "GatePass|c",
		Print:     true,
		MaxScans:  2,
		ExpiresAt: &exp,
	}))

	require.Len(t, client.tasks, 1)
	task := client.tasks[0]
	assert.Equal(t, TypeTicketPrint, task.Type())

	var p TicketPrintPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "c", p.TokenID)
	assert.Equal(t, "GatePass|c", p.Payload)
	assert.Equal(t, 2, p.MaxScans)
	require.NotNil(t, p.ExpiresAt)
	assert.True(t, exp.Equal(*p.ExpiresAt))
}

func TestPrintEnqueuer_WrapsClientError(t *testing.T) {
	cause := errors.New("redis down")
	e := NewPrintEnqueuer(&fakeClient{err: cause})

	err := e.Handle(context.Background(), events.Event{Kind: events.KindTokenIssued, TokenID: "a", Print: true, Payload: "x|a"})
	assert.ErrorIs(t, err, cause)
}

// ── Handler ──────────────────────────────────────────────────────────────────

func TestTicketHandler_PrintsRenderedTicket(t *testing.T) {
	p := &fakePrinter{}
	h := NewTicketHandler(p, time.UTC, "Have a nice visit", nil)

	task, err := NewTicketPrintTask(TicketPrintPayload{
		TokenID:  "abc",
		Payload:  "GatePass|abc",
		Metadata: map[string]string{"full_name": "Ada Lovelace"},
		MaxScans: 1,
	})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Contains(t, string(p.data), "GatePass|abc")
	assert.Contains(t, string(p.data), "Name: Ada Lovelace")
	assert.Contains(t, string(p.data), "Have a nice visit")
}

func TestTicketHandler_BitmapMode(t *testing.T) {
	p := &fakePrinter{}
	h := NewTicketHandler(p, time.UTC, "", nil)
	h.SetQRMode(printer.QRBitmap)

	task, err := NewTicketPrintTask(TicketPrintPayload{TokenID: "abc", Payload: "GatePass|abc", MaxScans: 1})
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Contains(t, string(p.data), "\x1dv0\x00", "raster image command")
	assert.NotContains(t, string(p.data), "GatePass|abc", "payload must travel as pixels only")
}

func TestTicketHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewTicketHandler(&fakePrinter{}, time.UTC, "", nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeTicketPrint, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeTicketPrint, []byte(`{"token_id":"x"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTicketHandler_PrinterErrorIsRetried(t *testing.T) {
	cause := errors.New("paper out")
	h := NewTicketHandler(&fakePrinter{err: cause}, time.UTC, "", nil)

	task, err := NewTicketPrintTask(TicketPrintPayload{TokenID: "a", Payload: "GatePass|a", MaxScans: 1})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewServeMux_RoutesTicketPrint(t *testing.T) {
	p := &fakePrinter{}
	mux := NewServeMux(NewTicketHandler(p, nil, "", nil))

	task, err := NewTicketPrintTask(TicketPrintPayload{TokenID: "a", Payload: "GatePass|a", MaxScans: 1})
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.NotEmpty(t, p.data)
}
