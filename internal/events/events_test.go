package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
	"github.com/BrandonDHaskell/gatepass/internal/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Handle(_ context.Context, ev Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Kind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

func TestDispatcher_DeliversInEmitOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{Buffer: 8}, nil, nil, sink)

	require.True(t, d.Emit(Event{Kind: KindTokenIssued}))
	require.True(t, d.Emit(Event{Kind: KindScanDecided}))
	require.True(t, d.Emit(Event{Kind: KindTokenDeactivated}))
	d.Close()

	assert.Equal(t, []Kind{KindTokenIssued, KindScanDecided, KindTokenDeactivated}, sink.kinds())
}

func TestDispatcher_SinkErrorDoesNotStopDelivery(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{}, nil, nil, failing, ok)

	d.Emit(Event{Kind: KindScanDecided})
	d.Emit(Event{Kind: KindScanDecided})
	d.Close()

	assert.Len(t, failing.kinds(), 2)
	assert.Len(t, ok.kinds(), 2)
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(DispatcherConfig{Buffer: 1}, nil, m, sink)

	// The loop picks the first event up and blocks in the sink; the second
	// fills the queue; anything after that is dropped.
	d.Emit(Event{Kind: KindScanDecided})
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Emit(Event{Kind: KindScanDecided}))

	done := make(chan bool)
	go func() { done <- d.Emit(Event{Kind: KindScanDecided}) }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(sink.block)
	d.Close()
	assert.Len(t, sink.kinds(), 2)
}

func TestDispatcher_EmitAfterCloseIsDropped(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil, nil)
	d.Close()
	d.Close()

	assert.False(t, d.Emit(Event{Kind: KindScanDecided}))
}

// ── Constructors ─────────────────────────────────────────────────────────────

func TestScanDecided_CarriesDecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := ScanDecided(types.Decision{
		Allowed:   true,
		TokenID:   "tok",
		ScanCount: 1,
		MaxScans:  2,
		Status:    types.StatusActive,
		Hint:      "E-7",
		DecidedAt: now,
	}, "gate-north")

	assert.Equal(t, KindScanDecided, ev.Kind)
	assert.Equal(t, "allowed", ev.Result)
	assert.Equal(t, "gate-north", ev.GateID)
	assert.Equal(t, now, ev.At)
}

func TestTokenIssued_CopiesMetadata(t *testing.T) {
	rec := types.TokenRecord{
		ID:       "tok",
		IssuedAt: time.Now().UTC(),
		Status:   types.StatusActive,
		MaxScans: 1,
		Metadata: map[string]string{"name": "Ada"},
	}
	ev := TokenIssued(rec, "GatePass|tok", true)
	rec.Metadata["name"] = "changed"

	assert.Equal(t, "Ada", ev.Metadata["name"])
	assert.True(t, ev.Print)
	assert.Equal(t, "GatePass|tok", ev.Payload)
}

// ── Redis sink ───────────────────────────────────────────────────────────────

type fakePublisher struct {
	channel string
	message []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisPublisher(pub, "")

	err := sink.Handle(context.Background(), Event{Kind: KindTokenDeactivated, TokenID: "tok"})
	require.NoError(t, err)

	assert.Equal(t, DefaultChannel, pub.channel)
	var got Event
	require.NoError(t, json.Unmarshal(pub.message, &got))
	assert.Equal(t, KindTokenDeactivated, got.Kind)
	assert.Equal(t, "tok", got.TokenID)
}

func TestRedisPublisher_WrapsPublishError(t *testing.T) {
	cause := errors.New("connection refused")
	sink := NewRedisPublisher(&fakePublisher{err: cause}, "gates")

	err := sink.Handle(context.Background(), Event{Kind: KindScanDecided})
	assert.ErrorIs(t, err, cause)
}
