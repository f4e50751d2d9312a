package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/memory"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

const testIssuer = "GatePass"

var errStoreDown = errors.New("store down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(ev events.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return true
}

func (e *recordingEmitter) Events() []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Event, len(e.events))
	copy(out, e.events)
	return out
}

// failingTokenStore wraps a TokenStore and fails the operations whose error
// field is set.
type failingTokenStore struct {
	store.TokenStore
	updateErr error
	getErr    error
	insertErr error
}

func (f *failingTokenStore) InsertToken(ctx context.Context, rec types.TokenRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.TokenStore.InsertToken(ctx, rec)
}

func (f *failingTokenStore) GetToken(ctx context.Context, id string) (types.TokenRecord, error) {
	if f.getErr != nil {
		return types.TokenRecord{}, f.getErr
	}
	return f.TokenStore.GetToken(ctx, id)
}

func (f *failingTokenStore) UpdateToken(ctx context.Context, id string, fn store.UpdateFunc) (types.TokenRecord, error) {
	if f.updateErr != nil {
		return types.TokenRecord{}, f.updateErr
	}
	return f.TokenStore.UpdateToken(ctx, id, fn)
}

type harness struct {
	tokens  *memory.TokenStore
	scans   *memory.ScanLogStore
	gates   *memory.GateStore
	clock   *fakeClock
	emitter *recordingEmitter
	issue   *service.TokenService
	verify  *service.VerifyService
}

// newHarness builds both services over in-memory stores sharing one clock.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		tokens:  memory.NewTokenStore(),
		scans:   memory.NewScanLogStore(),
		gates:   memory.NewGateStore(),
		clock:   newFakeClock(),
		emitter: &recordingEmitter{},
	}
	deps := service.Dependencies{
		Tokens: h.tokens,
		Scans:  h.scans,
		Settings: service.Settings{
			Issuer:               testIssuer,
			DefaultExpiryMinutes: 60,
			DefaultMaxScans:      2,
		},
		Events: h.emitter,
		Gates:  service.NewGateRegistry(h.gates),
		Now:    h.clock.Now,
	}
	h.issue = service.NewTokenService(deps)
	h.verify = service.NewVerifyService(deps)
	return h
}

func intPtr(v int) *int { return &v }

// mustIssue issues a token and returns its id and payload.
func (h *harness) mustIssue(t *testing.T, expiryMinutes, maxScans int) (string, string) {
	t.Helper()

	resp, err := h.issue.Issue(context.Background(), types.IssueRequest{
		ExpiryMinutes: intPtr(expiryMinutes),
		MaxScans:      intPtr(maxScans),
		Metadata:      map[string]string{types.MetaEmployeeID: "E-1001", types.MetaFullName: "Ada Lovelace"},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return resp.TokenID, resp.Payload
}

func (h *harness) mustVerify(t *testing.T, payload string) types.Decision {
	t.Helper()

	d, err := h.verify.Verify(context.Background(), types.VerifyRequest{Payload: payload})
	if err != nil {
		t.Fatalf("Verify(%q): %v", payload, err)
	}
	return d
}
