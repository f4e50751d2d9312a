package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

func TestNormalizePayload(t *testing.T) {
	assert.Equal(t, "GatePass|abc", NormalizePayload("abc", "GatePass"))
	assert.Equal(t, "GatePass|abc", NormalizePayload("  abc\r", "GatePass"))
	assert.Equal(t, "Other|abc", NormalizePayload("Other|abc", "GatePass"))
	assert.Equal(t, "", NormalizePayload("   ", "GatePass"))
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "ALLOW scan=1/2 status=active hint=E-1",
		FormatResult(types.VerifyResponse{OK: true, ScanCount: 1, MaxScans: 2, Status: "active", Hint: "E-1"}))
	assert.Equal(t, "DENY reason=expired", FormatResult(types.VerifyResponse{Reason: "expired"}))
}

// ── Client ───────────────────────────────────────────────────────────────────

func TestClient_VerifySendsGateID(t *testing.T) {
	var got types.VerifyRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(types.VerifyResponse{OK: true, ScanCount: 1, MaxScans: 1, Status: "passive"})
	}))
	defer ts.Close()

	c := New(ts.URL+"/", "gate-7", time.Second)
	resp, err := c.Verify(context.Background(), "GatePass|x")
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, "GatePass|x", got.Payload)
	assert.Equal(t, "gate-7", got.GateID)
}

func TestClient_StatusCodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tokens/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/v1/verify":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_max_scans","message":"max_scans must be >= 1"}`))
		}
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second)

	_, err := c.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Verify(context.Background(), "GatePass|x")
	assert.ErrorIs(t, err, ErrUnavailable)

	zero := 0
	_, err = c.Issue(context.Background(), types.IssueRequest{MaxScans: &zero})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_max_scans")
}

func TestClient_Gates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/gates", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"gates":[{"gate_id":"north","scan_count":3,"last_result":"allowed"}]}`))
	}))
	defer ts.Close()

	resp, err := New(ts.URL, "", time.Second).Gates(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Gates, 1)
	assert.Equal(t, "north", resp.Gates[0].GateID)
	assert.Equal(t, int64(3), resp.Gates[0].ScanCount)
}

func TestClient_NetworkErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, "", 200*time.Millisecond).Verify(context.Background(), "GatePass|x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

// ── Scanner ──────────────────────────────────────────────────────────────────

type fakeVerifier struct {
	calls []string
	err   error
}

func (f *fakeVerifier) Verify(_ context.Context, payload string) (types.VerifyResponse, error) {
	f.calls = append(f.calls, payload)
	if f.err != nil {
		return types.VerifyResponse{}, f.err
	}
	return types.VerifyResponse{OK: len(f.calls) == 1, Reason: "passive", ScanCount: 1, MaxScans: 1, Status: "passive"}, nil
}

func TestScanner_HoldsRepeatedPayload(t *testing.T) {
	fv := &fakeVerifier{}
	var out bytes.Buffer
	s := NewScanner(fv, "GatePass", 10*time.Second, &out, nil)

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.True(t, s.Handle(context.Background(), "abc"))
	now = now.Add(5 * time.Second)
	assert.False(t, s.Handle(context.Background(), "GatePass|abc"))
	assert.True(t, s.Handle(context.Background(), "def"))
	now = now.Add(11 * time.Second)
	assert.True(t, s.Handle(context.Background(), "def"))

	assert.Equal(t, []string{"GatePass|abc", "GatePass|def", "GatePass|def"}, fv.calls)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ALLOW"))
	assert.Equal(t, "DENY reason=passive", lines[1])
}

func TestScanner_ErrorsDoNotStartHold(t *testing.T) {
	fv := &fakeVerifier{err: errors.New("timeout")}
	var out bytes.Buffer
	s := NewScanner(fv, "GatePass", time.Minute, &out, nil)

	s.Handle(context.Background(), "abc")
	s.Handle(context.Background(), "abc")

	assert.Len(t, fv.calls, 2)
	assert.Contains(t, out.String(), "ERROR timeout")
}

func TestScanner_RunReadsLines(t *testing.T) {
	fv := &fakeVerifier{}
	var out bytes.Buffer
	s := NewScanner(fv, "GatePass", 0, &out, nil)

	err := s.Run(context.Background(), strings.NewReader("a\n\nb\nGatePass|c\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"GatePass|a", "GatePass|b", "GatePass|c"}, fv.calls)
}
