package gateclient_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/gateclient"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store/memory"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
	"github.com/BrandonDHaskell/gatepass/internal/httpapi"
)

func TestScanAgainstServer(t *testing.T) {
	tokens := memory.NewTokenStore()
	deps := service.Dependencies{
		Tokens:   tokens,
		Scans:    memory.NewScanLogStore(),
		Settings: service.Settings{Issuer: "GatePass"},
	}
	tokenSvc := service.NewTokenService(deps)
	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:     ":0",
		Tokens:   tokenSvc,
		Verifier: service.NewVerifyService(deps),
		Health:   tokens,
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	client := gateclient.New(ts.URL, "gate-1", 2*time.Second)

	one := 1
	issued, err := client.Issue(ctx, types.IssueRequest{
		MaxScans: &one,
		Metadata: map[string]string{"employee_id": "E-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "GatePass|"+issued.TokenID, issued.Payload)

	var out bytes.Buffer
	scanner := gateclient.NewScanner(client, "GatePass", 0, &out, nil)
	input := issued.TokenID + "\n" + issued.Payload + "\nOther|" + issued.TokenID + "\n"
	require.NoError(t, scanner.Run(ctx, strings.NewReader(input)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ALLOW scan=1/1 status=passive hint=E-42", lines[0])
	assert.Equal(t, "DENY reason=passive", lines[1])
	assert.Equal(t, "DENY reason=wrong_issuer", lines[2])

	st, err := client.Status(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "passive", st.Status)
	assert.Equal(t, 1, st.ScanCount)
}
