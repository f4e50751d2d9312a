// Package gateclient is the gate side of admission: it reads scanned
// payloads, asks the server for a decision and shows the result.
package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

var (
	ErrUnavailable = errors.New("gatepass server unavailable")
	ErrNotFound    = errors.New("token not found")
)

// Client talks to the gatepass HTTP API.
type Client struct {
	baseURL string
	gateID  string
	http    *http.Client
}

func New(baseURL, gateID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		gateID:  gateID,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Verify(ctx context.Context, payload string) (types.VerifyResponse, error) {
	var out types.VerifyResponse
	err := c.do(ctx, http.MethodPost, "/v1/verify", types.VerifyRequest{Payload: payload, GateID: c.gateID}, http.StatusOK, &out)
	return out, err
}

func (c *Client) Issue(ctx context.Context, req types.IssueRequest) (types.IssueResponse, error) {
	var out types.IssueResponse
	err := c.do(ctx, http.MethodPost, "/v1/tokens", req, http.StatusCreated, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, tokenID string) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/tokens/"+url.PathEscape(tokenID), nil, http.StatusOK, &out)
	return out, err
}

// Gates lists every gate the server has seen scanning.
func (c *Client) Gates(ctx context.Context) (types.GatesResponse, error) {
	var out types.GatesResponse
	err := c.do(ctx, http.MethodGet, "/v1/gates", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case want:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}

	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	return fmt.Errorf("%s %s: status %d: %s %s", method, path, resp.StatusCode, e.Error, e.Message)
}
