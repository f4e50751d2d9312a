package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
	"github.com/BrandonDHaskell/gatepass/internal/metrics"
	"github.com/BrandonDHaskell/gatepass/internal/qrimage"
)

type Dependencies struct {
	Logger   *slog.Logger
	Addr     string
	Tokens   *service.TokenService
	Verifier *service.VerifyService
	Gates    *service.GateRegistry

	// QRPreviewSize is the edge of the PNG embedded in issue responses.
	// Zero leaves the preview out.
	QRPreviewSize int

	// Health is pinged by /healthz.  Nil reports healthy.
	Health store.Pinger

	Metrics *metrics.Metrics
	// Gatherer backs /metrics.  Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	tokens     *service.TokenService
	verifier   *service.VerifyService
	gates      *service.GateRegistry
	health     store.Pinger
	qrPreview  int
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:    d.Logger,
		mux:       mux,
		tokens:    d.Tokens,
		verifier:  d.Verifier,
		gates:     d.Gates,
		health:    d.Health,
		qrPreview: d.QRPreviewSize,
	}

	mux.HandleFunc("POST /v1/tokens", s.handleIssue)
	mux.HandleFunc("GET /v1/tokens/{id}", s.handleStatus)
	mux.HandleFunc("POST /v1/tokens/{id}/deactivate", s.handleDeactivate)
	mux.HandleFunc("GET /v1/tokens/{id}/scans", s.handleScanHistory)
	mux.HandleFunc("GET /v1/tokens/{id}/qr.png", s.handleQRImage)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("GET /v1/gates", s.handleGates)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	handler := loggingMiddleware(d.Logger, d.Metrics, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decodeJSON reads a JSON body into v.  An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req types.IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.tokens.Issue(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "issue", err)
		return
	}
	if s.qrPreview > 0 {
		// The token already exists; a failed preview only drops the field.
		if img, err := qrimage.PNG(resp.Payload, s.qrPreview); err != nil {
			s.logger.Warn("issue: qr preview failed", "token_id", resp.TokenID, "error", err)
		} else {
			resp.QRPNG = base64.StdEncoding.EncodeToString(img)
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.tokens.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.tokens.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "deactivate", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScanHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	resp, err := s.tokens.ScanHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeServiceError(w, "scan history", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQRImage renders the payload of an existing token as a PNG.  The
// optional size parameter is clamped to the qrimage bounds.
func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_size", "size must be a positive integer")
			return
		}
		size = n
	}

	st, err := s.tokens.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "qr image", err)
		return
	}

	img, err := qrimage.PNG(s.tokens.Payload(st.TokenID), size)
	if err != nil {
		s.writeServiceError(w, "qr image", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleGates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gates.List(r.Context())
	if err != nil {
		s.writeServiceError(w, "gates", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVerify answers 200 for every decision, allow or deny.  Only a
// storage fault produces a non-200 status.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	asProto := isProtobuf(r)

	var req types.VerifyRequest
	if asProto {
		var err error
		if req, err = readVerifyProto(r); err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	d, err := s.verifier.Verify(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "verify", err)
		return
	}

	resp := d.Response()
	if asProto {
		writeVerifyProto(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "token store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"server_time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidExpiry):
		writeError(w, http.StatusBadRequest, "invalid_expiry", err.Error())
	case errors.Is(err, service.ErrInvalidMaxScans):
		writeError(w, http.StatusBadRequest, "invalid_max_scans", err.Error())
	case errors.Is(err, service.ErrInvalidMetadata):
		writeError(w, http.StatusBadRequest, "invalid_metadata", err.Error())
	case errors.Is(err, service.ErrInvalidTokenID):
		writeError(w, http.StatusBadRequest, "invalid_token_id", err.Error())
	case errors.Is(err, store.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "not_found", "token not found")
	case errors.Is(err, service.ErrStorage):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "token store unavailable")
	default:
		s.logger.Error(op+" error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
