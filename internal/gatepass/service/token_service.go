package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	insertAttempts = 3
)

// issueParams is an IssueRequest with defaults resolved.  The expiry cap
// (100 years) keeps now+expiry inside time.Duration range.
type issueParams struct {
	ExpiryMinutes int               `validate:"gte=0,lte=52560000"`
	MaxScans      int               `validate:"gte=1"`
	Metadata      map[string]string `validate:"omitempty,max=32,dive,keys,min=1,max=64,endkeys,max=512"`
}

// TokenService issues tokens and answers read-only questions about them.
type TokenService struct {
	deps     Dependencies
	validate *validator.Validate
}

func NewTokenService(deps Dependencies) *TokenService {
	return &TokenService{
		deps:     deps.normalize(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *TokenService) Settings() Settings { return s.deps.Settings }

// Payload returns the QR content for id under the configured issuer.
func (s *TokenService) Payload(id string) string {
	return FormatPayload(s.deps.Settings.Issuer, id)
}

// Issue creates and persists a new active token.  Nil numeric fields use the
// configured defaults; ExpiryMinutes=0 means the token never expires.
func (s *TokenService) Issue(ctx context.Context, req types.IssueRequest) (types.IssueResponse, error) {
	p := issueParams{
		ExpiryMinutes: s.deps.Settings.DefaultExpiryMinutes,
		MaxScans:      s.deps.Settings.DefaultMaxScans,
		Metadata:      req.Metadata,
	}
	if req.ExpiryMinutes != nil {
		p.ExpiryMinutes = *req.ExpiryMinutes
	}
	if req.MaxScans != nil {
		p.MaxScans = *req.MaxScans
	}
	if err := s.validateParams(p); err != nil {
		return types.IssueResponse{}, err
	}

	// Millisecond precision is what every store keeps, so the returned
	// record matches the stored one.
	now := s.deps.Now().Truncate(time.Millisecond)
	rec := types.TokenRecord{
		IssuedAt: now,
		Status:   types.StatusActive,
		MaxScans: p.MaxScans,
	}
	if p.ExpiryMinutes > 0 {
		exp := now.Add(time.Duration(p.ExpiryMinutes) * time.Minute)
		rec.ExpiresAt = &exp
	}
	if len(p.Metadata) > 0 {
		rec.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			rec.Metadata[k] = v
		}
	}

	var err error
	for range insertAttempts {
		rec.ID = uuid.NewString()
		err = s.deps.Tokens.InsertToken(ctx, rec)
		if !errors.Is(err, store.ErrTokenExists) {
			break
		}
	}
	if err != nil {
		s.deps.Metrics.StorageFault("issue")
		s.deps.Logger.Error("issue: token store failed", "error", err)
		return types.IssueResponse{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	payload := s.Payload(rec.ID)
	s.deps.Metrics.TokenIssued()
	s.deps.Events.Emit(events.TokenIssued(rec, payload, req.Print))
	s.deps.Logger.Info("token issued",
		"token_id", rec.ID,
		"max_scans", rec.MaxScans,
		"expiry_minutes", p.ExpiryMinutes,
		"print", req.Print,
	)

	return types.NewIssueResponse(rec, payload), nil
}

func (s *TokenService) validateParams(p issueParams) error {
	err := s.validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	fe := verrs[0]
	switch {
	case fe.StructField() == "ExpiryMinutes":
		return fmt.Errorf("%w (got %v)", ErrInvalidExpiry, fe.Value())
	case fe.StructField() == "MaxScans":
		return fmt.Errorf("%w (got %v)", ErrInvalidMaxScans, fe.Value())
	default:
		return fmt.Errorf("%w: %s failed %q", ErrInvalidMetadata, fe.Namespace(), fe.Tag())
	}
}

// Status reads a token without touching it.  It is for diagnostics only and
// never feeds an admission decision.
func (s *TokenService) Status(ctx context.Context, id string) (types.StatusResponse, error) {
	if strings.TrimSpace(id) == "" {
		return types.StatusResponse{}, ErrInvalidTokenID
	}

	rec, err := s.deps.Tokens.GetToken(ctx, id)
	if err != nil {
		return types.StatusResponse{}, s.lookupErr("status", id, err)
	}
	return types.NewStatusResponse(rec, s.deps.Now()), nil
}

// Deactivate moves an active token to passive.  Deactivating a passive token
// is a no-op.
func (s *TokenService) Deactivate(ctx context.Context, id string) (types.StatusResponse, error) {
	if strings.TrimSpace(id) == "" {
		return types.StatusResponse{}, ErrInvalidTokenID
	}

	now := s.deps.Now()
	changed := false
	rec, err := s.deps.Tokens.UpdateToken(ctx, id, func(rec *types.TokenRecord) (bool, error) {
		changed = rec.Status == types.StatusActive
		rec.Status = types.StatusPassive
		return changed, nil
	})
	if err != nil {
		return types.StatusResponse{}, s.lookupErr("deactivate", id, err)
	}

	if changed {
		s.deps.Metrics.TokenDeactivated()
		s.deps.Events.Emit(events.TokenDeactivated(rec, now))
		s.deps.Logger.Info("token deactivated", "token_id", id)
	}
	return types.NewStatusResponse(rec, now), nil
}

// ScanHistory lists a token's scan log entries, newest first.  limit<=0
// means DefaultHistoryLimit.
func (s *TokenService) ScanHistory(ctx context.Context, id string, limit int) (types.ScanHistoryResponse, error) {
	if strings.TrimSpace(id) == "" {
		return types.ScanHistoryResponse{}, ErrInvalidTokenID
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	if _, err := s.deps.Tokens.GetToken(ctx, id); err != nil {
		return types.ScanHistoryResponse{}, s.lookupErr("history", id, err)
	}

	entries, err := s.deps.Scans.ListScans(ctx, id, limit)
	if err != nil {
		s.deps.Metrics.StorageFault("history")
		return types.ScanHistoryResponse{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return types.NewScanHistoryResponse(id, entries), nil
}

// lookupErr passes not-found through and wraps everything else as a fault.
func (s *TokenService) lookupErr(op, id string, err error) error {
	if errors.Is(err, store.ErrTokenNotFound) {
		return store.ErrTokenNotFound
	}
	s.deps.Metrics.StorageFault(op)
	s.deps.Logger.Error(op+": token store failed", "token_id", id, "error", err)
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
