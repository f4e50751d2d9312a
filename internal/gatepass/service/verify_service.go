package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// VerifyService turns a presented payload into an admission decision.
type VerifyService struct {
	deps Dependencies
}

func NewVerifyService(deps Dependencies) *VerifyService {
	return &VerifyService{deps: deps.normalize()}
}

// Verify evaluates req.Payload.  Every decision, allow or deny, is appended
// to the scan log before Verify returns.  A non-nil error always wraps
// ErrStorage and means no decision was reached.
func (s *VerifyService) Verify(ctx context.Context, req types.VerifyRequest) (types.Decision, error) {
	now := s.deps.Now()

	issuer, tokenID, ok := ParsePayload(req.Payload)
	if !ok {
		d := denied(types.ReasonBadPayload, "", now)
		s.finish(ctx, d, req.GateID, false)
		return d, nil
	}
	if issuer != s.deps.Settings.Issuer {
		d := denied(types.ReasonWrongIssuer, tokenID, now)
		s.finish(ctx, d, req.GateID, true)
		return d, nil
	}

	var d types.Decision
	_, err := s.deps.Tokens.UpdateToken(ctx, tokenID, func(rec *types.TokenRecord) (bool, error) {
		reason, changed := admit(rec, now)
		d = decisionFor(*rec, reason, now)
		return changed, nil
	})
	switch {
	case errors.Is(err, store.ErrTokenNotFound):
		d = denied(types.ReasonNotFound, tokenID, now)
	case err != nil:
		s.deps.Metrics.StorageFault("verify")
		s.deps.Logger.Error("verify: token store failed",
			"token_id", tokenID,
			"gate_id", req.GateID,
			"error", err,
		)
		return types.Decision{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.finish(ctx, d, req.GateID, true)
	return d, nil
}

// finish records the audit entry and emits side effects.  Nothing here can
// change d.
func (s *VerifyService) finish(ctx context.Context, d types.Decision, gateID string, withToken bool) {
	entry := types.ScanLogEntry{
		GateID:    gateID,
		Timestamp: d.DecidedAt,
		Result:    d.Result(),
		Hint:      d.Hint,
	}
	if withToken {
		id := d.TokenID
		entry.TokenID = &id
	}

	if err := s.deps.Scans.AppendScan(ctx, entry); err != nil {
		s.deps.Metrics.AuditFailed()
		s.deps.Logger.Error("verify: scan log append failed",
			"token_id", d.TokenID,
			"result", d.Result(),
			"error", err,
		)
	}

	if err := s.deps.Gates.NoteSeen(ctx, gateID, d.Result(), d.DecidedAt); err != nil {
		s.deps.Logger.Warn("verify: gate registry update failed",
			"gate_id", gateID,
			"error", err,
		)
	}

	s.deps.Metrics.ObserveDecision(d)
	s.deps.Events.Emit(events.ScanDecided(d, gateID))

	s.deps.Logger.Info("scan decided",
		"token_id", d.TokenID,
		"gate_id", gateID,
		"result", d.Result(),
		"scan_count", d.ScanCount,
		"max_scans", d.MaxScans,
	)
}
