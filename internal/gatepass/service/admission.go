package service

import (
	"strings"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

const payloadSep = "|"

// FormatPayload builds the QR content for a token.
func FormatPayload(issuer, tokenID string) string {
	return issuer + payloadSep + tokenID
}

// ParsePayload splits "<issuer>|<token id>" on the first separator.  The
// token id may be empty; that is a lookup miss, not a parse failure.
func ParsePayload(payload string) (issuer, tokenID string, ok bool) {
	return strings.Cut(payload, payloadSep)
}

// admit runs the stateful checks on rec in order: status, expiry, budget,
// then grant.  It mutates rec in place and reports the denial reason ("" on
// grant) and whether rec changed.  Re-running it on its own output never
// changes rec again except to grant.
func admit(rec *types.TokenRecord, now time.Time) (reason types.DenyReason, changed bool) {
	if rec.Status != types.StatusActive {
		return types.ReasonPassive, false
	}
	if rec.ExpiredAt(now) {
		rec.Status = types.StatusPassive
		return types.ReasonExpired, true
	}
	if rec.ScanCount >= rec.MaxScans {
		rec.Status = types.StatusPassive
		return types.ReasonMaxScansReached, true
	}

	rec.ScanCount++
	if rec.ScanCount >= rec.MaxScans {
		rec.Status = types.StatusPassive
	}
	return "", true
}

func decisionFor(rec types.TokenRecord, reason types.DenyReason, now time.Time) types.Decision {
	return types.Decision{
		Allowed:   reason == "",
		Reason:    reason,
		TokenID:   rec.ID,
		ScanCount: rec.ScanCount,
		MaxScans:  rec.MaxScans,
		Status:    rec.Status,
		Hint:      rec.Hint(),
		DecidedAt: now,
	}
}

func denied(reason types.DenyReason, tokenID string, now time.Time) types.Decision {
	return types.Decision{
		Reason:    reason,
		TokenID:   tokenID,
		DecidedAt: now,
	}
}
