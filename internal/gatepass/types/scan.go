package types

import (
	"strings"
	"time"
)

type DenyReason string

const (
	ReasonBadPayload      DenyReason = "bad_payload"
	ReasonWrongIssuer     DenyReason = "wrong_issuer"
	ReasonNotFound        DenyReason = "not_found"
	ReasonPassive         DenyReason = "passive"
	ReasonExpired         DenyReason = "expired"
	ReasonMaxScansReached DenyReason = "max_scans_reached"
)

// ScanResult is the audit form of a decision: "allowed" or "denied:<reason>".
type ScanResult string

const ResultAllowed ScanResult = "allowed"

func DeniedResult(reason DenyReason) ScanResult {
	return ScanResult("denied:" + string(reason))
}

func (r ScanResult) Allowed() bool { return r == ResultAllowed }

// Reason returns the denial reason, or "" for an allowed result.
func (r ScanResult) Reason() DenyReason {
	reason, ok := strings.CutPrefix(string(r), "denied:")
	if !ok {
		return ""
	}
	return DenyReason(reason)
}

// ScanLogEntry is one verification attempt.  Entries are never mutated.
type ScanLogEntry struct {
	ID        string
	TokenID   *string // nil when the payload could not be parsed
	GateID    string
	Timestamp time.Time
	Result    ScanResult
	Hint      string
}

// Decision is what the verification engine hands back to a gate.
type Decision struct {
	Allowed   bool
	Reason    DenyReason // set when !Allowed
	TokenID   string
	ScanCount int
	MaxScans  int
	Status    TokenStatus
	Hint      string
	DecidedAt time.Time
}

func (d Decision) Result() ScanResult {
	if d.Allowed {
		return ResultAllowed
	}
	return DeniedResult(d.Reason)
}
