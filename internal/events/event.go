// Package events fans admission side effects (gate displays, ticket printing)
// out to independent sinks after the core has finished deciding.
package events

import (
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type Kind string

const (
	KindScanDecided      Kind = "scan.decided"
	KindTokenIssued      Kind = "token.issued"
	KindTokenDeactivated Kind = "token.deactivated"
)

// Event is the JSON body published to sinks.  Fields irrelevant to a kind are
// left empty.
type Event struct {
	Kind      Kind              `json:"kind"`
	TokenID   string            `json:"token_id,omitempty"`
	GateID    string            `json:"gate_id,omitempty"`
	Result    string            `json:"result,omitempty"`
	Status    string            `json:"status,omitempty"`
	ScanCount int               `json:"scan_count,omitempty"`
	MaxScans  int               `json:"max_scans,omitempty"`
	Hint      string            `json:"hint,omitempty"`
	Payload   string            `json:"payload,omitempty"`
	Print     bool              `json:"print,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IssuedAt  *time.Time        `json:"issued_at,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	At        time.Time         `json:"at"`
}

func ScanDecided(d types.Decision, gateID string) Event {
	return Event{
		Kind:      KindScanDecided,
		TokenID:   d.TokenID,
		GateID:    gateID,
		Result:    string(d.Result()),
		Status:    string(d.Status),
		ScanCount: d.ScanCount,
		MaxScans:  d.MaxScans,
		Hint:      d.Hint,
		At:        d.DecidedAt,
	}
}

func TokenIssued(rec types.TokenRecord, payload string, print bool) Event {
	issued := rec.IssuedAt
	rec = rec.Clone()
	return Event{
		Kind:      KindTokenIssued,
		TokenID:   rec.ID,
		Status:    string(rec.Status),
		MaxScans:  rec.MaxScans,
		Payload:   payload,
		Print:     print,
		Metadata:  rec.Metadata,
		IssuedAt:  &issued,
		ExpiresAt: rec.ExpiresAt,
		At:        issued,
	}
}

func TokenDeactivated(rec types.TokenRecord, at time.Time) Event {
	return Event{
		Kind:      KindTokenDeactivated,
		TokenID:   rec.ID,
		Status:    string(rec.Status),
		ScanCount: rec.ScanCount,
		MaxScans:  rec.MaxScans,
		At:        at,
	}
}
