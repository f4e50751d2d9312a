// Package service holds the token lifecycle: issuance, the admission state
// machine run at verification time, and read-only lookups.
package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/metrics"
)

const DefaultIssuer = "GatePass"

var (
	// ErrStorage marks a token store failure.  It is never turned into an
	// allow or a deny.
	ErrStorage = errors.New("token store unavailable")

	ErrInvalidExpiry   = errors.New("expiry_minutes must be >= 0")
	ErrInvalidMaxScans = errors.New("max_scans must be >= 1")
	ErrInvalidMetadata = errors.New("invalid metadata")
	ErrInvalidTokenID  = errors.New("token_id is required")
)

// Settings are the knobs shared by issuance and verification.
type Settings struct {
	Issuer               string
	DefaultExpiryMinutes int
	DefaultMaxScans      int
}

func (s Settings) withDefaults() Settings {
	if s.Issuer == "" {
		s.Issuer = DefaultIssuer
	}
	if s.DefaultExpiryMinutes < 0 {
		s.DefaultExpiryMinutes = 60
	}
	if s.DefaultMaxScans < 1 {
		s.DefaultMaxScans = 2
	}
	return s
}

// Emitter receives side-effect events once a decision is final.
// *events.Dispatcher satisfies it.
type Emitter interface {
	Emit(ev events.Event) bool
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) bool { return true }

// Dependencies wires the services to their collaborators.  Tokens and Scans
// are required; the rest fall back to no-ops.
type Dependencies struct {
	Tokens   store.TokenStore
	Scans    store.ScanLogStore
	Settings Settings
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Events   Emitter

	// Gates, when set, records the last scan of each gate id.
	Gates *GateRegistry

	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Dependencies) normalize() Dependencies {
	d.Settings = d.Settings.withDefaults()
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Events == nil {
		d.Events = nopEmitter{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}
