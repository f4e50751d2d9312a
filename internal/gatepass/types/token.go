package types

import (
	"strings"
	"time"
)

type TokenStatus string

const (
	StatusActive  TokenStatus = "active"
	StatusPassive TokenStatus = "passive"
)

func (s TokenStatus) Valid() bool {
	return s == StatusActive || s == StatusPassive
}

// TokenRecord is the unit of admission control.  Status moves from active to
// passive at most once; ScanCount never exceeds MaxScans.
type TokenRecord struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt *time.Time // nil = never expires
	Status    TokenStatus
	MaxScans  int
	ScanCount int
	Metadata  map[string]string

	// Version is bumped by stores on every persisted change.
	Version int64
}

// Well-known metadata keys.  Anything else is carried through untouched.
const (
	MetaEmployeeID = "employee_id"
	MetaFullName   = "full_name"
	MetaName       = "name"
	MetaEmail      = "email"
	MetaRole       = "role"
	MetaDepartment = "department"
)

// ExpiredAt reports whether the record's expiry lies strictly before now.
func (r TokenRecord) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// EffectiveStatus is the status a verification at now would act on: an
// expired or exhausted record is passive even before the transition is stored.
func (r TokenRecord) EffectiveStatus(now time.Time) TokenStatus {
	if r.Status == StatusActive && (r.ExpiredAt(now) || r.ScanCount >= r.MaxScans) {
		return StatusPassive
	}
	return r.Status
}

// Hint returns the bearer string recorded next to scan log entries.
func (r TokenRecord) Hint() string {
	for _, k := range []string{MetaEmployeeID, MetaFullName, MetaName} {
		if v := strings.TrimSpace(r.Metadata[k]); v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy so callers can't alias a store's internal maps.
func (r TokenRecord) Clone() TokenRecord {
	out := r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
