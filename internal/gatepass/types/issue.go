package types

// IssueRequest is the caller-facing issuance input.  Nil numeric fields fall
// back to the configured defaults; expiry_minutes=0 means "never expires".
type IssueRequest struct {
	ExpiryMinutes *int              `json:"expiry_minutes,omitempty"`
	MaxScans      *int              `json:"max_scans,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Print         bool              `json:"print,omitempty"`
}

type IssueResponse struct {
	OK        bool              `json:"ok"`
	TokenID   string            `json:"token_id"`
	Payload   string            `json:"payload"`
	IssuedAt  string            `json:"issued_at"`
	ExpiresAt *string           `json:"expires_at"`
	Status    string            `json:"status"`
	MaxScans  int               `json:"max_scans"`
	ScanCount int               `json:"scan_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	// QRPNG is a base64 PNG of Payload, filled in by the HTTP layer.
	QRPNG string `json:"qr_png,omitempty"`
}

type StatusResponse struct {
	OK      bool   `json:"ok"`
	TokenID string `json:"token_id"`
	Status  string `json:"status"`
	// StoredStatus differs from Status until a verification persists the
	// pending Active→Passive transition.
	StoredStatus string            `json:"stored_status"`
	Expired      bool              `json:"expired"`
	ScanCount    int               `json:"scan_count"`
	MaxScans     int               `json:"max_scans"`
	IssuedAt     string            `json:"issued_at"`
	ExpiresAt    *string           `json:"expires_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
