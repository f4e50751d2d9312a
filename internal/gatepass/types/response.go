package types

import "time"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func NewIssueResponse(rec TokenRecord, payload string) IssueResponse {
	return IssueResponse{
		OK:        true,
		TokenID:   rec.ID,
		Payload:   payload,
		IssuedAt:  formatTime(rec.IssuedAt),
		ExpiresAt: formatOptionalTime(rec.ExpiresAt),
		Status:    string(rec.Status),
		MaxScans:  rec.MaxScans,
		ScanCount: rec.ScanCount,
		Metadata:  rec.Clone().Metadata,
	}
}

// NewStatusResponse reports the effective status of rec at now next to the
// stored one.  It never changes rec.
func NewStatusResponse(rec TokenRecord, now time.Time) StatusResponse {
	return StatusResponse{
		OK:           true,
		TokenID:      rec.ID,
		Status:       string(rec.EffectiveStatus(now)),
		StoredStatus: string(rec.Status),
		Expired:      rec.ExpiredAt(now),
		ScanCount:    rec.ScanCount,
		MaxScans:     rec.MaxScans,
		IssuedAt:     formatTime(rec.IssuedAt),
		ExpiresAt:    formatOptionalTime(rec.ExpiresAt),
		Metadata:     rec.Clone().Metadata,
	}
}

func (d Decision) Response() VerifyResponse {
	return VerifyResponse{
		OK:         d.Allowed,
		Reason:     string(d.Reason),
		ScanCount:  d.ScanCount,
		MaxScans:   d.MaxScans,
		Status:     string(d.Status),
		Hint:       d.Hint,
		ServerTime: formatTime(d.DecidedAt),
	}
}

func NewScanHistoryResponse(tokenID string, entries []ScanLogEntry) ScanHistoryResponse {
	items := make([]ScanLogItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, ScanLogItem{
			ID:        e.ID,
			TokenID:   e.TokenID,
			GateID:    e.GateID,
			Timestamp: formatTime(e.Timestamp),
			Result:    string(e.Result),
			Hint:      e.Hint,
		})
	}
	return ScanHistoryResponse{OK: true, TokenID: tokenID, Scans: items}
}
