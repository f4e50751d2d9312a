package types

type VerifyRequest struct {
	Payload string `json:"payload"`
	GateID  string `json:"gate_id,omitempty"`
}

type VerifyResponse struct {
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
	ScanCount  int    `json:"scan_count,omitempty"`
	MaxScans   int    `json:"max_scans,omitempty"`
	Status     string `json:"status,omitempty"`
	Hint       string `json:"hint,omitempty"`
	ServerTime string `json:"server_time"`
}

type ScanLogItem struct {
	ID        string  `json:"id"`
	TokenID   *string `json:"token_id"`
	GateID    string  `json:"gate_id,omitempty"`
	Timestamp string  `json:"timestamp"`
	Result    string  `json:"result"`
	Hint      string  `json:"hint,omitempty"`
}

type ScanHistoryResponse struct {
	OK      bool          `json:"ok"`
	TokenID string        `json:"token_id"`
	Scans   []ScanLogItem `json:"scans"`
}
