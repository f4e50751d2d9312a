package types

import "time"

// GateRecord tracks a gate that has presented scans.  Gates are not
// registered up front; the first scan carrying a gate id creates the record.
type GateRecord struct {
	ID         string
	FirstSeen  time.Time
	LastSeen   time.Time
	ScanCount  int64
	LastResult ScanResult
}

type GateItem struct {
	GateID     string `json:"gate_id"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	ScanCount  int64  `json:"scan_count"`
	LastResult string `json:"last_result"`
}

type GatesResponse struct {
	OK    bool       `json:"ok"`
	Gates []GateItem `json:"gates"`
}

func NewGatesResponse(gates []GateRecord) GatesResponse {
	items := make([]GateItem, 0, len(gates))
	for _, g := range gates {
		items = append(items, GateItem{
			GateID:     g.ID,
			FirstSeen:  formatTime(g.FirstSeen),
			LastSeen:   formatTime(g.LastSeen),
			ScanCount:  g.ScanCount,
			LastResult: string(g.LastResult),
		})
	}
	return GatesResponse{OK: true, Gates: items}
}
