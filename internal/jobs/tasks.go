// Package jobs carries ticket printing through asynq so a slow or offline
// printer never holds up issuance.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeTicketPrint = "ticket:print"
	QueuePrint      = "print"
)

type TicketPrintPayload struct {
	TokenID   string            `json:"token_id"`
	Payload   string            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	MaxScans  int               `json:"max_scans"`
}

func NewTicketPrintTask(p TicketPrintPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket payload: %w", err)
	}
	return asynq.NewTask(TypeTicketPrint, data,
		asynq.Queue(QueuePrint),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	), nil
}
