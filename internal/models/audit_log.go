package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	UserName  string     `json:"user_name,omitempty"`
	Action    string     `json:"action"`
	TableName string     `json:"table_name"`
	RecordID  *uuid.UUID `json:"record_id,omitempty"`
	OldValue  string     `json:"old_value,omitempty"`
	NewValue  string     `json:"new_value,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
