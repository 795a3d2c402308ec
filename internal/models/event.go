package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Values is a JSON object column used for the old/new value snapshots on
// audit events.
type Values map[string]any

// GormDataType tells the migrator which column type to use.
func (Values) GormDataType() string {
	return "text"
}

func (v Values) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func (v *Values) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("cannot scan %T into Values", value)
	}
}

// AuditEvent is one row of the append-only state transition record. Rows
// are written in the same transaction as the mutation they describe and
// are never updated or deleted.
type AuditEvent struct {
	DefaultModel
	EntityType string    `json:"entityType" gorm:"index:idx_audit_entity"`
	EntityID   uuid.UUID `json:"entityId" gorm:"index:idx_audit_entity"`
	Kind       string    `json:"kind"`
	OldValues  Values    `json:"oldValues,omitempty"`
	NewValues  Values    `json:"newValues,omitempty"`
	ActorID    string    `json:"actorId"`
	Timestamp  time.Time `json:"timestamp"`
}
