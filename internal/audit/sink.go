// Package audit records every committed state transition of the core
// entities. Recording happens synchronously inside the transaction that
// performs the mutation, so an event exists if and only if the mutation
// it describes was committed.
package audit

import (
	"sync"
	"time"

	"github.com/cellarlot/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event kinds mirror the transition names of the core operations.
const (
	KindLifecycleChange    = "lifecycle_change"
	KindAllocationSale     = "allocation_sale"
	KindConstraintsEdited  = "constraints_edited"
	KindVoucherIssued      = "voucher_issued"
	KindVoucherFlagsChange = "voucher_flags_changed"
	KindTransferInitiated  = "transfer_initiated"
	KindTransferAccepted   = "transfer_accepted"
	KindTransferCancelled  = "transfer_cancelled"
	KindTransferExpired    = "transfer_expired"
	KindCaseCreated        = "case_created"
	KindCaseBroken         = "case_broken"
)

// Entity types as recorded on events.
const (
	EntityAllocation = "allocation"
	EntityVoucher    = "voucher"
	EntityTransfer   = "voucher_transfer"
	EntityCase       = "case_entitlement"
)

// Event describes one state transition.
type Event struct {
	EntityType string
	EntityID   uuid.UUID
	Kind       string
	OldValues  models.Values
	NewValues  models.Values
	ActorID    string
	Timestamp  time.Time
}

// Sink is the append-only recorder the app layer emits to. Record is
// called with the transaction of the mutation it describes so that event
// and mutation commit or roll back together.
type Sink interface {
	Record(tx *gorm.DB, event Event) error
}

// DatabaseSink appends events to the audit_events table.
type DatabaseSink struct{}

func NewDatabaseSink() *DatabaseSink {
	return &DatabaseSink{}
}

func (s *DatabaseSink) Record(tx *gorm.DB, event Event) error {
	return tx.Create(&models.AuditEvent{
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Kind:       event.Kind,
		OldValues:  event.OldValues,
		NewValues:  event.NewValues,
		ActorID:    event.ActorID,
		Timestamp:  event.Timestamp,
	}).Error
}

// MemorySink collects events in memory. Used in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ *gorm.DB, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Event(nil), s.events...)
}

// ByKind returns all recorded events of the given kind.
func (s *MemorySink) ByKind(kind string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
