package app

import (
	"context"
	"time"

	"github.com/cellarlot/backend/internal/audit"
	"github.com/cellarlot/backend/internal/clock"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationLedger owns the quantity counters and the lifecycle of the
// supply allocations.
type AllocationLedger struct {
	db     *gorm.DB
	events audit.Sink
	clock  clock.Clock
}

func NewAllocationLedger(db *gorm.DB, events audit.Sink, clk clock.Clock) *AllocationLedger {
	return &AllocationLedger{db: db, events: events, clock: clk}
}

// AllocationCreate is the set of attributes settable at creation time.
type AllocationCreate struct {
	Name                  string          `json:"name"`
	Note                  string          `json:"note"`
	TotalQuantity         uint            `json:"totalQuantity"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	SerializationRequired bool            `json:"serializationRequired"`
}

// Create creates a new allocation in draft status.
func (l *AllocationLedger) Create(ctx context.Context, create AllocationCreate, actor string) (models.Allocation, error) {
	if create.TotalQuantity == 0 {
		return models.Allocation{}, ErrInvalidQuantity
	}

	allocation := models.Allocation{
		Name:                  create.Name,
		Note:                  create.Note,
		Status:                types.AllocationDraft,
		TotalQuantity:         create.TotalQuantity,
		UnitPrice:             create.UnitPrice,
		SerializationRequired: create.SerializationRequired,
	}

	now := l.clock.Now()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&allocation).Error; err != nil {
			return err
		}

		return l.events.Record(tx, audit.Event{
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID,
			Kind:       audit.KindLifecycleChange,
			NewValues:  models.Values{"status": types.AllocationDraft, "totalQuantity": allocation.TotalQuantity},
			ActorID:    actor,
			Timestamp:  now,
		})
	})
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// RecordSale consumes qty units of the allocation's supply. The capacity
// check and the counter increment happen under the allocation row lock,
// so two concurrent sales can never oversell the pool. When the last
// unit is sold the allocation becomes exhausted.
func (l *AllocationLedger) RecordSale(ctx context.Context, id uuid.UUID, qty uint, actor string) (models.Allocation, error) {
	if qty == 0 {
		return models.Allocation{}, ErrInvalidQuantity
	}

	var allocation models.Allocation
	now := l.clock.Now()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&allocation, "id = ?", id).Error; err != nil {
			return err
		}

		return l.recordSaleLocked(tx, &allocation, qty, actor, now)
	})
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// recordSaleLocked performs the compare-and-increment on an allocation
// that the caller has already locked in tx. Shared with the voucher
// issue path so that issuing consumes supply in the same transaction.
func (l *AllocationLedger) recordSaleLocked(tx *gorm.DB, allocation *models.Allocation, qty uint, actor string, now time.Time) error {
	if allocation.Status != types.AllocationActive {
		return &models.ImmutabilityViolationError{
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID,
			Operation:  "record_sale",
			State:      string(allocation.Status),
		}
	}

	if allocation.SoldQuantity+qty > allocation.TotalQuantity {
		return &models.CapacityExceededError{
			AllocationID: allocation.ID,
			Requested:    qty,
			Sold:         allocation.SoldQuantity,
			Total:        allocation.TotalQuantity,
		}
	}

	oldSold := allocation.SoldQuantity
	oldStatus := allocation.Status

	allocation.SoldQuantity += qty
	if allocation.RemainingQuantity() == 0 {
		allocation.Status = types.AllocationExhausted
	}

	if err := tx.Save(allocation).Error; err != nil {
		return err
	}

	err := l.events.Record(tx, audit.Event{
		EntityType: audit.EntityAllocation,
		EntityID:   allocation.ID,
		Kind:       audit.KindAllocationSale,
		OldValues:  models.Values{"soldQuantity": oldSold},
		NewValues:  models.Values{"soldQuantity": allocation.SoldQuantity, "quantity": qty},
		ActorID:    actor,
		Timestamp:  now,
	})
	if err != nil {
		return err
	}

	if allocation.Status != oldStatus {
		return l.events.Record(tx, audit.Event{
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID,
			Kind:       audit.KindLifecycleChange,
			OldValues:  models.Values{"status": oldStatus},
			NewValues:  models.Values{"status": allocation.Status},
			ActorID:    actor,
			Timestamp:  now,
		})
	}

	return nil
}

// TransitionStatus moves the allocation to the target status if the
// transition table allows it. Closed is terminal, a closed allocation's
// counters can never change again.
func (l *AllocationLedger) TransitionStatus(ctx context.Context, id uuid.UUID, target types.AllocationStatus, actor string) (models.Allocation, error) {
	if !target.Valid() {
		return models.Allocation{}, ErrInvalidStatus
	}

	var allocation models.Allocation
	now := l.clock.Now()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&allocation, "id = ?", id).Error; err != nil {
			return err
		}

		if !allocation.Status.CanTransitionTo(target) {
			return &models.StateTransitionError{
				EntityType: audit.EntityAllocation,
				EntityID:   allocation.ID,
				Operation:  "transition_status",
				From:       string(allocation.Status),
				To:         string(target),
			}
		}

		oldStatus := allocation.Status
		allocation.Status = target

		if err := tx.Save(&allocation).Error; err != nil {
			return err
		}

		return l.events.Record(tx, audit.Event{
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID,
			Kind:       audit.KindLifecycleChange,
			OldValues:  models.Values{"status": oldStatus},
			NewValues:  models.Values{"status": target},
			ActorID:    actor,
			Timestamp:  now,
		})
	})
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// ConstraintUpdate is a partial update of the constraints that are only
// editable while an allocation is a draft. Nil fields are unchanged.
type ConstraintUpdate struct {
	Name                  *string          `json:"name"`
	Note                  *string          `json:"note"`
	TotalQuantity         *uint            `json:"totalQuantity"`
	UnitPrice             *decimal.Decimal `json:"unitPrice"`
	SerializationRequired *bool            `json:"serializationRequired"`
}

// EditConstraints updates the allocation's constraints. It is permitted
// only while the allocation is a draft.
func (l *AllocationLedger) EditConstraints(ctx context.Context, id uuid.UUID, update ConstraintUpdate, actor string) (models.Allocation, error) {
	var allocation models.Allocation
	now := l.clock.Now()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&allocation, "id = ?", id).Error; err != nil {
			return err
		}

		if allocation.Status != types.AllocationDraft {
			return &models.ImmutabilityViolationError{
				EntityType: audit.EntityAllocation,
				EntityID:   allocation.ID,
				Operation:  "edit_constraints",
				State:      string(allocation.Status),
			}
		}

		old := models.Values{
			"name":                  allocation.Name,
			"totalQuantity":         allocation.TotalQuantity,
			"unitPrice":             allocation.UnitPrice,
			"serializationRequired": allocation.SerializationRequired,
		}

		if update.Name != nil {
			allocation.Name = *update.Name
		}
		if update.Note != nil {
			allocation.Note = *update.Note
		}
		if update.TotalQuantity != nil {
			if *update.TotalQuantity == 0 {
				return ErrInvalidQuantity
			}
			allocation.TotalQuantity = *update.TotalQuantity
		}
		if update.UnitPrice != nil {
			allocation.UnitPrice = *update.UnitPrice
		}
		if update.SerializationRequired != nil {
			allocation.SerializationRequired = *update.SerializationRequired
		}

		if err := tx.Save(&allocation).Error; err != nil {
			return err
		}

		return l.events.Record(tx, audit.Event{
			EntityType: audit.EntityAllocation,
			EntityID:   allocation.ID,
			Kind:       audit.KindConstraintsEdited,
			OldValues:  old,
			NewValues: models.Values{
				"name":                  allocation.Name,
				"totalQuantity":         allocation.TotalQuantity,
				"unitPrice":             allocation.UnitPrice,
				"serializationRequired": allocation.SerializationRequired,
			},
			ActorID:   actor,
			Timestamp: now,
		})
	})
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}
