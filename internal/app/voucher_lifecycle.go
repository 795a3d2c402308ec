package app

import (
	"context"
	"time"

	"github.com/cellarlot/backend/internal/audit"
	"github.com/cellarlot/backend/internal/clock"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoucherLifecycle owns the per-voucher state machine and the behavioral
// flags. The fulfillment system drives Lock/Unlock/Redeem as commands
// against this component, the core never reaches out to it.
type VoucherLifecycle struct {
	db     *gorm.DB
	events audit.Sink
	clock  clock.Clock
	ledger *AllocationLedger
	cases  *CaseEntitlementTracker
}

func NewVoucherLifecycle(db *gorm.DB, events audit.Sink, clk clock.Clock, ledger *AllocationLedger, cases *CaseEntitlementTracker) *VoucherLifecycle {
	return &VoucherLifecycle{db: db, events: events, clock: clk, ledger: ledger, cases: cases}
}

// VoucherIssue is the input for issuing a new voucher from an allocation.
type VoucherIssue struct {
	AllocationID uuid.UUID `json:"allocationId"`
	OwnerID      uuid.UUID `json:"ownerId"`
	Quantity     uint      `json:"quantity"`
	Tradable     bool      `json:"tradable"`
	Giftable     bool      `json:"giftable"`
}

// Issue creates a voucher and consumes the corresponding supply from the
// allocation in the same transaction, so a voucher can never exist
// without its unit having been sold.
func (s *VoucherLifecycle) Issue(ctx context.Context, issue VoucherIssue, actor string) (models.Voucher, error) {
	if issue.Quantity == 0 {
		issue.Quantity = 1
	}

	var voucher models.Voucher
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var allocation models.Allocation
		if err := forUpdate(tx).First(&allocation, "id = ?", issue.AllocationID).Error; err != nil {
			return err
		}

		if err := s.ledger.recordSaleLocked(tx, &allocation, issue.Quantity, actor, now); err != nil {
			return err
		}

		voucher = models.Voucher{
			AllocationID: allocation.ID,
			OwnerID:      issue.OwnerID,
			Quantity:     issue.Quantity,
			State:        types.VoucherIssued,
			Tradable:     issue.Tradable,
			Giftable:     issue.Giftable,
		}

		if err := tx.Create(&voucher).Error; err != nil {
			return err
		}

		return s.events.Record(tx, audit.Event{
			EntityType: audit.EntityVoucher,
			EntityID:   voucher.ID,
			Kind:       audit.KindVoucherIssued,
			NewValues: models.Values{
				"allocationId": allocation.ID,
				"ownerId":      voucher.OwnerID,
				"quantity":     voucher.Quantity,
				"state":        voucher.State,
			},
			ActorID:   actor,
			Timestamp: now,
		})
	})
	if err != nil {
		return models.Voucher{}, err
	}

	return voucher, nil
}

// LockForFulfillment places a fulfillment hold on an issued voucher. The
// lock timestamp is recorded so that a blocked transfer acceptance can
// report the age of the hold.
func (s *VoucherLifecycle) LockForFulfillment(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.transition(ctx, id, types.VoucherLocked, "lock_for_fulfillment", actor, func(v *models.Voucher, now time.Time) {
		v.LockedAt = &now
	})
}

// Unlock releases a fulfillment hold, returning the voucher to issued.
func (s *VoucherLifecycle) Unlock(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.transition(ctx, id, types.VoucherIssued, "unlock", actor, nil)
}

// Redeem marks a locked voucher as fulfilled. Redeemed is terminal. If
// the voucher belongs to a case, redeeming it individually breaks the
// case.
func (s *VoucherLifecycle) Redeem(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.transition(ctx, id, types.VoucherRedeemed, "redeem", actor, nil)
}

// Cancel voids an issued voucher. Cancelled is terminal.
func (s *VoucherLifecycle) Cancel(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.transition(ctx, id, types.VoucherCancelled, "cancel", actor, nil)
}

// transition re-reads the voucher under a row lock, validates the target
// against the transition table and applies the mutation, all inside one
// transaction. A cached state read from before the call is never used.
func (s *VoucherLifecycle) transition(ctx context.Context, id uuid.UUID, target types.VoucherState, operation string, actor string, mutate func(*models.Voucher, time.Time)) (models.Voucher, error) {
	var voucher models.Voucher
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&voucher, "id = ?", id).Error; err != nil {
			return err
		}

		if !voucher.State.CanTransitionTo(target) {
			return &models.StateTransitionError{
				EntityType: audit.EntityVoucher,
				EntityID:   voucher.ID,
				Operation:  operation,
				From:       string(voucher.State),
				To:         string(target),
			}
		}

		oldState := voucher.State
		voucher.State = target
		if mutate != nil {
			mutate(&voucher, now)
		}

		if err := tx.Save(&voucher).Error; err != nil {
			return err
		}

		err := s.events.Record(tx, audit.Event{
			EntityType: audit.EntityVoucher,
			EntityID:   voucher.ID,
			Kind:       audit.KindLifecycleChange,
			OldValues:  models.Values{"state": oldState},
			NewValues:  models.Values{"state": target, "transitionedAt": now},
			ActorID:    actor,
			Timestamp:  now,
		})
		if err != nil {
			return err
		}

		// An individual redemption takes the voucher out of collective
		// custody, which breaks its case.
		if target == types.VoucherRedeemed && voucher.CaseID != nil {
			return s.cases.breakLocked(tx, *voucher.CaseID, types.BreakReasonPartialRedemption, actor, now)
		}

		return nil
	})
	if err != nil {
		return models.Voucher{}, err
	}

	return voucher, nil
}

// SetTradable sets the tradable flag.
func (s *VoucherLifecycle) SetTradable(ctx context.Context, id uuid.UUID, tradable bool, actor string) (models.Voucher, error) {
	return s.setFlags(ctx, id, "set_tradable", actor, func(v *models.Voucher) {
		v.Tradable = tradable
	})
}

// SetGiftable sets the giftable flag.
func (s *VoucherLifecycle) SetGiftable(ctx context.Context, id uuid.UUID, giftable bool, actor string) (models.Voucher, error) {
	return s.setFlags(ctx, id, "set_giftable", actor, func(v *models.Voucher) {
		v.Giftable = giftable
	})
}

// Suspend freezes the voucher for trading without touching its state.
func (s *VoucherLifecycle) Suspend(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.setFlags(ctx, id, "suspend", actor, func(v *models.Voucher) {
		v.Suspended = true
	})
}

// Reactivate lifts a suspension.
func (s *VoucherLifecycle) Reactivate(ctx context.Context, id uuid.UUID, actor string) (models.Voucher, error) {
	return s.setFlags(ctx, id, "reactivate", actor, func(v *models.Voucher) {
		v.Suspended = false
	})
}

// setFlags applies a flag mutation to a non-terminal voucher. Terminal
// vouchers are frozen entirely.
func (s *VoucherLifecycle) setFlags(ctx context.Context, id uuid.UUID, operation string, actor string, apply func(*models.Voucher)) (models.Voucher, error) {
	var voucher models.Voucher
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&voucher, "id = ?", id).Error; err != nil {
			return err
		}

		if voucher.Terminal() {
			return &models.ImmutabilityViolationError{
				EntityType: audit.EntityVoucher,
				EntityID:   voucher.ID,
				Operation:  operation,
				State:      string(voucher.State),
			}
		}

		old := models.Values{
			"tradable":  voucher.Tradable,
			"giftable":  voucher.Giftable,
			"suspended": voucher.Suspended,
		}

		apply(&voucher)

		if err := tx.Save(&voucher).Error; err != nil {
			return err
		}

		return s.events.Record(tx, audit.Event{
			EntityType: audit.EntityVoucher,
			EntityID:   voucher.ID,
			Kind:       audit.KindVoucherFlagsChange,
			OldValues:  old,
			NewValues: models.Values{
				"tradable":  voucher.Tradable,
				"giftable":  voucher.Giftable,
				"suspended": voucher.Suspended,
			},
			ActorID:   actor,
			Timestamp: now,
		})
	})
	if err != nil {
		return models.Voucher{}, err
	}

	return voucher, nil
}
