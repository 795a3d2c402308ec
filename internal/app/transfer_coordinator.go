package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cellarlot/backend/internal/audit"
	"github.com/cellarlot/backend/internal/clock"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TransferCoordinator orchestrates the ownership transfer of a single
// voucher between two customers.
//
// The critical rule lives in Accept: the voucher state is re-read under
// a row lock at accept time, so a fulfillment lock taken after the
// transfer was initiated retroactively blocks acceptance without any
// coordination at initiation time. Cancellation, in contrast, is
// lock-blind: it only withdraws the proposal and never touches physical
// custody, so it must not check the fulfillment lock.
type TransferCoordinator struct {
	db     *gorm.DB
	events audit.Sink
	clock  clock.Clock
	cases  *CaseEntitlementTracker
}

func NewTransferCoordinator(db *gorm.DB, events audit.Sink, clk clock.Clock, cases *CaseEntitlementTracker) *TransferCoordinator {
	return &TransferCoordinator{db: db, events: events, clock: clk, cases: cases}
}

// TransferInitiate is the input for proposing a transfer.
type TransferInitiate struct {
	VoucherID    uuid.UUID `json:"voucherId"`
	ToCustomerID uuid.UUID `json:"toCustomerId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Initiate proposes a transfer of the voucher to another customer. The
// voucher itself is not mutated. At most one pending transfer may exist
// per voucher, enforced under the voucher row lock.
func (c *TransferCoordinator) Initiate(ctx context.Context, initiate TransferInitiate, actor string) (models.VoucherTransfer, error) {
	now := c.clock.Now()
	if !initiate.ExpiresAt.After(now) {
		return models.VoucherTransfer{}, ErrTransferExpiryInPast
	}

	var transfer models.VoucherTransfer

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voucher models.Voucher
		if err := forUpdate(tx).First(&voucher, "id = ?", initiate.VoucherID).Error; err != nil {
			return err
		}

		if !voucher.AllowsTrading() {
			state := string(voucher.State)
			if voucher.State == types.VoucherIssued {
				state = "not tradable"
				if voucher.Suspended {
					state = "suspended"
				}
			}

			return &models.ImmutabilityViolationError{
				EntityType: audit.EntityVoucher,
				EntityID:   voucher.ID,
				Operation:  "initiate_transfer",
				State:      state,
			}
		}

		// Both initiations would hold the voucher row lock here, so the
		// count cannot miss a concurrently created pending transfer.
		var pending int64
		err := tx.Model(&models.VoucherTransfer{}).
			Where("voucher_id = ? AND status = ?", voucher.ID, types.TransferPending).
			Count(&pending).Error
		if err != nil {
			return err
		}

		if pending > 0 {
			return &models.ConcurrencyConflictError{
				EntityType: audit.EntityVoucher,
				EntityID:   voucher.ID,
				Operation:  "initiate_transfer",
				Reason:     "duplicate transfer request: a pending transfer already exists for this voucher",
			}
		}

		transfer = models.VoucherTransfer{
			VoucherID:      voucher.ID,
			FromCustomerID: voucher.OwnerID,
			ToCustomerID:   initiate.ToCustomerID,
			Status:         types.TransferPending,
			InitiatedAt:    now,
			ExpiresAt:      initiate.ExpiresAt,
		}

		if err := tx.Create(&transfer).Error; err != nil {
			return err
		}

		return c.events.Record(tx, audit.Event{
			EntityType: audit.EntityTransfer,
			EntityID:   transfer.ID,
			Kind:       audit.KindTransferInitiated,
			NewValues: models.Values{
				"voucherId":      voucher.ID,
				"fromCustomerId": transfer.FromCustomerID,
				"toCustomerId":   transfer.ToCustomerID,
				"expiresAt":      transfer.ExpiresAt,
			},
			ActorID:   actor,
			Timestamp: now,
		})
	})
	if err != nil {
		return models.VoucherTransfer{}, err
	}

	return transfer, nil
}

// Accept resolves a pending transfer and reassigns the voucher's owner.
//
// The voucher state is re-read inside the transaction: a voucher that
// has been locked for fulfillment since initiation blocks acceptance
// with a conflict error carrying the lock timestamp. Accepting a member
// of a case breaks the case.
func (c *TransferCoordinator) Accept(ctx context.Context, id uuid.UUID, actor string) (models.VoucherTransfer, error) {
	var transfer models.VoucherTransfer
	now := c.clock.Now()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&transfer, "id = ?", id).Error; err != nil {
			return err
		}

		if transfer.Status != types.TransferPending {
			return &models.StateTransitionError{
				EntityType: audit.EntityTransfer,
				EntityID:   transfer.ID,
				Operation:  "accept_transfer",
				From:       string(transfer.Status),
				To:         string(types.TransferAccepted),
			}
		}

		if transfer.ExpiredAt(now) {
			return &models.StateTransitionError{
				EntityType: audit.EntityTransfer,
				EntityID:   transfer.ID,
				Operation:  "accept_transfer",
				From:       string(types.TransferExpired),
				To:         string(types.TransferAccepted),
			}
		}

		var voucher models.Voucher
		if err := forUpdate(tx).First(&voucher, "id = ?", transfer.VoucherID).Error; err != nil {
			return err
		}

		if voucher.State == types.VoucherLocked {
			return &models.ConcurrencyConflictError{
				EntityType: audit.EntityTransfer,
				EntityID:   transfer.ID,
				Operation:  "accept_transfer",
				Reason:     lockBlockedReason(voucher),
				LockedAt:   voucher.LockedAt,
			}
		}

		if voucher.State != types.VoucherIssued {
			return &models.ImmutabilityViolationError{
				EntityType: audit.EntityVoucher,
				EntityID:   voucher.ID,
				Operation:  "accept_transfer",
				State:      string(voucher.State),
			}
		}

		oldOwner := voucher.OwnerID
		voucher.OwnerID = transfer.ToCustomerID
		transfer.Status = types.TransferAccepted
		transfer.AcceptedAt = &now

		if err := tx.Save(&voucher).Error; err != nil {
			return err
		}

		if err := tx.Save(&transfer).Error; err != nil {
			return err
		}

		err := c.events.Record(tx, audit.Event{
			EntityType: audit.EntityTransfer,
			EntityID:   transfer.ID,
			Kind:       audit.KindTransferAccepted,
			OldValues:  models.Values{"status": types.TransferPending, "ownerId": oldOwner},
			NewValues:  models.Values{"status": types.TransferAccepted, "ownerId": voucher.OwnerID},
			ActorID:    actor,
			Timestamp:  now,
		})
		if err != nil {
			return err
		}

		// Explicit post-condition: an accepted transfer takes the
		// voucher out of collective custody.
		if voucher.CaseID != nil {
			return c.cases.breakLocked(tx, *voucher.CaseID, types.BreakReasonTransfer, actor, now)
		}

		return nil
	})
	if err != nil {
		return models.VoucherTransfer{}, err
	}

	return transfer, nil
}

// Cancel withdraws a pending transfer. It succeeds regardless of the
// voucher's fulfillment lock state and deliberately does not read the
// voucher at all.
func (c *TransferCoordinator) Cancel(ctx context.Context, id uuid.UUID, actor string) (models.VoucherTransfer, error) {
	var transfer models.VoucherTransfer
	now := c.clock.Now()

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&transfer, "id = ?", id).Error; err != nil {
			return err
		}

		if transfer.Status != types.TransferPending {
			return &models.StateTransitionError{
				EntityType: audit.EntityTransfer,
				EntityID:   transfer.ID,
				Operation:  "cancel_transfer",
				From:       string(transfer.Status),
				To:         string(types.TransferCancelled),
			}
		}

		transfer.Status = types.TransferCancelled
		transfer.CancelledAt = &now

		if err := tx.Save(&transfer).Error; err != nil {
			return err
		}

		return c.events.Record(tx, audit.Event{
			EntityType: audit.EntityTransfer,
			EntityID:   transfer.ID,
			Kind:       audit.KindTransferCancelled,
			OldValues:  models.Values{"status": types.TransferPending},
			NewValues:  models.Values{"status": types.TransferCancelled},
			ActorID:    actor,
			Timestamp:  now,
		})
	})
	if err != nil {
		return models.VoucherTransfer{}, err
	}

	return transfer, nil
}

// ExpireDue expires all pending transfers whose acceptance window has
// passed. It is idempotent and safe to run concurrently with manual
// accept and cancel calls: each transfer is re-checked under its row
// lock, and a transfer resolved in the meantime is skipped. Failures on
// single transfers are logged and retried on the next sweep cycle.
func (c *TransferCoordinator) ExpireDue(ctx context.Context) (int, error) {
	now := c.clock.Now()

	var ids []uuid.UUID
	err := c.db.WithContext(ctx).Model(&models.VoucherTransfer{}).
		Where("status = ? AND expires_at < ?", types.TransferPending, now).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		skipped := false
		err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var transfer models.VoucherTransfer
			if err := forUpdate(tx).First(&transfer, "id = ?", id).Error; err != nil {
				return err
			}

			// Resolved by a concurrent accept or cancel, nothing to do.
			if transfer.Status != types.TransferPending || !transfer.ExpiredAt(now) {
				skipped = true
				return nil
			}

			transfer.Status = types.TransferExpired

			if err := tx.Save(&transfer).Error; err != nil {
				return err
			}

			return c.events.Record(tx, audit.Event{
				EntityType: audit.EntityTransfer,
				EntityID:   transfer.ID,
				Kind:       audit.KindTransferExpired,
				OldValues:  models.Values{"status": types.TransferPending},
				NewValues:  models.Values{"status": types.TransferExpired, "expiresAt": transfer.ExpiresAt},
				ActorID:    "sweep",
				Timestamp:  now,
			})
		})
		if err != nil {
			log.Error().Err(err).Str("transfer", id.String()).Msg("expiry sweep: could not expire transfer")
			continue
		}
		if !skipped {
			expired++
		}
	}

	return expired, nil
}

// TransferDiagnostics are derived predicates for callers that need to
// render the current standing of a transfer without issuing commands.
type TransferDiagnostics struct {
	CanCurrentlyBeAccepted  bool   `json:"canCurrentlyBeAccepted"`
	AcceptanceBlockedByLock bool   `json:"acceptanceBlockedByLock"`
	AcceptanceBlockedReason string `json:"acceptanceBlockedReason,omitempty"`
	CanBeCancelled          bool   `json:"canBeCancelled"`
}

// Diagnose loads the transfer and its voucher and computes the
// diagnostic predicates against the current clock.
func (c *TransferCoordinator) Diagnose(ctx context.Context, id uuid.UUID) (models.VoucherTransfer, TransferDiagnostics, error) {
	var transfer models.VoucherTransfer
	err := c.db.WithContext(ctx).First(&transfer, "id = ?", id).Error
	if err != nil {
		return models.VoucherTransfer{}, TransferDiagnostics{}, err
	}

	var voucher models.Voucher
	err = c.db.WithContext(ctx).First(&voucher, "id = ?", transfer.VoucherID).Error
	if err != nil {
		return models.VoucherTransfer{}, TransferDiagnostics{}, err
	}

	return transfer, Diagnose(transfer, voucher, c.clock.Now()), nil
}

// Diagnose computes the diagnostic predicates for a transfer and its
// voucher at the given instant.
func Diagnose(transfer models.VoucherTransfer, voucher models.Voucher, now time.Time) TransferDiagnostics {
	d := TransferDiagnostics{
		CanBeCancelled: transfer.Status == types.TransferPending,
	}

	if transfer.Status != types.TransferPending || transfer.ExpiredAt(now) {
		return d
	}

	if voucher.State == types.VoucherLocked {
		d.AcceptanceBlockedByLock = true
		d.AcceptanceBlockedReason = lockBlockedReason(voucher)
		return d
	}

	d.CanCurrentlyBeAccepted = voucher.State == types.VoucherIssued
	return d
}

// lockBlockedReason renders the user-facing explanation for an
// acceptance blocked by a fulfillment lock, including the lock
// timestamp.
func lockBlockedReason(voucher models.Voucher) string {
	lockedAt := "an unknown time"
	if voucher.LockedAt != nil {
		lockedAt = voucher.LockedAt.Format(time.RFC3339)
	}

	return fmt.Sprintf("voucher %s was locked for fulfillment at %s, acceptance is blocked until the lock is released; cancelling the transfer remains possible", voucher.ID, lockedAt)
}
