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

// CaseEntitlementTracker groups a fixed set of vouchers into a physical
// case and tracks its integrity. Breaking is monotonic: a voucher-level
// reversal never restores an intact case.
type CaseEntitlementTracker struct {
	db     *gorm.DB
	events audit.Sink
	clock  clock.Clock
}

func NewCaseEntitlementTracker(db *gorm.DB, events audit.Sink, clk clock.Clock) *CaseEntitlementTracker {
	return &CaseEntitlementTracker{db: db, events: events, clock: clk}
}

// CaseCreate is the input for creating a case entitlement over existing
// vouchers.
type CaseCreate struct {
	VoucherIDs []uuid.UUID `json:"voucherIds"`
}

// Create bundles the vouchers into a new intact case. All members must
// be issued, belong to the same customer and not already be part of a
// case.
func (t *CaseEntitlementTracker) Create(ctx context.Context, create CaseCreate, actor string) (models.CaseEntitlement, error) {
	if len(create.VoucherIDs) == 0 {
		return models.CaseEntitlement{}, ErrCaseNoMembers
	}

	var entitlement models.CaseEntitlement
	now := t.clock.Now()

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vouchers []models.Voucher
		err := forUpdate(tx).Where("id IN ?", create.VoucherIDs).Find(&vouchers).Error
		if err != nil {
			return err
		}

		if len(vouchers) != len(create.VoucherIDs) {
			return gorm.ErrRecordNotFound
		}

		owner := vouchers[0].OwnerID
		for _, voucher := range vouchers {
			if voucher.State != types.VoucherIssued {
				return &models.ImmutabilityViolationError{
					EntityType: audit.EntityVoucher,
					EntityID:   voucher.ID,
					Operation:  "create_case",
					State:      string(voucher.State),
				}
			}
			if voucher.CaseID != nil {
				return ErrVoucherAlreadyCased
			}
			if voucher.OwnerID != owner {
				return ErrCaseMixedOwners
			}
		}

		entitlement = models.CaseEntitlement{
			OriginalOwnerID: owner,
			Integrity:       types.CaseIntact,
		}

		if err := tx.Create(&entitlement).Error; err != nil {
			return err
		}

		err = tx.Model(&models.Voucher{}).
			Where("id IN ?", create.VoucherIDs).
			Update("case_id", entitlement.ID).Error
		if err != nil {
			return err
		}

		return t.events.Record(tx, audit.Event{
			EntityType: audit.EntityCase,
			EntityID:   entitlement.ID,
			Kind:       audit.KindCaseCreated,
			NewValues: models.Values{
				"ownerId":   owner,
				"integrity": types.CaseIntact,
				"members":   len(create.VoucherIDs),
			},
			ActorID:   actor,
			Timestamp: now,
		})
	})
	if err != nil {
		return models.CaseEntitlement{}, err
	}

	return entitlement, nil
}

// Get returns the case with its member vouchers.
func (t *CaseEntitlementTracker) Get(ctx context.Context, id uuid.UUID) (models.CaseEntitlement, error) {
	var entitlement models.CaseEntitlement
	err := t.db.WithContext(ctx).Preload("Vouchers").First(&entitlement, "id = ?", id).Error
	if err != nil {
		return models.CaseEntitlement{}, err
	}

	return entitlement, nil
}

// CheckIntegrity reports whether the case is still collectively held:
// the integrity flag is intact, every member voucher still belongs to
// the original customer and none has reached a terminal state.
func (t *CaseEntitlementTracker) CheckIntegrity(ctx context.Context, id uuid.UUID) (bool, error) {
	entitlement, err := t.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if !entitlement.Intact() {
		return false, nil
	}

	for _, voucher := range entitlement.Vouchers {
		if voucher.OwnerID != entitlement.OriginalOwnerID || voucher.Terminal() {
			return false, nil
		}
	}

	return true, nil
}

// Break marks the case as broken. Breaking is monotonic and idempotent:
// breaking an already broken case returns it unchanged without an error.
func (t *CaseEntitlementTracker) Break(ctx context.Context, id uuid.UUID, reason types.BreakReason, actor string) (models.CaseEntitlement, error) {
	if !reason.Valid() {
		return models.CaseEntitlement{}, ErrInvalidBreakReason
	}

	var entitlement models.CaseEntitlement
	now := t.clock.Now()

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&entitlement, "id = ?", id).Error; err != nil {
			return err
		}

		return t.breakCaseLocked(tx, &entitlement, reason, actor, now)
	})
	if err != nil {
		return models.CaseEntitlement{}, err
	}

	return entitlement, nil
}

// breakLocked breaks the case inside the caller's transaction. Used by
// the transfer coordinator and the voucher lifecycle as the explicit
// post-condition of mutations that take a member voucher out of
// collective custody.
func (t *CaseEntitlementTracker) breakLocked(tx *gorm.DB, id uuid.UUID, reason types.BreakReason, actor string, now time.Time) error {
	var entitlement models.CaseEntitlement
	if err := forUpdate(tx).First(&entitlement, "id = ?", id).Error; err != nil {
		return err
	}

	return t.breakCaseLocked(tx, &entitlement, reason, actor, now)
}

func (t *CaseEntitlementTracker) breakCaseLocked(tx *gorm.DB, entitlement *models.CaseEntitlement, reason types.BreakReason, actor string, now time.Time) error {
	// Already broken: breaking is monotonic, repeating it is not an error.
	if !entitlement.Intact() {
		return nil
	}

	entitlement.Integrity = types.CaseBroken
	entitlement.BrokenAt = &now
	entitlement.BrokenReason = &reason

	if err := tx.Save(entitlement).Error; err != nil {
		return err
	}

	return t.events.Record(tx, audit.Event{
		EntityType: audit.EntityCase,
		EntityID:   entitlement.ID,
		Kind:       audit.KindCaseBroken,
		OldValues:  models.Values{"integrity": types.CaseIntact},
		NewValues:  models.Values{"integrity": types.CaseBroken, "reason": reason, "brokenAt": now},
		ActorID:    actor,
		Timestamp:  now,
	})
}
