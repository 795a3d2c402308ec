package models

import (
	"time"

	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
)

// Voucher is one customer's entitlement to a unit of product drawn from
// an Allocation. Terminal vouchers are retained for audit, never deleted.
type Voucher struct {
	DefaultModel
	AllocationID uuid.UUID          `json:"allocationId" gorm:"index"`
	Allocation   Allocation         `json:"-"`
	OwnerID      uuid.UUID          `json:"ownerId" gorm:"index"` // current owning customer
	Quantity     uint               `json:"quantity" gorm:"default:1"`
	State        types.VoucherState `json:"state" gorm:"default:issued"`
	Tradable     bool               `json:"tradable"`
	Giftable     bool               `json:"giftable"`
	Suspended    bool               `json:"suspended"`
	// LockedAt is the time of the last fulfillment lock. It is kept on
	// unlock so diagnostics can reference the most recent hold.
	LockedAt *time.Time       `json:"lockedAt,omitempty"`
	CaseID   *uuid.UUID       `json:"caseId,omitempty" gorm:"index"`
	Case     *CaseEntitlement `json:"-"`
}

// Terminal reports whether the voucher can never transition again.
func (v Voucher) Terminal() bool {
	return v.State.Terminal()
}

// AllowsTrading reports whether the voucher may be offered for transfer.
// Only issued, tradable, unsuspended vouchers qualify.
func (v Voucher) AllowsTrading() bool {
	return v.State == types.VoucherIssued && v.Tradable && !v.Suspended
}
