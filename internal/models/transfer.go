package models

import (
	"time"

	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
)

// VoucherTransfer is a proposed ownership change for exactly one voucher.
// It references the voucher but never owns it: only acceptance mutates
// the voucher, and only its owner field.
type VoucherTransfer struct {
	DefaultModel
	VoucherID      uuid.UUID            `json:"voucherId" gorm:"index"`
	Voucher        Voucher              `json:"-"`
	FromCustomerID uuid.UUID            `json:"fromCustomerId"`
	ToCustomerID   uuid.UUID            `json:"toCustomerId"`
	Status         types.TransferStatus `json:"status" gorm:"default:pending"`
	InitiatedAt    time.Time            `json:"initiatedAt"`
	ExpiresAt      time.Time            `json:"expiresAt"`
	AcceptedAt     *time.Time           `json:"acceptedAt,omitempty"`
	CancelledAt    *time.Time           `json:"cancelledAt,omitempty"`
}

// ExpiredAt reports whether the transfer's acceptance window has passed
// at the given instant. Only meaningful for pending transfers.
func (t VoucherTransfer) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
