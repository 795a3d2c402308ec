// Package app implements the entitlement core: the allocation ledger,
// the voucher lifecycle, the transfer coordinator and the case
// entitlement tracker.
//
// Every mutation runs in a single database transaction and re-reads the
// rows it touches under a row lock before changing them. State read
// outside the transaction is never trusted. Each committed mutation is
// recorded on the audit sink inside the same transaction.
package app

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidQuantity      = errors.New("the quantity must be larger than zero")
	ErrTransferExpiryInPast = errors.New("the transfer expiry must be in the future")
	ErrCaseNoMembers        = errors.New("a case entitlement needs at least one member voucher")
	ErrCaseMixedOwners      = errors.New("all member vouchers of a case must belong to the same customer")
	ErrVoucherAlreadyCased  = errors.New("the voucher already belongs to a case entitlement")
	ErrInvalidStatus        = errors.New("the status is not valid")
	ErrInvalidBreakReason   = errors.New("the break reason is not valid")
)

// forUpdate locks the selected rows for the duration of the transaction.
// The sqlite driver drops the clause since sqlite serializes writers
// anyway; on other dialects it becomes SELECT ... FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
