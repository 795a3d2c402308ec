package models

import (
	"strings"

	"github.com/cellarlot/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Allocation is a finite supply pool for one product variant and format.
// Vouchers are issued against it until the pool is exhausted.
type Allocation struct {
	DefaultModel
	Name                  string                 `json:"name"`
	Note                  string                 `json:"note,omitempty"`
	Status                types.AllocationStatus `json:"status" gorm:"default:draft"`
	TotalQuantity         uint                   `json:"totalQuantity"`
	SoldQuantity          uint                   `json:"soldQuantity"`
	UnitPrice             decimal.Decimal        `json:"unitPrice" gorm:"type:DECIMAL(20,8)"`
	SerializationRequired bool                   `json:"serializationRequired"`
}

// RemainingQuantity is always derived from the counters, never stored.
func (a Allocation) RemainingQuantity() uint {
	if a.SoldQuantity > a.TotalQuantity {
		return 0
	}
	return a.TotalQuantity - a.SoldQuantity
}

func (a *Allocation) BeforeSave(_ *gorm.DB) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Note = strings.TrimSpace(a.Note)

	if a.Status == "" {
		a.Status = types.AllocationDraft
	}

	return nil
}

// AfterSave guards the counter invariant. The compare-and-increment in
// the ledger already enforces it under the row lock, this catches any
// write that bypasses the ledger.
func (a *Allocation) AfterSave(_ *gorm.DB) error {
	if a.SoldQuantity > a.TotalQuantity {
		return &CapacityExceededError{
			AllocationID: a.ID,
			Sold:         a.SoldQuantity,
			Total:        a.TotalQuantity,
		}
	}

	return nil
}
