package models

import (
	"time"

	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
)

// CaseEntitlement is a fixed-membership bundle of vouchers sold as one
// physical case. Its integrity flag is monotonic: once a member voucher
// leaves collective custody the case is broken and stays broken, no
// matter what happens to the member vouchers afterwards.
type CaseEntitlement struct {
	DefaultModel
	OriginalOwnerID uuid.UUID           `json:"originalOwnerId"`
	Integrity       types.CaseIntegrity `json:"integrity" gorm:"default:intact"`
	BrokenAt        *time.Time          `json:"brokenAt,omitempty"`
	BrokenReason    *types.BreakReason  `json:"brokenReason,omitempty"`
	Vouchers        []Voucher           `json:"-" gorm:"foreignKey:CaseID"`
}

// Intact reports whether the case has never been broken.
func (c CaseEntitlement) Intact() bool {
	return c.Integrity == types.CaseIntact
}
