// Package types implements special types for cellarlot.
package types

import (
	"golang.org/x/exp/slices"
)

// AllocationStatus is the lifecycle status of a supply allocation.
type AllocationStatus string

const (
	AllocationDraft     AllocationStatus = "draft"
	AllocationActive    AllocationStatus = "active"
	AllocationExhausted AllocationStatus = "exhausted"
	AllocationClosed    AllocationStatus = "closed"
)

// allocationTransitions is the allowed transition table for allocations.
// Statuses without an entry are terminal.
var allocationTransitions = map[AllocationStatus][]AllocationStatus{
	AllocationDraft:     {AllocationActive},
	AllocationActive:    {AllocationExhausted, AllocationClosed},
	AllocationExhausted: {AllocationClosed},
}

func (s AllocationStatus) Valid() bool {
	switch s {
	case AllocationDraft, AllocationActive, AllocationExhausted, AllocationClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition from s to target is allowed.
func (s AllocationStatus) CanTransitionTo(target AllocationStatus) bool {
	return slices.Contains(allocationTransitions[s], target)
}

func (s AllocationStatus) Terminal() bool {
	return len(allocationTransitions[s]) == 0
}

// VoucherState is the lifecycle state of a voucher.
//
// Locked is a fulfillment hold: a pick/ship process has claimed the
// voucher but not yet redeemed it. It is orthogonal to ownership.
type VoucherState string

const (
	VoucherIssued    VoucherState = "issued"
	VoucherLocked    VoucherState = "locked"
	VoucherRedeemed  VoucherState = "redeemed"
	VoucherCancelled VoucherState = "cancelled"
)

var voucherTransitions = map[VoucherState][]VoucherState{
	VoucherIssued: {VoucherLocked, VoucherCancelled},
	VoucherLocked: {VoucherRedeemed, VoucherIssued},
}

func (s VoucherState) Valid() bool {
	switch s {
	case VoucherIssued, VoucherLocked, VoucherRedeemed, VoucherCancelled:
		return true
	}
	return false
}

func (s VoucherState) CanTransitionTo(target VoucherState) bool {
	return slices.Contains(voucherTransitions[s], target)
}

// Terminal reports whether no further transition is permitted. Terminal
// vouchers are retained for audit, never deleted.
func (s VoucherState) Terminal() bool {
	return len(voucherTransitions[s]) == 0
}

// TransferStatus is the status of a proposed voucher ownership change.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferAccepted  TransferStatus = "accepted"
	TransferCancelled TransferStatus = "cancelled"
	TransferExpired   TransferStatus = "expired"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending: {TransferAccepted, TransferCancelled, TransferExpired},
}

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferAccepted, TransferCancelled, TransferExpired:
		return true
	}
	return false
}

func (s TransferStatus) CanTransitionTo(target TransferStatus) bool {
	return slices.Contains(transferTransitions[s], target)
}

func (s TransferStatus) Terminal() bool {
	return len(transferTransitions[s]) == 0
}

// CaseIntegrity is the integrity status of a case entitlement.
// Broken is monotonic, a broken case never becomes intact again.
type CaseIntegrity string

const (
	CaseIntact CaseIntegrity = "intact"
	CaseBroken CaseIntegrity = "broken"
)

func (s CaseIntegrity) Valid() bool {
	return s == CaseIntact || s == CaseBroken
}

// BreakReason describes why a case entitlement was broken.
type BreakReason string

const (
	BreakReasonTransfer          BreakReason = "transfer"
	BreakReasonTrade             BreakReason = "trade"
	BreakReasonPartialRedemption BreakReason = "partial_redemption"
)

func (r BreakReason) Valid() bool {
	switch r {
	case BreakReasonTransfer, BreakReasonTrade, BreakReasonPartialRedemption:
		return true
	}
	return false
}
