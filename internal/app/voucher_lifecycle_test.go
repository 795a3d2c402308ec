package app_test

import (
	"time"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/audit"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
)

func (suite *TestSuiteStandard) TestVoucherIssueConsumesSupply() {
	allocation := suite.createTestAllocation(2)
	owner := uuid.New()

	voucher, err := suite.vouchers.Issue(suite.ctx(), app.VoucherIssue{
		AllocationID: allocation.ID,
		OwnerID:      owner,
		Tradable:     true,
		Giftable:     true,
	}, "shop")
	suite.Require().NoError(err)

	suite.Assert().Equal(types.VoucherIssued, voucher.State)
	suite.Assert().Equal(uint(1), voucher.Quantity)
	suite.Assert().Equal(owner, voucher.OwnerID)
	suite.Assert().Nil(voucher.CaseID)

	// Issuing sold one unit of the allocation.
	suite.Assert().Equal(uint(1), suite.rereadAllocation(allocation.ID).SoldQuantity)
	suite.Require().Len(suite.events.ByKind(audit.KindVoucherIssued), 1)
	suite.Require().Len(suite.events.ByKind(audit.KindAllocationSale), 1)
}

func (suite *TestSuiteStandard) TestVoucherIssueExhaustsAllocation() {
	allocation := suite.createTestAllocation(1)

	_, err := suite.vouchers.Issue(suite.ctx(), app.VoucherIssue{
		AllocationID: allocation.ID,
		OwnerID:      uuid.New(),
	}, "shop")
	suite.Require().NoError(err)

	suite.Assert().Equal(types.AllocationExhausted, suite.rereadAllocation(allocation.ID).Status)

	// No supply left, no voucher.
	_, err = suite.vouchers.Issue(suite.ctx(), app.VoucherIssue{
		AllocationID: allocation.ID,
		OwnerID:      uuid.New(),
	}, "shop")
	suite.Require().Error(err)

	var immutableErr *models.ImmutabilityViolationError
	suite.Assert().ErrorAs(err, &immutableErr)

	var count int64
	suite.Require().NoError(models.DB.Model(&models.Voucher{}).Count(&count).Error)
	suite.Assert().Equal(int64(1), count)
}

func (suite *TestSuiteStandard) TestVoucherIssueOverCapacity() {
	allocation := suite.createTestAllocation(3)

	_, err := suite.vouchers.Issue(suite.ctx(), app.VoucherIssue{
		AllocationID: allocation.ID,
		OwnerID:      uuid.New(),
		Quantity:     4,
	}, "shop")

	var capacityErr *models.CapacityExceededError
	suite.Require().ErrorAs(err, &capacityErr)
	suite.Assert().Equal(uint(4), capacityErr.Requested)
	suite.Assert().Equal(uint(0), suite.rereadAllocation(allocation.ID).SoldQuantity)
}

func (suite *TestSuiteStandard) TestVoucherLockUnlockCycle() {
	voucher := suite.issueTestVoucher(uuid.New())

	locked, err := suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)
	suite.Assert().Equal(types.VoucherLocked, locked.State)
	suite.Require().NotNil(locked.LockedAt)
	suite.Assert().True(locked.LockedAt.Equal(suite.clock.now))

	unlocked, err := suite.vouchers.Unlock(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)
	suite.Assert().Equal(types.VoucherIssued, unlocked.State)
}

func (suite *TestSuiteStandard) TestVoucherRedeemRequiresLock() {
	voucher := suite.issueTestVoucher(uuid.New())

	_, err := suite.vouchers.Redeem(suite.ctx(), voucher.ID, "warehouse")

	var transitionErr *models.StateTransitionError
	suite.Require().ErrorAs(err, &transitionErr)
	suite.Assert().Equal(string(types.VoucherIssued), transitionErr.From)
	suite.Assert().Equal(string(types.VoucherRedeemed), transitionErr.To)

	_, err = suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)

	redeemed, err := suite.vouchers.Redeem(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)
	suite.Assert().Equal(types.VoucherRedeemed, redeemed.State)
	suite.Assert().True(redeemed.Terminal())
}

func (suite *TestSuiteStandard) TestVoucherCancelFromLockedRejected() {
	voucher := suite.issueTestVoucher(uuid.New())

	_, err := suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)

	_, err = suite.vouchers.Cancel(suite.ctx(), voucher.ID, "support")

	var transitionErr *models.StateTransitionError
	suite.Require().ErrorAs(err, &transitionErr)
	suite.Assert().Equal("cancel", transitionErr.Operation)
}

func (suite *TestSuiteStandard) TestVoucherTerminalStatesAreFrozen() {
	voucher := suite.issueTestVoucher(uuid.New())

	_, err := suite.vouchers.Cancel(suite.ctx(), voucher.ID, "support")
	suite.Require().NoError(err)

	// No transition leaves a terminal state.
	_, err = suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	var transitionErr *models.StateTransitionError
	suite.Assert().ErrorAs(err, &transitionErr)

	// Flags are frozen too.
	_, err = suite.vouchers.SetTradable(suite.ctx(), voucher.ID, false, "support")
	var immutableErr *models.ImmutabilityViolationError
	suite.Require().ErrorAs(err, &immutableErr)
	suite.Assert().Equal(string(types.VoucherCancelled), immutableErr.State)
}

func (suite *TestSuiteStandard) TestVoucherLockedAtSurvivesUnlock() {
	voucher := suite.issueTestVoucher(uuid.New())

	_, err := suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)

	suite.clock.Advance(10 * time.Minute)

	unlocked, err := suite.vouchers.Unlock(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)
	suite.Assert().NotNil(unlocked.LockedAt)
}

func (suite *TestSuiteStandard) TestVoucherFlags() {
	voucher := suite.issueTestVoucher(uuid.New())

	updated, err := suite.vouchers.SetTradable(suite.ctx(), voucher.ID, false, "support")
	suite.Require().NoError(err)
	suite.Assert().False(updated.Tradable)
	suite.Assert().False(updated.AllowsTrading())

	updated, err = suite.vouchers.SetGiftable(suite.ctx(), voucher.ID, true, "support")
	suite.Require().NoError(err)
	suite.Assert().True(updated.Giftable)

	updated, err = suite.vouchers.SetTradable(suite.ctx(), voucher.ID, true, "support")
	suite.Require().NoError(err)

	updated, err = suite.vouchers.Suspend(suite.ctx(), voucher.ID, "compliance")
	suite.Require().NoError(err)
	suite.Assert().True(updated.Suspended)
	suite.Assert().False(updated.AllowsTrading())

	updated, err = suite.vouchers.Reactivate(suite.ctx(), voucher.ID, "compliance")
	suite.Require().NoError(err)
	suite.Assert().False(updated.Suspended)
	suite.Assert().True(updated.AllowsTrading())

	suite.Assert().Len(suite.events.ByKind(audit.KindVoucherFlagsChange), 5)
}

func (suite *TestSuiteStandard) TestVoucherSuspensionDoesNotBlockFulfillment() {
	voucher := suite.issueTestVoucher(uuid.New())

	_, err := suite.vouchers.Suspend(suite.ctx(), voucher.ID, "compliance")
	suite.Require().NoError(err)

	// Suspension freezes trading, not the lifecycle.
	locked, err := suite.vouchers.LockForFulfillment(suite.ctx(), voucher.ID, "warehouse")
	suite.Require().NoError(err)
	suite.Assert().Equal(types.VoucherLocked, locked.State)
}

func (suite *TestSuiteStandard) TestVoucherTransitionNotFound() {
	_, err := suite.vouchers.LockForFulfillment(suite.ctx(), uuid.New(), "warehouse")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}
