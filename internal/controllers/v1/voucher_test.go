package v1_test

import (
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	v1 "github.com/cellarlot/backend/internal/controllers/v1"
	"github.com/cellarlot/backend/internal/test"
	"github.com/cellarlot/backend/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestIssueVoucher() {
	allocation := suite.createTestAllocation(app.AllocationCreate{
		Name:          "Issuable",
		TotalQuantity: 6,
		UnitPrice:     decimal.NewFromFloat(30),
	}, true)
	owner := uuid.New()

	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/vouchers", app.VoucherIssue{
		AllocationID: allocation.Data.ID,
		OwnerID:      owner,
		Tradable:     true,
	})
	assertHTTPStatus(suite.T(), &r, http.StatusCreated)

	var response v1.VoucherResponse
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(types.VoucherIssued, response.Data.State)
	suite.Assert().Equal(owner, response.Data.OwnerID)

	// Issuing consumed one unit of supply.
	var a v1.AllocationResponse
	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), nil)
	suite.decodeResponse(&r, &a)
	suite.Assert().Equal(uint(1), a.Data.SoldQuantity)
}

func (suite *TestSuiteStandard) TestIssueVoucherFromDraftAllocation() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Dormant", TotalQuantity: 6}, false)

	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/vouchers", app.VoucherIssue{
		AllocationID: allocation.Data.ID,
		OwnerID:      uuid.New(),
	})
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)
}

func (suite *TestSuiteStandard) TestGetVouchersFilters() {
	owner := uuid.New()
	suite.createTestVoucher(owner)
	suite.createTestVoucher(uuid.New())

	var response v1.VoucherListResponse
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/vouchers", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().Len(response.Data, 2)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/vouchers?owner="+owner.String(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal(owner, response.Data[0].OwnerID)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/vouchers?owner=NotAUUID", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/vouchers?state=redeemed", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().Empty(response.Data)
}

func (suite *TestSuiteStandard) TestVoucherLifecycleRoutes() {
	voucher := suite.createTestVoucher(uuid.New())
	base := "http://example.com/v1/vouchers/" + voucher.Data.ID.String()

	var response v1.VoucherResponse

	r := test.Request(suite.controller, suite.T(), http.MethodPost, base+"/lock", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(types.VoucherLocked, response.Data.State)
	suite.Assert().NotNil(response.Data.LockedAt)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, base+"/unlock", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, base+"/lock", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, base+"/redeem", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(types.VoucherRedeemed, response.Data.State)

	// Terminal, no way back.
	r = test.Request(suite.controller, suite.T(), http.MethodPost, base+"/cancel", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)
}

func (suite *TestSuiteStandard) TestRedeemIssuedVoucherConflict() {
	voucher := suite.createTestVoucher(uuid.New())

	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/vouchers/"+voucher.Data.ID.String()+"/redeem", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)
}

func (suite *TestSuiteStandard) TestUpdateVoucherFlags() {
	voucher := suite.createTestVoucher(uuid.New())
	url := "http://example.com/v1/vouchers/" + voucher.Data.ID.String()

	var response v1.VoucherResponse

	r := test.Request(suite.controller, suite.T(), http.MethodPatch, url, `{ "tradable": false, "giftable": true }`)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().False(response.Data.Tradable)
	suite.Assert().True(response.Data.Giftable)

	r = test.Request(suite.controller, suite.T(), http.MethodPatch, url, `{ "suspended": true }`)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().True(response.Data.Suspended)

	r = test.Request(suite.controller, suite.T(), http.MethodPatch, url, `{ "suspended": false }`)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().False(response.Data.Suspended)
}

func (suite *TestSuiteStandard) TestUpdateVoucherFlagsTerminal() {
	voucher := suite.createTestVoucher(uuid.New())
	url := "http://example.com/v1/vouchers/" + voucher.Data.ID.String()

	r := test.Request(suite.controller, suite.T(), http.MethodPost, url+"/cancel", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	r = test.Request(suite.controller, suite.T(), http.MethodPatch, url, `{ "tradable": false }`)
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)
}

func (suite *TestSuiteStandard) TestVoucherNotFound() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/vouchers/"+uuid.NewString(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusNotFound)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/vouchers/"+uuid.NewString()+"/lock", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}
