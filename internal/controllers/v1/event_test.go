package v1_test

import (
	"net/http"

	"github.com/cellarlot/backend/internal/audit"
	v1 "github.com/cellarlot/backend/internal/controllers/v1"
	"github.com/cellarlot/backend/internal/test"
	"github.com/google/uuid"
)

func (suite *TestSuiteStandard) TestGetEventsEmpty() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.Assert().JSONEq(`{ "data": [] }`, r.Body.String())
}

func (suite *TestSuiteStandard) TestGetEvents() {
	voucher := suite.createTestVoucher(uuid.New())

	var response v1.EventListResponse
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)

	// Allocation create, activation, sale and voucher issue all leave
	// their trail.
	suite.Assert().NotEmpty(response.Data)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events?kind="+audit.KindVoucherIssued, nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal(voucher.Data.ID, response.Data[0].EntityID)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events?entityId="+voucher.Data.ID.String(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal(audit.KindVoucherIssued, response.Data[0].Kind)
}

func (suite *TestSuiteStandard) TestGetEventsEntityGlob() {
	suite.createTestVoucher(uuid.New())

	var response v1.EventListResponse
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events?entity=alloc*", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Require().NotEmpty(response.Data)
	for _, event := range response.Data {
		suite.Assert().Equal(audit.EntityAllocation, event.EntityType)
	}

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events?entity=submarine*", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.Assert().JSONEq(`{ "data": [] }`, r.Body.String())
}

func (suite *TestSuiteStandard) TestGetEventsInvalidEntityID() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/events?entityId=NotAUUID", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}
