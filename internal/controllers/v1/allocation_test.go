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

func (suite *TestSuiteStandard) TestOptionsAllocation() {
	r := test.Request(suite.controller, suite.T(), http.MethodOptions, "http://example.com/v1/allocations", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusNoContent)
	suite.Assert().Equal("GET, POST", r.Header().Get("allow"))

	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Options", TotalQuantity: 5}, false)
	r = test.Request(suite.controller, suite.T(), http.MethodOptions, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusNoContent)
	suite.Assert().Equal("GET, PATCH", r.Header().Get("allow"))
}

func (suite *TestSuiteStandard) TestCreateAllocation() {
	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations", app.AllocationCreate{
		Name:          "Pomerol 2020",
		TotalQuantity: 60,
		UnitPrice:     decimal.NewFromFloat(120),
	}, map[string]string{"X-Actor": "buyer-1"})
	assertHTTPStatus(suite.T(), &r, http.StatusCreated)

	var response v1.AllocationResponse
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal("Pomerol 2020", response.Data.Name)
	suite.Assert().Equal(types.AllocationDraft, response.Data.Status)
}

func (suite *TestSuiteStandard) TestCreateAllocationInvalidBody() {
	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations", `{ "totalQuantity": "many" }`)
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations", "")
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestCreateAllocationZeroQuantity() {
	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations", app.AllocationCreate{Name: "None"})
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestGetAllocations() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.Assert().JSONEq(`{ "data": [] }`, r.Body.String())

	suite.createTestAllocation(app.AllocationCreate{Name: "Draft", TotalQuantity: 5}, false)
	suite.createTestAllocation(app.AllocationCreate{Name: "Active", TotalQuantity: 5}, true)

	var response v1.AllocationListResponse
	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Assert().Len(response.Data, 2)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations?status=draft", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Assert().Equal("Draft", response.Data[0].Name)
}

func (suite *TestSuiteStandard) TestGetAllocation() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Single", TotalQuantity: 5}, false)

	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.AllocationResponse
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(allocation.Data.ID, response.Data.ID)
}

func (suite *TestSuiteStandard) TestGetAllocationNotFound() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations/"+uuid.NewString(), nil)
	assertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestGetAllocationInvalidID() {
	r := test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations/NotParseableAsUUID", nil)
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestEditAllocationConstraints() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Editable", TotalQuantity: 10}, false)

	r := test.Request(suite.controller, suite.T(), http.MethodPatch, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), `{ "totalQuantity": 20 }`)
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.AllocationResponse
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(uint(20), response.Data.TotalQuantity)
}

func (suite *TestSuiteStandard) TestEditAllocationConstraintsConflict() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Frozen", TotalQuantity: 10}, true)

	r := test.Request(suite.controller, suite.T(), http.MethodPatch, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), `{ "totalQuantity": 20 }`)
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)
}

func (suite *TestSuiteStandard) TestTransitionAllocationInvalid() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Stuck", TotalQuantity: 10}, false)

	// Draft cannot jump to closed directly.
	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations/"+allocation.Data.ID.String()+"/transition", v1.AllocationTransition{Target: types.AllocationClosed})
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)

	r = test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations/"+allocation.Data.ID.String()+"/transition", `{ "target": "melted" }`)
	assertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestRecordAllocationSale() {
	allocation := suite.createTestAllocation(app.AllocationCreate{Name: "Selling", TotalQuantity: 10}, true)

	r := test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations/"+allocation.Data.ID.String()+"/sales", v1.AllocationSale{Quantity: 4})
	assertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.AllocationResponse
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(uint(4), response.Data.SoldQuantity)

	// Overselling is a conflict and leaves the counter untouched.
	r = test.Request(suite.controller, suite.T(), http.MethodPost, "http://example.com/v1/allocations/"+allocation.Data.ID.String()+"/sales", v1.AllocationSale{Quantity: 7})
	assertHTTPStatus(suite.T(), &r, http.StatusConflict)

	r = test.Request(suite.controller, suite.T(), http.MethodGet, "http://example.com/v1/allocations/"+allocation.Data.ID.String(), nil)
	suite.decodeResponse(&r, &response)
	suite.Assert().Equal(uint(4), response.Data.SoldQuantity)
}
