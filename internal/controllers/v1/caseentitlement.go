package v1

import (
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/gin-gonic/gin"
)

type CaseResponse struct {
	Data models.CaseEntitlement `json:"data"`
}

// CaseDetail is the detail representation of a case, including the
// result of the integrity check against the current member vouchers.
type CaseDetail struct {
	models.CaseEntitlement
	Members  []models.Voucher `json:"members"`
	IsIntact bool             `json:"isIntact"`
}

type CaseDetailResponse struct {
	Data CaseDetail `json:"data"`
}

// RegisterCaseRoutes registers the routes for case entitlements with
// the RouterGroup that is passed.
func (co Controller) RegisterCaseRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", httputil.OptionsPost)
		r.POST("", co.CreateCase)
	}

	{
		r.OPTIONS("/:id", httputil.OptionsGet)
		r.GET("/:id", co.GetCase)
		r.POST("/:id/break", co.BreakCase)
	}
}

// @Summary		Create case entitlement
// @Description	Bundles existing vouchers into an intact case
// @Tags			Cases
// @Produce		json
// @Success		201	{object}	CaseResponse
// @Failure		409	{object}	httperror.Error
// @Param			case	body	app.CaseCreate	true	"Case"
// @Router			/v1/cases [post]
func (co Controller) CreateCase(c *gin.Context) {
	var create app.CaseCreate
	if err := httputil.BindData(c, &create); err != nil {
		abortError(c, err)
		return
	}

	entitlement, err := co.Cases.Create(c.Request.Context(), create, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CaseResponse{Data: entitlement})
}

// @Summary		Get case entitlement
// @Description	Returns the case, its member vouchers and the current integrity check result
// @Tags			Cases
// @Produce		json
// @Success		200	{object}	CaseDetailResponse
// @Failure		404	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the case"
// @Router			/v1/cases/{id} [get]
func (co Controller) GetCase(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	entitlement, err := co.Cases.Get(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		abortError(c, err)
		return
	}

	intact, err := co.Cases.CheckIntegrity(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		abortError(c, err)
		return
	}

	members := entitlement.Vouchers
	if members == nil {
		members = []models.Voucher{}
	}
	entitlement.Vouchers = nil

	c.JSON(http.StatusOK, CaseDetailResponse{Data: CaseDetail{
		CaseEntitlement: entitlement,
		Members:         members,
		IsIntact:        intact,
	}})
}

type CaseBreak struct {
	Reason types.BreakReason `json:"reason"`
}

// @Summary		Break case
// @Description	Marks the case as broken. Idempotent, breaking is monotonic.
// @Tags			Cases
// @Produce		json
// @Success		200	{object}	CaseResponse
// @Failure		400	{object}	httperror.Error
// @Param			id		path	string		true	"ID of the case"
// @Param			break	body	CaseBreak	true	"Break reason"
// @Router			/v1/cases/{id}/break [post]
func (co Controller) BreakCase(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var breakReq CaseBreak
	if err := httputil.BindData(c, &breakReq); err != nil {
		abortError(c, err)
		return
	}

	entitlement, err := co.Cases.Break(c.Request.Context(), uri.ID.UUID, breakReq.Reason, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, CaseResponse{Data: entitlement})
}
