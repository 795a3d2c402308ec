package v1

import (
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/gin-gonic/gin"
)

type AllocationResponse struct {
	Data models.Allocation `json:"data"`
}

type AllocationListResponse struct {
	Data []models.Allocation `json:"data"`
}

// RegisterAllocationRoutes registers the routes for allocations with
// the RouterGroup that is passed.
func (co Controller) RegisterAllocationRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", httputil.OptionsGetPost)
		r.GET("", co.GetAllocations)
		r.POST("", co.CreateAllocation)
	}

	// Allocation with ID
	{
		r.OPTIONS("/:id", httputil.OptionsGetPatch)
		r.GET("/:id", co.GetAllocation)
		r.PATCH("/:id", co.EditAllocationConstraints)
		r.POST("/:id/transition", co.TransitionAllocation)
		r.POST("/:id/sales", co.RecordAllocationSale)
	}
}

// @Summary		Create allocation
// @Description	Creates a new supply allocation in draft status
// @Tags			Allocations
// @Produce		json
// @Success		201	{object}	AllocationResponse
// @Failure		400	{object}	httperror.Error
// @Param			allocation	body	app.AllocationCreate	true	"Allocation"
// @Router			/v1/allocations [post]
func (co Controller) CreateAllocation(c *gin.Context) {
	var create app.AllocationCreate
	if err := httputil.BindData(c, &create); err != nil {
		abortError(c, err)
		return
	}

	allocation, err := co.Allocations.Create(c.Request.Context(), create, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AllocationResponse{Data: allocation})
}

// @Summary		List allocations
// @Description	Returns all allocations, optionally filtered by status
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationListResponse
// @Param			status	query	string	false	"Filter by status"
// @Router			/v1/allocations [get]
func (co Controller) GetAllocations(c *gin.Context) {
	var allocations []models.Allocation

	q := co.DB.Order("created_at ASC")
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", types.AllocationStatus(s))
	}

	if err := q.Find(&allocations).Error; err != nil {
		abortError(c, err)
		return
	}

	if allocations == nil {
		allocations = []models.Allocation{}
	}

	c.JSON(http.StatusOK, AllocationListResponse{Data: allocations})
}

// @Summary		Get allocation
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationResponse
// @Failure		404	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the allocation"
// @Router			/v1/allocations/{id} [get]
func (co Controller) GetAllocation(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var allocation models.Allocation
	if err := co.DB.First(&allocation, "id = ?", uri.ID.UUID).Error; err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, AllocationResponse{Data: allocation})
}

// @Summary		Edit allocation constraints
// @Description	Updates the constraints of a draft allocation. Allocations that left draft status are immutable.
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationResponse
// @Failure		409	{object}	httperror.Error
// @Param			id			path	string					true	"ID of the allocation"
// @Param			allocation	body	app.ConstraintUpdate	true	"Constraint update"
// @Router			/v1/allocations/{id} [patch]
func (co Controller) EditAllocationConstraints(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var update app.ConstraintUpdate
	if err := httputil.BindData(c, &update); err != nil {
		abortError(c, err)
		return
	}

	allocation, err := co.Allocations.EditConstraints(c.Request.Context(), uri.ID.UUID, update, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, AllocationResponse{Data: allocation})
}

type AllocationTransition struct {
	Target types.AllocationStatus `json:"target"`
}

// @Summary		Transition allocation status
// @Description	Moves the allocation to the target status if the transition table allows it
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationResponse
// @Failure		409	{object}	httperror.Error
// @Param			id			path	string					true	"ID of the allocation"
// @Param			transition	body	AllocationTransition	true	"Target status"
// @Router			/v1/allocations/{id}/transition [post]
func (co Controller) TransitionAllocation(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var transition AllocationTransition
	if err := httputil.BindData(c, &transition); err != nil {
		abortError(c, err)
		return
	}

	allocation, err := co.Allocations.TransitionStatus(c.Request.Context(), uri.ID.UUID, transition.Target, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, AllocationResponse{Data: allocation})
}

type AllocationSale struct {
	Quantity uint `json:"quantity"`
}

// @Summary		Record sale
// @Description	Consumes supply from an active allocation. Oversell attempts are rejected.
// @Tags			Allocations
// @Produce		json
// @Success		200	{object}	AllocationResponse
// @Failure		409	{object}	httperror.Error
// @Param			id		path	string			true	"ID of the allocation"
// @Param			sale	body	AllocationSale	true	"Sale"
// @Router			/v1/allocations/{id}/sales [post]
func (co Controller) RecordAllocationSale(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var sale AllocationSale
	if err := httputil.BindData(c, &sale); err != nil {
		abortError(c, err)
		return
	}

	allocation, err := co.Allocations.RecordSale(c.Request.Context(), uri.ID.UUID, sale.Quantity, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, AllocationResponse{Data: allocation})
}
