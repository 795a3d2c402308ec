// Package v1 implements the HTTP command surface of the entitlement
// core.
package v1

import (
	"errors"
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/httperror"
	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/uuid"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Controller holds the core components the handlers dispatch to. All
// mutations go through the components; reads go directly to the
// database.
type Controller struct {
	DB          *gorm.DB
	Allocations *app.AllocationLedger
	Vouchers    *app.VoucherLifecycle
	Transfers   *app.TransferCoordinator
	Cases       *app.CaseEntitlementTracker
}

// URIID is the URI binding for routes with a resource ID.
type URIID struct {
	ID uuid.UUID `uri:"id" binding:"required"`
}

// status maps core errors to HTTP status codes. Typed domain errors are
// conflicts: the request was well-formed but the current state rejected
// it.
func status(err error) int {
	var (
		transition  *models.StateTransitionError
		concurrency *models.ConcurrencyConflictError
		capacity    *models.CapacityExceededError
		immutable   *models.ImmutabilityViolationError
	)

	switch {
	case errors.Is(err, models.ErrResourceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.As(err, &transition),
		errors.As(err, &concurrency),
		errors.As(err, &capacity),
		errors.As(err, &immutable):
		return http.StatusConflict

	case errors.Is(err, httputil.ErrInvalidBody),
		errors.Is(err, httputil.ErrRequestBodyEmpty),
		errors.Is(err, app.ErrInvalidQuantity),
		errors.Is(err, app.ErrTransferExpiryInPast),
		errors.Is(err, app.ErrCaseNoMembers),
		errors.Is(err, app.ErrCaseMixedOwners),
		errors.Is(err, app.ErrVoucherAlreadyCased),
		errors.Is(err, app.ErrInvalidStatus),
		errors.Is(err, app.ErrInvalidBreakReason):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// abortError writes the error response for err. Server errors are
// logged with the request id and replaced by a generic message.
func abortError(c *gin.Context, err error) {
	s := status(err)

	if s == http.StatusInternalServerError {
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
		err = models.ErrGeneral
	}

	c.JSON(s, httperror.New(err))
}

// bindID binds and parses the id URI parameter.
func bindID(c *gin.Context) (URIID, bool) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperror.New(err))
		return uri, false
	}

	return uri, true
}
