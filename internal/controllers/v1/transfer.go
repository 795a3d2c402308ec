package v1

import (
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/gin-gonic/gin"
	google_uuid "github.com/google/uuid"
)

type TransferResponse struct {
	Data models.VoucherTransfer `json:"data"`
}

// TransferDetail is the detail representation of a transfer, including
// the diagnostic predicates computed against the current state.
type TransferDetail struct {
	models.VoucherTransfer
	Diagnostics app.TransferDiagnostics `json:"diagnostics"`
}

type TransferDetailResponse struct {
	Data TransferDetail `json:"data"`
}

type TransferListResponse struct {
	Data []models.VoucherTransfer `json:"data"`
}

// RegisterTransferRoutes registers the routes for transfers with the
// RouterGroup that is passed.
func (co Controller) RegisterTransferRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", httputil.OptionsGetPost)
		r.GET("", co.GetTransfers)
		r.POST("", co.InitiateTransfer)
	}

	{
		r.OPTIONS("/:id", httputil.OptionsGet)
		r.GET("/:id", co.GetTransfer)
		r.POST("/:id/accept", co.AcceptTransfer)
		r.POST("/:id/cancel", co.CancelTransfer)
	}
}

// @Summary		Initiate transfer
// @Description	Proposes an ownership transfer of a voucher to another customer. The voucher itself is not mutated.
// @Tags			Transfers
// @Produce		json
// @Success		201	{object}	TransferResponse
// @Failure		409	{object}	httperror.Error
// @Param			transfer	body	app.TransferInitiate	true	"Transfer"
// @Router			/v1/transfers [post]
func (co Controller) InitiateTransfer(c *gin.Context) {
	var initiate app.TransferInitiate
	if err := httputil.BindData(c, &initiate); err != nil {
		abortError(c, err)
		return
	}

	transfer, err := co.Transfers.Initiate(c.Request.Context(), initiate, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TransferResponse{Data: transfer})
}

// @Summary		List transfers
// @Tags			Transfers
// @Produce		json
// @Success		200	{object}	TransferListResponse
// @Param			voucher	query	string	false	"Filter by voucher ID"
// @Param			status	query	string	false	"Filter by status"
// @Router			/v1/transfers [get]
func (co Controller) GetTransfers(c *gin.Context) {
	q := co.DB.Order("initiated_at ASC")

	if voucher := c.Query("voucher"); voucher != "" {
		id, err := google_uuid.Parse(voucher)
		if err != nil {
			abortError(c, httputil.ErrInvalidBody)
			return
		}
		q = q.Where("voucher_id = ?", id)
	}

	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", types.TransferStatus(status))
	}

	var transfers []models.VoucherTransfer
	if err := q.Find(&transfers).Error; err != nil {
		abortError(c, err)
		return
	}

	if transfers == nil {
		transfers = []models.VoucherTransfer{}
	}

	c.JSON(http.StatusOK, TransferListResponse{Data: transfers})
}

// @Summary		Get transfer
// @Description	Returns the transfer together with its diagnostic predicates
// @Tags			Transfers
// @Produce		json
// @Success		200	{object}	TransferDetailResponse
// @Failure		404	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the transfer"
// @Router			/v1/transfers/{id} [get]
func (co Controller) GetTransfer(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	transfer, diagnostics, err := co.Transfers.Diagnose(c.Request.Context(), uri.ID.UUID)
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransferDetailResponse{Data: TransferDetail{
		VoucherTransfer: transfer,
		Diagnostics:     diagnostics,
	}})
}

// @Summary		Accept transfer
// @Description	Resolves a pending transfer and reassigns the voucher's owner. Blocked while the voucher is locked for fulfillment.
// @Tags			Transfers
// @Produce		json
// @Success		200	{object}	TransferResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the transfer"
// @Router			/v1/transfers/{id}/accept [post]
func (co Controller) AcceptTransfer(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	transfer, err := co.Transfers.Accept(c.Request.Context(), uri.ID.UUID, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{Data: transfer})
}

// @Summary		Cancel transfer
// @Description	Withdraws a pending transfer. Succeeds regardless of the voucher's fulfillment lock.
// @Tags			Transfers
// @Produce		json
// @Success		200	{object}	TransferResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the transfer"
// @Router			/v1/transfers/{id}/cancel [post]
func (co Controller) CancelTransfer(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	transfer, err := co.Transfers.Cancel(c.Request.Context(), uri.ID.UUID, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{Data: transfer})
}
