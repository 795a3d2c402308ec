package v1

import (
	"context"
	"net/http"

	"github.com/cellarlot/backend/internal/app"
	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/cellarlot/backend/internal/types"
	"github.com/gin-gonic/gin"
	google_uuid "github.com/google/uuid"
)

type VoucherResponse struct {
	Data models.Voucher `json:"data"`
}

type VoucherListResponse struct {
	Data []models.Voucher `json:"data"`
}

// RegisterVoucherRoutes registers the routes for vouchers with the
// RouterGroup that is passed.
func (co Controller) RegisterVoucherRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", httputil.OptionsGetPost)
		r.GET("", co.GetVouchers)
		r.POST("", co.IssueVoucher)
	}

	{
		r.OPTIONS("/:id", httputil.OptionsGetPatch)
		r.GET("/:id", co.GetVoucher)
		r.PATCH("/:id", co.UpdateVoucherFlags)
		r.POST("/:id/lock", co.LockVoucher)
		r.POST("/:id/unlock", co.UnlockVoucher)
		r.POST("/:id/redeem", co.RedeemVoucher)
		r.POST("/:id/cancel", co.CancelVoucher)
	}
}

// @Summary		Issue voucher
// @Description	Issues a new voucher from an allocation, consuming its supply
// @Tags			Vouchers
// @Produce		json
// @Success		201	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			voucher	body	app.VoucherIssue	true	"Voucher"
// @Router			/v1/vouchers [post]
func (co Controller) IssueVoucher(c *gin.Context) {
	var issue app.VoucherIssue
	if err := httputil.BindData(c, &issue); err != nil {
		abortError(c, err)
		return
	}

	voucher, err := co.Vouchers.Issue(c.Request.Context(), issue, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusCreated, VoucherResponse{Data: voucher})
}

// @Summary		List vouchers
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherListResponse
// @Param			owner		query	string	false	"Filter by owning customer ID"
// @Param			allocation	query	string	false	"Filter by allocation ID"
// @Param			state		query	string	false	"Filter by lifecycle state"
// @Router			/v1/vouchers [get]
func (co Controller) GetVouchers(c *gin.Context) {
	q := co.DB.Order("created_at ASC")

	if owner := c.Query("owner"); owner != "" {
		id, err := google_uuid.Parse(owner)
		if err != nil {
			abortError(c, httputil.ErrInvalidBody)
			return
		}
		q = q.Where("owner_id = ?", id)
	}

	if allocation := c.Query("allocation"); allocation != "" {
		id, err := google_uuid.Parse(allocation)
		if err != nil {
			abortError(c, httputil.ErrInvalidBody)
			return
		}
		q = q.Where("allocation_id = ?", id)
	}

	if state := c.Query("state"); state != "" {
		q = q.Where("state = ?", types.VoucherState(state))
	}

	var vouchers []models.Voucher
	if err := q.Find(&vouchers).Error; err != nil {
		abortError(c, err)
		return
	}

	if vouchers == nil {
		vouchers = []models.Voucher{}
	}

	c.JSON(http.StatusOK, VoucherListResponse{Data: vouchers})
}

// @Summary		Get voucher
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		404	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the voucher"
// @Router			/v1/vouchers/{id} [get]
func (co Controller) GetVoucher(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var voucher models.Voucher
	if err := co.DB.First(&voucher, "id = ?", uri.ID.UUID).Error; err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, VoucherResponse{Data: voucher})
}

// VoucherFlagsUpdate is a partial update of the behavioral flags. Nil
// fields are unchanged.
type VoucherFlagsUpdate struct {
	Tradable  *bool `json:"tradable"`
	Giftable  *bool `json:"giftable"`
	Suspended *bool `json:"suspended"`
}

// @Summary		Update voucher flags
// @Description	Sets the tradable, giftable and suspended flags. Terminal vouchers are immutable.
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			id		path	string				true	"ID of the voucher"
// @Param			flags	body	VoucherFlagsUpdate	true	"Flags"
// @Router			/v1/vouchers/{id} [patch]
func (co Controller) UpdateVoucherFlags(c *gin.Context) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	var update VoucherFlagsUpdate
	if err := httputil.BindData(c, &update); err != nil {
		abortError(c, err)
		return
	}

	ctx := c.Request.Context()
	actor := httputil.Actor(c)

	var voucher models.Voucher
	var err error

	if update.Tradable != nil {
		if voucher, err = co.Vouchers.SetTradable(ctx, uri.ID.UUID, *update.Tradable, actor); err != nil {
			abortError(c, err)
			return
		}
	}

	if update.Giftable != nil {
		if voucher, err = co.Vouchers.SetGiftable(ctx, uri.ID.UUID, *update.Giftable, actor); err != nil {
			abortError(c, err)
			return
		}
	}

	if update.Suspended != nil {
		if *update.Suspended {
			voucher, err = co.Vouchers.Suspend(ctx, uri.ID.UUID, actor)
		} else {
			voucher, err = co.Vouchers.Reactivate(ctx, uri.ID.UUID, actor)
		}
		if err != nil {
			abortError(c, err)
			return
		}
	}

	if update.Tradable == nil && update.Giftable == nil && update.Suspended == nil {
		if err := co.DB.First(&voucher, "id = ?", uri.ID.UUID).Error; err != nil {
			abortError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, VoucherResponse{Data: voucher})
}

// @Summary		Lock voucher for fulfillment
// @Description	Places a fulfillment hold on an issued voucher
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the voucher"
// @Router			/v1/vouchers/{id}/lock [post]
func (co Controller) LockVoucher(c *gin.Context) {
	co.voucherTransition(c, co.Vouchers.LockForFulfillment)
}

// @Summary		Unlock voucher
// @Description	Releases a fulfillment hold
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the voucher"
// @Router			/v1/vouchers/{id}/unlock [post]
func (co Controller) UnlockVoucher(c *gin.Context) {
	co.voucherTransition(c, co.Vouchers.Unlock)
}

// @Summary		Redeem voucher
// @Description	Marks a locked voucher as fulfilled. Terminal.
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the voucher"
// @Router			/v1/vouchers/{id}/redeem [post]
func (co Controller) RedeemVoucher(c *gin.Context) {
	co.voucherTransition(c, co.Vouchers.Redeem)
}

// @Summary		Cancel voucher
// @Description	Voids an issued voucher. Terminal.
// @Tags			Vouchers
// @Produce		json
// @Success		200	{object}	VoucherResponse
// @Failure		409	{object}	httperror.Error
// @Param			id	path	string	true	"ID of the voucher"
// @Router			/v1/vouchers/{id}/cancel [post]
func (co Controller) CancelVoucher(c *gin.Context) {
	co.voucherTransition(c, co.Vouchers.Cancel)
}

func (co Controller) voucherTransition(c *gin.Context, op func(ctx context.Context, id google_uuid.UUID, actor string) (models.Voucher, error)) {
	uri, ok := bindID(c)
	if !ok {
		return
	}

	voucher, err := op(c.Request.Context(), uri.ID.UUID, httputil.Actor(c))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, VoucherResponse{Data: voucher})
}
