package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/service"
	"mkt-settle-api/internal/utils"
)

// PayoutHandler 用户提现 + 后台批次操作 + 转账回调
type PayoutHandler struct{ svc *service.PayoutService }

func NewPayoutHandler(svc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

func pathID(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, constant.Errorf(constant.CodeParamsFormatError, "%s %q invalid", name, c.Param(name))
	}
	return id, nil
}

// Create POST /internal/v1/payouts
func (h *PayoutHandler) Create(c *gin.Context) {
	var req dto.PayoutCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vo, err := h.svc.RequestPayout(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vo)
}

type payoutListQuery struct {
	pageQuery
	UserID uint64 `form:"userId" binding:"required"`
	Role   string `form:"role"`
}

// List GET /internal/v1/payouts?userId=&role=
func (h *PayoutHandler) List(c *gin.Context) {
	var q payoutListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	q.Page, q.Size = utils.NormalizePage(q.Page, q.Size)
	list, total, err := h.svc.ListUserPayouts(c.Request.Context(), q.UserID, q.Role, q.Page, q.Size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page{List: list, Total: total, Page: q.Page, Size: q.Size})
}

// TransferCallback POST /internal/v1/transfers/callback
func (h *PayoutHandler) TransferCallback(c *gin.Context) {
	var cb dto.TransferCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		badRequest(c, err)
		return
	}
	vo, err := h.svc.CompleteTransfer(c.Request.Context(), cb)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vo)
}

// Bulk POST /admin/v1/payouts/bulk 立即打款
func (h *PayoutHandler) Bulk(c *gin.Context) {
	results, err := h.svc.BulkPayout(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, results)
}

// OpenBatch POST /admin/v1/batches，没有待打款申请时 data 为空
func (h *PayoutHandler) OpenBatch(c *gin.Context) {
	batch, err := h.svc.OpenBatch(c.Request.Context(), true)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, batch)
}

// SubmitBatch POST /admin/v1/batches/:id/submit
func (h *PayoutHandler) SubmitBatch(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.svc.SubmitBatch(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

type batchListQuery struct {
	pageQuery
	Status string `form:"status"`
}

// ListBatches GET /admin/v1/batches?status=
func (h *PayoutHandler) ListBatches(c *gin.Context) {
	var q batchListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	q.Page, q.Size = utils.NormalizePage(q.Page, q.Size)
	list, total, err := h.svc.ListBatches(c.Request.Context(), q.Status, q.Page, q.Size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page{List: list, Total: total, Page: q.Page, Size: q.Size})
}

// Retry POST /admin/v1/payouts/:id/retry
func (h *PayoutHandler) Retry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	vo, err := h.svc.RetryRequest(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vo)
}

// Summary GET /admin/v1/payouts/summary
func (h *PayoutHandler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sum)
}
