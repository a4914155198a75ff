package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/service"
	"mkt-settle-api/internal/utils"
)

type LedgerHandler struct{ svc *service.LedgerService }

func NewLedgerHandler(svc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

func ledgerOwner(c *gin.Context) (uint64, string, error) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		return 0, "", constant.Errorf(constant.CodeParamsFormatError, "userId %q invalid", c.Param("userId"))
	}
	return userID, c.Param("role"), nil
}

// Snapshot GET /api/v1/ledgers/:userId/:role 收益面板
func (h *LedgerHandler) Snapshot(c *gin.Context) {
	userID, role, err := ledgerOwner(c)
	if err != nil {
		fail(c, err)
		return
	}
	snap, err := h.svc.Snapshot(c.Request.Context(), userID, role)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, snap)
}

// Entries GET /api/v1/ledgers/:userId/:role/entries?page=&size=
func (h *LedgerHandler) Entries(c *gin.Context) {
	userID, role, err := ledgerOwner(c)
	if err != nil {
		fail(c, err)
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	q.Page, q.Size = utils.NormalizePage(q.Page, q.Size)
	list, total, err := h.svc.Entries(c.Request.Context(), userID, role, q.Page, q.Size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page{List: list, Total: total, Page: q.Page, Size: q.Size})
}

// Reconcile POST /admin/v1/ledgers/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	report, err := h.svc.Reconcile(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}
