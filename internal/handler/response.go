package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/middleware"
	"mkt-settle-api/internal/utils"
)

func ok(c *gin.Context, data interface{}) {
	resp := utils.Success(data)
	resp.TraceID = c.GetString(middleware.TraceIDKey)
	c.JSON(http.StatusOK, resp)
}

// fail 业务错误码映射 HTTP 状态
func fail(c *gin.Context, err error) {
	code := constant.CodeOf(err)
	resp := utils.ErrorFrom(err)
	resp.TraceID = c.GetString(middleware.TraceIDKey)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		logger.Biz().WithError(err).WithField("trace_id", resp.TraceID).Error(c.Request.URL.Path)
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	fail(c, constant.Wrap(constant.CodeInvalidParams, err, "bind request"))
}

func httpStatus(code int) int {
	switch code {
	case constant.CodeInvalidParams, constant.CodeMissingParams, constant.CodeParamsFormatError, constant.CodeParamsRangeError:
		return http.StatusBadRequest
	case constant.CodeRecordNotFound, constant.CodeLedgerNotFound, constant.CodeBatchNotFound:
		return http.StatusNotFound
	case constant.CodeBalanceInsufficient, constant.CodePayoutBelowMinimum, constant.CodeBreakdownDrift:
		return http.StatusUnprocessableEntity
	case constant.CodeSaleReversed, constant.CodePayoutStatusInvalid, constant.CodeBatchBusy, constant.CodeDuplicateRequest:
		return http.StatusConflict
	case constant.CodeTokenInvalid, constant.CodeUnauthorized:
		return http.StatusUnauthorized
	case constant.CodeIPNotWhitelisted, constant.CodeAccessDenied:
		return http.StatusForbidden
	case constant.CodeRateLimit:
		return http.StatusTooManyRequests
	case constant.CodeReconDataMismatch:
		return http.StatusConflict
	case constant.CodeTransferFailed:
		return http.StatusBadGateway
	case constant.CodeTransferTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type page struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

type pageQuery struct {
	Page int `form:"page"`
	Size int `form:"size"`
}
