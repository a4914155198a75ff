package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/utils"
)

func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Biz().WithFields(map[string]interface{}{
					"path":     c.Request.URL.Path,
					"trace_id": c.GetString(TraceIDKey),
					"stack":    string(debug.Stack()),
				}).Errorf("panic recovered: %v", r)
				resp := utils.ErrorWithTrace(constant.CodeSystemError, c.GetString(TraceIDKey))
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()
		c.Next()
	}
}
