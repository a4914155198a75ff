package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/utils"
)

const UserIDHeader = "X-User-ID"

// RateLimit 进程内计数，rate 为 ulule 格式（"5-M" 每分钟 5 次）；按 X-User-ID，缺省按 IP
func RateLimit(routeID, rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, constant.Wrap(constant.CodeConfigInvalid, err, "rate limit %q", rate)
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "rl:" + routeID,
		CleanUpInterval: r.Period,
	})
	return ginmiddleware.NewMiddleware(limiter.New(store, r),
		ginmiddleware.WithKeyGetter(func(c *gin.Context) string {
			if uid := c.GetHeader(UserIDHeader); uid != "" {
				return "u:" + uid
			}
			return "ip:" + c.ClientIP()
		}),
		ginmiddleware.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				utils.ErrorWithTrace(constant.CodeRateLimit, c.GetString(TraceIDKey)))
		}),
		ginmiddleware.WithErrorHandler(func(c *gin.Context, err error) {
			logger.Biz().WithError(err).Error("rate limiter store failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				utils.ErrorWithTrace(constant.CodeSystemError, c.GetString(TraceIDKey)))
		}),
	), nil
}
