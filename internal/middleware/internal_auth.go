package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

const (
	InternalTokenHeader = "X-Internal-Token"
	AdminTokenHeader    = "X-Admin-Token"
)

// InternalAuth 订单系统等内部服务调用
func InternalAuth() gin.HandlerFunc {
	return TokenAuth(InternalTokenHeader, config.C.Security.InternalToken, config.C.Security.IPWhitelist)
}

// AdminAuth 运营后台
func AdminAuth() gin.HandlerFunc {
	return TokenAuth(AdminTokenHeader, config.C.Security.AdminToken, config.C.Security.IPWhitelist)
}

// TokenAuth 固定 token + IP 白名单；未配置 token 时拒绝全部请求，白名单为空不限制 IP
func TokenAuth(header, token string, whitelist []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.ErrorWithTrace(constant.CodeTokenInvalid, c.GetString(TraceIDKey)))
			return
		}
		if ip := c.ClientIP(); !ipAllowed(ip, whitelist) {
			resp := utils.ErrorWithTrace(constant.CodeIPNotWhitelisted, c.GetString(TraceIDKey))
			resp.Detail = "ip not allowed: " + ip
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}
		c.Next()
	}
}

// ipAllowed 白名单项可以是 CIDR（10.0.0.0/8）或前缀（192.168.）
func ipAllowed(ip string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	for _, item := range whitelist {
		item = strings.TrimSpace(item)
		if strings.Contains(item, "/") {
			if _, cidr, err := net.ParseCIDR(item); err == nil && parsed != nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if item != "" && strings.HasPrefix(ip, item) {
			return true
		}
	}
	return false
}
