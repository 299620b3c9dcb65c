package daemon

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"tinytales/internal/admin"
	"tinytales/internal/api"
	"tinytales/internal/services"
)

const adminPasswordHeader = "X-Admin-Password"

// bearerAuth validates "Authorization: Bearer <token>". An empty token
// disables authentication.
func bearerAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Error{Error: "unauthorized"})
			return
		}
		got := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Error{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// loopbackOrigin reports whether a browser Origin, if any, is served from
// this machine. Requests without an Origin come from non-browser clients.
func loopbackOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// originGuard refuses requests a foreign web page makes through the user's
// browser, including websocket upgrades and form posts.
func originGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !loopbackOrigin(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, api.Error{Error: "origin not allowed"})
			return
		}
		c.Next()
	}
}

// adminAuth guards the admin surface with the shared password.
func adminAuth(gate admin.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := gate.Authorize(c.GetHeader(adminPasswordHeader))
		if err == nil {
			c.Next()
			return
		}
		status := http.StatusUnauthorized
		if services.Classify(err) == services.KindConfiguration {
			status = http.StatusForbidden
		}
		c.AbortWithStatusJSON(status, api.Error{Error: err.Error(), Kind: string(services.Classify(err))})
	}
}
