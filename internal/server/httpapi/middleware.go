package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/server/auth"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

func principalFrom(c *gin.Context) services.Principal {
	return services.Principal{UserID: c.GetString(userIDKey)}
}

// RoleFromContext returns the role resolved by RequireMembership.
func RoleFromContext(c *gin.Context) domain.Role {
	if v, ok := c.Get(roleKey); ok {
		if r, ok := v.(domain.Role); ok {
			return r
		}
	}
	return ""
}

// Auth accepts "Authorization: Bearer <jwt>" and stores the user id.
func Auth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing bearer token"))
			return
		}

		userID, err := auth.GetUserIDFromToken(strings.TrimSpace(parts[1]), jwtSecret)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(msg))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequireMembership lets a request through only when the caller holds an
// active membership at the :locationId route parameter.
func RequireMembership(api SyncAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := api.Role(c.Request.Context(), principalFrom(c), c.Param("locationId"))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(roleKey, role)
		c.Next()
	}
}

// RequestLogger writes one access log line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= 500:
			logger.Error(c.Request.Context(), "http", args...)
		case status >= 400:
			logger.Warn(c.Request.Context(), "http", args...)
		default:
			logger.Info(c.Request.Context(), "http", args...)
		}
	}
}
