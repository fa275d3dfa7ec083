package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/access"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/roles"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDContextKey = "dormdesk_request_id"
	requestIDHeader     = "X-Request-ID"
	maxRequestIDLength  = 64
	corsMaxAge          = 24 * time.Hour
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
)

// corsMiddleware stamps permissive cross-origin headers on every response and
// lets gin-contrib/cors answer browser preflights.
func corsMiddleware() gin.HandlerFunc {
	preflight := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    corsAllowedMethods,
		AllowHeaders:    corsAllowedHeaders,
		MaxAge:          corsMaxAge,
	})
	allowMethods := strings.Join(corsAllowedMethods, ", ")
	allowHeaders := strings.Join(corsAllowedHeaders, ", ")
	maxAge := strconv.FormatInt(int64(corsMaxAge/time.Second), 10)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", allowMethods)
		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Max-Age", maxAge)
		preflight(c)
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

// authorizeRequest runs the access gate and aborts on denial. It never reads
// anything but the Authorization header.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	admitted, err := h.gate.Authorize(c.Request.Context(), c.GetHeader("Authorization"))
	if err == nil {
		c.Set(accessContextKey, admitted)
		c.Next()
		return
	}

	logger := h.requestLogger(c)
	switch {
	case errors.Is(err, access.ErrAuthentication):
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			logger.Debug("authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_authorization"})
			return
		case errors.Is(err, auth.ErrExpiredToken):
			logger.Info("token validation failed", zap.Error(err))
		case errors.Is(err, auth.ErrProviderUnavailable):
			logger.Error("token validation failed", zap.Error(err))
		default:
			logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, access.ErrAuthorization):
		if errors.Is(err, roles.ErrProfileStore) {
			logger.Error("role resolution failed", zap.Error(err))
		} else {
			logger.Warn("admin check failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_permissions"})
	default:
		logger.Error("authorization gate fault", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
