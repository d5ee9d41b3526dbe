package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/MarcoPoloResearchLab/notehub/internal/chat"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredSessionToken), errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Info("token validation failed", zap.Error(err))
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "unauthorized",
			"code":    "auth.unauthorized",
		})
		return
	}
	c.Set(claimsContextKey, &claims)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	claims := sessionClaims(c)
	if claims == nil || !claims.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "admin role required",
			"code":    "auth.forbidden",
		})
		return
	}
	c.Next()
}

func sessionClaims(c *gin.Context) *auth.SessionClaims {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.SessionClaims)
	return claims
}

func viewer(c *gin.Context) chat.Viewer {
	return chat.ViewerFromClaims(sessionClaims(c))
}

// limitBody caps note bodies at the upload limit plus room for the form fields.
// Declared oversized bodies are rejected before any of them is read.
func (h *httpHandler) limitBody(operation string) gin.HandlerFunc {
	limit := h.maxUpload + formOverheadBytes
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			h.respondError(c, apperr.New(apperr.KindValidation, operation, "attachment_too_large", errAttachmentTooLarge))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
