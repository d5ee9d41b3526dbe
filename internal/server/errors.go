package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notehub/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const genericServerMessage = "Server error"

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope for err. Server side failures expose only a generic message.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusForKind(apperr.KindOf(err))
	code := apperr.CodeOf(err)
	message := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err),
		)
		message = genericServerMessage
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

func (h *httpHandler) respondBadRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
