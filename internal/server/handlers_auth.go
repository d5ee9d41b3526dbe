package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"github.com/gin-gonic/gin"
)

const codeInvalidBody = "request.invalid_body"

type loginResponsePayload struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expiresIn"`
	User      users.Profile `json:"user"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request users.LoginInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c, codeInvalidBody, "invalid request body")
		return
	}

	session, err := h.users.Login(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		Success:   true,
		Message:   "Login successful",
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User:      session.Profile,
	})
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request users.SignupInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c, codeInvalidBody, "invalid request body")
		return
	}

	user, err := h.users.Signup(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User created successfully",
		"userId":  user.ID.Hex(),
	})
}

func (h *httpHandler) handleSession(c *gin.Context) {
	claims := sessionClaims(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized", "code": "auth.unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": users.Profile{
			ID:           claims.UserID,
			Name:         claims.Name,
			Email:        claims.Email,
			Role:         claims.Role,
			Organization: claims.Organization,
		},
	})
}
