package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notehub/internal/organizations"
	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleCreateOrganization(c *gin.Context) {
	var request organizations.CreateInput
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c, codeInvalidBody, "invalid request body")
		return
	}

	organization, err := h.organizations.Create(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"message":        "Organization created successfully",
		"organizationId": organization.ID.Hex(),
	})
}

func (h *httpHandler) handleListOrganizations(c *gin.Context) {
	found, err := h.organizations.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if found == nil {
		found = []organizations.Organization{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "organizations": found})
}

// handleListUsers answers with a bare array, the shape the contact picker expects.
func (h *httpHandler) handleListUsers(c *gin.Context) {
	members, err := h.users.ListByOrganization(c.Request.Context(), c.Query("organization"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if members == nil {
		members = []users.Member{}
	}
	c.JSON(http.StatusOK, members)
}
