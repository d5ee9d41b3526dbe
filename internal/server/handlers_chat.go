package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/chat"
	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"github.com/gin-gonic/gin"
)

type groupMessageRequest struct {
	Content      string `json:"content"`
	Organization string `json:"organization"`
}

type directMessageRequest struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleListGroupMessages(c *gin.Context) {
	messages, err := h.chat.ListGroup(c.Request.Context(), viewer(c), c.Query("organization"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if messages == nil {
		messages = []chat.GroupMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

func (h *httpHandler) handleSendGroupMessage(c *gin.Context) {
	var request groupMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c, codeInvalidBody, "invalid request body")
		return
	}
	organization := request.Organization
	if organization == "" {
		organization = c.Query("organization")
	}
	message, err := h.chat.SendGroup(c.Request.Context(), viewer(c), organization, request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": message})
}

func (h *httpHandler) handleGroupStream(c *gin.Context) {
	events, cleanup, err := h.chat.SubscribeGroup(c.Request.Context(), viewer(c), c.Query("organization"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.streamEvents(c, events, cleanup)
}

func (h *httpHandler) handleListContacts(c *gin.Context) {
	contacts, err := h.chat.Contacts(c.Request.Context(), viewer(c), c.Query("organization"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if contacts == nil {
		contacts = []users.Member{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contacts": contacts})
}

func (h *httpHandler) handleListDirectMessages(c *gin.Context) {
	messages, err := h.chat.ListDirect(c.Request.Context(), viewer(c), c.Param("peerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if messages == nil {
		messages = []chat.DirectMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

func (h *httpHandler) handleSendDirectMessage(c *gin.Context) {
	var request directMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBadRequest(c, codeInvalidBody, "invalid request body")
		return
	}
	message, err := h.chat.SendDirect(c.Request.Context(), viewer(c), c.Param("peerId"), request.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": message})
}

func (h *httpHandler) handleDirectStream(c *gin.Context) {
	events, cleanup, err := h.chat.SubscribeDirect(c.Request.Context(), viewer(c), c.Param("peerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.streamEvents(c, events, cleanup)
}

// streamEvents relays events as server-sent events until the client goes away or the stream closes.
func (h *httpHandler) streamEvents(c *gin.Context, events <-chan chat.Event, cleanup func()) {
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(event.Type, event.Data)
			c.Writer.Flush()
		case tick := <-ticker.C:
			c.SSEvent(chat.EventHeartbeat, gin.H{"timestamp": tick.UTC().Unix()})
			c.Writer.Flush()
		}
	}
}
