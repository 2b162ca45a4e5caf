package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"savari/internal/dispatch"
)

type DeviceHandler struct {
	tokens *dispatch.TokenRegistry
}

func NewDeviceHandler(tokens *dispatch.TokenRegistry) *DeviceHandler {
	return &DeviceHandler{tokens: tokens}
}

type registerTokenRequest struct {
	Token string `json:"token"`
}

// RegisterToken stores the caller's push token; an empty token
// unregisters the device.
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	h.tokens.Register(userID, req.Token)
	writeJSON(c, http.StatusOK, gin.H{"registered": req.Token != ""})
}
