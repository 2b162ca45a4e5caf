// README: Driver presence endpoints. Position reports land in the geo
// index synchronously; the Kafka publish for downstream consumers is
// best-effort.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"savari/internal/modules/geo"
	"savari/internal/observability"
	"savari/internal/types"
)

// PresencePublisher forwards presence updates to the location stream.
// Optional; nil skips streaming.
type PresencePublisher interface {
	PublishPresence(ctx context.Context, p geo.Presence) error
}

type DriverHandler struct {
	index  geo.Index
	stream PresencePublisher
	log    *zap.Logger
}

func NewDriverHandler(index geo.Index, stream PresencePublisher, log *zap.Logger) *DriverHandler {
	return &DriverHandler{index: index, stream: stream, log: log}
}

type presenceRequest struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	VehicleType string  `json:"vehicle_type"`
	Seats       int     `json:"seats"`
	Online      bool    `json:"online"`
	Approved    bool    `json:"approved"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	p := geo.Presence{
		DriverID:    driverID,
		Position:    types.Point{Lat: req.Lat, Lng: req.Lng},
		VehicleType: req.VehicleType,
		Seats:       req.Seats,
		Online:      req.Online,
		Approved:    req.Approved,
		UpdatedAt:   time.Now(),
	}
	prev, wasKnown, _ := h.index.Get(c.Request.Context(), driverID)
	if err := h.index.Upsert(c.Request.Context(), p); err != nil {
		writeError(c, http.StatusInternalServerError, "presence update failed")
		return
	}
	switch {
	case p.Online && (!wasKnown || !prev.Online):
		observability.DriversOnline.Inc()
	case !p.Online && wasKnown && prev.Online:
		observability.DriversOnline.Dec()
	}
	if h.stream != nil {
		if err := h.stream.PublishPresence(c.Request.Context(), p); err != nil {
			h.log.Warn("presence publish failed", zap.String("driver_id", string(driverID)), zap.Error(err))
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"updated": true})
}

func (h *DriverHandler) GoOffline(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	prev, wasKnown, _ := h.index.Get(c.Request.Context(), driverID)
	if err := h.index.Remove(c.Request.Context(), driverID); err != nil {
		writeError(c, http.StatusInternalServerError, "presence removal failed")
		return
	}
	if wasKnown && prev.Online {
		observability.DriversOnline.Dec()
	}
	writeJSON(c, http.StatusOK, gin.H{"online": false})
}
