package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"savari/internal/modules/pricing"
	"savari/internal/types"
)

type EstimateHandler struct {
	pricing *pricing.Service
}

func NewEstimateHandler(p *pricing.Service) *EstimateHandler {
	return &EstimateHandler{pricing: p}
}

type estimateRequest struct {
	PickupLat   float64 `json:"pickup_lat"`
	PickupLng   float64 `json:"pickup_lng"`
	DropoffLat  float64 `json:"dropoff_lat"`
	DropoffLng  float64 `json:"dropoff_lng"`
	VehicleType string  `json:"vehicle_type"`
}

// Estimate quotes a fare without creating anything.
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	b, err := h.pricing.Estimate(c.Request.Context(),
		types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		req.VehicleType,
	)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
