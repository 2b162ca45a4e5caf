// README: Discovery and direct booking: who can pick me up, and book a
// specific driver without the bidding round.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"savari/internal/modules/matching"
	"savari/internal/modules/ride"
	"savari/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(m *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: m}
}

func (h *MatchingHandler) FindDrivers(c *gin.Context) {
	pickup, err := pointQuery(c, "pickup_lat", "pickup_lng")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	dropoff, err := pointQuery(c, "dropoff_lat", "dropoff_lng")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	q := matching.FindQuery{
		Pickup:      pickup,
		Dropoff:     dropoff,
		VehicleType: c.Query("vehicle_type"),
	}
	if v, err := intQuery(c, "seats"); err == nil {
		q.Seats = v
	}
	if v, err := intQuery(c, "upsale_percentage"); err == nil {
		q.UpsalePercentage = v
	}
	opts, err := h.matching.FindAvailableDrivers(c.Request.Context(), q)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": opts})
}

type bookRideRequest struct {
	createRideRequest
	DriverID string `json:"driver_id"`
	// Fare is the quoted total the rider agreed to at discovery.
	Fare int64 `json:"fare"`
}

func (h *MatchingHandler) Book(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	var req bookRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	r, err := h.matching.BookRide(c.Request.Context(), matching.BookCommand{
		CreateCommand: ride.CreateCommand{
			RiderID:       riderID,
			Pickup:        req.Pickup.toStop(),
			Dropoff:       req.Dropoff.toStop(),
			Seats:         req.Seats,
			VehicleType:   req.VehicleType,
			PaymentMethod: req.PaymentMethod,
			Kind:          ride.Kind(req.Kind),
			DepartureTime: req.DepartureTime,
			MaxPassengers: req.MaxPassengers,
			QuotedFare:    req.Fare,
		},
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func pointQuery(c *gin.Context, latKey, lngKey string) (types.Point, error) {
	lat, err := strconv.ParseFloat(c.Query(latKey), 64)
	if err != nil {
		return types.Point{}, errMissingCoord(latKey)
	}
	lng, err := strconv.ParseFloat(c.Query(lngKey), 64)
	if err != nil {
		return types.Point{}, errMissingCoord(lngKey)
	}
	return types.Point{Lat: lat, Lng: lng}, nil
}

type coordError string

func (e coordError) Error() string { return "missing or invalid " + string(e) }

func errMissingCoord(key string) error { return coordError(key) }
