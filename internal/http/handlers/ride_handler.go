// README: Ride lifecycle endpoints: creation, rider confirmation, the
// driver's progress reports, and cancellation by either side.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"savari/internal/modules/ride"
	"savari/internal/types"
)

type RideHandler struct {
	rides *ride.Service
}

func NewRideHandler(rides *ride.Service) *RideHandler {
	return &RideHandler{rides: rides}
}

type stopRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (s stopRequest) toStop() ride.Stop {
	return ride.Stop{Position: types.Point{Lat: s.Lat, Lng: s.Lng}, Address: s.Address}
}

type createRideRequest struct {
	Pickup        stopRequest `json:"pickup"`
	Dropoff       stopRequest `json:"dropoff"`
	VehicleType   string      `json:"vehicle_type"`
	Seats         int         `json:"seats"`
	PaymentMethod string      `json:"payment_method"`
	Kind          string      `json:"kind"`
	DepartureTime *time.Time  `json:"departure_time,omitempty"`
	MaxPassengers int         `json:"max_passengers,omitempty"`
}

func (h *RideHandler) Create(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		RiderID:       riderID,
		Pickup:        req.Pickup.toStop(),
		Dropoff:       req.Dropoff.toStop(),
		Seats:         req.Seats,
		VehicleType:   req.VehicleType,
		PaymentMethod: req.PaymentMethod,
		Kind:          ride.Kind(req.Kind),
		DepartureTime: req.DepartureTime,
		MaxPassengers: req.MaxPassengers,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

// ListOpen is the driver-facing feed of biddable requests, boosted
// offers first.
func (h *RideHandler) ListOpen(c *gin.Context) {
	limit := 20
	if v, err := intQuery(c, "limit"); err == nil && v > 0 {
		limit = v
	}
	rides, err := h.rides.ListOpen(c.Request.Context(), limit)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": rides})
}

func (h *RideHandler) Accept(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	err := h.rides.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:  types.ID(c.Param("id")),
		RiderID: riderID,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusAccepted})
}

func (h *RideHandler) Arrive(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	err := h.rides.Arrive(c.Request.Context(), ride.ArriveCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: driverID,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusDriverArrived})
}

func (h *RideHandler) Start(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	err := h.rides.Start(c.Request.Context(), ride.StartCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: driverID,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusInProgress})
}

func (h *RideHandler) Complete(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: driverID,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": ride.StatusCompleted})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	actorID, ok := caller(c)
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	actor := ride.ActorRider
	if roleOf(c) == "driver" {
		actor = ride.ActorDriver
	}
	err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:  types.ID(c.Param("id")),
		Actor:   actor,
		ActorID: actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"cancelled": true})
}
