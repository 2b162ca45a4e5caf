// README: Bid negotiation endpoints. Drivers place and withdraw offers,
// riders accept, reject, counter, and raise their own offer tier.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"savari/internal/modules/bidding"
	"savari/internal/types"
)

type BidHandler struct {
	bids *bidding.Service
}

func NewBidHandler(bids *bidding.Service) *BidHandler {
	return &BidHandler{bids: bids}
}

type placeBidRequest struct {
	Amount     int64  `json:"amount"`
	ETAMinutes int    `json:"eta_minutes"`
	Note       string `json:"note"`
}

func (h *BidHandler) Place(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	b, err := h.bids.PlaceBid(c.Request.Context(), bidding.PlaceBidCommand{
		RideID:     types.ID(c.Param("id")),
		DriverID:   driverID,
		Amount:     req.Amount,
		ETAMinutes: req.ETAMinutes,
		Note:       req.Note,
	})
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BidHandler) ListByRide(c *gin.Context) {
	bids, err := h.bids.ListByRide(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bids": bids})
}

func (h *BidHandler) Accept(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	b, err := h.bids.AcceptBid(c.Request.Context(), riderID, types.ID(c.Param("id")))
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BidHandler) Reject(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	if err := h.bids.RejectBid(c.Request.Context(), riderID, types.ID(c.Param("id"))); err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": bidding.StatusRejected})
}

func (h *BidHandler) Withdraw(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	if err := h.bids.WithdrawBid(c.Request.Context(), driverID, types.ID(c.Param("id"))); err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": bidding.StatusWithdrawn})
}

type counterRequest struct {
	Amount  int64  `json:"amount"`
	Message string `json:"message"`
}

func (h *BidHandler) Counter(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	var req counterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	b, err := h.bids.CounterOffer(c.Request.Context(), bidding.CounterOfferCommand{
		RiderID: riderID,
		BidID:   types.ID(c.Param("id")),
		Amount:  req.Amount,
		Message: req.Message,
	})
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BidHandler) AcceptCounter(c *gin.Context) {
	driverID, ok := caller(c)
	if !ok {
		return
	}
	b, err := h.bids.AcceptCounter(c.Request.Context(), driverID, types.ID(c.Param("id")))
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type upsaleRequest struct {
	Percentage int `json:"percentage"`
}

func (h *BidHandler) SetUpsale(c *gin.Context) {
	riderID, ok := caller(c)
	if !ok {
		return
	}
	var req upsaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	r, err := h.bids.SetUpsale(c.Request.Context(), riderID, types.ID(c.Param("id")), req.Percentage)
	if err != nil {
		writeBidError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
