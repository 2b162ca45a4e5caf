// README: Shared handler utilities: JSON helpers and service-error to
// HTTP-status mapping.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"savari/internal/http/middleware"
	"savari/internal/modules/bidding"
	"savari/internal/modules/matching"
	"savari/internal/modules/pricing"
	"savari/internal/modules/ride"
	"savari/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, pricing.ErrBadCoordinates):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrInvalidState), errors.Is(err, ride.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, matching.ErrDriverUnavailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeBidError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bidding.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, bidding.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, bidding.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, bidding.ErrExpired):
		writeError(c, http.StatusGone, err.Error())
	case errors.Is(err, bidding.ErrInvalidState), errors.Is(err, bidding.ErrConflict),
		errors.Is(err, bidding.ErrRideClosed), errors.Is(err, bidding.ErrDuplicateBid):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeRideError(c, err)
	}
}

// caller extracts the authenticated identity or aborts with 401.
func caller(c *gin.Context) (types.ID, bool) {
	id := middleware.UserID(c)
	if id == "" {
		writeError(c, http.StatusUnauthorized, "missing identity")
		return "", false
	}
	return types.ID(id), true
}

func roleOf(c *gin.Context) string {
	return middleware.Role(c)
}

func intQuery(c *gin.Context, key string) (int, error) {
	return strconv.Atoi(c.Query(key))
}
