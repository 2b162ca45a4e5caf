package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "rides_created_total", Help: "Ride requests created"})
	DirectAssignmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "direct_assignments_total", Help: "Rides assigned via direct dispatch"})
	RidesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "rides_completed_total", Help: "Rides completed"})
	RidesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "rides_cancelled_total", Help: "Rides cancelled by any actor"})

	BidsPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "bids_placed_total", Help: "Driver bids placed"})
	BidsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "bids_accepted_total", Help: "Bids accepted by riders or drivers"})
	BidsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "savari", Name: "bids_expired_total", Help: "Bids lapsed past their TTL"})

	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "savari", Name: "drivers_online", Help: "Drivers currently online"})
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "savari", Name: "ws_sessions", Help: "Connected websocket sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "savari", Name: "http_requests_total", Help: "HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
)
