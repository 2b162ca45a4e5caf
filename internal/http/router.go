// README: HTTP route registration; delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"savari/internal/dispatch"
	"savari/internal/http/handlers"
	"savari/internal/http/middleware"
	"savari/internal/infra"
	"savari/internal/modules/bidding"
	"savari/internal/modules/geo"
	"savari/internal/modules/matching"
	"savari/internal/modules/pricing"
	"savari/internal/modules/ride"
)

type RouterDeps struct {
	Rides    *ride.Service
	Bids     *bidding.Service
	Matching *matching.Service
	Pricing  *pricing.Service
	Index    geo.Index
	Stream   handlers.PresencePublisher
	Registry *dispatch.WSRegistry
	Tokens   *dispatch.TokenRegistry
	Verifier infra.TokenVerifier
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) { c.String(200, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rideHandler := handlers.NewRideHandler(deps.Rides)
	bidHandler := handlers.NewBidHandler(deps.Bids)
	matchHandler := handlers.NewMatchingHandler(deps.Matching)
	driverHandler := handlers.NewDriverHandler(deps.Index, deps.Stream, deps.Log)
	estimateHandler := handlers.NewEstimateHandler(deps.Pricing)
	wsHandler := handlers.NewWSHandler(deps.Registry, deps.Log)
	deviceHandler := handlers.NewDeviceHandler(deps.Tokens)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	api.POST("/estimate", estimateHandler.Estimate)

	api.POST("/rides", rideHandler.Create)
	api.GET("/rides/open", rideHandler.ListOpen)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/accept", rideHandler.Accept)
	api.POST("/rides/:id/arrive", rideHandler.Arrive)
	api.POST("/rides/:id/start", rideHandler.Start)
	api.POST("/rides/:id/complete", rideHandler.Complete)
	api.POST("/rides/:id/cancel", rideHandler.Cancel)
	api.POST("/rides/:id/upsale", bidHandler.SetUpsale)

	api.POST("/rides/:id/bids", bidHandler.Place)
	api.GET("/rides/:id/bids", bidHandler.ListByRide)
	api.POST("/bids/:id/accept", bidHandler.Accept)
	api.POST("/bids/:id/reject", bidHandler.Reject)
	api.POST("/bids/:id/withdraw", bidHandler.Withdraw)
	api.POST("/bids/:id/counter", bidHandler.Counter)
	api.POST("/bids/:id/accept-counter", bidHandler.AcceptCounter)

	api.GET("/drivers/nearby", matchHandler.FindDrivers)
	api.POST("/rides/book", matchHandler.Book)
	api.PUT("/drivers/location", driverHandler.UpdateLocation)
	api.DELETE("/drivers/location", driverHandler.GoOffline)

	api.POST("/devices/token", deviceHandler.RegisterToken)
	api.GET("/ws", wsHandler.Connect)

	return r
}
