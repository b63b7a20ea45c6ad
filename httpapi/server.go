package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine serving the request API and the push channel
func NewRouter(handlers *Handlers, hub *Hub) *gin.Engine {
	router := gin.New()
	router.Use(recoveryMiddleware(), metricsMiddleware())

	api := router.Group("/api/v1")
	{
		api.POST("/placeWager", handlers.PlaceWager)
		api.POST("/confirmFunding", handlers.ConfirmFunding)
		api.POST("/resolveWager", handlers.ResolveWager)
		api.POST("/settleEvent", handlers.SettleEvent)
		api.GET("/wagers/:id", handlers.GetWager)

		api.POST("/startRound", handlers.StartRound)
		api.POST("/updateRound", handlers.UpdateRound)
		api.POST("/endRound", handlers.EndRound)

		api.POST("/claimReferral", handlers.ClaimReferral)
		api.POST("/withdrawReferralBonus", handlers.WithdrawReferralBonus)
		api.GET("/referrals/:playerId", handlers.GetReferralAccount)

		api.GET("/odds/:eventId", handlers.GetOdds)
	}
	router.GET("/ws", hub.HandleWS)

	return router
}

// Server runs the request API over HTTP
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for router on port
func NewServer(router http.Handler, port int) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves in the background. Errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("Request API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Request API server failed")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
