package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"
)

func (srv HTTPServer) mapHandlers() error {
	srv.registerMiddlewares()
	srv.registerSystemRoutes()

	if err := srv.registerDomainRoutes(); err != nil {
		return err
	}

	return nil
}

func (srv HTTPServer) registerMiddlewares() {
	srv.gin.Use(gin.Recovery())

	ctx := context.Background()
	srv.l.Infof(ctx, "HTTP server mode: %s (%s)", srv.mode, srv.environment)
}

func (srv HTTPServer) registerSystemRoutes() {
	srv.gin.GET("/health", srv.healthCheck)
	srv.gin.GET("/ready", srv.readyCheck)
	srv.gin.GET("/live", srv.liveCheck)
}

// registerDomainRoutes registers all domain routes.
func (srv HTTPServer) registerDomainRoutes() error {
	ctx := context.Background()

	if srv.webhookHandler != nil {
		srv.gin.POST("/webhook/pierre", srv.webhookHandler.HandlePierreWebhook)
		srv.gin.GET("/api/v1/events", srv.webhookHandler.HandleListEvents)
		srv.l.Infof(ctx, "Pierre webhook route registered at POST /webhook/pierre")
	} else {
		srv.l.Infof(ctx, "Webhook handler not configured, skipping webhook routes")
	}

	return nil
}
