// List of all REST API endpoints being used by Agora can be found here.

package main

import (
	"Agora/internal/auth"
	"Agora/internal/config"
	"Agora/internal/entity"
	"Agora/internal/relay"
	"Agora/internal/sse"
	"Agora/pkg/globalcontext"
	"Agora/pkg/log"
	"Agora/pkg/middlewares"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func Router(router *gin.Engine, cfg *config.Config, session entity.Session, relaySvc relay.Service,
	hub sse.Service, gatherer prometheus.Gatherer, logger log.Logger) {
	// Forcing gin to use custom Logger instead of the default one.
	router.Use(log.LoggerGinExtension(logger))
	router.Use(gin.Recovery())
	router.Use(globalcontext.UniqueIDMiddleware(logger))
	router.Use(middlewares.CorrelationMiddleware(logger))
	router.Use(middlewares.CORSMiddleware(cfg.UIOrigin))
	router.Use(auth.SessionMiddleware(session))

	// This is the route to default path
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to Agora!")
	})

	sse.APIHandlers(router, hub, logger)
	relay.APIHandlers(router, relaySvc, gatherer, logger)
}
