// Exposes all of the REST APIs of the Agora relay.

package relay

import (
	"Agora/internal/errors"
	"Agora/pkg/log"
	"Agora/pkg/validation"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registers all of the REST API handlers of the relay onto the gin server.
func APIHandlers(router *gin.Engine, service Service, gatherer prometheus.Gatherer, logger log.Logger) {
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/status", statushandler(service))
		apiGroup.GET("/cache", cachekeyshandler(service))
		apiGroup.GET("/cache/entry", cacheentryhandler(service, logger))
		apiGroup.GET("/queries/state", querystatehandler(service))
		apiGroup.GET("/signals", signalshandler(service))
		apiGroup.GET("/screens", screenshandler(service))
		apiGroup.POST("/screens", mounthandler(service, logger))
		apiGroup.DELETE("/screens/:id", unmounthandler(service, logger))
		apiGroup.POST("/navigation", navigationhandler(service, logger))
		apiGroup.POST("/emit/:event", emithandler(service, logger))
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func statushandler(service Service) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, service.Status())
	}
}

func cachekeyshandler(service Service) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"keys": service.CacheKeys(gctx.Query("prefix"))})
	}
}

func cacheentryhandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		entry, err := service.CacheEntry(gctx.Query("key"))
		if err != nil {
			resp := errors.As(err)
			logger.WithCtx(gctx).Debug().Err(err).Msg("Cache entry not served")
			gctx.AbortWithStatusJSON(resp.StatusCode(), resp)
			return
		}
		gctx.JSON(http.StatusOK, entry)
	}
}

func querystatehandler(service Service) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"states": service.QueryStates(gctx.Query("key"))})
	}
}

func signalshandler(service Service) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, service.Signals())
	}
}

func screenshandler(service Service) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"screens": service.Screens()})
	}
}

func mounthandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		var req MountRequest
		if bindErr := gctx.ShouldBindJSON(&req); bindErr != nil {
			// Error occured during serialization
			logger.WithCtx(gctx).Debug().Err(bindErr).Msg("Malformed mount request")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.BadRequest(""))
			return
		}
		if errs := validation.Validate(req); errs != nil {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.GenerateValidationErrorResponse(errs))
			return
		}
		gctx.JSON(http.StatusCreated, service.Mount(gctx, req))
	}
}

func unmounthandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		if err := service.Unmount(gctx, gctx.Param("id")); err != nil {
			resp := errors.As(err)
			gctx.AbortWithStatusJSON(resp.StatusCode(), resp)
			return
		}
		gctx.Status(http.StatusNoContent)
	}
}

func navigationhandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		var req struct {
			Path string `json:"path" valid:"required"`
		}
		if bindErr := gctx.ShouldBindJSON(&req); bindErr != nil {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.BadRequest(""))
			return
		}
		if errs := validation.Validate(req); errs != nil {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.GenerateValidationErrorResponse(errs))
			return
		}
		gctx.JSON(http.StatusOK, gin.H{"path": service.Navigate(gctx, req.Path)})
	}
}

func emithandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		body, readErr := io.ReadAll(gctx.Request.Body)
		if readErr != nil {
			logger.WithCtx(gctx).Error().Err(readErr).Msg("Error occured while reading emit body")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.BadRequest(""))
			return
		}
		if err := service.Emit(gctx, gctx.Param("event"), body); err != nil {
			resp := errors.As(err)
			gctx.AbortWithStatusJSON(resp.StatusCode(), resp)
			return
		}
		// Delivery is best-effort, accepted is all the relay can promise
		gctx.Status(http.StatusAccepted)
	}
}
