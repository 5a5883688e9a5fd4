// Exposes the change stream of Agora to the UI over Server Side Events.

package sse

import (
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/pkg/log"
	"Agora/pkg/middlewares"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Registers the SSE stream handler onto the gin server.
func APIHandlers(router *gin.Engine, service Service, logger log.Logger) {
	sseGroup := router.Group("/api/sse", middlewares.SSEMiddleware(), SSEConnManagerMiddleware(service, logger))
	{
		sseGroup.GET("/stream", ssehandler(service, logger))
	}
}

func ssehandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		client, ok := gctx.Value("SSE").(entity.SSEClient)
		if !ok {
			// Type assertion error
			logger.WithCtx(gctx).Error().Msg("Type assertion error in ssehandler")
			gctx.AbortWithStatusJSON(http.StatusInternalServerError, errors.InternalServerError(""))
			return
		}
		// Headers go out before the first notice so the client sees the stream open
		gctx.Status(http.StatusOK)
		gctx.Writer.Flush()
		gctx.Stream(func(w io.Writer) bool {
			select {
			// Send notice to the client
			case notice, ok := <-client.Channel:
				if !ok {
					return false
				}
				gctx.SSEvent(notice.Kind, notice)
				return true
			// Client exit
			case <-gctx.Request.Context().Done():
				return false
			}
		})
	}
}
