// Server Side Events (SSE) middleware used to populate request context with client SSE channel.

package sse

import (
	"Agora/pkg/log"
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
)

func SSEConnManagerMiddleware(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		// Every open stream is its own client, a UI may hold several
		id := gctx.GetString("correlation_id")
		if id == "" {
			id = xid.New().String()
		}
		client := service.Register(gctx.Request.Context(), id)

		defer func() {
			// Send closed connection to event server, the request context is already done here
			logger.WithCtx(gctx).Info().Msgf("Closing SSE connection : %s", client.ID)
			service.Unregister(context.WithoutCancel(gctx.Request.Context()), client)
		}()

		gctx.Set("SSE", client)
		gctx.Next()
	}
}
