// Correlation middleware of the Agora relay.

package middlewares

import (
	"Agora/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
)

// Header carrying the correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

// This middleware will be used to populate every incoming request's context with a CorrelationID.
// An id sent by the UI is kept so one user action can be followed across requests.
func CorrelationMiddleware(logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		correlationID := gctx.GetHeader(CorrelationHeader)
		if _, perr := xid.FromString(correlationID); perr != nil {
			if correlationID != "" {
				logger.WithCtx(gctx).Debug().Str("received", correlationID).Msg("Replaced malformed correlation id")
			}
			correlationID = xid.New().String()
		}
		// Setting the correlationID in request's context
		gctx.Set("correlation_id", correlationID)
		// Setting the correlationID to response header
		gctx.Writer.Header().Set(CorrelationHeader, correlationID)
		gctx.Next()
	}
}
