package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/rs/zerolog"
)

// ErrorReporter logs the errors handlers attach to the context and notices
// them on the request's New Relic transaction, when there is one.
func ErrorReporter(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		txn := nrgin.Transaction(c)
		for _, err := range c.Errors {
			log.Error().
				Err(err.Err).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Int("status", c.Writer.Status()).
				Msg("request failed")
			if txn != nil {
				txn.NoticeError(err.Err)
			}
		}
	}
}
