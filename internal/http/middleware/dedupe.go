package middleware

import (
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/dedupe"
	"github.com/jrjocham/apihub/internal/metrics"
)

// DedupeConfig config for dropping relay re-deliveries.
type DedupeConfig struct {
	Store       dedupe.Store
	Field       string // form field carrying the delivery id, default "MessageSid"
	Log         *zap.Logger
	OnDuplicate echo.HandlerFunc
}

// DedupeMiddleware answers a delivery whose id was already seen with
// OnDuplicate instead of running the handler again. The id is forgotten when
// the handler returns an error so the relay's retry gets processed. Requests
// without an id and store failures pass through.
func DedupeMiddleware(cfg DedupeConfig) echo.MiddlewareFunc {
	if cfg.Field == "" {
		cfg.Field = "MessageSid"
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Store == nil {
				return next(c)
			}

			sid := strings.TrimSpace(c.FormValue(cfg.Field))
			if sid == "" {
				return next(c)
			}

			dup, err := cfg.Store.Seen(c.Request().Context(), sid)
			if err != nil {
				// store down (e.g. redis): process rather than drop
				cfg.Log.Warn("dedupe store failed", zap.String("sid", sid), zap.Error(err))
				return next(c)
			}

			if dup {
				metrics.DuplicatesTotal.Inc()
				cfg.Log.Info("duplicate delivery dropped", zap.String("sid", sid))
				return cfg.OnDuplicate(c)
			}

			if err := next(c); err != nil {
				if ferr := cfg.Store.Forget(c.Request().Context(), sid); ferr != nil {
					cfg.Log.Warn("dedupe forget failed", zap.String("sid", sid), zap.Error(ferr))
				}
				return err
			}

			return nil
		}
	}
}
