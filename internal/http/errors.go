package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/util"
)

const unexpectedErrorMessage = "An unexpected error occurred. Please reference this error ID: "

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorHandler is the single place handler errors become responses. Client
// errors raised by echo itself keep the default rendering; everything else is
// logged under a fresh correlation id and answered with a generic 500.
func errorHandler(e *echo.Echo, log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		id := util.NewCorrelationID()
		log.Error("unhandled handler error",
			zap.String("correlation_id", id),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(http.StatusInternalServerError)
			return
		}

		_ = c.JSON(http.StatusInternalServerError, errorBody{
			Status:  "error",
			Message: unexpectedErrorMessage + id,
		})
	}
}
