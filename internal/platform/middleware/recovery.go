package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// Recovery turns a handler panic into an internal error so the error
// handler answers 500 and the process keeps serving.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				logger.Error().
					Interface("request_id", c.Get("request_id")).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Bytes("stack", debug.Stack()).
					Msgf("panic recovered: %v", r)
				err = apperr.Internal("panic", fmt.Errorf("%v", r))
			}()
			return next(c)
		}
	}
}
