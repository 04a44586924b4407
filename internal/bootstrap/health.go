package bootstrap

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/label-scan/internal/analysis"
	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/health"
	"github.com/eleven-am/label-scan/internal/kv"
	"github.com/eleven-am/label-scan/internal/shots"
)

const version = "1.0.0"

func ProvideHealthHandler(
	storage kv.Store,
	classifier *analysis.Client,
	camera *capture.Controller,
	set *shots.Set,
) *health.Handler {
	var cam health.Camera
	if camera != nil {
		cam = camera
	}
	return health.NewHandler(storage, classifier, cam, set, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
