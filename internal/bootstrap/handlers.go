package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/entitlement"
	"github.com/eleven-am/label-scan/internal/scan"
)

func ProvideCameraHandler(camera *capture.Controller, log *slog.Logger) *capture.Handler {
	return capture.NewHandler(camera, log)
}

func ProvideScanHandler(service *scan.Service, log *slog.Logger) *scan.Handler {
	return scan.NewHandler(service, log)
}

func ProvideEntitlementHandler(cache *entitlement.Cache, log *slog.Logger) *entitlement.Handler {
	return entitlement.NewHandler(cache, log)
}

type HandlerParams struct {
	fx.In

	Lifecycle          fx.Lifecycle
	CameraHandler      *capture.Handler
	ScanHandler        *scan.Handler
	EntitlementHandler *entitlement.Handler
	Config             *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	stop := make(chan struct{})
	params.Lifecycle.Append(fx.StopHook(func() { close(stop) }))

	limits := DefaultRateLimiterConfig()
	if params.Config.Server.RateLimit > 0 {
		limits.RequestsPerSecond = params.Config.Server.RateLimit
	}
	if params.Config.Server.RateBurst > 0 {
		limits.Burst = params.Config.Server.RateBurst
	}

	api := e.Group("/v1")
	api.Use(RateLimiter(limits, stop))

	params.CameraHandler.RegisterRoutes(api)
	params.ScanHandler.RegisterRoutes(api)
	params.EntitlementHandler.RegisterRoutes(api)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideCameraHandler,
		ProvideScanHandler,
		ProvideEntitlementHandler,
	),
	fx.Invoke(RegisterRoutes),
)
