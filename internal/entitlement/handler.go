package entitlement

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/label-scan/internal/dto"
	"github.com/eleven-am/label-scan/internal/shared"
)

type Handler struct {
	cache  *Cache
	logger *slog.Logger
}

func NewHandler(cache *Cache, logger *slog.Logger) *Handler {
	return &Handler{
		cache:  cache,
		logger: logger.With("component", "entitlement_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/entitlement", h.Get)
	g.PUT("/entitlement", h.Update)
}

// Get godoc
// @Summary Get cached premium status
// @Tags entitlement
// @Produce json
// @Success 200 {object} dto.EntitlementResponse
// @Router /entitlement [get]
func (h *Handler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.EntitlementResponse{
		Premium: h.cache.IsPremium(c.Request().Context()),
	})
}

// Update godoc
// @Summary Update cached premium status
// @Tags entitlement
// @Accept json
// @Produce json
// @Param request body dto.UpdateEntitlementRequest true "Premium flag"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 400 {object} shared.APIError
// @Router /entitlement [put]
func (h *Handler) Update(c echo.Context) error {
	var req dto.UpdateEntitlementRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Premium == nil {
		return shared.BadRequest("invalid_request", "premium is required")
	}

	ctx := c.Request().Context()
	if err := h.cache.SetPremium(ctx, *req.Premium); err != nil {
		h.logger.Error("failed to store entitlement", "error", err)
		return shared.InternalError("entitlement_unavailable", "entitlement could not be saved")
	}

	return c.JSON(http.StatusOK, dto.EntitlementResponse{Premium: h.cache.IsPremium(ctx)})
}
