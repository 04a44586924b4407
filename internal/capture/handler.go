package capture

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/eleven-am/label-scan/internal/dto"
	"github.com/eleven-am/label-scan/internal/shared"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	camera *Controller
	logger *slog.Logger
}

func NewHandler(camera *Controller, logger *slog.Logger) *Handler {
	return &Handler{
		camera: camera,
		logger: logger.With("component", "camera_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/camera", h.Get)
	g.POST("/camera/start", h.Start)
	g.POST("/camera/stop", h.Stop)
	g.POST("/camera/torch", h.ToggleTorch)
	g.POST("/camera/zoom", h.SetZoom)
	g.GET("/camera/events", h.Events)
}

// Get godoc
// @Summary Get camera state
// @Tags camera
// @Produce json
// @Success 200 {object} dto.CameraResponse
// @Router /camera [get]
func (h *Handler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, snapshotToResponse(h.camera.Snapshot()))
}

// Start godoc
// @Summary Start the camera
// @Description Opens the device, releasing any previous stream. On failure the state carries a displayable error and the native fallback should be offered.
// @Tags camera
// @Accept json
// @Produce json
// @Param request body dto.StartCameraRequest false "Device selection"
// @Success 200 {object} dto.CameraResponse
// @Failure 403 {object} shared.APIError
// @Failure 503 {object} shared.APIError
// @Router /camera/start [post]
func (h *Handler) Start(c echo.Context) error {
	var req dto.StartCameraRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return shared.BadRequest("invalid_request", "invalid request body")
		}
	}

	if err := h.camera.Start(c.Request().Context(), req.DeviceID); err != nil {
		snap := h.camera.Snapshot()
		if errors.Is(err, ErrPermissionDenied) {
			return shared.Forbidden("camera_permission_denied", snap.Error)
		}
		return shared.NewAPIError("camera_unavailable", snap.Error).
			WithDetails(snapshotToResponse(snap)).
			ToHTTP(http.StatusServiceUnavailable)
	}

	return c.JSON(http.StatusOK, snapshotToResponse(h.camera.Snapshot()))
}

func (h *Handler) Stop(c echo.Context) error {
	h.camera.Stop()
	return c.JSON(http.StatusOK, snapshotToResponse(h.camera.Snapshot()))
}

func (h *Handler) ToggleTorch(c echo.Context) error {
	on := h.camera.ToggleTorch(c.Request().Context())
	return c.JSON(http.StatusOK, dto.TorchResponse{TorchOn: on})
}

func (h *Handler) SetZoom(c echo.Context) error {
	var req dto.ZoomRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	zoom := h.camera.SetZoom(c.Request().Context(), req.Level)
	return c.JSON(http.StatusOK, dto.ZoomResponse{Zoom: zoom})
}

// Events streams camera state and capture events over a websocket. The
// current state is sent first.
func (h *Handler) Events(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return nil
	}
	defer ws.Close()

	events, unsubscribe := h.camera.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go readPump(ws, done)

	snap := h.camera.Snapshot()
	if err := writeEvent(ws, Event{Type: EventState, State: snap.State, Error: snap.Error, At: time.Now()}); err != nil {
		return nil
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-events:
			if !ok {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := writeEvent(ws, ev); err != nil {
				h.logger.Debug("event write failed", "error", err)
				return nil
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(ws *websocket.Conn, ev Event) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(ev)
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func snapshotToResponse(s Snapshot) dto.CameraResponse {
	return dto.CameraResponse{
		State:        string(s.State),
		Error:        s.Error,
		HasTorch:     s.HasTorch,
		TorchOn:      s.TorchOn,
		SupportsZoom: s.SupportsZoom,
		MinZoom:      s.MinZoom,
		MaxZoom:      s.MaxZoom,
		Zoom:         s.Zoom,
		HasFallback:  s.HasFallback,
		DeviceID:     s.Settings.DeviceID,
		Width:        s.Settings.Width,
		Height:       s.Settings.Height,
	}
}
