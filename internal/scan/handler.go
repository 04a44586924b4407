package scan

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/label-scan/internal/analysis"
	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/dto"
	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/product"
	"github.com/eleven-am/label-scan/internal/shared"
	"github.com/eleven-am/label-scan/internal/shots"
	"github.com/eleven-am/label-scan/internal/verdict"
)

const (
	maxUploadSize = 20 << 20

	headerUserID             = "x-user-id"
	headerLanguage           = "x-language"
	headerIngredientLanguage = "x-ingredient-language"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "scan_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/camera/capture", h.Capture)
	g.POST("/camera/gesture/press", h.PressShutter)
	g.POST("/camera/gesture/release", h.ReleaseShutter)
	g.POST("/camera/fallback", h.Fallback)

	g.GET("/shots", h.ListShots)
	g.POST("/shots", h.AddShot)
	g.GET("/shots/:index", h.GetShot)
	g.DELETE("/shots/:index", h.RemoveShot)
	g.DELETE("/shots", h.ClearShots)

	g.POST("/scans/images", h.ScanImages)
	g.POST("/scans/text", h.ScanText)
	g.POST("/scans/barcode", h.ScanBarcode)
	g.DELETE("/scans/current", h.CancelScan)

	g.GET("/history", h.ListHistory)
	g.DELETE("/history", h.ClearHistory)
}

// Capture godoc
// @Summary Capture a shot
// @Description Takes a still from the live camera and appends it to the shot set
// @Tags camera
// @Accept json
// @Produce json
// @Param request body dto.CaptureRequest false "Capture options"
// @Success 201 {object} dto.ShotAddedResponse
// @Failure 409 {object} shared.APIError
// @Failure 429 {object} shared.APIError
// @Router /camera/capture [post]
func (h *Handler) Capture(c echo.Context) error {
	var req dto.CaptureRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return shared.BadRequest("invalid_request", "invalid request body")
		}
	}

	index, err := h.service.Capture(c.Request().Context(), req.Debounced)
	if err != nil {
		return h.captureError(err)
	}
	return c.JSON(http.StatusCreated, h.added(index))
}

func (h *Handler) PressShutter(c echo.Context) error {
	accepted := h.service.PressShutter()
	return c.JSON(http.StatusOK, dto.GestureResponse{
		Accepted: accepted,
		Shots:    h.service.Shots().Len(),
	})
}

func (h *Handler) ReleaseShutter(c echo.Context) error {
	mode := h.service.ReleaseShutter()
	return c.JSON(http.StatusOK, dto.GestureResponse{
		Accepted: true,
		Mode:     string(mode),
		Shots:    h.service.Shots().Len(),
	})
}

// Fallback godoc
// @Summary Take a photo with the native camera
// @Description Hands over to the OS camera. Returns 204 when the user backs out.
// @Tags camera
// @Produce json
// @Success 201 {object} dto.ShotAddedResponse
// @Success 204
// @Failure 409 {object} shared.APIError
// @Failure 503 {object} shared.APIError
// @Router /camera/fallback [post]
func (h *Handler) Fallback(c echo.Context) error {
	index, err := h.service.Fallback(c.Request().Context())
	if errors.Is(err, capture.ErrPickerCancelled) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return h.captureError(err)
	}
	return c.JSON(http.StatusCreated, h.added(index))
}

func (h *Handler) ListShots(c echo.Context) error {
	set := h.service.Shots()
	frames := set.Frames()

	resp := dto.ShotListResponse{
		Shots:    make([]dto.ShotResponse, 0, len(frames)),
		Capacity: set.Cap(),
		Full:     set.Full(),
	}
	for i, f := range frames {
		shot := dto.ShotResponse{Index: i, Seq: f.Seq, MIME: f.MIME, Bytes: len(f.Data)}
		if w, ht, err := imaging.Dimensions(f); err == nil {
			shot.Width, shot.Height = w, ht
		}
		resp.Shots = append(resp.Shots, shot)
	}
	return c.JSON(http.StatusOK, resp)
}

// AddShot godoc
// @Summary Upload a shot
// @Description Accepts a raw image body or a multipart form with an "image" file
// @Tags shots
// @Accept image/jpeg,image/png,image/webp,multipart/form-data
// @Produce json
// @Success 201 {object} dto.ShotAddedResponse
// @Failure 400 {object} shared.APIError
// @Failure 409 {object} shared.APIError
// @Router /shots [post]
func (h *Handler) AddShot(c echo.Context) error {
	data, err := readUpload(c)
	if err != nil {
		return err
	}

	index, err := h.service.AddShot(data)
	if err != nil {
		return h.captureError(err)
	}
	return c.JSON(http.StatusCreated, h.added(index))
}

func (h *Handler) GetShot(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return shared.BadRequest("invalid_index", "index must be a number")
	}

	f, err := h.service.Shot(index)
	if err != nil {
		return shared.NotFound("shot_not_found", "shot not found")
	}
	return c.Blob(http.StatusOK, f.MIME, f.Data)
}

func (h *Handler) RemoveShot(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return shared.BadRequest("invalid_index", "index must be a number")
	}

	closed, err := h.service.RemoveShot(index)
	if err != nil {
		return shared.NotFound("shot_not_found", "shot not found")
	}
	return c.JSON(http.StatusOK, dto.ShotRemovedResponse{
		Count:  h.service.Shots().Len(),
		Closed: closed,
	})
}

func (h *Handler) ClearShots(c echo.Context) error {
	h.service.ClearShots()
	return c.NoContent(http.StatusNoContent)
}

// ScanImages godoc
// @Summary Analyse the current shot set
// @Description Submits every shot, retrying at smaller sizes on failure. The set is cleared once the analysis completes.
// @Tags scans
// @Produce json
// @Param x-user-id header string false "User identifier"
// @Param x-language header string false "ar or en"
// @Param x-ingredient-language header string false "app or original"
// @Success 200 {object} dto.ScanResponse
// @Failure 400 {object} shared.APIError
// @Failure 403 {object} shared.APIError
// @Failure 409 {object} shared.APIError
// @Failure 426 {object} shared.APIError
// @Failure 499 {object} shared.APIError
// @Router /scans/images [post]
func (h *Handler) ScanImages(c echo.Context) error {
	out, err := h.service.AnalyzeShots(c.Request().Context(), requestFrom(c))
	if err != nil {
		return h.scanError(err, out.Result)
	}
	return c.JSON(http.StatusOK, toScanResponse(out))
}

func (h *Handler) ScanText(c echo.Context) error {
	var body dto.TextScanRequest
	if err := c.Bind(&body); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	req := requestFrom(c)
	req.Text = body.Text

	out, err := h.service.AnalyzeText(c.Request().Context(), req)
	if err != nil {
		return h.scanError(err, out.Result)
	}
	return c.JSON(http.StatusOK, toScanResponse(out))
}

func (h *Handler) ScanBarcode(c echo.Context) error {
	var body dto.BarcodeScanRequest
	if err := c.Bind(&body); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	out, err := h.service.AnalyzeBarcode(c.Request().Context(), strings.TrimSpace(body.Barcode), requestFrom(c))
	if err != nil {
		return h.scanError(err, out.Result)
	}
	return c.JSON(http.StatusOK, toScanResponse(out))
}

func (h *Handler) CancelScan(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.CancelScanResponse{Cancelled: h.service.Cancel()})
}

// ListHistory godoc
// @Summary List recent scans
// @Tags history
// @Produce json
// @Success 200 {object} dto.HistoryResponse
// @Router /history [get]
func (h *Handler) ListHistory(c echo.Context) error {
	entries, err := h.service.History(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to load history", "error", err)
		return shared.InternalError("history_unavailable", "history could not be loaded")
	}

	resp := dto.HistoryResponse{
		Entries: make([]dto.HistoryEntryResponse, 0, len(entries)),
		Limit:   h.service.HistoryLimit(),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.HistoryEntryResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Result:    resultToResponse(e.Result),
			Thumbnail: e.Thumbnail,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ClearHistory(c echo.Context) error {
	if err := h.service.ClearHistory(c.Request().Context()); err != nil {
		h.logger.Error("failed to clear history", "error", err)
		return shared.InternalError("history_unavailable", "history could not be cleared")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) added(index int) dto.ShotAddedResponse {
	set := h.service.Shots()
	return dto.ShotAddedResponse{Index: index, Count: set.Len(), Full: set.Full()}
}

func (h *Handler) captureError(err error) error {
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return shared.BadRequest("image_too_large", "image exceeds the pixel limit")
	case errors.Is(err, ErrBadImage):
		return shared.BadRequest("invalid_image", "image could not be decoded")
	case errors.Is(err, shots.ErrFull):
		return shared.Conflict("max_images", err.Error())
	case errors.Is(err, capture.ErrNoStream):
		return shared.Conflict("camera_not_streaming", err.Error())
	case errors.Is(err, capture.ErrDebounced):
		return shared.TooManyRequests("capture_debounced", err.Error())
	case errors.Is(err, capture.ErrPickInProgress):
		return shared.Conflict("fallback_in_progress", err.Error())
	case errors.Is(err, capture.ErrNoPicker):
		return shared.ServiceUnavailable("fallback_unavailable", err.Error())
	default:
		h.logger.Error("capture failed", "error", err)
		return shared.InternalError("capture_failed", "capture failed")
	}
}

// scanError maps a failed scan. Quota and update rejections carry the
// localized copy from the failure verdict; cancellation never does.
func (h *Handler) scanError(err error, result verdict.Result) error {
	switch {
	case errors.Is(err, analysis.ErrCancelled):
		return shared.Cancelled("cancelled", "scan cancelled")
	case errors.Is(err, analysis.ErrQuotaExceeded):
		return shared.Forbidden("quota_exceeded", result.Reason)
	case errors.Is(err, analysis.ErrUpdateRequired):
		return shared.UpgradeRequired("update_required", result.Reason)
	case errors.Is(err, ErrNoShots):
		return shared.BadRequest("no_shots", err.Error())
	case errors.Is(err, analysis.ErrEmptyRequest):
		return shared.BadRequest("empty_request", err.Error())
	case errors.Is(err, product.ErrInvalidBarcode):
		return shared.BadRequest("invalid_barcode", err.Error())
	case errors.Is(err, ErrInProgress):
		return shared.Conflict("scan_in_progress", err.Error())
	default:
		h.logger.Error("scan failed", "error", err)
		return shared.InternalError("scan_failed", "scan failed")
	}
}

func requestFrom(c echo.Context) analysis.Request {
	r := c.Request()
	lang := shared.LanguageArabic
	if v := r.Header.Get(headerLanguage); v != "" {
		lang = shared.ParseLanguage(v)
	}
	return analysis.Request{
		UserID:   r.Header.Get(headerUserID),
		Language: lang,
		Naming:   shared.ParseIngredientNaming(r.Header.Get(headerIngredientLanguage)),
	}
}

func readUpload(c echo.Context) ([]byte, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, shared.BadRequest("invalid_request", "missing image file")
		}
		if fh.Size > maxUploadSize {
			return nil, shared.BadRequest("image_too_large", "image exceeds upload limit")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, shared.BadRequest("invalid_request", "unreadable image file")
		}
		defer f.Close()
		return readLimited(f)
	}
	return readLimited(c.Request().Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return nil, shared.BadRequest("invalid_request", fmt.Sprintf("read image: %v", err))
	}
	if len(data) > maxUploadSize {
		return nil, shared.BadRequest("image_too_large", "image exceeds upload limit")
	}
	if len(data) == 0 {
		return nil, shared.BadRequest("invalid_image", "empty image")
	}
	return data, nil
}

func toScanResponse(out Outcome) dto.ScanResponse {
	resp := resultToResponse(out.Result)
	if out.Entry != nil {
		resp.HistoryID = out.Entry.ID
	}
	return resp
}

func resultToResponse(r verdict.Result) dto.ScanResponse {
	ingredients := make([]dto.IngredientResponse, 0, len(r.Ingredients))
	for _, i := range r.Ingredients {
		ingredients = append(ingredients, dto.IngredientResponse{Name: i.Name, Status: string(i.Status)})
	}
	return dto.ScanResponse{
		Status:      string(r.Status),
		Reason:      r.Reason,
		Ingredients: ingredients,
		Confidence:  r.Confidence,
	}
}
