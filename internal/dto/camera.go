package dto

type StartCameraRequest struct {
	DeviceID string `json:"device_id,omitempty" example:"/dev/video0"`
}

type CameraResponse struct {
	State        string  `json:"state" example:"streaming"`
	Error        string  `json:"error,omitempty" example:"Camera permission denied"`
	HasTorch     bool    `json:"has_torch" example:"true"`
	TorchOn      bool    `json:"torch_on" example:"false"`
	SupportsZoom bool    `json:"supports_zoom" example:"true"`
	MinZoom      float64 `json:"min_zoom" example:"1"`
	MaxZoom      float64 `json:"max_zoom" example:"5"`
	Zoom         float64 `json:"zoom" example:"1"`
	HasFallback  bool    `json:"has_fallback" example:"true"`
	DeviceID     string  `json:"device_id,omitempty" example:"/dev/video0"`
	Width        int     `json:"width,omitempty" example:"1920"`
	Height       int     `json:"height,omitempty" example:"1080"`
}

type TorchResponse struct {
	TorchOn bool `json:"torch_on" example:"true"`
}

type ZoomRequest struct {
	Level float64 `json:"level" example:"2.5"`
}

type ZoomResponse struct {
	Zoom float64 `json:"zoom" example:"2.5"`
}

type CaptureRequest struct {
	Debounced bool `json:"debounced" example:"true"`
}

type GestureResponse struct {
	Accepted bool   `json:"accepted" example:"true"`
	Mode     string `json:"mode,omitempty" example:"single"`
	Shots    int    `json:"shots" example:"2"`
}
