package capture

import (
	"errors"

	"github.com/eleven-am/label-scan/internal/shared"
)

const (
	msgPermission = "permission"
	msgNoCamera   = "no_camera"
	msgGeneric    = "generic"
)

var errorMessages = map[shared.Language]map[string]string{
	shared.LanguageArabic: {
		msgPermission: "تم رفض إذن الكاميرا. يمكنك استخدام كاميرا الجهاز بدلاً من ذلك.",
		msgNoCamera:   "الكاميرا غير متاحة على هذا الجهاز. يمكنك استخدام كاميرا الجهاز بدلاً من ذلك.",
		msgGeneric:    "تعذر تشغيل الكاميرا. حاول مرة أخرى أو استخدم كاميرا الجهاز.",
	},
	shared.LanguageEnglish: {
		msgPermission: "Camera permission was denied. You can use the device camera instead.",
		msgNoCamera:   "No camera is available on this device. You can use the device camera instead.",
		msgGeneric:    "Could not start the camera. Try again or use the device camera.",
	},
}

// displayError turns a start failure into copy for the user.
func displayError(lang shared.Language, err error) string {
	m, ok := errorMessages[lang]
	if !ok {
		m = errorMessages[shared.LanguageEnglish]
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return m[msgPermission]
	case errors.Is(err, ErrNoCamera):
		return m[msgNoCamera]
	default:
		return m[msgGeneric]
	}
}
