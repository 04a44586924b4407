package analysis

import "github.com/eleven-am/label-scan/internal/shared"

type messageKey int

const (
	msgOffline messageKey = iota
	msgTimeout
	msgConnection
	msgQuotaExceeded
	msgUpdateRequired
	msgFastPath
	msgProductNotFound
	msgNoIngredients
)

var messages = map[shared.Language]map[messageKey]string{
	shared.LanguageArabic: {
		msgOffline:         "لا يوجد اتصال بالإنترنت. تحقق من الاتصال وحاول مرة أخرى.",
		msgTimeout:         "استغرق التحليل وقتاً أطول من المتوقع. حاول مرة أخرى.",
		msgConnection:      "تعذر الاتصال بخادم التحليل. حاول مرة أخرى لاحقاً.",
		msgQuotaExceeded:   "لقد استنفدت عدد عمليات الفحص المتاحة.",
		msgUpdateRequired:  "يرجى تحديث التطبيق إلى أحدث إصدار للمتابعة.",
		msgFastPath:        "يحتوي على مكونات محرمة معروفة.",
		msgProductNotFound: "لم يتم العثور على المنتج.",
		msgNoIngredients:   "لا تتوفر قائمة مكونات لهذا المنتج.",
	},
	shared.LanguageEnglish: {
		msgOffline:         "No internet connection. Check your connection and try again.",
		msgTimeout:         "The analysis took too long. Please try again.",
		msgConnection:      "Could not reach the analysis server. Please try again later.",
		msgQuotaExceeded:   "You have used all of your available scans.",
		msgUpdateRequired:  "Please update the app to the latest version to continue.",
		msgFastPath:        "Contains known forbidden ingredients.",
		msgProductNotFound: "Product not found.",
		msgNoIngredients:   "No ingredient list is available for this product.",
	},
}

func message(lang shared.Language, key messageKey) string {
	if m, ok := messages[lang]; ok {
		return m[key]
	}
	return messages[shared.LanguageEnglish][key]
}

// failureMessage picks the copy for an exhausted call: offline first, then
// timeout, then the generic connection message.
func failureMessage(lang shared.Language, reason Reason, allowOffline bool) string {
	switch {
	case reason == ReasonOffline && allowOffline:
		return message(lang, msgOffline)
	case reason == ReasonTimeout:
		return message(lang, msgTimeout)
	default:
		return message(lang, msgConnection)
	}
}
