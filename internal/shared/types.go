package shared

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Language selects the language of reasons and failure messages.
// Arabic is the primary language, English the secondary one.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(LanguageArabic)) {
		return LanguageArabic
	}
	return LanguageEnglish
}

func (l Language) String() string {
	return string(l)
}

// IngredientNaming controls whether detected ingredient names are translated
// into the app language or kept as printed on the label.
type IngredientNaming string

const (
	IngredientNamingApp      IngredientNaming = "app"
	IngredientNamingOriginal IngredientNaming = "original"
)

func ParseIngredientNaming(s string) IngredientNaming {
	if strings.EqualFold(strings.TrimSpace(s), string(IngredientNamingOriginal)) {
		return IngredientNamingOriginal
	}
	return IngredientNamingApp
}
