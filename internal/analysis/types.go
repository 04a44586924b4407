package analysis

import (
	"errors"
	"strings"
	"time"

	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/shared"
)

var (
	ErrEmptyRequest   = errors.New("analysis request has no images and no text")
	ErrQuotaExceeded  = errors.New("scan quota exceeded")
	ErrUpdateRequired = errors.New("app update required")
	ErrCancelled      = errors.New("analysis cancelled")
)

const AnonymousUser = "anonymous"

// Tier is the image size and compression used for one attempt.
type Tier struct {
	MaxDimension int
	Quality      float64
}

var DefaultTiers = []Tier{
	{MaxDimension: 2000, Quality: 0.85},
	{MaxDimension: 1024, Quality: 0.7},
	{MaxDimension: 800, Quality: 0.6},
}

type Config struct {
	BaseURL      string
	AppVersion   string
	FirstTimeout time.Duration
	RetryTimeout time.Duration
	TextTimeout  time.Duration
	BackoffStep  time.Duration
	Tiers        []Tier
}

func (c Config) withDefaults() Config {
	if c.FirstTimeout == 0 {
		c.FirstTimeout = 20 * time.Second
	}
	if c.RetryTimeout == 0 {
		c.RetryTimeout = 35 * time.Second
	}
	if c.TextTimeout == 0 {
		c.TextTimeout = 20 * time.Second
	}
	if c.BackoffStep == 0 {
		c.BackoffStep = 1500 * time.Millisecond
	}
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultTiers
	}
	if c.AppVersion == "" {
		c.AppVersion = "0.0.0"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

type Request struct {
	Frames   []imaging.Frame
	Text     string
	UserID   string
	Language shared.Language
	Naming   shared.IngredientNaming
}

func (r Request) Validate() error {
	if len(r.Frames) == 0 && strings.TrimSpace(r.Text) == "" {
		return ErrEmptyRequest
	}
	return nil
}

func (r Request) userID() string {
	if strings.TrimSpace(r.UserID) == "" {
		return AnonymousUser
	}
	return r.UserID
}

type wireRequest struct {
	Images []string `json:"images,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type wireError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (r Request) language() shared.Language {
	if r.Language == "" {
		return shared.LanguageArabic
	}
	return shared.ParseLanguage(string(r.Language))
}

func (r Request) naming() shared.IngredientNaming {
	return shared.ParseIngredientNaming(string(r.Naming))
}
