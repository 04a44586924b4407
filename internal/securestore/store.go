package securestore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/eleven-am/label-scan/internal/kv"
)

var ErrTampered = errors.New("stored value failed integrity check")

// Store wraps values with a salted checksum so that local edits to the
// backing storage are detected. The salt ships with the binary, so this
// only deters casual tampering and must never be the sole gate for a
// server-trusted entitlement.
type Store struct {
	kv     kv.Store
	salt   []byte
	logger *slog.Logger
}

func New(backing kv.Store, salt string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     backing,
		salt:   []byte(salt),
		logger: logger.With("component", "securestore"),
	}
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, key, s.wrap(value))
}

// GetItem returns def when the key is absent or its checksum does not
// match. Tampered entries are removed.
func (s *Store) GetItem(ctx context.Context, key, def string) string {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("read failed", "key", key, "error", err)
		}
		return def
	}

	value, err := s.unwrap(raw)
	if err != nil {
		s.logger.Warn("discarding tampered value", "key", key, "error", err)
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Debug("delete tampered value failed", "key", key, "error", err)
		}
		return def
	}
	return value
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

func (s *Store) wrap(value string) string {
	return base64.URLEncoding.EncodeToString([]byte(value)) + "." + s.checksum([]byte(value))
}

func (s *Store) unwrap(raw string) (string, error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 {
		return "", ErrTampered
	}

	payload, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrTampered
	}

	if !hmac.Equal([]byte(parts[1]), []byte(s.checksum(payload))) {
		return "", ErrTampered
	}
	return string(payload), nil
}

func (s *Store) checksum(value []byte) string {
	mac := hmac.New(sha256.New, s.salt)
	mac.Write(value)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
