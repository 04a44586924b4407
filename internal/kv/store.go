package kv

import (
	"context"

	"github.com/eleven-am/label-scan/internal/shared"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = shared.ErrNotFound

// Store is the durable string key-value storage behind history and the
// tamper-evident flag store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
