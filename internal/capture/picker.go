package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// CancelMarker is the file name the OS camera hand-off writes when the
// user backs out without taking a photo.
const CancelMarker = ".cancel"

// FilePicker waits for the OS camera app to drop a photo into a hand-off
// directory. Writers should create the file under a dot-prefixed name and
// rename it into place once complete.
type FilePicker struct {
	dir    string
	logger *slog.Logger
}

func NewFilePicker(dir string, logger *slog.Logger) *FilePicker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePicker{dir: dir, logger: logger.With("component", "file-picker")}
}

func (p *FilePicker) Pick(ctx context.Context) ([]byte, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create hand-off dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", p.dir, err)
	}

	p.logger.Debug("waiting for photo", "dir", p.dir)

	for {
		select {
		case <-ctx.Done():
			return nil, ErrPickerCancelled

		case event, ok := <-watcher.Events:
			if !ok {
				return nil, ErrPickerCancelled
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if name == CancelMarker {
				os.Remove(event.Name)
				return nil, ErrPickerCancelled
			}
			if strings.HasPrefix(name, ".") {
				continue
			}

			data, ok := readImage(event.Name)
			if !ok {
				continue
			}
			if err := os.Remove(event.Name); err != nil {
				p.logger.Debug("remove picked file failed", "file", event.Name, "error", err)
			}
			return data, nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, ErrPickerCancelled
			}
			p.logger.Warn("hand-off watch error", "error", err)
		}
	}
}

// readImage returns the file only once it holds a decodable image header.
func readImage(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, false
	}
	return data, true
}
