package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// dropRepeatedly renames files into dir until the returned func is called,
// so the test does not depend on when the watcher is registered.
func dropRepeatedly(t *testing.T, dir, name string, data []byte) func() {
	t.Helper()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
			tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", i))
			if err := os.WriteFile(tmp, data, 0o644); err != nil {
				return
			}
			target := name
			if target == "" {
				target = fmt.Sprintf("photo-%d.jpg", i)
			}
			os.Rename(tmp, filepath.Join(dir, target))
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func TestFilePicker_ReturnsDroppedPhoto(t *testing.T) {
	dir := t.TempDir()
	photo := encodedJPEG(t, 20, 10)
	p := NewFilePicker(dir, quietLogger())

	stop := dropRepeatedly(t, dir, "", photo)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := p.Pick(ctx)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if string(data) != string(photo) {
		t.Error("expected the dropped photo")
	}
}

func TestFilePicker_CancelMarker(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePicker(dir, quietLogger())

	stop := dropRepeatedly(t, dir, CancelMarker, []byte("x"))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.Pick(ctx); !errors.Is(err, ErrPickerCancelled) {
		t.Errorf("expected ErrPickerCancelled, got %v", err)
	}
}

func TestFilePicker_IgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePicker(dir, quietLogger())

	stop := dropRepeatedly(t, dir, "", []byte("not an image"))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := p.Pick(ctx); !errors.Is(err, ErrPickerCancelled) {
		t.Errorf("expected ErrPickerCancelled on timeout, got %v", err)
	}
}
