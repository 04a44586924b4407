package shots

import (
	"errors"
	"sync"

	"github.com/eleven-am/label-scan/internal/imaging"
)

const DefaultCapacity = 4

var (
	ErrFull  = errors.New("max images reached")
	ErrIndex = errors.New("shot index out of range")
)

// Set is the ordered collection of frames captured for one classification
// attempt. Insertion order is the order frames are previewed and submitted.
type Set struct {
	mu       sync.Mutex
	capacity int
	frames   []imaging.Frame
	nextSeq  int
}

func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		frames:   make([]imaging.Frame, 0, capacity),
	}
}

// Append adds a frame and returns its index. A full set is left untouched.
func (s *Set) Append(f imaging.Frame) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) >= s.capacity {
		return 0, ErrFull
	}

	s.nextSeq++
	f.Seq = s.nextSeq
	s.frames = append(s.frames, f)
	return len(s.frames) - 1, nil
}

// Remove drops one frame. emptied reports that the last frame was removed,
// which is the cue to close any multi-image preview.
func (s *Set) Remove(index int) (emptied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.frames) {
		return false, ErrIndex
	}

	s.frames = append(s.frames[:index], s.frames[index+1:]...)
	return len(s.frames) == 0, nil
}

func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = s.frames[:0]
}

// Discard removes the given frames, matched by sequence number. Frames
// appended after they were read stay in the set.
func (s *Set) Discard(frames []imaging.Frame) {
	if len(frames) == 0 {
		return
	}
	seqs := make(map[int]struct{}, len(frames))
	for _, f := range frames {
		seqs[f.Seq] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.frames[:0]
	for _, f := range s.frames {
		if _, ok := seqs[f.Seq]; !ok {
			kept = append(kept, f)
		}
	}
	s.frames = kept
}

func (s *Set) Get(index int) (imaging.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.frames) {
		return imaging.Frame{}, ErrIndex
	}
	return s.frames[index], nil
}

// Frames returns a copy in insertion order.
func (s *Set) Frames() []imaging.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]imaging.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *Set) Cap() int {
	return s.capacity
}

func (s *Set) Full() bool {
	return s.Len() >= s.capacity
}
