package explog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame is returned by Push for a frame without robots; such a
	// frame is not stored.
	ErrEmptyFrame = errors.New("explog: frame has no robots")

	// ErrTickOrdering is returned by Push when a frame's tick does not
	// increase. The frame is stored anyway.
	ErrTickOrdering = errors.New("explog: tick ordering anomaly")
)

// FrameStore is the ordered, append-only result of a parse.
type FrameStore struct {
	frames []Frame
}

// NewFrameStore returns an empty store.
func NewFrameStore() *FrameStore { return &FrameStore{} }

// Push appends f. When f's tick is not greater than the last stored tick it
// is still appended and the returned error wraps ErrTickOrdering. A frame
// without robots is rejected with ErrEmptyFrame.
func (s *FrameStore) Push(f Frame) error {
	if f.Len() == 0 {
		return ErrEmptyFrame
	}
	var err error
	if n := len(s.frames); n > 0 && f.Tick() <= s.frames[n-1].Tick() {
		err = fmt.Errorf("%w: tick %d after tick %d", ErrTickOrdering, f.Tick(), s.frames[n-1].Tick())
	}
	s.frames = append(s.frames, f)
	return err
}

// Len returns the number of stored frames.
func (s *FrameStore) Len() int { return len(s.frames) }

// At returns frame i.
func (s *FrameStore) At(i int) Frame { return s.frames[i] }

// Last returns the most recent frame.
func (s *FrameStore) Last() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Frames returns a copy of the stored frames in insertion order.
func (s *FrameStore) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Ticks returns the tick of every stored frame in insertion order.
func (s *FrameStore) Ticks() []int {
	ticks := make([]int, len(s.frames))
	for i, f := range s.frames {
		ticks[i] = f.Tick()
	}
	return ticks
}
