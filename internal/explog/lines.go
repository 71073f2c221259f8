package explog

import (
	"errors"
	"strings"
)

// ErrPushbackFull is returned when a second line is pushed back before the
// first one has been consumed again.
var ErrPushbackFull = errors.New("explog: pushback slot already occupied")

// Line is one line of the log with its 1-based line number.
type Line struct {
	Number int
	Text   string
}

// LineSource is a forward cursor over the lines of a complete log with one
// line of lookahead and a single pushback slot. It is not safe for
// concurrent use.
type LineSource struct {
	lines  []string
	pos    int
	pushed *Line
}

// NewLineSource splits text into lines. A trailing "\r" is removed from each
// line and the empty element after a final newline is dropped.
func NewLineSource(text string) *LineSource {
	if text == "" {
		return &LineSource{}
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return &LineSource{lines: lines}
}

// Next consumes and returns the next line. ok is false at end of input.
func (s *LineSource) Next() (line Line, ok bool) {
	if s.pushed != nil {
		line = *s.pushed
		s.pushed = nil
		return line, true
	}
	if s.pos >= len(s.lines) {
		return Line{}, false
	}
	line = Line{Number: s.pos + 1, Text: s.lines[s.pos]}
	s.pos++
	return line, true
}

// Peek returns the next line without consuming it.
func (s *LineSource) Peek() (Line, bool) {
	if s.pushed != nil {
		return *s.pushed, true
	}
	if s.pos >= len(s.lines) {
		return Line{}, false
	}
	return Line{Number: s.pos + 1, Text: s.lines[s.pos]}, true
}

// Pushback returns a consumed line to the cursor so the next call to Next
// yields it again. Only one line may be pending.
func (s *LineSource) Pushback(line Line) error {
	if s.pushed != nil {
		return ErrPushbackFull
	}
	s.pushed = &line
	return nil
}

// Len returns the total number of lines.
func (s *LineSource) Len() int { return len(s.lines) }

// Done reports whether all input, including any pushed-back line, is consumed.
func (s *LineSource) Done() bool {
	return s.pushed == nil && s.pos >= len(s.lines)
}
