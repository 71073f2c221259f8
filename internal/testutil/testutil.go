// Package testutil provides shared test utilities and fixtures.
//
// The simulator log builder keeps test transcripts readable: each call
// appends the lines the simulator would print for one event.
package testutil

import (
	"fmt"
	"strings"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SimLog builds a simulator transcript line by line.
type SimLog struct {
	lines []string
}

// NewSimLog returns an empty transcript.
func NewSimLog() *SimLog { return &SimLog{} }

// Tick appends a tick header.
func (l *SimLog) Tick(n int) *SimLog {
	return l.Line(fmt.Sprintf("=== Tick %d ===", n))
}

// Robot appends a position record in the simulator's own format.
func (l *SimLog) Robot(id, x, y int, phase string) *SimLog {
	return l.Line(fmt.Sprintf("Robot %d: pos=(%d, %d), phase=%s", id, x, y, phase))
}

// Map appends a map header followed by its rows, verbatim.
func (l *SimLog) Map(id int, rows ...string) *SimLog {
	l.Line(fmt.Sprintf("Robot %d's map:", id))
	l.lines = append(l.lines, rows...)
	return l
}

// Line appends raw text.
func (l *SimLog) Line(s string) *SimLog {
	l.lines = append(l.lines, s)
	return l
}

// String returns the transcript with a trailing newline, as captured from
// the simulator's stdout.
func (l *SimLog) String() string {
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}
