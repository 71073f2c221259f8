package explog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoMatch means the line is not a robot status record. It is not a
	// failure; the builder simply tries its other recognisers.
	ErrNoMatch = errors.New("explog: no match")

	// ErrMalformedRecord means the line looks like a status record but a
	// field could not be parsed. The line is skipped.
	ErrMalformedRecord = errors.New("explog: malformed robot record")
)

// Record is a parsed robot status line:
//
//	Robot <id>: pos=(<x>, <y>) phase=<token>
type Record struct {
	ID       RobotID
	Position Point
	Phase    Phase
}

var (
	recordPrefix = regexp.MustCompile(`^\s*Robot\b`)
	recordPos    = regexp.MustCompile(`\bpos\s*=`)
	recordPhase  = regexp.MustCompile(`\bphase\s*=`)

	// The simulator prints "pos=(x, y), phase=P"; the comma is optional.
	recordPattern = regexp.MustCompile(
		`^\s*Robot\s+([^\s:]+)\s*:\s*pos\s*=\s*\(\s*([^,()]*?)\s*,\s*([^,()]*?)\s*\)\s*,?\s*phase\s*=\s*(\S+)`)
)

// ParseRobotRecord recognises a single robot status line. It returns
// ErrNoMatch for unrelated lines and an error wrapping ErrMalformedRecord
// when the line has the shape of a record but its fields are invalid.
func ParseRobotRecord(text string) (Record, error) {
	if !recordPrefix.MatchString(text) || !recordPos.MatchString(text) || !recordPhase.MatchString(text) {
		return Record{}, ErrNoMatch
	}

	m := recordPattern.FindStringSubmatch(text)
	if m == nil {
		return Record{}, fmt.Errorf("%w: unexpected layout %q", ErrMalformedRecord, strings.TrimSpace(text))
	}

	id, err := strconv.Atoi(m[1])
	if err != nil || id < 0 {
		return Record{}, fmt.Errorf("%w: invalid robot id %q", ErrMalformedRecord, m[1])
	}
	x, err := strconv.Atoi(m[2])
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid x coordinate %q", ErrMalformedRecord, m[2])
	}
	y, err := strconv.Atoi(m[3])
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid y coordinate %q", ErrMalformedRecord, m[3])
	}

	return Record{
		ID:       RobotID(id),
		Position: Point{X: x, Y: y},
		Phase:    Phase(m[4]),
	}, nil
}
