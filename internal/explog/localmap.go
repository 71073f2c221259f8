package explog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrTruncatedRow means a map row was shorter than the first row.
	ErrTruncatedRow = errors.New("explog: truncated map row")
	// ErrRaggedRow means a map row was longer than the first row.
	ErrRaggedRow = errors.New("explog: ragged map row")
	// ErrEmptyMap means a map header was followed by no rows.
	ErrEmptyMap = errors.New("explog: empty map block")
)

// RowError locates a rejected map row. Err wraps ErrTruncatedRow or
// ErrRaggedRow.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// Cell characters printed by the simulator.
const (
	CellObstacle byte = '#'
	CellFree     byte = '.'
	CellSelf     byte = 'R'
	CellUnknown  byte = ' '
)

// CellKind classifies a map character.
type CellKind int

const (
	KindUnexplored CellKind = iota
	KindFree
	KindObstacle
	KindSelf
)

// Explored reports whether the cell carries information, i.e. it would be
// drawn under fog of war.
func (k CellKind) Explored() bool { return k != KindUnexplored }

// ClassifyCell maps a printed character to its kind. Anything outside the
// known alphabet is unexplored filler.
func ClassifyCell(c byte) CellKind {
	switch c {
	case CellObstacle:
		return KindObstacle
	case CellFree:
		return KindFree
	case CellSelf:
		return KindSelf
	default:
		return KindUnexplored
	}
}

// LocalMap is a robot's own view of the grid in its local frame. Rows are
// immutable and all of equal width.
type LocalMap struct {
	rows  []string
	width int
}

// NewLocalMap validates rows and returns a map. The first row fixes the width.
func NewLocalMap(rows []string) (LocalMap, error) {
	if len(rows) == 0 {
		return LocalMap{}, ErrEmptyMap
	}
	width := len(rows[0])
	for i, r := range rows {
		if err := checkRowWidth(r, width); err != nil {
			return LocalMap{}, fmt.Errorf("row %d: %w", i, err)
		}
	}
	cp := make([]string, len(rows))
	copy(cp, rows)
	return LocalMap{rows: cp, width: width}, nil
}

func checkRowWidth(row string, width int) error {
	switch {
	case len(row) < width:
		return fmt.Errorf("%w: width %d, want %d", ErrTruncatedRow, len(row), width)
	case len(row) > width:
		return fmt.Errorf("%w: width %d, want %d", ErrRaggedRow, len(row), width)
	}
	return nil
}

// Width returns the number of columns.
func (m LocalMap) Width() int { return m.width }

// Height returns the number of rows.
func (m LocalMap) Height() int { return len(m.rows) }

// Row returns row y.
func (m LocalMap) Row(y int) string { return m.rows[y] }

// Rows returns a copy of all rows.
func (m LocalMap) Rows() []string {
	cp := make([]string, len(m.rows))
	copy(cp, m.rows)
	return cp
}

// At returns the character at local (x, y), or CellUnknown when out of range.
func (m LocalMap) At(x, y int) byte {
	if y < 0 || y >= len(m.rows) || x < 0 || x >= m.width {
		return CellUnknown
	}
	return m.rows[y][x]
}

// Kind classifies the cell at local (x, y).
func (m LocalMap) Kind(x, y int) CellKind { return ClassifyCell(m.At(x, y)) }

// Cells calls fn for every cell in row-major order.
func (m LocalMap) Cells(fn func(p Point, kind CellKind)) {
	for y, row := range m.rows {
		for x := 0; x < len(row); x++ {
			fn(Point{X: x, Y: y}, ClassifyCell(row[x]))
		}
	}
}

// String renders the map as printed by the simulator.
func (m LocalMap) String() string { return strings.Join(m.rows, "\n") }

var (
	mapHeaderPattern = regexp.MustCompile(`^\s*Robot\s+(\d+)\s*'s\s+map\s*:\s*$`)
	robotLinePrefix  = regexp.MustCompile(`^\s*Robot\s+\d+`)

	// tickHeaderPattern is shared with the builder so that every line it
	// would take as a tick header also ends a map block.
	tickHeaderPattern = regexp.MustCompile(`^\s*===\s*Tick\b`)
)

// ParseMapHeader recognises "Robot <id>'s map:".
func ParseMapHeader(text string) (RobotID, bool) {
	m := mapHeaderPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return RobotID(id), true
}

// MapParser consumes the row block that follows a map header.
type MapParser struct {
	// ExtraTerminators are line prefixes that end a row block in addition to
	// blank lines, robot lines and tick headers.
	ExtraTerminators []string
}

// DefaultExtraTerminators are the simulator's trailer lines that may
// directly follow the last map of a run.
var DefaultExtraTerminators = []string{"Phase ", "Simulation "}

// Parse pulls rows from src until a terminator or end of input and pushes
// the terminating line back. The whole block is consumed even when it is
// rejected; the returned error then wraps ErrTruncatedRow, ErrRaggedRow or
// ErrEmptyMap and the map is the zero value.
func (p MapParser) Parse(src *LineSource) (LocalMap, error) {
	var (
		rows   []string
		badRow error
	)
	for {
		line, ok := src.Next()
		if !ok {
			break
		}
		if p.terminates(line.Text) {
			_ = src.Pushback(line) // slot is free: Next just drained it
			break
		}
		if len(rows) > 0 && badRow == nil {
			if err := checkRowWidth(line.Text, len(rows[0])); err != nil {
				badRow = &RowError{Line: line.Number, Err: err}
			}
		}
		rows = append(rows, line.Text)
	}

	if badRow != nil {
		return LocalMap{}, badRow
	}
	if len(rows) == 0 {
		return LocalMap{}, ErrEmptyMap
	}
	return NewLocalMap(rows)
}

func (p MapParser) terminates(text string) bool {
	if text == "" {
		return true
	}
	if tickHeaderPattern.MatchString(text) || robotLinePrefix.MatchString(text) {
		return true
	}
	for _, prefix := range p.ExtraTerminators {
		if prefix != "" && strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// ParseLocalMap parses a row block with the default terminators.
func ParseLocalMap(src *LineSource) (LocalMap, error) {
	return MapParser{ExtraTerminators: DefaultExtraTerminators}.Parse(src)
}
