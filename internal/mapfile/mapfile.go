// Package mapfile loads the ASCII world maps handed to the simulator. The
// replay tools only need a map's extent, which fixes the bounds of every
// rendered panel, but the whole grid is validated the same way the
// simulator validates it so that a map it would reject is rejected here too.
package mapfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/explore.replay/internal/fsutil"
)

var (
	// ErrEmpty means the file holds no rows.
	ErrEmpty = errors.New("mapfile: map file is empty")
	// ErrInconsistentWidth means the rows are not all the same length.
	ErrInconsistentWidth = errors.New("mapfile: inconsistent line lengths")
)

// InvalidCharError reports a character outside the map alphabet.
type InvalidCharError struct {
	Row, Col int
	Char     rune
}

func (e *InvalidCharError) Error() string {
	return fmt.Sprintf("mapfile: invalid map character %q at row %d, column %d", e.Char, e.Row, e.Col)
}

// Grid is a validated world map.
type Grid struct {
	Width  int
	Height int
	rows   []string
}

// Obstacle reports whether world cell (x, y) is a wall. Cells outside the
// grid count as walls.
func (g *Grid) Obstacle(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return true
	}
	return g.rows[y][x] == '#'
}

// Free reports whether world cell (x, y) is open floor.
func (g *Grid) Free(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return false
	}
	return g.rows[y][x] == '.'
}

// KnownCells counts the obstacle and free cells, i.e. everything a robot
// could ever reveal.
func (g *Grid) KnownCells() int {
	n := 0
	for _, row := range g.rows {
		n += strings.Count(row, "#") + strings.Count(row, ".")
	}
	return n
}

// Load reads and validates the map at path.
func Load(fsys fsutil.FileSystem, path string) (*Grid, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	g, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse validates map text: '#' obstacle, '.' free, ' ' or '?' unexplored.
// Line endings may be "\n" or "\r\n"; trailing blank lines are ignored.
func Parse(text string) (*Grid, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	width := len(lines[0])
	for y, line := range lines {
		if len(line) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInconsistentWidth, y, len(line), width)
		}
		for x, ch := range line {
			switch ch {
			case '#', '.', ' ', '?':
			default:
				return nil, &InvalidCharError{Row: y, Col: x, Char: ch}
			}
		}
	}
	return &Grid{Width: width, Height: len(lines), rows: lines}, nil
}
