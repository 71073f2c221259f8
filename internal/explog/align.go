package explog

// Alignment is the result of locating a robot's self-marker in its map.
type Alignment struct {
	Offset  Offset
	Marker  Point // local coordinates of the first 'R'
	Found   bool
	Markers int // number of 'R' cells; more than one is a malformed map
}

// Align scans m row by row, left to right, for the first self-marker and
// derives the translation that puts it on the declared world position.
// When no marker exists the alignment is not found and the map must not be
// projected.
func Align(position Point, m LocalMap) Alignment {
	var a Alignment
	for y := 0; y < m.Height(); y++ {
		row := m.Row(y)
		for x := 0; x < len(row); x++ {
			if row[x] != CellSelf {
				continue
			}
			a.Markers++
			if !a.Found {
				a.Found = true
				a.Marker = Point{X: x, Y: y}
			}
		}
	}
	if a.Found {
		a.Offset = Offset{DX: position.X - a.Marker.X, DY: position.Y - a.Marker.Y}
	}
	return a
}
