package explog

// Bounds is the world extent, cells (0,0) to (Width-1, Height-1).
type Bounds struct {
	Width, Height int
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Area returns the number of cells in b.
func (b Bounds) Area() int { return b.Width * b.Height }

// Empty reports whether b holds no cells.
func (b Bounds) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// FrameBounds derives an extent from the frames themselves for when no world
// map is available: the smallest origin-anchored box holding every declared
// position and every explored, projected map cell. Negative coordinates are
// outside any extent.
func FrameBounds(frames []Frame) Bounds {
	var b Bounds
	grow := func(p Point) {
		if p.X < 0 || p.Y < 0 {
			return
		}
		if p.X+1 > b.Width {
			b.Width = p.X + 1
		}
		if p.Y+1 > b.Height {
			b.Height = p.Y + 1
		}
	}
	for _, f := range frames {
		for _, r := range f.Robots() {
			if r.HasPosition {
				grow(r.Position)
			}
			if r.Map == nil || !r.Aligned {
				continue
			}
			r.Map.Cells(func(local Point, kind CellKind) {
				if kind.Explored() {
					grow(r.Offset.Apply(local))
				}
			})
		}
	}
	return b
}
