package render

import (
	"sort"

	"github.com/banshee-data/explore.replay/internal/explog"
)

// robotView is what one panel shows: the robot's latest known position and
// phase and everything its latest aligned map revealed, in world cells.
type robotView struct {
	id          explog.RobotID
	position    explog.Point
	hasPosition bool
	phase       explog.Phase
	cells       map[explog.Point]explog.CellKind
}

// tracker folds frames into per-robot views. A robot missing from a frame,
// or present without a usable map, keeps its previous view.
type tracker struct {
	bounds explog.Bounds
	views  map[explog.RobotID]*robotView
}

// newTracker pre-creates a view per id so the panel layout is fixed from
// the first frame.
func newTracker(b explog.Bounds, ids []explog.RobotID) *tracker {
	t := &tracker{bounds: b, views: make(map[explog.RobotID]*robotView, len(ids))}
	for _, id := range ids {
		t.views[id] = &robotView{id: id}
	}
	return t
}

func (t *tracker) update(f explog.Frame) {
	for _, r := range f.Robots() {
		v, ok := t.views[r.ID]
		if !ok {
			v = &robotView{id: r.ID}
			t.views[r.ID] = v
		}
		if r.HasPosition {
			v.position = r.Position
			v.hasPosition = true
			v.phase = r.Phase
		}
		if r.Map == nil || !r.Aligned {
			continue
		}
		cells := make(map[explog.Point]explog.CellKind)
		r.Map.Cells(func(local explog.Point, kind explog.CellKind) {
			if !kind.Explored() {
				return
			}
			if w, ok := r.WorldCell(local); ok && t.bounds.Contains(w) {
				cells[w] = kind
			}
		})
		v.cells = cells
	}
}

// ordered returns the views sorted by robot id.
func (t *tracker) ordered() []*robotView {
	out := make([]*robotView, 0, len(t.views))
	for _, v := range t.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// robotIDs lists every robot appearing in frames, ascending.
func robotIDs(frames []explog.Frame) []explog.RobotID {
	seen := make(map[explog.RobotID]bool)
	var ids []explog.RobotID
	for _, f := range frames {
		for _, id := range f.IDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
