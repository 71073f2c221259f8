// Package coverage measures how much of the world each robot has explored
// over the course of a run.
//
// A robot's explored set is the world projection of the '#', '.' and 'R'
// cells of its most recent aligned map, clipped to the world bounds. Frames
// in which a robot printed no usable map carry its previous set forward,
// since a robot's knowledge never shrinks.
package coverage

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/explore.replay/internal/explog"
)

// Sample is the explored-cell count at one tick.
type Sample struct {
	Tick     int
	PerRobot map[explog.RobotID]int
	Union    int
}

// Series is the coverage timeline of a run, one sample per frame.
type Series struct {
	Robots  []explog.RobotID // every robot seen, ascending
	Samples []Sample
}

type cellSet map[explog.Point]struct{}

// Compute builds the coverage series for frames within bounds b.
func Compute(frames []explog.Frame, b explog.Bounds) Series {
	known := make(map[explog.RobotID]cellSet)
	seen := make(map[explog.RobotID]bool)
	s := Series{Samples: make([]Sample, 0, len(frames))}

	for _, f := range frames {
		for _, r := range f.Robots() {
			seen[r.ID] = true
			if r.Map == nil || !r.Aligned {
				continue
			}
			known[r.ID] = explored(r, b)
		}

		smp := Sample{Tick: f.Tick(), PerRobot: make(map[explog.RobotID]int, len(known))}
		union := make(cellSet)
		for id, cells := range known {
			smp.PerRobot[id] = len(cells)
			for p := range cells {
				union[p] = struct{}{}
			}
		}
		smp.Union = len(union)
		s.Samples = append(s.Samples, smp)
	}

	for id := range seen {
		s.Robots = append(s.Robots, id)
	}
	sort.Slice(s.Robots, func(i, j int) bool { return s.Robots[i] < s.Robots[j] })
	return s
}

func explored(r explog.RobotState, b explog.Bounds) cellSet {
	cells := make(cellSet)
	r.Map.Cells(func(local explog.Point, kind explog.CellKind) {
		if !kind.Explored() {
			return
		}
		w, ok := r.WorldCell(local)
		if ok && b.Contains(w) {
			cells[w] = struct{}{}
		}
	})
	return cells
}

// Union returns the union counts as a float series, one value per sample.
func (s Series) Union() []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = float64(smp.Union)
	}
	return out
}

// Robot returns one robot's counts, one value per sample.
func (s Series) Robot(id explog.RobotID) []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = float64(smp.PerRobot[id])
	}
	return out
}

// Summary condenses a Series.
type Summary struct {
	Frames        int
	FinalUnion    int
	PeakUnion     int
	FinalFraction float64 // FinalUnion over the explorable cell count
	MeanGain      float64 // mean per-frame change of the union
	StdDevGain    float64
	// TickToHalf is the first tick at which the union reached half the
	// explorable cells, or -1 if it never did.
	TickToHalf int
	FinalRobot map[explog.RobotID]int
}

// Summarize computes a Summary. total is the number of explorable cells,
// usually the bounds' area; a non-positive total leaves FinalFraction zero
// and TickToHalf -1.
func Summarize(s Series, total int) Summary {
	sum := Summary{Frames: len(s.Samples), TickToHalf: -1, FinalRobot: map[explog.RobotID]int{}}
	if len(s.Samples) == 0 {
		return sum
	}

	union := s.Union()
	last := s.Samples[len(s.Samples)-1]
	sum.FinalUnion = last.Union
	sum.PeakUnion = int(floats.Max(union))
	for id, n := range last.PerRobot {
		sum.FinalRobot[id] = n
	}

	if len(union) > 1 {
		gains := make([]float64, len(union)-1)
		floats.SubTo(gains, union[1:], union[:len(union)-1])
		sum.MeanGain, sum.StdDevGain = stat.MeanStdDev(gains, nil)
		if len(gains) == 1 {
			sum.StdDevGain = 0
		}
	}

	if total > 0 {
		sum.FinalFraction = float64(sum.FinalUnion) / float64(total)
		half := float64(total) / 2
		for i, v := range union {
			if v >= half {
				sum.TickToHalf = s.Samples[i].Tick
				break
			}
		}
	}
	return sum
}
