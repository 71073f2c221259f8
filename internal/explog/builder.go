package explog

import (
	"errors"
	"regexp"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/banshee-data/explore.replay/internal/monitoring"
)

// noRobot marks anomalies that are not tied to a robot.
const noRobot RobotID = -1

// Options configures a Builder.
type Options struct {
	// ExtraTerminators end a map row block in addition to the built-in
	// terminators. nil selects DefaultExtraTerminators; an empty non-nil
	// slice disables them.
	ExtraTerminators []string

	// MaxExamples is the number of occurrences kept per anomaly kind in
	// the Report.
	MaxExamples int
}

type builderState int

const (
	stateIdle builderState = iota
	stateInFrame
)

func (s builderState) String() string {
	if s == stateInFrame {
		return "in_frame"
	}
	return "idle"
}

// pendingFrame is the frame under construction. It is owned by the Builder
// and only leaves it as an immutable Frame.
type pendingFrame struct {
	tick   int
	robots map[RobotID]*RobotState
}

func newPendingFrame(tick int) *pendingFrame {
	return &pendingFrame{tick: tick, robots: make(map[RobotID]*RobotState)}
}

func (p *pendingFrame) robot(id RobotID) *RobotState {
	r, ok := p.robots[id]
	if !ok {
		r = &RobotState{ID: id}
		p.robots[id] = r
	}
	return r
}

// Builder is the tick state machine. It pulls lines from a LineSource,
// accumulates robot records and maps into the pending frame, and finalises
// the frame into the FrameStore at each tick boundary and at end of input.
type Builder struct {
	maps    MapParser
	log     zerolog.Logger
	state   builderState
	pending *pendingFrame
	store   *FrameStore
	report  *Report
	opts    Options
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	terms := opts.ExtraTerminators
	if terms == nil {
		terms = DefaultExtraTerminators
	}
	return &Builder{
		maps: MapParser{ExtraTerminators: terms},
		log:  monitoring.Component("explog"),
		opts: opts,
	}
}

// Parse runs a Builder with opts over the complete log text.
func Parse(text string, opts Options) (*FrameStore, *Report) {
	return NewBuilder(opts).Build(NewLineSource(text))
}

// Build consumes src to the end and returns the finalised frames together
// with the anomaly report. A Builder may be reused; each call starts from
// the Idle state with an empty store.
func (b *Builder) Build(src *LineSource) (*FrameStore, *Report) {
	b.state = stateIdle
	b.pending = nil
	b.store = NewFrameStore()
	b.report = NewReport(b.opts.MaxExamples)

	for {
		line, ok := src.Next()
		if !ok {
			break
		}
		b.handle(line, src)
	}
	b.finalize()
	b.state = stateIdle

	b.log.Debug().
		Int("lines", src.Len()).
		Int("frames", b.store.Len()).
		Int("anomalies", b.report.Total()).
		Msg("parse complete")
	return b.store, b.report
}

var (
	tickNumberPattern = regexp.MustCompile(`^\s*===\s*Tick\s+(\S+)\s*===\s*$`)
)

// parseTickHeader returns ok=false for lines that are not tick headers and
// a non-nil error for headers whose tick number is unusable.
func parseTickHeader(text string) (tick int, ok bool, err error) {
	if !tickHeaderPattern.MatchString(text) {
		return 0, false, nil
	}
	m := tickNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, true, errors.New("unexpected tick header layout")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, true, errors.New("invalid tick number " + strconv.Quote(m[1]))
	}
	return n, true, nil
}

func (b *Builder) handle(line Line, src *LineSource) {
	if tick, ok, err := parseTickHeader(line.Text); ok {
		if err != nil {
			b.lineAnomaly(AnomalyMalformedTickHeader, line, noRobot, err.Error())
			return
		}
		b.finalize()
		b.pending = newPendingFrame(tick)
		b.state = stateInFrame
		return
	}

	if id, ok := ParseMapHeader(line.Text); ok {
		// The block is consumed in every state so its rows are never
		// mistaken for other lines.
		m, err := b.maps.Parse(src)
		if b.state == stateIdle {
			b.lineAnomaly(AnomalyOrphanLine, line, id, "map block before first tick header")
			return
		}
		if err != nil {
			// Row errors are reported against the offending row.
			var re *RowError
			if errors.As(err, &re) {
				b.lineAnomaly(mapErrorKind(err), Line{Number: re.Line}, id, re.Err.Error())
				return
			}
			b.lineAnomaly(mapErrorKind(err), line, id, err.Error())
			return
		}
		r := b.pending.robot(id)
		r.Map = &m
		return
	}

	rec, err := ParseRobotRecord(line.Text)
	switch {
	case errors.Is(err, ErrNoMatch):
		return
	case err != nil:
		b.lineAnomaly(AnomalyMalformedRecord, line, noRobot, err.Error())
		return
	}
	if b.state == stateIdle {
		b.lineAnomaly(AnomalyOrphanLine, line, rec.ID, "robot record before first tick header")
		return
	}
	r := b.pending.robot(rec.ID)
	r.Position = rec.Position
	r.HasPosition = true
	r.Phase = rec.Phase
}

func mapErrorKind(err error) AnomalyKind {
	switch {
	case errors.Is(err, ErrTruncatedRow):
		return AnomalyTruncatedRow
	case errors.Is(err, ErrRaggedRow):
		return AnomalyRaggedRow
	default:
		return AnomalyEmptyMap
	}
}

// finalize seals the pending frame, aligning every robot that has a map,
// and pushes it to the store when it holds at least one robot.
func (b *Builder) finalize() {
	if b.state != stateInFrame || b.pending == nil {
		return
	}
	p := b.pending
	b.pending = nil
	if len(p.robots) == 0 {
		b.log.Debug().Int("tick", p.tick).Msg("dropping tick without robots")
		return
	}

	ids := make([]RobotID, 0, len(p.robots))
	for id := range p.robots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	robots := make([]RobotState, 0, len(ids))
	for _, id := range ids {
		r := *p.robots[id]
		b.align(&r, p.tick)
		robots = append(robots, r)
	}

	f := NewFrame(p.tick, robots)
	if err := b.store.Push(f); err != nil {
		b.anomaly(Anomaly{Kind: AnomalyTickOrdering, Tick: p.tick, Robot: noRobot, Detail: err.Error()})
	}
	b.log.Debug().Int("tick", p.tick).Int("robots", len(robots)).Msg("frame finalized")
}

func (b *Builder) align(r *RobotState, tick int) {
	if r.Map == nil {
		return
	}
	if !r.HasPosition {
		b.anomaly(Anomaly{Kind: AnomalyMapWithoutPosition, Tick: tick, Robot: r.ID, Detail: "map received without a position record"})
		return
	}
	a := Align(r.Position, *r.Map)
	if !a.Found {
		b.anomaly(Anomaly{Kind: AnomalyUnalignedMap, Tick: tick, Robot: r.ID, Detail: "no self-marker in local map"})
		return
	}
	if a.Markers > 1 {
		b.anomaly(Anomaly{
			Kind:   AnomalyMultipleMarkers,
			Tick:   tick,
			Robot:  r.ID,
			Detail: strconv.Itoa(a.Markers) + " self-markers, using first at " + a.Marker.String(),
		})
	}
	r.Offset = a.Offset
	r.Aligned = true
}

// lineAnomaly records an anomaly raised by one input line. Its tick is the
// pending frame's, or -1 before the first tick header.
func (b *Builder) lineAnomaly(kind AnomalyKind, line Line, robot RobotID, detail string) {
	tick := -1
	if b.pending != nil {
		tick = b.pending.tick
	}
	b.anomaly(Anomaly{Kind: kind, Line: line.Number, Tick: tick, Robot: robot, Detail: detail})
}

func (b *Builder) anomaly(a Anomaly) {
	b.report.Add(a)
	ev := b.log.Warn().Str("kind", string(a.Kind)).Int("tick", a.Tick)
	if a.Line > 0 {
		ev = ev.Int("line", a.Line)
	}
	if a.Robot != noRobot {
		ev = ev.Int("robot", int(a.Robot))
	}
	ev.Str("state", b.state.String()).Msg(a.Detail)
}
