package explog

import (
	"fmt"
	"sort"
	"strings"
)

// AnomalyKind names a recoverable condition met while parsing.
type AnomalyKind string

const (
	AnomalyMalformedRecord     AnomalyKind = "malformed_record"
	AnomalyMalformedTickHeader AnomalyKind = "malformed_tick_header"
	AnomalyTruncatedRow        AnomalyKind = "truncated_row"
	AnomalyRaggedRow           AnomalyKind = "ragged_row"
	AnomalyEmptyMap            AnomalyKind = "empty_map"
	AnomalyMultipleMarkers     AnomalyKind = "multiple_markers"
	AnomalyUnalignedMap        AnomalyKind = "unaligned_map"
	AnomalyMapWithoutPosition  AnomalyKind = "map_without_position"
	AnomalyTickOrdering        AnomalyKind = "tick_ordering"
	AnomalyOrphanLine          AnomalyKind = "orphan_line"
)

// Anomaly is one recorded occurrence. Line is 0 when the condition is not
// tied to a single input line (alignment and ordering checks); Tick is -1
// before the first tick header and Robot is -1 when no robot is involved.
type Anomaly struct {
	Kind   AnomalyKind
	Line   int
	Tick   int
	Robot  RobotID
	Detail string
}

func (a Anomaly) String() string {
	var b strings.Builder
	b.WriteString(string(a.Kind))
	if a.Line > 0 {
		fmt.Fprintf(&b, " line=%d", a.Line)
	}
	if a.Tick >= 0 {
		fmt.Fprintf(&b, " tick=%d", a.Tick)
	}
	if a.Robot >= 0 {
		fmt.Fprintf(&b, " robot=%d", a.Robot)
	}
	if a.Detail != "" {
		fmt.Fprintf(&b, ": %s", a.Detail)
	}
	return b.String()
}

// DefaultMaxExamples is how many occurrences of each kind a Report keeps.
const DefaultMaxExamples = 3

// Report summarises the anomalies of one parse: a count per kind and the
// first few occurrences of each.
type Report struct {
	Counts      map[AnomalyKind]int
	Examples    map[AnomalyKind][]Anomaly
	maxExamples int
}

// NewReport creates an empty report keeping up to maxExamples occurrences
// per kind (DefaultMaxExamples when maxExamples <= 0).
func NewReport(maxExamples int) *Report {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return &Report{
		Counts:      make(map[AnomalyKind]int),
		Examples:    make(map[AnomalyKind][]Anomaly),
		maxExamples: maxExamples,
	}
}

// Add records one anomaly.
func (r *Report) Add(a Anomaly) {
	r.Counts[a.Kind]++
	if len(r.Examples[a.Kind]) < r.maxExamples {
		r.Examples[a.Kind] = append(r.Examples[a.Kind], a)
	}
}

// Count returns the number of anomalies of one kind.
func (r *Report) Count(kind AnomalyKind) int { return r.Counts[kind] }

// Total returns the number of anomalies of all kinds.
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Kinds returns the kinds seen, sorted by name.
func (r *Report) Kinds() []AnomalyKind {
	kinds := make([]AnomalyKind, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Summary renders one line per kind with its count and first example.
func (r *Report) Summary() string {
	if r.Total() == 0 {
		return "no anomalies"
	}
	var b strings.Builder
	for i, k := range r.Kinds() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %d", k, r.Counts[k])
		if ex := r.Examples[k]; len(ex) > 0 {
			fmt.Fprintf(&b, " (e.g. %s)", ex[0])
		}
	}
	return b.String()
}
