package explog

import (
	"errors"
	"testing"
)

func TestParseRobotRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
	}{
		{"canonical", "Robot 0: pos=(3, 2) phase=Exploring", Record{0, Point{3, 2}, "Exploring"}},
		{"simulator comma", "Robot 1: pos=(12, 7), phase=BoundaryScouting", Record{1, Point{12, 7}, PhaseBoundaryScouting}},
		{"loose whitespace", "  Robot   2 :  pos = ( 4 ,5 )   phase =Returning  ", Record{2, Point{4, 5}, "Returning"}},
		{"negative coordinates", "Robot 3: pos=(-1, -20) phase=Idle", Record{3, Point{-1, -20}, PhaseIdle}},
		{"opaque phase", "Robot 4: pos=(0, 0) phase=Some-Custom_Phase.v2", Record{4, Point{0, 0}, "Some-Custom_Phase.v2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRobotRecord(tt.line)
			if err != nil {
				t.Fatalf("ParseRobotRecord(%q) error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseRobotRecord(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseRobotRecordNoMatch(t *testing.T) {
	lines := []string{
		"",
		"=== Tick 4 ===",
		"Robot 0's map:",
		"Robot 0 moves from (1, 1) to (1, 2)",
		"Robot 1 sees obstacle in front at (4, 5), stopping.",
		"#..R..#",
		"Simulation complete. Launching visualization...",
		"Robotic pos=(1, 2) phase=Idle",
	}
	for _, line := range lines {
		if _, err := ParseRobotRecord(line); !errors.Is(err, ErrNoMatch) {
			t.Errorf("ParseRobotRecord(%q) error = %v, want ErrNoMatch", line, err)
		}
	}
}

func TestParseRobotRecordMalformed(t *testing.T) {
	lines := []string{
		"Robot 0: pos=(x, 2) phase=Idle",
		"Robot 0: pos=(1, 2.5) phase=Idle",
		"Robot -1: pos=(1, 2) phase=Idle",
		"Robot zero: pos=(1, 2) phase=Idle",
		"Robot 0: pos=(1 2) phase=Idle",
		"Robot 0: phase=Idle pos=(1, 2)",
		"Robot 0: pos=(99999999999999999999, 1) phase=Idle",
	}
	for _, line := range lines {
		_, err := ParseRobotRecord(line)
		if !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("ParseRobotRecord(%q) error = %v, want ErrMalformedRecord", line, err)
		}
	}
}
