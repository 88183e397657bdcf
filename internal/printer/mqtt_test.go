package printer

import (
	"encoding/json"
	"testing"
)

func TestStatusFromReport(t *testing.T) {
	tests := []struct {
		name   string
		report map[string]any
		want   Status
	}{
		{
			name: "running",
			report: map[string]any{"print": map[string]any{
				"gcode_state":       "RUNNING",
				"mc_remaining_time": json.Number("90"),
			}},
			want: Status{State: "RUNNING", Printing: true, RemainingSeconds: 5400},
		},
		{
			name: "paused still counts as busy",
			report: map[string]any{"print": map[string]any{
				"gcode_state":       "PAUSE",
				"mc_remaining_time": float64(1),
			}},
			want: Status{State: "PAUSE", Printing: true, RemainingSeconds: 60},
		},
		{
			name:   "finished print is idle",
			report: map[string]any{"print": map[string]any{"gcode_state": "FINISH"}},
			want:   Status{State: "FINISH", Printing: false},
		},
		{
			name:   "idle",
			report: map[string]any{"print": map[string]any{"gcode_state": "IDLE"}},
			want:   Status{State: "IDLE", Printing: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := statusFromReport(tt.report)
			if err != nil {
				t.Fatalf("statusFromReport returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("statusFromReport() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatusFromReport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		report map[string]any
	}{
		{"empty report", map[string]any{}},
		{"missing gcode_state", map[string]any{"print": map[string]any{}}},
		{"unknown gcode_state", map[string]any{"print": map[string]any{"gcode_state": "EXPLODED"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := statusFromReport(tt.report); err == nil {
				t.Fatal("statusFromReport returned nil error")
			}
		})
	}
}
