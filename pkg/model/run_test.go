package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_String(t *testing.T) {
	tests := []struct {
		status   RunStatus
		expected string
	}{
		{RunStatusPending, "pending"},
		{RunStatusLoaded, "loaded"},
		{RunStatusFailed, "failed"},
		{RunStatusTimedOut, "timed_out"},
		{RunStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestNewLoadRun(t *testing.T) {
	run := NewLoadRun("sid", "/Game/Props")
	assert.Equal(t, RunStatusPending, run.Status)
	assert.False(t, run.Succeeded())
	assert.NotNil(t, run.Timings)
	assert.False(t, run.CreateTime.IsZero())

	run.Status = RunStatusLoaded
	run.DurationMs = 1500
	assert.True(t, run.Succeeded())
	assert.Equal(t, 1500*time.Millisecond, run.Duration())
}

func TestLoadRun_SlowestPhase(t *testing.T) {
	tests := []struct {
		name      string
		timings   map[string]int64
		wantPhase string
		wantMs    int64
	}{
		{name: "empty", timings: nil},
		{name: "single", timings: map[string]int64{"SummaryParsed": 3}, wantPhase: "SummaryParsed", wantMs: 3},
		{
			name:      "ties break by name",
			timings:   map[string]int64{"NameMapLoaded": 7, "ExportMapLoaded": 7, "Finalized": 1},
			wantPhase: "ExportMapLoaded",
			wantMs:    7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &LoadRun{Timings: tt.timings}
			phase, ms := run.SlowestPhase()
			assert.Equal(t, tt.wantPhase, phase)
			assert.Equal(t, tt.wantMs, ms)
		})
	}
}
