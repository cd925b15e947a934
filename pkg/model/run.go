// Package model defines the records the package catalog stores about load
// runs.
package model

import (
	"time"
)

// RunStatus is how a load session ended.
type RunStatus int

const (
	RunStatusPending  RunStatus = 0 // Not finished
	RunStatusLoaded   RunStatus = 1 // Finalized
	RunStatusFailed   RunStatus = 2 // Aborted with an error
	RunStatusTimedOut RunStatus = 3 // Out of budget when recorded
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	switch s {
	case RunStatusPending:
		return "pending"
	case RunStatusLoaded:
		return "loaded"
	case RunStatusFailed:
		return "failed"
	case RunStatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// LoadRun is one load session of one package.
type LoadRun struct {
	ID         int64            `json:"id" db:"id"`
	SessionID  string           `json:"session_id" db:"session_id"`
	Package    string           `json:"package" db:"package"`
	Status     RunStatus        `json:"status" db:"status"`
	Phase      string           `json:"phase" db:"phase"`
	Names      int              `json:"names" db:"names"`
	Imports    int              `json:"imports" db:"imports"`
	Exports    int              `json:"exports" db:"exports"`
	DurationMs int64            `json:"duration_ms" db:"duration_ms"`
	Timings    map[string]int64 `json:"timings,omitempty" db:"timings"`
	Error      string           `json:"error,omitempty" db:"error"`
	CreateTime time.Time        `json:"create_time" db:"create_time"`
}

// NewLoadRun creates a pending run for a session.
func NewLoadRun(sessionID, pkg string) *LoadRun {
	return &LoadRun{
		SessionID:  sessionID,
		Package:    pkg,
		Status:     RunStatusPending,
		Timings:    make(map[string]int64),
		CreateTime: time.Now(),
	}
}

// Succeeded reports whether the run finalized its linker.
func (r *LoadRun) Succeeded() bool {
	return r.Status == RunStatusLoaded
}

// Duration returns the recorded wall time.
func (r *LoadRun) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// SlowestPhase returns the phase with the largest recorded time.
func (r *LoadRun) SlowestPhase() (string, int64) {
	name, best := "", int64(-1)
	for phase, ms := range r.Timings {
		if ms > best || (ms == best && phase < name) {
			name, best = phase, ms
		}
	}
	if best < 0 {
		return "", 0
	}
	return name, best
}
