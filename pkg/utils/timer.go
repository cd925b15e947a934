package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimerOutput receives formatted timing lines.
type TimerOutput interface {
	Output(format string, args ...interface{})
}

// LoggerOutput adapts Logger to TimerOutput.
type LoggerOutput struct {
	Logger Logger
}

// Output implements TimerOutput using Logger.Info.
func (o *LoggerOutput) Output(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Info(format, args...)
	}
}

// Phase is the accumulated time spent in one named phase. A phase may be
// entered many times (a resumable load re-enters the phase it stopped in);
// every span is added to Duration.
type Phase struct {
	Name     string
	Duration time.Duration
	Spans    int
}

// PhaseTimer is a running span of a phase.
type PhaseTimer struct {
	timer   *Timer
	name    string
	started time.Time
	stopped bool
}

// Stop ends the span and returns its length. Later calls return zero.
func (pt *PhaseTimer) Stop() time.Duration {
	if pt.stopped || !pt.timer.enabled {
		return 0
	}
	pt.stopped = true
	d := pt.timer.clock.Since(pt.started)
	pt.timer.add(pt.name, d)
	return d
}

// Timer accumulates durations per phase in first-seen order.
type Timer struct {
	mu      sync.RWMutex
	name    string
	phases  map[string]*Phase
	order   []string
	output  TimerOutput
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithOutput sets the output strategy for the timer.
func WithOutput(output TimerOutput) TimerOption {
	return func(t *Timer) {
		t.output = output
	}
}

// WithLogger sets a Logger as the output strategy.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.output = &LoggerOutput{Logger: logger}
		}
	}
}

// WithEnabled sets whether the timer records anything.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens a span of the named phase.
func (t *Timer) Start(phaseName string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, name: phaseName}
	if t.enabled {
		pt.started = t.clock.Now()
	}
	return pt
}

func (t *Timer) add(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.phases[name]
	if !ok {
		p = &Phase{Name: name}
		t.phases[name] = p
		t.order = append(t.order, name)
	}
	p.Duration += d
	p.Spans++
}

// GetDuration returns the accumulated duration of a phase.
func (t *Timer) GetDuration(phaseName string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.phases[phaseName]; ok {
		return p.Duration
	}
	return 0
}

// Total returns the sum of all phase durations.
func (t *Timer) Total() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total time.Duration
	for _, p := range t.phases {
		total += p.Duration
	}
	return total
}

// GetPhases returns copies of all phases in first-seen order.
func (t *Timer) GetPhases() []Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.phases[name])
	}
	return out
}

// Summary returns a formatted summary of all phases.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s ===\n", t.name)
	for i, p := range t.GetPhases() {
		fmt.Fprintf(&sb, "%2d %-22s %v (%d spans)\n", i+1, p.Name, p.Duration, p.Spans)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.Total())
	return sb.String()
}

// PrintSummary writes the summary through the configured output.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.output == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(t.Summary(), "\n"), "\n") {
		t.output.Output("%s", line)
	}
}
