package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		sampler string
		arg     string
		prefix  string
	}{
		{"", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.5", "TraceIDRatioBased{0.5}"},
		{"parentbased_always_on", "", "ParentBased{root:AlwaysOnSampler"},
		{"parentbased_traceidratio", "0.1", "ParentBased{root:TraceIDRatioBased{0.1}"},
		{"bogus", "", "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			s := newSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.arg})
			assert.Contains(t, s.Description(), tt.prefix)
		})
	}
}

func TestParseRatio(t *testing.T) {
	tests := map[string]float64{
		"":      1,
		"0.5":   0.5,
		"0":     0,
		"-0.5":  0,
		"1.5":   1,
		"nope":  1,
		"0.001": 0.001,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseRatio(in), in)
	}
}
