package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var otelVars = []string{
	"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_HEADERS",
	"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACES_SAMPLER", "OTEL_TRACES_SAMPLER_ARG",
	"OTEL_RESOURCE_ATTRIBUTES",
}

func clearEnv(t *testing.T) {
	for _, k := range otelVars {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg := LoadFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, DefaultServiceName, cfg.ServiceName)
		assert.Equal(t, "unknown", cfg.ServiceVersion)
		assert.Equal(t, "grpc", cfg.Protocol)
		assert.Empty(t, cfg.Headers)
	})

	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OTEL_ENABLED", "TRUE")
		t.Setenv("OTEL_SERVICE_NAME", "cook-farm")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP/Protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer a=b")
		t.Setenv("OTEL_TRACES_SAMPLER", "TraceIdRatio")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

		cfg := LoadFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "cook-farm", cfg.ServiceName)
		assert.Equal(t, "http/protobuf", cfg.Protocol)
		assert.Equal(t, "Bearer a=b", cfg.Headers["Authorization"])
		assert.Equal(t, "traceidratio", cfg.Sampler)
		assert.True(t, cfg.plaintext())
		assert.Equal(t, "collector:4318", cfg.hostPort())
	})

	t.Run("garbage bool is false", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OTEL_ENABLED", "yes please")
		assert.False(t, LoadFromEnv().Enabled)
	})
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"k=v", map[string]string{"k": "v"}},
		{" a = 1 , b = 2 ", map[string]string{"a": "1", "b": "2"}},
		{"empty=", map[string]string{"empty": ""}},
		{"valid=x,junk,=nokey", map[string]string{"valid": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyValuePairs(tt.in))
		})
	}
}
