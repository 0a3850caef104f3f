package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TracerConfig
		wantErr string
	}{
		{name: "disabled skips checks", cfg: TracerConfig{SampleRate: 7}},
		{name: "valid", cfg: TracerConfig{Enabled: true, ServiceName: "providerdesk", Endpoint: "localhost:4317", SampleRate: 0.5}},
		{name: "missing endpoint", cfg: TracerConfig{Enabled: true, ServiceName: "providerdesk"}, wantErr: "OTLP endpoint is required"},
		{name: "bad rate", cfg: TracerConfig{Enabled: true, ServiceName: "providerdesk", Endpoint: "x:1", SampleRate: 2}, wantErr: "outside [0, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracerConfig{})
	require.NoError(t, err)
	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	var nilProvider *TracerProvider
	require.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestNewTracerProvider_InvalidConfig(t *testing.T) {
	_, err := NewTracerProvider(context.Background(), TracerConfig{Enabled: true})
	require.Error(t, err)
}
