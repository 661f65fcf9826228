package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/monarena/internal/platform/otel"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		enabled  string
		ratio    string
		wantErr  bool
	}{
		{name: "empty endpoint"},
		{name: "explicitly disabled", endpoint: "http://localhost:4318", enabled: "false"},
		// Non-routable address: the provider is built but nothing is exported.
		{name: "endpoint set", endpoint: "http://192.0.2.1:4318"},
		{name: "sample ratio", endpoint: "http://192.0.2.1:4318", ratio: "0.25"},
		{name: "bad sample ratio", endpoint: "http://192.0.2.1:4318", ratio: "2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(otel.EnvEndpoint, tt.endpoint)
			t.Setenv(otel.EnvEnabled, tt.enabled)
			t.Setenv(otel.EnvSampleRatio, tt.ratio)

			shutdown, err := otel.Setup(context.Background(), "arena-test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected setup error")
				}
				return
			}
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}

func TestTracerStartsSpans(t *testing.T) {
	_, span := otel.Tracer("arena-test").Start(context.Background(), "probe")
	defer span.End()
	if span == nil {
		t.Fatal("expected span")
	}
}
