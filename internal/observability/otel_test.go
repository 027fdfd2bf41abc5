package observability

import "testing"

func TestOtelHeaders(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x, bad ,x-team=peai,empty=")
	got := otelHeaders()
	if len(got) != 2 || got["authorization"] != "Bearer x" || got["x-team"] != "peai" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestOtelSampleRatio(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 1},
		{"0.25", 0.25},
		{"-3", 0},
		{"7", 1},
		{"nope", 1},
	}
	for _, tc := range cases {
		t.Setenv("OTEL_SAMPLER_RATIO", tc.raw)
		if got := otelSampleRatio(); got != tc.want {
			t.Fatalf("ratio(%q): got=%v want=%v", tc.raw, got, tc.want)
		}
	}
}
