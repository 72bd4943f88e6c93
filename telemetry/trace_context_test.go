package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const validTraceparent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

func TestExtractTraceContext(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		tracestate  string
		xray        string
		want        TraceContext
	}{
		{
			name:        "all headers",
			traceparent: validTraceparent,
			tracestate:  "vendor=value",
			xray:        "Root=1-67891233-abcdef012345678912345678",
			want: TraceContext{
				Traceparent: validTraceparent,
				Tracestate:  "vendor=value",
				XRayTraceID: "Root=1-67891233-abcdef012345678912345678",
			},
		},
		{
			name:        "malformed traceparent dropped",
			traceparent: "not-a-traceparent",
			tracestate:  "vendor=value",
			want:        TraceContext{Tracestate: "vendor=value"},
		},
		{
			name: "no headers",
			want: TraceContext{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.traceparent != "" {
				r.Header.Set("traceparent", tt.traceparent)
			}
			if tt.tracestate != "" {
				r.Header.Set("tracestate", tt.tracestate)
			}
			if tt.xray != "" {
				r.Header.Set("X-Amzn-Trace-Id", tt.xray)
			}
			if got := ExtractTraceContext(r); got != tt.want {
				t.Errorf("ExtractTraceContext() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTraceMiddleware_StoresContext(t *testing.T) {
	var captured TraceContext
	handler := TraceMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = TraceContextFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("traceparent", validTraceparent)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured.Traceparent != validTraceparent {
		t.Errorf("expected traceparent %q, got %q", validTraceparent, captured.Traceparent)
	}
}

func TestInjectTraceHeaders(t *testing.T) {
	ctx := ContextWithTrace(context.Background(), TraceContext{
		Traceparent: validTraceparent,
		Tracestate:  "vendor=value",
	})
	req := httptest.NewRequest(http.MethodPost, "/transcribe", nil)
	InjectTraceHeaders(ctx, req)

	if got := req.Header.Get("traceparent"); got != validTraceparent {
		t.Errorf("expected traceparent %q, got %q", validTraceparent, got)
	}
	if got := req.Header.Get("tracestate"); got != "vendor=value" {
		t.Errorf("expected tracestate, got %q", got)
	}
	if req.Header.Get("X-Amzn-Trace-Id") != "" {
		t.Error("expected no X-Amzn-Trace-Id header")
	}
}

func TestInjectTraceHeaders_EmptyContextNoOp(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transcribe", nil)
	InjectTraceHeaders(context.Background(), req)
	if len(req.Header) != 0 {
		t.Errorf("expected no headers, got %v", req.Header)
	}
}
