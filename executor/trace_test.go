package executor

import (
	"context"
	"testing"

	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/retry"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	m := llm.NewMockProvider(
		llm.MockResponse{Text: actionJSON("one")},
		llm.MockResponse{Err: llm.TransientError("overloaded")},
	)
	e, err := New(testConfig(0), Unattended, m, nil, WithBackoff(retry.NoBackoff), WithTracer(tp.Tracer("test")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExecuteTicket(context.Background(), testTicket(2)); err == nil {
		t.Fatal("expected the second criterion to fail")
	}

	status := map[string][]codes.Code{}
	for _, s := range sr.Ended() {
		status[s.Name()] = append(status[s.Name()], s.Status().Code)
	}

	tests := []struct {
		name string
		want []codes.Code
	}{
		{"llm.generate", []codes.Code{codes.Ok, codes.Error}},
		{"executor.execute_criterion", []codes.Code{codes.Ok, codes.Error}},
		{"executor.execute_ticket", []codes.Code{codes.Error}},
	}
	for _, tt := range tests {
		got := status[tt.name]
		if len(got) != len(tt.want) {
			t.Errorf("%s spans = %v, want %v", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s span %d status = %v, want %v", tt.name, i, got[i], tt.want[i])
			}
		}
	}
}
