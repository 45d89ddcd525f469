package interceptors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"resumetex/internal/logging"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/resumetex.v1.PipelineService/GetTask"}

func TestRecoveryInterceptorConvertsPanic(t *testing.T) {
	resp, err := RecoveryInterceptor()(context.Background(), nil, testInfo, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	if resp != nil {
		t.Errorf("resp = %v", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %s", status.Code(err))
	}
	if strings.Contains(status.Convert(err).Message(), "boom") {
		t.Error("panic value leaked to the client")
	}
}

func TestLoggingInterceptorPropagatesRequestID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "req-42"))
	var seen string
	_, err := LoggingInterceptor()(ctx, nil, testInfo, func(ctx context.Context, _ interface{}) (interface{}, error) {
		seen = logging.RequestIDFromContext(ctx)
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != "req-42" {
		t.Errorf("request id = %q", seen)
	}

	_, _ = LoggingInterceptor()(context.Background(), nil, testInfo, func(ctx context.Context, _ interface{}) (interface{}, error) {
		seen = logging.RequestIDFromContext(ctx)
		return nil, nil
	})
	if seen == "" {
		t.Error("no request id generated")
	}
}

func TestMetricsInterceptorCounts(t *testing.T) {
	c := NewMetricsCollector()
	interceptor := MetricsInterceptor(c)
	ok := func(context.Context, interface{}) (interface{}, error) { return nil, nil }
	fail := func(context.Context, interface{}) (interface{}, error) { return nil, errors.New("x") }

	_, _ = interceptor(context.Background(), nil, testInfo, ok)
	_, _ = interceptor(context.Background(), nil, testInfo, fail)
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/a/B"}, ok)

	snap := c.Snapshot()
	if len(snap) != 2 || snap[0].Method != "/a/B" {
		t.Fatalf("snapshot = %+v", snap)
	}
	m := snap[1]
	if m.RequestCount != 2 || m.SuccessCount != 1 || m.ErrorCount != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if m.LastUpdated.IsZero() || m.AverageDuration > time.Second {
		t.Errorf("timing = %+v", m)
	}
}
