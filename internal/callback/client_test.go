package callback

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"resumetex/internal/logging"
	"resumetex/internal/logging/adapters"
)

type receiver struct {
	mu       sync.Mutex
	got      []*structpb.Struct
	failures int
}

func (r *receiver) handle(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return nil, status.Error(codes.Unavailable, "try later")
	}
	r.got = append(r.got, in)
	return structpb.NewStruct(map[string]interface{}{"msg": "ok"})
}

func startReceiver(t *testing.T, r *receiver) string {
	t.Helper()
	lis, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "resumetex.v1.ResumeCallbackService",
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "ResumeGenerationCallback",
			Handler:    r.handle,
		}},
		Streams: []grpc.StreamDesc{},
	}, struct{}{})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	logger := logging.NewMultiLogger()
	_ = logger.AddAdapter(adapters.NewMemoryAdapter("memory", 100))
	c, err := NewClient(&ClientConfig{ServerAddress: addr, Timeout: 2 * time.Second, MaxRetries: 3}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSendGenerationCallback(t *testing.T) {
	r := &receiver{failures: 1}
	c := newTestClient(t, startReceiver(t, r))

	err := c.SendGenerationCallback(context.Background(), &GenerationCallback{
		ProcessID:      "p1",
		RequestID:      "r1",
		Status:         "SUCCESS",
		Timestamp:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Operation:      "generate",
		ProcessingTime: 1500 * time.Millisecond,
		Data:           struct{ PageCount int `json:"pageCount"` }{2},
	})
	if err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) != 1 {
		t.Fatalf("received %d callbacks", len(r.got))
	}
	m := r.got[0].AsMap()
	if m["processId"] != "p1" || m["status"] != "SUCCESS" || m["processingTime"] != "1.5s" {
		t.Errorf("payload = %v", m)
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok || data["pageCount"] != float64(2) {
		t.Errorf("data = %v", m["data"])
	}
}

func TestSendGenerationCallbackGivesUp(t *testing.T) {
	r := &receiver{failures: 10}
	c := newTestClient(t, startReceiver(t, r))

	err := c.SendGenerationCallback(context.Background(), &GenerationCallback{ProcessID: "p1", Status: "FAILURE"})
	if err == nil {
		t.Fatal("expected failure after retries")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures != 7 {
		t.Errorf("attempts = %d, want 3", 10-r.failures)
	}
}

func TestConvertToStructFailureHasNullData(t *testing.T) {
	s, err := convertToStruct(&GenerationCallback{ProcessID: "p", Status: "FAILURE", Error: "boom", Data: map[string]interface{}{"x": 1}})
	if err != nil {
		t.Fatal(err)
	}
	m := s.AsMap()
	if v, ok := m["data"]; !ok || v != nil {
		t.Errorf("data = %v, want explicit null", v)
	}
	if m["error"] != "boom" {
		t.Errorf("error = %v", m["error"])
	}
}

func TestConnectionParams(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"localhost", "localhost:9090"},
		{"127.0.0.1:7000", "127.0.0.1:7000"},
		{"callbacks.example.com", "callbacks.example.com:443"},
	}
	logger := logging.NewMultiLogger()
	for _, tt := range tests {
		if got, _ := determineConnectionParams(tt.in, logger); got != tt.want {
			t.Errorf("determineConnectionParams(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewClientRequiresAddress(t *testing.T) {
	if _, err := NewClient(&ClientConfig{}, logging.NewMultiLogger()); err == nil {
		t.Error("empty address accepted")
	}
}
