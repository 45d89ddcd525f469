package mux

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"resumetex/internal/config"
	"resumetex/internal/grpc/server"
)

func TestMultiplexerServesBothProtocols(t *testing.T) {
	cfg := config.Defaults()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "http ok")
	})
	m := NewMultiplexer(cfg, server.NewServer(cfg, nil, nil, nil), httpHandler)
	if err := m.Serve(lis); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()
	if !m.IsHealthy() {
		t.Error("multiplexer not healthy after Serve")
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + m.GetAddress() + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "http ok" {
		t.Errorf("http body = %q", body)
	}

	conn, err := grpc.NewClient(m.GetAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.PipelineServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if hc.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("grpc health = %s", hc.Status)
	}
}
