package interceptors

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"

	"resumetex/internal/logging"
)

// MetricsData holds counters for one gRPC method.
type MetricsData struct {
	Method          string        `json:"method"`
	RequestCount    int64         `json:"request_count"`
	SuccessCount    int64         `json:"success_count"`
	ErrorCount      int64         `json:"error_count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastUpdated     time.Time     `json:"last_updated"`
}

// MetricsCollector collects per-method call counts and durations.
type MetricsCollector struct {
	mu      sync.Mutex
	methods map[string]*MetricsData
}

var (
	globalMetricsCollector *MetricsCollector
	metricsOnce            sync.Once
)

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{methods: make(map[string]*MetricsData)}
}

// GetMetricsCollector returns the global metrics collector instance
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetricsCollector = NewMetricsCollector()
	})
	return globalMetricsCollector
}

// RecordMetrics records metrics for a gRPC method call
func (c *MetricsCollector) RecordMetrics(method string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.methods[method]
	if !ok {
		m = &MetricsData{Method: method}
		c.methods[method] = m
	}
	m.RequestCount++
	m.TotalDuration += duration
	m.AverageDuration = m.TotalDuration / time.Duration(m.RequestCount)
	m.LastUpdated = time.Now()
	if err != nil {
		m.ErrorCount++
	} else {
		m.SuccessCount++
	}
}

// Snapshot returns a copy of every method's counters ordered by method name.
func (c *MetricsCollector) Snapshot() []MetricsData {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]MetricsData, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// MetricsInterceptor returns a gRPC unary interceptor that records call
// counts and durations into c.
func MetricsInterceptor(c *MetricsCollector) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		resp, err := handler(ctx, req)
		c.RecordMetrics(info.FullMethod, time.Since(startTime), err)
		return resp, err
	}
}

// StreamMetricsInterceptor returns a gRPC streaming interceptor that collects metrics
func StreamMetricsInterceptor(c *MetricsCollector) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		startTime := time.Now()
		err := handler(srv, ss)
		c.RecordMetrics(info.FullMethod, time.Since(startTime), err)
		return err
	}
}

// StartMetricsReporting logs a summary of c every interval until ctx ends.
func StartMetricsReporting(ctx context.Context, c *MetricsCollector, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logger := logging.GetGlobalLogger()
				for _, m := range c.Snapshot() {
					successRate := float64(0)
					if m.RequestCount > 0 {
						successRate = float64(m.SuccessCount) / float64(m.RequestCount) * 100
					}
					logger.Info("gRPC method metrics summary", map[string]interface{}{
						"method":           m.Method,
						"request_count":    m.RequestCount,
						"error_count":      m.ErrorCount,
						"success_rate":     successRate,
						"average_duration": m.AverageDuration,
						"type":             "grpc_metrics_summary",
					})
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
