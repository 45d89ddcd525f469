package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"resumetex/internal/config"
	"resumetex/internal/logging"
)

// GenerationCallbackMethod is the full gRPC method the receiver registers.
// Request and response are google.protobuf.Struct.
const GenerationCallbackMethod = "/resumetex.v1.ResumeCallbackService/ResumeGenerationCallback"

// Client represents a gRPC client for making callbacks
type Client struct {
	conn       *grpc.ClientConn
	timeout    time.Duration
	maxRetries int
	logger     logging.Logger
}

// ClientConfig holds configuration for the callback client
type ClientConfig struct {
	ServerAddress string        `yaml:"server_address"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

// NewClientFromConfig builds a client from the callback section.
func NewClientFromConfig(cfg *config.Config) (*Client, error) {
	return NewClient(&ClientConfig{
		ServerAddress: cfg.Callback.ServerAddress,
		Timeout:       cfg.Callback.Timeout,
		MaxRetries:    cfg.Callback.MaxRetries,
	}, logging.GetGlobalLogger())
}

// NewClient creates a new callback gRPC client
func NewClient(config *ClientConfig, logger logging.Logger) (*Client, error) {
	if config.ServerAddress == "" {
		return nil, fmt.Errorf("server address is required")
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	serverAddr, creds := determineConnectionParams(config.ServerAddress, logger)

	conn, err := grpc.NewClient(
		serverAddr,
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		// Prefer IPv4 to avoid IPv6 routing issues
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return (&net.Dialer{
				Timeout:       config.Timeout,
				FallbackDelay: 0,
			}).DialContext(ctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", serverAddr, err)
	}

	return &Client{
		conn:       conn,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		logger:     logger,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// GenerationCallback is the payload reported when a generation task ends.
type GenerationCallback struct {
	ProcessID      string
	RequestID      string
	Status         string
	Timestamp      time.Time
	Operation      string
	ProcessingTime time.Duration
	Error          string
	Data           interface{}
	Metadata       map[string]interface{}
}

// SendGenerationCallback delivers data, retrying transient failures with a
// linear backoff up to the configured attempt count.
func (c *Client) SendGenerationCallback(ctx context.Context, data *GenerationCallback) error {
	req, err := convertToStruct(data)
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}

	c.logger.Info("Sending generation callback", map[string]interface{}{
		"process_id":   data.ProcessID,
		"status":       data.Status,
		"method_name":  GenerationCallbackMethod,
		"client_state": c.conn.GetState().String(),
		"target":       c.conn.Target(),
	})

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp := &structpb.Struct{}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		lastErr = c.conn.Invoke(callCtx, GenerationCallbackMethod, req, resp)
		cancel()

		if lastErr == nil {
			logFields := map[string]interface{}{
				"process_id": data.ProcessID,
				"attempt":    attempt,
			}
			if msg, ok := resp.GetFields()["msg"]; ok {
				logFields["response_msg"] = msg.GetStringValue()
			}
			c.logger.Info("Generation callback sent successfully", logFields)
			return nil
		}

		if !retryable(lastErr) || attempt == c.maxRetries {
			break
		}
		c.logger.Warn("Generation callback failed, retrying", map[string]interface{}{
			"process_id": data.ProcessID,
			"attempt":    attempt,
			"error":      lastErr.Error(),
		})
		select {
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.logger.Error("Failed to send generation callback", map[string]interface{}{
		"process_id": data.ProcessID,
		"error":      lastErr.Error(),
	})
	return fmt.Errorf("failed to send callback: %w", lastErr)
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}

// convertToStruct flattens the callback into a protobuf Struct. Failure
// callbacks carry a null data field.
func convertToStruct(data *GenerationCallback) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"processId":      data.ProcessID,
		"requestId":      data.RequestID,
		"status":         data.Status,
		"timestamp":      data.Timestamp.Format(time.RFC3339Nano),
		"operation":      data.Operation,
		"processingTime": data.ProcessingTime.String(),
		"data":           nil,
	}
	if data.Error != "" {
		fields["error"] = data.Error
	}
	if !isFailureStatus(data.Status) && data.Data != nil {
		fields["data"] = convertToMap(data.Data)
	}
	if len(data.Metadata) > 0 {
		fields["metadata"] = convertToMap(data.Metadata)
	}
	return structpb.NewStruct(fields)
}

// convertToMap round-trips data through JSON so every nested value is a
// type structpb accepts.
func convertToMap(data interface{}) map[string]interface{} {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return map[string]interface{}{}
	}

	return result
}

// determineConnectionParams analyzes the server address and returns appropriate connection parameters
func determineConnectionParams(serverAddress string, logger logging.Logger) (string, credentials.TransportCredentials) {
	if isLocalhost(serverAddress) {
		addr := ensurePort(serverAddress, "9090")
		logger.Info("Using insecure connection for localhost", map[string]interface{}{
			"address": addr,
		})
		return addr, insecure.NewCredentials()
	}

	addr := ensurePort(serverAddress, "443")
	logger.Info("Using TLS connection for callback server", map[string]interface{}{
		"address": addr,
	})
	return addr, credentials.NewTLS(nil)
}

// isLocalhost checks if the address is localhost/127.0.0.1
func isLocalhost(addr string) bool {
	host := strings.Split(addr, ":")[0]
	return host == "localhost" || host == "127.0.0.1"
}

// ensurePort adds a default port to the address if no port is specified
func ensurePort(addr, defaultPort string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return fmt.Sprintf("%s:%s", addr, defaultPort)
}

// isFailureStatus checks if the callback status indicates a failure
func isFailureStatus(status string) bool {
	return strings.EqualFold(status, "failure") ||
		strings.EqualFold(status, "failed") ||
		strings.EqualFold(status, "error")
}
