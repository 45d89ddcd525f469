package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"resumetex/internal/logging"
)

// RequestIDHeader is the metadata key carrying the caller's request id.
const RequestIDHeader = "x-request-id"

// requestIDFromMetadata returns the incoming request id, generating one when
// the caller sent none.
func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.New().String()
}

func statusCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// LoggingInterceptor returns a gRPC unary interceptor that logs requests and
// attaches the request id to the handler context.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		requestID := requestIDFromMetadata(ctx)
		ctx = logging.ContextWithRequestID(ctx, requestID)
		logger := logging.GetGlobalLogger().WithContext(ctx)

		logger.Debug("gRPC request started", map[string]interface{}{
			"method": info.FullMethod,
			"type":   "grpc_request_start",
		})

		resp, err := handler(ctx, req)

		logFields := map[string]interface{}{
			"method":          info.FullMethod,
			"processing_time": time.Since(startTime),
			"status_code":     statusCode(err).String(),
			"type":            "grpc_request_complete",
		}
		if err != nil {
			logFields["error"] = err.Error()
			logger.Error("gRPC request failed", logFields)
		} else {
			logger.Info("gRPC request completed", logFields)
		}

		return resp, err
	}
}

// StreamLoggingInterceptor returns a gRPC streaming interceptor that logs stream operations
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		startTime := time.Now()
		logger := logging.GetGlobalLogger().WithField("request_id", requestIDFromMetadata(ss.Context()))

		err := handler(srv, ss)

		logFields := map[string]interface{}{
			"method":          info.FullMethod,
			"processing_time": time.Since(startTime),
			"status_code":     statusCode(err).String(),
			"type":            "grpc_stream_complete",
		}
		if err != nil {
			logFields["error"] = err.Error()
			logger.Error("gRPC stream failed", logFields)
		} else {
			logger.Info("gRPC stream completed", logFields)
		}

		return err
	}
}
