package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"

	"resumetex/api/proto"
	"resumetex/internal/grpc/server"
	"resumetex/internal/logging"
)

var protoETag = func() string {
	sum := sha256.Sum256(proto.PipelineProto)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// ProtoHandler serves the protobuf definition file
func ProtoHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Cache-Control", "public, max-age=3600")
		h.Set("ETag", protoETag)
		h.Set("X-Proto-Version", "v1")
		h.Set("X-Service-Name", server.PipelineServiceName)

		if c.Request().Header.Get("If-None-Match") == protoETag {
			return c.NoContent(http.StatusNotModified)
		}

		logging.GetGlobalLogger().Info("Proto file served", map[string]interface{}{
			"client_ip":  c.RealIP(),
			"user_agent": c.Request().UserAgent(),
		})
		return c.Blob(http.StatusOK, "text/plain; charset=utf-8", proto.PipelineProto)
	}
}

// ProtoMetadataHandler provides metadata about the proto file
func ProtoMetadataHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"service_name":  "resumetex",
			"proto_version": "v1",
			"file_name":     proto.FileName,
			"file_size":     len(proto.PipelineProto),
			"etag":          protoETag,
			"download_url":  "/api/v1/proto/pipeline.proto",
			"grpc_services": []string{
				server.PipelineServiceName,
				"grpc.health.v1.Health",
			},
		})
	}
}
