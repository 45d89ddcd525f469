// Package proto embeds the protobuf contract of the gRPC services.
package proto

import _ "embed"

// PipelineProto is the source of resumetex/v1/pipeline.proto.
//
//go:embed resumetex/v1/pipeline.proto
var PipelineProto []byte

// FileName is the path clients should save the contract under.
const FileName = "resumetex/v1/pipeline.proto"
