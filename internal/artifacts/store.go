// Package artifacts persists generated PDFs and fallback LaTeX sources.
package artifacts

import (
	"context"
	"fmt"
	"path"
	"strings"

	"resumetex/internal/config"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypeTeX = "application/x-tex"
)

// Store saves an artifact under name and reports where it ended up: a file
// path for the local backend, a URL for the object stores.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Health(ctx context.Context) error
	Name() string
}

// New builds the store selected by cfg.Artifacts.Backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Artifacts.Backend) {
	case "", "local":
		return NewLocal(cfg.Artifacts.OutputDir)
	case "spaces":
		return NewSpaces(SpacesOptions{
			AccessKeyID:     cfg.DigitalOcean.Spaces.AccessKeyID,
			AccessKeySecret: cfg.DigitalOcean.Spaces.AccessKeySecret,
			Region:          cfg.DigitalOcean.Spaces.Region,
			BucketName:      cfg.DigitalOcean.Spaces.BucketName,
			BucketURL:       cfg.DigitalOcean.Spaces.BucketURL,
			CDNEndpoint:     cfg.DigitalOcean.Spaces.CDNEndpoint,
			Prefix:          cfg.Artifacts.Prefix,
		})
	case "gcs":
		return NewGCS(ctx, cfg.Artifacts.GCS.Bucket, cfg.Artifacts.Prefix)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}
}

// objectKey joins prefix and name with forward slashes.
func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
