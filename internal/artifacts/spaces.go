package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

// SpacesOptions configures the DigitalOcean Spaces store.
type SpacesOptions struct {
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	BucketName      string
	BucketURL       string
	CDNEndpoint     string
	Prefix          string
}

// Spaces uploads artifacts to a DigitalOcean Spaces bucket through the S3 API.
type Spaces struct {
	client *s3.S3
	opts   SpacesOptions
	logger types.Logger
}

func NewSpaces(opts SpacesOptions) (*Spaces, error) {
	if opts.AccessKeyID == "" || opts.AccessKeySecret == "" {
		return nil, fmt.Errorf("DigitalOcean Spaces credentials are required")
	}
	if opts.BucketName == "" {
		return nil, fmt.Errorf("DigitalOcean Spaces bucket name is required")
	}

	// https://<bucket>.<region>.digitaloceanspaces.com is addressed through the
	// regional endpoint with virtual-hosted style.
	endpoint := fmt.Sprintf("https://%s.digitaloceanspaces.com", opts.Region)

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(opts.AccessKeyID, opts.AccessKeySecret, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DigitalOcean Spaces session: %w", err)
	}

	logger := logging.GetGlobalLogger()
	logger.Info("DigitalOcean Spaces artifact store initialized", map[string]interface{}{
		"bucket_name": opts.BucketName,
		"region":      opts.Region,
		"endpoint":    endpoint,
	})

	return &Spaces{client: s3.New(sess), opts: opts, logger: logger}, nil
}

func (s *Spaces) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.opts.Prefix, name)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		s.logger.Error("Failed to upload artifact to DigitalOcean Spaces", map[string]interface{}{
			"object_key": key,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	url := s.URL(key)
	s.logger.Info("Artifact uploaded", map[string]interface{}{
		"object_key": key,
		"size_bytes": len(data),
		"url":        url,
	})
	return url, nil
}

// URL prefers the CDN endpoint, then the bucket URL, then the canonical
// bucket host.
func (s *Spaces) URL(key string) string {
	if s.opts.CDNEndpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.opts.CDNEndpoint, "/"), key)
	}
	if s.opts.BucketURL != "" {
		base := strings.TrimRight(s.opts.BucketURL, "/")
		if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
			base = "https://" + base
		}
		return fmt.Sprintf("%s/%s", base, key)
	}
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.opts.BucketName, s.opts.Region, key)
}

func (s *Spaces) Health(ctx context.Context) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.opts.BucketName),
	})
	return err
}

func (s *Spaces) Name() string { return "spaces" }
