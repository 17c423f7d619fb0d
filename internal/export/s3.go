package export

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type S3Options struct {
	Bucket  string
	Prefix  string
	Profile string
	Region  string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Exporter copies finished files into a bucket under an optional prefix.
type S3Exporter struct {
	uploader uploader
	bucket   string
	prefix   string
}

func NewS3Exporter(ctx context.Context, opts S3Options) (*S3Exporter, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return newS3Exporter(manager.NewUploader(s3.NewFromConfig(cfg)), opts), nil
}

func newS3Exporter(u uploader, opts S3Options) *S3Exporter {
	return &S3Exporter{uploader: u, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/")}
}

func (e *S3Exporter) ObjectKey(localPath string) string {
	return path.Join(e.prefix, filepath.Base(localPath))
}

// Export uploads localPath and returns its s3:// URI.
func (e *S3Exporter) Export(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", localPath, err)
	}
	defer file.Close()

	key := e.ObjectKey(localPath)
	input := &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if contentType := contentTypeFor(localPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := e.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("error uploading to s3://%s/%s: %w", e.bucket, key, err)
	}
	uri := fmt.Sprintf("s3://%s/%s", e.bucket, key)
	log.Info().Str("op", "export/s3").Msgf("Exported %s to %s", localPath, uri)
	return uri, nil
}

func contentTypeFor(localPath string) string {
	switch ext := strings.ToLower(filepath.Ext(localPath)); ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".m4a":
		return "audio/mp4"
	default:
		return mime.TypeByExtension(ext)
	}
}
