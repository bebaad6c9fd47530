package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Uploader stores an encoded JPEG and returns its stable URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Host validates, normalizes and uploads images.
type Host struct {
	uploader Uploader
	limits   Limits
	logger   *zap.Logger
}

// NewHost creates an image host on top of uploader.
func NewHost(uploader Uploader, limits Limits, logger *zap.Logger) *Host {
	return &Host{uploader: uploader, limits: limits, logger: logger}
}

// UploadImage normalizes the image read from r and uploads it.
func (h *Host) UploadImage(ctx context.Context, r io.Reader) (string, error) {
	data, err := Normalize(r, h.limits)
	if err != nil {
		return "", err
	}
	u, err := h.uploader.Upload(ctx, data)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	h.logger.Info("image uploaded", zap.Int("bytes", len(data)), zap.String("url", u))
	return u, nil
}

func objectKey() string {
	return "images/" + uuid.NewString() + ".jpg"
}

// objectPutter is the subset of *manager.Uploader used here.
type objectPutter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader puts images into a public-read S3 bucket.
type S3Uploader struct {
	putter objectPutter
	bucket string
	region string
}

// NewS3Uploader loads the default AWS credential chain for region.
func NewS3Uploader(ctx context.Context, region, bucket string) (*S3Uploader, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{putter: manager.NewUploader(client), bucket: bucket, region: region}, nil
}

func (s *S3Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	key := objectKey()
	_, err := s.putter.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// FileUploader keeps images in a local directory and returns file URLs.
type FileUploader struct {
	Dir string
}

func (f *FileUploader) Upload(_ context.Context, data []byte) (string, error) {
	path := filepath.Join(f.Dir, filepath.FromSlash(objectKey()))
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}
