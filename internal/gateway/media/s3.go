package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

const keyPrefix = "profile-photos/"

// S3Config points the store at an S3 compatible bucket (AWS, MinIO, R2...).
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PathStyle     bool
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	client    objectAPI
	bucket    string
	publicURL string
	logger    *slog.Logger
}

var _ Store = (*S3Store)(nil)

func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return newS3Store(client, cfg.Bucket, publicURL, logger), nil
}

func newS3Store(client objectAPI, bucket, publicURL string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Upload stores the photo under a random key and returns its public URL and
// the key as the handle needed to delete it later.
func (s *S3Store) Upload(ctx context.Context, photo types.Photo) (types.StoredMedia, error) {
	key := keyPrefix + uuid.NewString() + extensionFor(photo)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(photo.Data),
		ContentType:   aws.String(photo.ContentType),
		ContentLength: aws.Int64(int64(len(photo.Data))),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Photo upload failed", slog.String("key", key), slog.Any("error", err))
		return types.StoredMedia{}, fmt.Errorf("%w: photo upload: %v", types.ErrUpstream, err)
	}

	return types.StoredMedia{URL: s.publicURL + "/" + key, Ref: key}, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("%w: photo delete: %v", types.ErrUpstream, err)
	}
	return nil
}

// imageExtensions covers the image types http.DetectContentType reports.
var imageExtensions = map[string]string{
	"image/avif":               ".avif",
	"image/bmp":                ".bmp",
	"image/gif":                ".gif",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/vnd.microsoft.icon": ".ico",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
}

// extensionFor derives the key suffix from the sniffed content type. The
// client supplied filename never reaches the key.
func extensionFor(photo types.Photo) string {
	return imageExtensions[photo.ContentType]
}
