package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// FolderEventImages is the S3 prefix for event cover images.
	FolderEventImages = "events"
	// FolderReports is the S3 prefix for archived report exports.
	FolderReports = "reports"
)

// ErrUnsupportedType is returned for uploads whose type is not an allowed image.
var ErrUnsupportedType = errors.New("unsupported image type")

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string // optional, e.g. a local MinIO
	PublicBaseURL        string // optional CDN or bucket website base
	PresignExpireMinutes int
}

// S3 provides object storage for event images and report archives.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the environment.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// ImageContentType returns the MIME type to store an image under, or
// ErrUnsupportedType when neither the declared type nor the extension is allowed.
func ImageContentType(contentType, filename string) (string, error) {
	if ct := strings.ToLower(strings.TrimSpace(contentType)); ct != "" {
		if _, ok := AllowedImageTypes[ct]; ok {
			if ct == "image/jpg" {
				ct = "image/jpeg"
			}
			return ct, nil
		}
	}
	if ct, ok := AllowedImageExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
}

// EventImageKey returns the object key for an event image: events/{event_id}/{unique}{ext}.
// The unique part keeps browsers from serving a stale cached image after a change.
func EventImageKey(eventID uuid.UUID, contentType string) string {
	return path.Join(FolderEventImages, eventID.String(), uuid.NewString()+AllowedImageTypes[contentType])
}

// ReportKey returns the object key for an archived report export.
func ReportKey(at time.Time, ext string) string {
	return path.Join(FolderReports, at.UTC().Format("2006/01/02"), "events-"+at.UTC().Format("150405")+ext)
}

// PublicObjectURL returns the public URL of an object.
func (s *S3) PublicObjectURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// UploadEventImage validates and stores an event image and returns its public URL.
func (s *S3) UploadEventImage(ctx context.Context, eventID uuid.UUID, filename, contentType string, body io.Reader, size int64) (string, error) {
	ct, err := ImageContentType(contentType, filename)
	if err != nil {
		return "", err
	}
	key := EventImageKey(eventID, ct)
	if err := s.Upload(ctx, key, ct, body, size, true); err != nil {
		return "", err
	}
	s.logger.Info("event image uploaded", zap.String("event_id", eventID.String()), zap.String("key", key))
	return s.PublicObjectURL(key), nil
}

// ArchiveReport stores a generated report and returns a pre-signed download URL.
func (s *S3) ArchiveReport(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if err := s.Upload(ctx, key, contentType, body, size, false); err != nil {
		return "", err
	}
	return s.PresignedDownloadURL(ctx, key, s.PresignExpire())
}

// PresignedDownloadURL returns a pre-signed GET URL.
func (s *S3) PresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Upload streams a reader to the bucket. publicRead marks the object world readable.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, publicRead bool) error {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	}
	if publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
