package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var errMissingBucket = errors.New("media: bucket is required")

// S3Config describes the S3 compatible bucket attachments are relayed to.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	Folder        string
	Clock         func() time.Time
	Logger        *zap.Logger
}

// S3Uploader relays attachments to an S3 compatible bucket.
type S3Uploader struct {
	uploader      *manager.Uploader
	bucket        string
	region        string
	publicBaseURL string
	folder        string
	clock         func() time.Time
	logger        *zap.Logger
}

// NewS3Uploader loads AWS credentials from the environment and builds an uploader.
// A custom endpoint switches the client to path-style addressing for MinIO and similar stores.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
			options.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, cfg)
}

// NewS3UploaderWithClient builds an uploader around an existing S3 API client.
func NewS3UploaderWithClient(client manager.UploadAPIClient, cfg S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Uploader{
		uploader:      manager.NewUploader(client),
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		folder:        cfg.Folder,
		clock:         clock,
		logger:        logger,
	}, nil
}

// Upload streams the object to the bucket and returns its public location.
func (u *S3Uploader) Upload(ctx context.Context, object Object) (Stored, error) {
	now := u.clock()
	key := ObjectKey(u.folder, object.Name, now)
	contentType := object.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        object.Body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		u.logger.Error("media upload failed",
			zap.String("bucket", u.bucket),
			zap.String("key", key),
			zap.Error(err))
		return Stored{}, fmt.Errorf("media: upload %s: %w", key, err)
	}

	return Stored{
		URL:      u.objectURL(key),
		Key:      key,
		FileName: DisplayName(object.Name, now),
	}, nil
}

func (u *S3Uploader) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, escaped)
}
