package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"vendorse/internal/config"
	"vendorse/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Files hands out short-lived presigned URLs so clients move document bytes
// to and from object storage directly.
type Files struct {
	presign     presigner
	bucket      string
	expiry      time.Duration
	maxFileSize int64
	now         func() time.Time
}

type UploadURL struct {
	URL       string            `json:"url"`
	Key       string            `json:"key"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func New(p presigner, cfg config.StorageConfig) *Files {
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Files{
		presign:     p,
		bucket:      cfg.Bucket,
		expiry:      expiry,
		maxFileSize: cfg.MaxFileSize,
		now:         time.Now,
	}
}

// NewS3 builds the presigner for AWS S3, or for MinIO when cfg.Endpoint is set.
func NewS3(ctx context.Context, cfg config.StorageConfig) (*Files, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("files.NewS3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(s3.NewPresignClient(client), cfg), nil
}

// UploadURL validates the declared size and returns a presigned PUT for a
// fresh key under the user's prefix.
func (f *Files) UploadURL(ctx context.Context, userId, fileName, contentType string, size int64) (UploadURL, error) {
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return UploadURL{}, fmt.Errorf("files.Files.UploadURL: %w: file name is required", models.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err := f.Validate(size)
	if err != nil {
		return UploadURL{}, err
	}

	now := f.now()
	key := GenerateKey(userId, fileName, now)

	req, err := f.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(f.expiry))
	if err != nil {
		return UploadURL{}, fmt.Errorf("files.Files.UploadURL: %w", err)
	}

	return UploadURL{
		URL: req.URL,
		Key: key,
		Fields: map[string]string{
			"key":          key,
			"Content-Type": contentType,
		},
		ExpiresAt: now.Add(f.expiry),
	}, nil
}

func (f *Files) DownloadURL(ctx context.Context, key string) (DownloadURL, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") {
		return DownloadURL{}, fmt.Errorf("files.Files.DownloadURL: %w: invalid key", models.ErrInvalidInput)
	}

	req, err := f.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(f.expiry))
	if err != nil {
		return DownloadURL{}, fmt.Errorf("files.Files.DownloadURL: %w", err)
	}

	return DownloadURL{URL: req.URL, ExpiresAt: f.now().Add(f.expiry)}, nil
}

// Validate rejects files larger than the configured maximum.
func (f *Files) Validate(size int64) error {
	if size < 0 {
		return fmt.Errorf("files.Files.Validate: %w: negative file size", models.ErrInvalidInput)
	}
	if f.maxFileSize > 0 && size > f.maxFileSize {
		return fmt.Errorf("files.Files.Validate: %w: file size exceeds maximum allowed size of %d bytes", models.ErrInvalidInput, f.maxFileSize)
	}
	return nil
}

// GenerateKey returns "<userId>/<8 hex chars>-<fileName>", the hex prefix
// being derived from user, time and name.
func GenerateKey(userId, fileName string, at time.Time) string {
	sum := sha256.Sum256([]byte(userId + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + fileName))
	return userId + "/" + hex.EncodeToString(sum[:])[:8] + "-" + fileName
}

// Signature is the hex SHA-256 of the content, stored as a document's signature hash.
func Signature(r io.Reader) (string, error) {
	h := sha256.New()
	_, err := io.Copy(h, r)
	if err != nil {
		return "", fmt.Errorf("files.Signature: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
