// Package s3 stores media in Amazon S3 or an S3-compatible service such as
// MinIO. Downloads are served from pre-signed URLs.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	appconfig "github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/pkg/checksum"
)

func init() {
	media.Register("s3", func(cfg *appconfig.Config) (media.Store, error) {
		return New(context.Background(), &cfg.Media.S3)
	})
}

// Store implements media.Store on an S3 bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New creates an S3 store. AuthMethod picks the credential source: the
// default AWS chain, static keys, or an STS assumed role. Left empty it is
// inferred from whether static keys are set.
func New(ctx context.Context, cfg *appconfig.S3StorageConfig) (*Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 media storage needs both bucket and region")
	}
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// Upload buffers the object to hash it, then puts it with the hash as metadata.
func (s *Store) Upload(ctx context.Context, path string, r io.Reader, _ int64) (*media.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := checksum.Bytes(data)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{"sha256": sum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return &media.Object{Path: path, Size: int64(len(data)), Checksum: sum}, nil
}

// Open streams the object.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats missing keys as deleted.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// URL returns a pre-signed GET URL valid for ttl.
func (s *Store) URL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// Exists issues a HEAD request for the object.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

func authMethod(cfg *appconfig.S3StorageConfig) string {
	if cfg.AuthMethod != "" {
		return cfg.AuthMethod
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return "static"
	}
	return "default"
}

func loadAWSConfig(ctx context.Context, cfg *appconfig.S3StorageConfig) (aws.Config, error) {
	method := authMethod(cfg)
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch method {
	case "default":
	case "static":
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return aws.Config{}, errors.New("s3 static auth needs access_key_id and secret_access_key")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case "assume_role":
		if cfg.RoleARN == "" {
			return aws.Config{}, errors.New("s3 assume_role auth needs role_arn")
		}
	default:
		return aws.Config{}, fmt.Errorf("s3 auth_method %q is not one of default, static, assume_role", method)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if method == "assume_role" {
		role := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "launchpal-media"
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
		})
		awsCfg.Credentials = aws.NewCredentialsCache(role)
	}
	return awsCfg, nil
}
