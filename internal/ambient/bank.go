/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ambient

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// SoundBank resolves a cue to a URI the player can open.
type SoundBank interface {
	Locate(ctx context.Context, cue Cue) (string, error)
}

// DirBank serves sounds from a local directory.
type DirBank struct {
	root   string
	logger zerolog.Logger
}

// NewDirBank creates a filesystem sound bank rooted at dir.
func NewDirBank(dir string, logger zerolog.Logger) (*DirBank, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sounds dir: %w", err)
	}
	return &DirBank{root: abs, logger: logger.With().Str("component", "ambient").Logger()}, nil
}

// Locate returns a file:// URI after checking the file exists.
func (b *DirBank) Locate(ctx context.Context, cue Cue) (string, error) {
	name, ok := File(cue)
	if !ok {
		return "", fmt.Errorf("no sound for cue %q", cue)
	}
	full := filepath.Join(b.root, name)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("sound for %s: %w", cue, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

// CheckAccess verifies the directory is readable.
func (b *DirBank) CheckAccess(ctx context.Context) error {
	_, err := os.ReadDir(b.root)
	return err
}

// S3Config configures an S3-compatible sound bank.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // for MinIO and other S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	URLExpiry       time.Duration
}

// S3Bank hands out presigned GET URLs so the player streams straight from the bucket.
type S3Bank struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
	logger  zerolog.Logger
}

// NewS3Bank loads AWS configuration and creates the bank. Static keys are
// used when set, otherwise the default credential chain.
func NewS3Bank(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Bank, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sound bank: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &S3Bank{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  expiry,
		logger:  logger.With().Str("component", "ambient").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func (b *S3Bank) key(cue Cue) (string, error) {
	name, ok := File(cue)
	if !ok {
		return "", fmt.Errorf("no sound for cue %q", cue)
	}
	return path.Join(b.prefix, name), nil
}

// Locate presigns a GET for the cue's object.
func (b *S3Bank) Locate(ctx context.Context, cue Cue) (string, error) {
	key, err := b.key(cue)
	if err != nil {
		return "", err
	}
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(b.expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	b.logger.Debug().Str("key", key).Msg("presigned ambient sound")
	return req.URL, nil
}

// CheckAccess verifies the bucket is reachable.
func (b *S3Bank) CheckAccess(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", b.bucket, err)
	}
	return nil
}
