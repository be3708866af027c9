package remote

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yadielglz/littlesprout-sub001/internal/config"
	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// NewStoreFromConfig creates a RemoteStore implementation based on the
// remote config type.
func NewStoreFromConfig(ctx context.Context, cfg config.RemoteConfig) (sprout.RemoteStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem remote requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
		}
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		poll := time.Duration(cfg.PollIntervalMS) * time.Millisecond
		return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, poll), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}

// newS3Client builds an S3 client from the remote config. Static keys in the
// config win; otherwise the default credential chain applies.
func newS3Client(ctx context.Context, cfg config.RemoteConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}
