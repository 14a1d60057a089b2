package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/quantarax/backend/internal/pixel"
)

// S3Config carries the credentials and endpoint needed to reach an
// S3-compatible object store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS S3 itself; set for S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Backend stores chunks as objects keyed chunks/{x}_{y}.chunk in an
// S3-compatible bucket.
type S3Backend struct {
	client *s3.Client
	bucket string
	tag    CompressionTag
}

// NewS3Backend builds a Backend over an S3-compatible bucket using the AWS
// SDK v2, following the SDK's own idiomatic config-then-client construction
// (the teacher has no object-store code of its own to imitate here).
func NewS3Backend(ctx context.Context, cfg S3Config, tag CompressionTag) (*S3Backend, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{client: client, bucket: cfg.Bucket, tag: tag}, nil
}

func (b *S3Backend) key(coord pixel.ChunkCoordinates) string {
	return "chunks/" + coord.Name()
}

// Save implements Backend.
func (b *S3Backend) Save(ctx context.Context, coord pixel.ChunkCoordinates, chunk *pixel.Chunk) error {
	encoded, err := EncodeChunk(chunk, b.tag)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(coord)),
		Body:   bytes.NewReader(encoded),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// Load implements Backend.
func (b *S3Backend) Load(ctx context.Context, coord pixel.ChunkCoordinates, createIfMissing bool) (pixel.Chunk, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(coord)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			if createIfMissing {
				return pixel.NewChunk(), nil
			}
			return pixel.Chunk{}, ErrNotFound
		}
		return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return pixel.Chunk{}, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return DecodeChunk(data)
}
