package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options describes an S3 compatible bucket.
type S3Options struct {
	Endpoint string // empty means AWS itself
	Region   string
	Key      string
	Secret   string
	Bucket   string
}

// S3OptionsFromConfig picks the object storage settings out of the service config.
func S3OptionsFromConfig(cfg *config.Config) S3Options {
	return S3Options{
		Endpoint: cfg.S3URL,
		Region:   cfg.S3Region,
		Key:      cfg.S3Key,
		Secret:   cfg.S3Secret,
		Bucket:   cfg.S3Bucket,
	}
}

// ObjectStore puts, signs, lists and deletes objects in one bucket.
type ObjectStore struct {
	Client  *s3.Client
	Presign *s3.PresignClient
	Bucket  string
}

// NewS3Client creates an S3 client. Custom endpoints (MinIO, Strato, R2, ...) use path-style addressing.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewObjectStore creates the client and binds it to the configured bucket.
func NewObjectStore(ctx context.Context, opts S3Options) (*ObjectStore, error) {
	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &ObjectStore{
		Client:  client,
		Presign: s3.NewPresignClient(client),
		Bucket:  opts.Bucket,
	}, nil
}

// Put uploads data under key.
func (o *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(o.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if cacheControl != "" {
		input.CacheControl = aws.String(cacheControl)
	}
	if _, err := o.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-bounded GET URL for key.
func (o *ObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := o.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// List returns every object under prefix, following continuation tokens.
func (o *ObjectStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(o.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Contents...)
	}
	return objects, nil
}

// Delete removes key from the bucket.
func (o *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := o.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
	})
	return err
}
