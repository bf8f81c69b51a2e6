package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docvault/internal/awsclient"
	"docvault/internal/config"
)

// s3Storage implements Storage on AWS S3 (or an S3 emulator via BaseEndpoint).
type s3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	buckets   Buckets
}

// NewS3 creates an S3-backed Storage. Buckets are expected to exist.
func NewS3(ctx context.Context, cfg config.AWSConfig, buckets Buckets) (Storage, error) {
	for _, a := range Areas {
		if _, err := buckets.For(a); err != nil {
			return nil, err
		}
	}
	awsCfg, err := awsclient.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep := awsclient.Endpoint(cfg); ep != nil {
			o.BaseEndpoint = ep
			o.UsePathStyle = true
		}
	})
	return &s3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		buckets:   buckets,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, area Area, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	bucket, err := s.buckets.For(area)
	if err != nil {
		return ObjectInfo{}, err
	}
	in := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opt.Metadata,
	}
	if opt.ContentType != "" {
		in.ContentType = aws.String(opt.ContentType)
	}
	if opt.Size >= 0 {
		in.ContentLength = aws.Int64(opt.Size)
	}
	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("s3 put %s/%s: %w", bucket, key, err)
	}
	return ObjectInfo{
		Area:         area,
		Key:          key,
		Size:         opt.Size,
		ETag:         aws.ToString(out.ETag),
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

func (s *s3Storage) Get(ctx context.Context, area Area, key string) (io.ReadCloser, ObjectInfo, error) {
	bucket, err := s.buckets.For(area)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, mapS3Err(err)
	}
	return out.Body, ObjectInfo{
		Area:         area,
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     out.Metadata,
	}, nil
}

func (s *s3Storage) Delete(ctx context.Context, area Area, key string) error {
	bucket, err := s.buckets.For(area)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *s3Storage) PresignGet(ctx context.Context, area Area, key string, expiry time.Duration) (string, error) {
	bucket, err := s.buckets.For(area)
	if err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}

func mapS3Err(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

var (
	_ Storage = (*s3Storage)(nil)
	_ Storage = (*minioStorage)(nil)
)
