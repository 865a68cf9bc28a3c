package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store archives snapshots in S3 or MinIO.
type S3Store struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	pathPrefix string
}

// S3Config holds S3/MinIO connection configuration.
type S3Config struct {
	// Endpoint for MinIO (e.g. "minio.internal:9000").
	// Leave empty for AWS S3.
	Endpoint string

	// Bucket name
	Bucket string

	// Region (required for AWS S3, optional for MinIO)
	Region string

	// Credentials
	AccessKeyID     string
	SecretAccessKey string

	// UseSSL enables HTTPS (default: false for internal MinIO)
	UseSSL bool

	// PathPrefix is prepended to all snapshot keys
	PathPrefix string
}

// NewS3Store creates an S3/MinIO-backed archive.
func NewS3Store(cfg *S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1" // Default region for MinIO
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"", // session token (not used for MinIO)
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Store{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		pathPrefix: cfg.PathPrefix,
	}, nil
}

func (s *S3Store) fullKey(key string) string {
	if s.pathPrefix == "" {
		return key
	}
	return s.pathPrefix + "/" + key
}

// Put archives a snapshot under the flow's history.
func (s *S3Store) Put(ctx context.Context, flowID string, snapshot []byte) (*Ref, error) {
	now := time.Now().UTC()
	key := s.fullKey(snapshotKey(flowID, now))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(snapshot),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(snapshot))),
	})
	if err != nil {
		return nil, fmt.Errorf("put snapshot: %w", err)
	}

	return &Ref{
		URI:       fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Size:      int64(len(snapshot)),
		Checksum:  checksum(snapshot),
		CreatedAt: now,
	}, nil
}

// Get retrieves an archived snapshot.
func (s *S3Store) Get(ctx context.Context, ref *Ref) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.extractKey(ref.URI)),
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return result.Body, nil
}

// List returns a flow's archived snapshots, newest first.
func (s *S3Store) List(ctx context.Context, flowID string) ([]*Ref, error) {
	prefix := s.fullKey(fmt.Sprintf("flows/%s/", flowID))

	var refs []*Ref
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			refs = append(refs, &Ref{
				URI:       fmt.Sprintf("s3://%s/%s", s.bucket, *obj.Key),
				Size:      *obj.Size,
				CreatedAt: *obj.LastModified,
			})
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})
	return refs, nil
}

// PresignGet generates a presigned URL for download.
func (s *S3Store) PresignGet(ctx context.Context, ref *Ref, expiry time.Duration) (string, error) {
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.extractKey(ref.URI)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return result.URL, nil
}

// extractKey extracts the object key from a snapshot URI.
func (s *S3Store) extractKey(uri string) string {
	// URI format: s3://bucket/key
	uri = strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) < 2 {
		return uri
	}
	return parts[1]
}
