package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client S3Loader needs.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads templates from s3://Bucket/Prefix/key.
type S3Loader struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Loader creates a loader from an AWS config.
func NewS3Loader(cfg aws.Config, bucket, prefix string) *S3Loader {
	return NewS3LoaderWithClient(s3.NewFromConfig(cfg), bucket, prefix)
}

// NewS3LoaderWithClient wraps an existing client.
func NewS3LoaderWithClient(client S3API, bucket, prefix string) *S3Loader {
	return &S3Loader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (l *S3Loader) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if l.prefix == "" {
		return key
	}
	return l.prefix + "/" + key
}

func (l *S3Loader) Load(ctx context.Context, key string) ([]byte, error) {
	objKey := l.objectKey(key)
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s does not exist", l.bucket, objKey)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, objKey, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
