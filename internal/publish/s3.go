package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// putObjectAPI is the part of the S3 client the publisher needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads into a bucket under an optional key prefix.
type S3Publisher struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Publisher uses the default AWS credential chain.
func NewS3Publisher(ctx context.Context, bucket, prefix string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Publisher{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	obj, err := objectName(name)
	if err != nil {
		return "", err
	}
	key := path.Join(p.prefix, obj)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	loc := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	logrus.WithFields(logrus.Fields{"location": loc, "bytes": len(data)}).Info("export published")
	return loc, nil
}
