package s3

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type ItfS3 interface {
	UploadImage(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type s3Client struct {
	uploader   *s3manager.Uploader
	bucketName string
}

func New() (ItfS3, error) {
	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, errors.New("AWS_BUCKET_NAME is not set")
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	return &s3Client{
		uploader:   s3manager.NewUploader(sess),
		bucketName: bucket,
	}, nil
}

func (s *s3Client) UploadImage(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploadOutput, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}

	return uploadOutput.Location, nil
}

func newSession() (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}
