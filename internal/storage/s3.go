package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProgressFunc receives aggregate upload progress in percent (0-100).
type ProgressFunc func(percent int)

// MediaStorage handles request media uploads to S3.
type MediaStorage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewMediaStorage(client *s3.Client, bucket, publicURL string) *MediaStorage {
	return &MediaStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadFile uploads a single object and returns its public URL.
func (s *MediaStorage) UploadFile(ctx context.Context, path string, upload Upload) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(upload.Data),
		ContentType: aws.String(upload.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return s.PublicURL(path), nil
}

// UploadAll uploads every file under prefix, reporting aggregate progress
// with each file weighted equally regardless of size. Returns the public
// URLs in input order. Any failure aborts the batch.
func (s *MediaStorage) UploadAll(ctx context.Context, prefix string, uploads []Upload, progress ProgressFunc) ([]string, error) {
	if progress == nil {
		progress = func(int) {}
	}

	urls := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		path := fmt.Sprintf("%s/%s", strings.TrimSuffix(prefix, "/"), upload.Name)

		url, err := s.UploadFile(ctx, path, upload)
		if err != nil {
			return nil, err
		}

		urls = append(urls, url)
		progress((i + 1) * 100 / len(uploads))
	}

	return urls, nil
}

func (s *MediaStorage) DeleteFile(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	return nil
}

func (s *MediaStorage) PublicURL(path string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, path)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, path)
}
