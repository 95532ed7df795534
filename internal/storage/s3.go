// Package storage provides the S3-backed blob store. Audio uploads,
// transcript artifacts and scratch data all live in one bucket, a case's
// containers are key prefixes inside it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Store struct {
	client *s3.Client
	bucket string
}

type StoreParams struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &Store{client: client, bucket: params.Bucket}, nil
}

func objectKey(container, key string) string {
	return fmt.Sprintf("%s/%s", container, key)
}

// Put writes body under container/key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, container, key string, body []byte) error {
	mimeType := mime.TypeByExtension(filepath.Ext(key))
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(container, key)),
		Body:   bytes.NewReader(body),
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", container, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, container, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(container, key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", container, key, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", container, key, err)
	}
	return buf.Bytes(), nil
}

func (s *Store) Delete(ctx context.Context, container, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(container, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", container, key, err)
	}
	return nil
}

// DeleteContainer removes every object under the container prefix.
func (s *Store) DeleteContainer(ctx context.Context, container string) error {
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(container + "/"),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return fmt.Errorf("failed to list container %s: %w", container, err)
		}

		if len(listOutput.Contents) == 0 {
			break
		}

		var objectsToDelete []types.ObjectIdentifier
		for _, obj := range listOutput.Contents {
			objectsToDelete = append(objectsToDelete, types.ObjectIdentifier{
				Key: obj.Key,
			})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objectsToDelete,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in container %s: %w", container, err)
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return nil
}

// List returns the keys of all objects in the container, without the
// container prefix.
func (s *Store) List(ctx context.Context, container string) ([]string, error) {
	prefix := container + "/"
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s: %w", container, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, (*obj.Key)[len(prefix):])
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}
