package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mountains-server/core"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// objectKey prefixes an untrusted id under a bucket namespace. Ids must be a
// single path element so one asset cannot shadow another namespace.
func objectKey(prefix, id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid id: must not be empty or a dot directory")
	}
	if path.Base(id) != id {
		return "", fmt.Errorf("invalid id: must not be a path")
	}
	return path.Join(prefix, id), nil
}

func (s *s3Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *s3Store) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

func (s *s3Store) PutAsset(ctx context.Context, id string, data []byte) error {
	key, err := objectKey("assets", id)
	if err != nil {
		return err
	}
	if err := s.put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to upload asset %s: %w", id, err)
	}
	return nil
}

func (s *s3Store) GetAsset(ctx context.Context, id string) ([]byte, error) {
	key, err := objectKey("assets", id)
	if err != nil {
		return nil, err
	}
	data, err := s.get(ctx, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, core.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset %s: %w", id, err)
	}
	return data, nil
}

func (s *s3Store) SaveRoomSnapshot(ctx context.Context, roomID string, data []byte) error {
	key, err := objectKey("rooms", roomID)
	if err != nil {
		return err
	}
	if err := s.put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save snapshot for room %s: %w", roomID, err)
	}
	return nil
}

func (s *s3Store) GetRoomSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	key, err := objectKey("rooms", roomID)
	if err != nil {
		return nil, err
	}
	data, err := s.get(ctx, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot for room %s: %w", roomID, err)
	}
	return data, nil
}
