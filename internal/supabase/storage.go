package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	storage "github.com/supabase-community/storage-go"
)

// StorageClient stores feedback images in a Supabase Storage bucket.
// Refs are "<bucket>/<key>" so a record stays resolvable if the bucket changes later.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
	prefix  string

	// storage-go keeps upload headers on the shared transport.
	mu sync.Mutex
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket, prefix string) (*StorageClient, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("supabase storage bucket is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		prefix:  strings.Trim(prefix, "/"),
	}, nil
}

func (s *StorageClient) objectPath(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *StorageClient) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" || strings.Contains(key, "/") {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	storagePath := s.objectPath(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	ref := s.bucket + "/" + storagePath
	log.WithFields(log.Fields{"ref": ref, "url": s.GetPublicURL(ref)}).Debug("uploaded image to supabase storage")
	return ref, nil
}

func (s *StorageClient) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	storagePath, ok := strings.CutPrefix(ref, s.bucket+"/")
	if !ok {
		return nil, fmt.Errorf("image ref %q is not in bucket %s", ref, s.bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.client.DownloadFile(s.bucket, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	return data, nil
}

func (s *StorageClient) GetPublicURL(ref string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s", s.baseURL, ref)
}
