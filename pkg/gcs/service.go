package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Client wraps a Cloud Storage bucket used as the remote side of the
// recording store.
type Client struct {
	client     *storage.Client
	bucketName string
}

// NewClient creates a storage client bound to one bucket.
func NewClient(ctx context.Context, bucketName string) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &Client{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes content to objectPath and returns the gs:// URI.
func (g *Client) Upload(ctx context.Context, objectPath string, content io.Reader) (string, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectPath)

	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectPath), nil
}

// URI returns the gs:// URI of an object in the bound bucket.
func (g *Client) URI(objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectPath)
}

// Download reads the object at objectPath into memory.
func (g *Client) Download(ctx context.Context, objectPath string) ([]byte, error) {
	reader, err := g.client.Bucket(g.bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete removes the object at objectPath. Missing objects are not errors.
func (g *Client) Delete(ctx context.Context, objectPath string) error {
	err := g.client.Bucket(g.bucketName).Object(objectPath).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether the object exists.
func (g *Client) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := g.client.Bucket(g.bucketName).Object(objectPath).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// PresignedURL returns a V4 signed GET URL for a gs:// URI.
func (g *Client) PresignedURL(gcsURI string, expiresAt time.Time) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expiresAt,
	}

	bucketName := strings.TrimPrefix(gcsURI, "gs://")
	bucketName = strings.Split(bucketName, "/")[0]
	objectPath := strings.TrimPrefix(gcsURI, "gs://"+bucketName+"/")

	url, err := g.client.Bucket(bucketName).SignedURL(objectPath, opts)
	if err != nil {
		return "", fmt.Errorf("failed to get presigned url: %w", err)
	}
	return url, nil
}

// Close closes the underlying client.
func (g *Client) Close() error {
	return g.client.Close()
}
