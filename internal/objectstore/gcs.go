package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in one bucket.
type GCS struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewGCS opens a client. An empty credentialsFile uses Application Default
// Credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string, ttl time.Duration) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, ttl: ttl, now: time.Now}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) PresignUpload(_ context.Context, fileName, contentType string) (*SignedUpload, error) {
	key := ObjectKey(fileName, g.now())
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     g.now().Add(g.ttl),
		ContentType: contentType,
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(key, opts)
	if err != nil {
		return nil, fmt.Errorf("sign upload %s: %w", key, err)
	}
	return &SignedUpload{
		UploadURL: url,
		Method:    opts.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		ObjectKey: key,
		AccessURL: g.publicURL(key),
		ExpiresAt: opts.Expires,
	}, nil
}

func (g *GCS) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return g.publicURL(key), nil
}

func (g *GCS) publicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key)
}
