/*
Package objectstore uploads invoice PDFs and issues presigned upload URLs.

IMPLEMENTATIONS:
  - GCS: Google Cloud Storage, V4 signed PUT URLs
  - Memory: keeps objects in-process (dev and tests)

KEYS:
  uploads/<yyyy>/<mm>/<uuid>-<sanitized name>, so two uploads of the same
  file name never collide.
*/
package objectstore

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignedUpload is returned to the client, which PUTs the file directly.
type SignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type Store interface {
	PresignUpload(ctx context.Context, fileName, contentType string) (*SignedUpload, error)
	// Upload stores data and returns its public URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a unique key for fileName.
func ObjectKey(fileName string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		name = "file"
	}
	return path.Join("uploads", now.UTC().Format("2006/01"), uuid.NewString()+"-"+name)
}
