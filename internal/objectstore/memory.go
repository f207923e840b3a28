package objectstore

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type Object struct {
	ContentType string
	Data        []byte
}

// Memory keeps uploads in a map. URLs use the memory:// scheme.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object), ttl: 15 * time.Minute, now: time.Now}
}

func (m *Memory) PresignUpload(_ context.Context, fileName, contentType string) (*SignedUpload, error) {
	key := ObjectKey(fileName, m.now())
	return &SignedUpload{
		UploadURL: "memory://upload/" + key,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": contentType},
		ObjectKey: key,
		AccessURL: "memory://" + key,
		ExpiresAt: m.now().Add(m.ttl),
	}, nil
}

func (m *Memory) Upload(_ context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return "memory://" + key, nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}
