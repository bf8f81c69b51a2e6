package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type memObject struct {
	data []byte
	info ObjectInfo
}

// Memory is a test-only in-process Storage. Production wiring always uses
// the object store client.
type Memory struct {
	mu      sync.RWMutex
	objects map[Area]map[string]memObject
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[Area]map[string]memObject)}
}

func (m *Memory) Put(ctx context.Context, area Area, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	if opt.Size >= 0 && int64(len(data)) != opt.Size {
		return ObjectInfo{}, fmt.Errorf("storage: size mismatch: declared %d, read %d", opt.Size, len(data))
	}
	info := ObjectInfo{
		Area:         area,
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[area] == nil {
		m.objects[area] = make(map[string]memObject)
	}
	m.objects[area][key] = memObject{data: data, info: info}
	return info, nil
}

func (m *Memory) Get(ctx context.Context, area Area, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[area][key]
	if !ok {
		return nil, ObjectInfo{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *Memory) Delete(ctx context.Context, area Area, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects[area], key)
	return nil
}

func (m *Memory) PresignGet(_ context.Context, area Area, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s/%s?expires=%d", area, key, int64(expiry.Seconds())), nil
}

// Has reports whether an object exists.
func (m *Memory) Has(area Area, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[area][key]
	return ok
}

// Corrupt replaces an object's bytes in place. Used to simulate damaged blobs.
func (m *Memory) Corrupt(area Area, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[area][key]; ok {
		obj.data = data
		obj.info.Size = int64(len(data))
		m.objects[area][key] = obj
	}
}

var _ Storage = (*Memory)(nil)
