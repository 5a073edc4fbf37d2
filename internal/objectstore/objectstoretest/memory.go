// Package objectstoretest provides an in-memory objectstore.Bucket for tests.
package objectstoretest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/objectstore"
)

// Memory keeps objects in a map.  FailUpload, when set, is returned from the
// next UploadFile call.
type Memory struct {
	mu         sync.Mutex
	objects    map[string]map[string][]byte
	FailUpload error
	Deleted    []string
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]map[string][]byte{}}
}

func (m *Memory) UploadFile(_ context.Context, bucket, key string, r io.ReadSeeker, _ int64, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailUpload; err != nil {
		m.FailUpload = nil
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.objects[bucket] == nil {
		m.objects[bucket] = map[string][]byte{}
	}
	m.objects[bucket][key] = data
	return key, nil
}

func (m *Memory) PublicURL(bucket, key string) string {
	return objectstore.PublicURL("http://storage.test", bucket, key)
}

func (m *Memory) DownloadFile(_ context.Context, bucket, key string) (io.ReadCloser, model.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket][key]
	if !ok {
		return nil, model.StoredObject{}, objectstore.ErrObjectNotFound
	}
	info := model.StoredObject{Name: key, Size: int64(len(data)), PublicURL: m.PublicURL(bucket, key)}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (m *Memory) List(_ context.Context, bucket string) ([]model.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.StoredObject{}
	for k, v := range m.objects[bucket] {
		out = append(out, model.StoredObject{
			Name:         k,
			Size:         int64(len(v)),
			LastModified: time.Unix(0, 0).UTC(),
			PublicURL:    m.PublicURL(bucket, k),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[bucket][key]; !ok {
		return errors.New("no such object")
	}
	delete(m.objects[bucket], key)
	m.Deleted = append(m.Deleted, bucket+"/"+key)
	return nil
}

// Has reports whether bucket/key is stored.
func (m *Memory) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket][key]
	return ok
}

// Count returns the number of objects in bucket.
func (m *Memory) Count(bucket string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects[bucket])
}

var _ objectstore.Bucket = (*Memory)(nil)
