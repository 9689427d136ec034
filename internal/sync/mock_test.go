package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"healthrelay/internal/source"
)

// --- Mock Data Source --------------------------------------------------------

type mockSource struct {
	mu       stdsync.Mutex
	records  map[string][]source.Record // typeID → records
	failType map[string]error           // typeID → error to return
	earliest time.Time
	hasData  bool
	down     bool // every query returns source.ErrUnavailable
	queries  int
}

func newMockSource() *mockSource {
	return &mockSource{
		records:  make(map[string][]source.Record),
		failType: make(map[string]error),
	}
}

func (m *mockSource) add(recs ...source.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.records[rec.TypeID] = append(m.records[rec.TypeID], rec)
	}
}

func (m *mockSource) failOn(typeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failType[typeID] = err
}

func (m *mockSource) QueryRecords(_ context.Context, typeID, _ string, start, end time.Time) ([]source.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries++
	if m.down {
		return nil, source.ErrUnavailable
	}
	if err, ok := m.failType[typeID]; ok {
		return nil, err
	}

	var out []source.Record
	for _, rec := range m.records[typeID] {
		if rec.Start.Before(end) && !rec.Start.Before(start) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockSource) EarliestRecordDate(_ context.Context, _ []string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return time.Time{}, false, source.ErrUnavailable
	}
	return m.earliest, m.hasData, nil
}

func (m *mockSource) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

// --- Mock Uploader -----------------------------------------------------------

type mockUploader struct {
	mu        stdsync.Mutex
	uploads   []string          // paths in delivery order
	payloads  map[string][]byte // path → last payload
	failPath  map[string]error  // path → error to return
	failAfter int               // fail every upload past the Nth (0 = never)
}

func newMockUploader() *mockUploader {
	return &mockUploader{
		payloads: make(map[string][]byte),
		failPath: make(map[string]error),
	}
}

var errUploadRefused = errors.New("upload refused")

func (m *mockUploader) Upload(_ context.Context, path string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failPath[path]; ok {
		return err
	}
	if m.failAfter > 0 && len(m.uploads) >= m.failAfter {
		return errUploadRefused
	}
	m.uploads = append(m.uploads, path)
	m.payloads[path] = payload
	return nil
}

func (m *mockUploader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func (m *mockUploader) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.uploads))
	copy(out, m.uploads)
	return out
}

// --- Mock Settings -----------------------------------------------------------

type mockSettings struct {
	mu     stdsync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newMockSettings() *mockSettings {
	return &mockSettings{values: make(map[string]string)}
}

func (m *mockSettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettings) failWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

func (m *mockSettings) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func (m *mockSettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockSettings) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}
