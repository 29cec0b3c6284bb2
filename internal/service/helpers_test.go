package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// fakeSecureStore хранит значения как JSON без шифрования.
type fakeSecureStore struct {
	mu          sync.Mutex
	data        map[string][]byte
	commitErr   error
	commits     int
	initialized bool
}

func newFakeSecureStore() *fakeSecureStore {
	return &fakeSecureStore{data: make(map[string][]byte), initialized: true}
}

func (f *fakeSecureStore) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	return nil
}

func (f *fakeSecureStore) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
}

func (f *fakeSecureStore) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeSecureStore) DeviceSecret() (string, error) {
	if !f.Initialized() {
		return "", ErrNotInitialized
	}
	return "fake-secret", nil
}

func (f *fakeSecureStore) Set(ctx context.Context, key string, value any) error {
	return f.Commit(ctx, PutChange(key, value))
}

func (f *fakeSecureStore) Get(_ context.Context, key string, target any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, target)
}

func (f *fakeSecureStore) Remove(ctx context.Context, key string) error {
	return f.Commit(ctx, RemoveChange(key))
}

func (f *fakeSecureStore) Has(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeSecureStore) ListKeys(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeSecureStore) Commit(_ context.Context, changes ...Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.commitErr != nil {
		return f.commitErr
	}

	encoded := make([][]byte, len(changes))
	for i, c := range changes {
		if c.Remove {
			continue
		}
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return err
		}
		encoded[i] = raw
	}

	for i, c := range changes {
		if c.Remove {
			delete(f.data, c.Key)
		} else {
			f.data[c.Key] = encoded[i]
		}
	}
	f.commits++
	return nil
}

func (f *fakeSecureStore) WithNamespace(string) (SecureStore, error) {
	return f, nil
}

func (f *fakeSecureStore) keysWithPrefix(prefix string) []string {
	keys, _ := f.ListKeys(context.Background())
	out := make([]string, 0)
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (f *fakeSecureStore) setCommitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErr = err
}

// sequentialIDs выдаёт предсказуемые идентификаторы q-1, q-2, ...
type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequentialIDs) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("q-%d", s.next)
}

// testClock возвращает фиксированное время, которое можно сдвигать.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
