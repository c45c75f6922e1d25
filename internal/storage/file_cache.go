package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/bizfeed/internal/cache"
)

// fileEntry is one cached value on disk.
type fileEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// FileStore keeps cache entries in a single JSON file, rewritten on every put.
type FileStore struct {
	filePath string
	items    map[string]fileEntry
	mu       sync.RWMutex
	now      func() time.Time
}

var _ cache.Store = (*FileStore)(nil)

// NewFileStore opens (or starts) the cache file at filePath.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		items:    make(map[string]fileEntry),
		now:      time.Now,
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// load reads the file, dropping entries that have already expired.
func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	now := fs.now()
	for _, e := range entries {
		if e.ExpiresAt.After(now) {
			fs.items[e.Key] = e
		}
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	e, ok := fs.items[key]
	if !ok || !e.ExpiresAt.After(fs.now()) {
		return nil, false, nil
	}
	return []byte(e.Value), true, nil
}

// Put stores value, which must be valid JSON, and persists the file.
func (fs *FileStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("file cache %s: value is not JSON", key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.items[key] = fileEntry{
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		ExpiresAt: fs.now().Add(ttl),
	}
	return fs.save()
}

func (fs *FileStore) Purge(context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now()
	removed := 0
	for key, e := range fs.items {
		if !e.ExpiresAt.After(now) {
			delete(fs.items, key)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, fs.save()
}

// GetStats returns cache statistics.
func (fs *FileStore) GetStats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return map[string]int{
		"total_items": len(fs.items),
	}
}

// save writes the whole map atomically. Callers hold the lock.
func (fs *FileStore) save() error {
	entries := make([]fileEntry, 0, len(fs.items))
	for _, e := range fs.items {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), ".cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}
