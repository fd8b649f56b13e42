package kvstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File keeps every namespace in one JSON document. The document on disk is
// the source of truth: each call reads it under the lock and each mutation
// rewrites it, so separate File values over one path (a server and the
// operator CLI) see each other's changes.
type File struct {
	path string

	mu sync.Mutex
}

func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("client state file path is required")
	}

	f := &File{path: path}
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Get(ns, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[ns][key]
	return v, ok, nil
}

func (f *File) Set(ns, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	bucket, ok := data[ns]
	if !ok {
		bucket = make(map[string]string)
		data[ns] = bucket
	}
	bucket[key] = value
	return f.persist(data)
}

func (f *File) Delete(ns string, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	bucket, ok := data[ns]
	if !ok {
		return nil
	}
	dirty := false
	for _, k := range keys {
		if _, ok := bucket[k]; ok {
			delete(bucket, k)
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	if len(bucket) == 0 {
		delete(data, ns)
	}
	return f.persist(data)
}

func (f *File) Keys(ns string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(data[ns]))
	for k := range data[ns] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (f *File) Clear(ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[ns]; !ok {
		return nil
	}
	delete(data, ns)
	return f.persist(data)
}

func (f *File) load() (map[string]map[string]string, error) {
	data := make(map[string]map[string]string)
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("read client state file: %w", err)
	}
	if len(b) == 0 {
		return data, nil
	}
	decoded := make(map[string]map[string]string)
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, fmt.Errorf("decode client state file: %w", err)
	}
	for ns, bucket := range decoded {
		if strings.TrimSpace(ns) == "" || len(bucket) == 0 {
			continue
		}
		data[ns] = bucket
	}
	return data, nil
}

// persist writes a sibling temp file and renames it over the state file, so
// readers see either the old document or the new one.
func (f *File) persist(data map[string]map[string]string) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode client state file: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir client state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create client state temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write client state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync client state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close client state file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace client state file: %w", err)
	}
	return nil
}
