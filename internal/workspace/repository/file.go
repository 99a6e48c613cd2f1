package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FileCodeRepository keeps every draft in one zstd-compressed JSON document on local disk.
type FileCodeRepository struct {
	path string

	mu sync.Mutex
}

func NewFileCodeRepository(path string) *FileCodeRepository {
	return &FileCodeRepository{path: path}
}

func (r *FileCodeRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.load()
	if err != nil {
		return "", false, err
	}
	value, ok := drafts[key]
	return value, ok, nil
}

func (r *FileCodeRepository) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts, err := r.load()
	if err != nil {
		return err
	}
	drafts[key] = value
	return r.save(drafts)
}

func (r *FileCodeRepository) load() (map[string]string, error) {
	drafts := make(map[string]string)
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return drafts, nil
		}
		return nil, fmt.Errorf("read draft store failed: %w", err)
	}
	if len(data) == 0 {
		return drafts, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder failed: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress draft store failed: %w", err)
	}
	if err := json.Unmarshal(raw, &drafts); err != nil {
		return nil, fmt.Errorf("parse draft store failed: %w", err)
	}
	return drafts, nil
}

func (r *FileCodeRepository) save(drafts map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create draft store dir failed: %w", err)
	}
	raw, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("marshal draft store failed: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder failed: %w", err)
	}
	data := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write draft store failed: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace draft store failed: %w", err)
	}
	return nil
}
