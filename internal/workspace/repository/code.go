// Package repository holds the durable side of a workspace: code drafts and problem statements.
package repository

import (
	"context"
	"time"

	"codearena/internal/common/cache"
	apperrors "codearena/pkg/errors"
)

const codeKeyPrefix = "code:"

// CodeRepository is durable key-value storage for code drafts.
// Get reports found=false for a missing key.
type CodeRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CodeKey is the persistence key of a draft: code:{problemId}:{language}.
func CodeKey(problemID, language string) string {
	return codeKeyPrefix + problemID + ":" + language
}

// CacheCodeRepository stores drafts in the shared cache without expiry.
type CacheCodeRepository struct {
	cache cache.Cache
}

func NewCacheCodeRepository(cacheClient cache.Cache) *CacheCodeRepository {
	return &CacheCodeRepository{cache: cacheClient}
}

func (r *CacheCodeRepository) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.cache.Get(ctx, key)
	if err != nil {
		return "", false, apperrors.Wrapf(err, apperrors.CacheError, "get %s: %v", key, err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (r *CacheCodeRepository) Set(ctx context.Context, key, value string) error {
	if err := r.cache.Set(ctx, key, value, time.Duration(0)); err != nil {
		return apperrors.Wrapf(err, apperrors.CacheSetFailed, "set %s: %v", key, err)
	}
	return nil
}
