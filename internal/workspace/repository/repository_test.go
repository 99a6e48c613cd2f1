package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/workspace/model"
	"codearena/internal/workspace/repository"
	apperrors "codearena/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheCodeRepository(t *testing.T) {
	c, mr := newMiniCache(t)
	repo := repository.NewCacheCodeRepository(c)
	ctx := context.Background()

	if _, found, err := repo.Get(ctx, "code:p1:go"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}
	if err := repo.Set(ctx, "code:p1:go", "package main"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	text, found, err := repo.Get(ctx, "code:p1:go")
	if err != nil || !found || text != "package main" {
		t.Fatalf("unexpected get %q found=%v err=%v", text, found, err)
	}
	if ttl := mr.TTL("code:p1:go"); ttl != 0 {
		t.Fatalf("drafts must not expire, got ttl %v", ttl)
	}
}

func TestCacheCodeRepositoryFailures(t *testing.T) {
	c, mr := newMiniCache(t)
	repo := repository.NewCacheCodeRepository(c)
	ctx := context.Background()
	mr.Close()

	if _, _, err := repo.Get(ctx, "code:p1:go"); !apperrors.Is(err, apperrors.CacheError) {
		t.Fatalf("expected CacheError, got %v", err)
	}
	if err := repo.Set(ctx, "code:p1:go", "package main"); !apperrors.Is(err, apperrors.CacheSetFailed) {
		t.Fatalf("expected CacheSetFailed, got %v", err)
	}
}

func TestFileCodeRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts", "code.zst")
	repo := repository.NewFileCodeRepository(path)
	ctx := context.Background()

	if _, found, err := repo.Get(ctx, "code:p1:go"); err != nil || found {
		t.Fatalf("expected miss on empty store, found=%v err=%v", found, err)
	}
	if err := repo.Set(ctx, "code:p1:go", "package main"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := repo.Set(ctx, "code:p1:cpp", "int main() {}"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	reopened := repository.NewFileCodeRepository(path)
	text, found, err := reopened.Get(ctx, "code:p1:cpp")
	if err != nil || !found || text != "int main() {}" {
		t.Fatalf("unexpected get %q found=%v err=%v", text, found, err)
	}
	text, _, _ = reopened.Get(ctx, "code:p1:go")
	if text != "package main" {
		t.Fatalf("expected first key to survive, got %q", text)
	}

	if err := os.WriteFile(path, []byte("not zstd"), 0o600); err != nil {
		t.Fatalf("write corrupt file failed: %v", err)
	}
	if _, _, err := reopened.Get(ctx, "code:p1:go"); err == nil {
		t.Fatalf("expected error for corrupt store")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := reopened.Set(canceled, "k", "v"); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

type countingSource struct {
	calls   int
	problem model.Problem
	err     error
}

func (s *countingSource) GetProblem(ctx context.Context, problemID string) (model.Problem, error) {
	s.calls++
	if s.err != nil {
		return model.Problem{}, s.err
	}
	return s.problem, nil
}

func TestCachedProblemSource(t *testing.T) {
	c, _ := newMiniCache(t)
	source := &countingSource{problem: model.Problem{
		ID:                "p1",
		Title:             "Two Sum",
		FunctionSignature: map[string]string{"python": "def two_sum(nums, target):"},
	}}
	cached := repository.NewCachedProblemSource(source, c, time.Hour, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cached.GetProblem(ctx, "p1")
		if err != nil {
			t.Fatalf("get problem failed: %v", err)
		}
		if p.Template("python") != "def two_sum(nums, target):" {
			t.Fatalf("unexpected template %q", p.Template("python"))
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected one source call, got %d", source.calls)
	}
}

func TestCachedProblemSourceNotFound(t *testing.T) {
	c, _ := newMiniCache(t)
	source := &countingSource{err: apperrors.New(apperrors.ProblemNotFound)}
	cached := repository.NewCachedProblemSource(source, c, time.Hour, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.GetProblem(context.Background(), "missing")
		if !apperrors.Is(err, apperrors.ProblemNotFound) {
			t.Fatalf("expected ProblemNotFound, got %v", err)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected missing problem to be cached, got %d calls", source.calls)
	}
}

func TestCachedProblemSourcePropagatesErrors(t *testing.T) {
	c, _ := newMiniCache(t)
	boom := errors.New("judge down")
	cached := repository.NewCachedProblemSource(&countingSource{err: boom}, c, 0, 0)
	if _, err := cached.GetProblem(context.Background(), "p1"); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	direct := repository.NewCachedProblemSource(&countingSource{problem: model.Problem{ID: "p2"}}, nil, 0, 0)
	if p, err := direct.GetProblem(context.Background(), "p2"); err != nil || p.ID != "p2" {
		t.Fatalf("expected pass-through without cache, got %+v err=%v", p, err)
	}
}
