package repository

import (
	"context"
	"encoding/json"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/workspace/model"
	apperrors "codearena/pkg/errors"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = time.Minute
	problemKeyPrefix       = "problem:"
)

// ProblemSource fetches a problem statement from its owner.
// A missing problem is reported with the ProblemNotFound code.
type ProblemSource interface {
	GetProblem(ctx context.Context, problemID string) (model.Problem, error)
}

// CachedProblemSource puts a cache-aside layer in front of a ProblemSource.
// Missing problems are cached briefly so repeated opens do not hammer the source.
type CachedProblemSource struct {
	source   ProblemSource
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewCachedProblemSource(source ProblemSource, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *CachedProblemSource {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemEmptyTTL
	}
	return &CachedProblemSource{source: source, cache: cacheClient, ttl: ttl, emptyTTL: emptyTTL}
}

func (s *CachedProblemSource) GetProblem(ctx context.Context, problemID string) (model.Problem, error) {
	if s.cache == nil {
		return s.source.GetProblem(ctx, problemID)
	}
	problem, err := cache.GetWithCached[model.Problem](
		ctx,
		s.cache,
		problemKeyPrefix+problemID,
		cache.JitterTTL(s.ttl),
		cache.JitterTTL(s.emptyTTL),
		func(p model.Problem) bool { return p.ID == "" && p.Title == "" },
		marshalProblem,
		unmarshalProblem,
		func(ctx context.Context) (model.Problem, error) {
			p, err := s.source.GetProblem(ctx, problemID)
			if err != nil {
				if apperrors.Is(err, apperrors.ProblemNotFound) {
					return model.Problem{}, nil
				}
				return model.Problem{}, err
			}
			return p, nil
		},
	)
	if err != nil {
		return model.Problem{}, err
	}
	if problem.ID == "" && problem.Title == "" {
		return model.Problem{}, apperrors.Newf(apperrors.ProblemNotFound, "problem %s not found", problemID)
	}
	return problem, nil
}

func marshalProblem(p model.Problem) string {
	payload, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblem(data string) (model.Problem, error) {
	if data == "" {
		return model.Problem{}, nil
	}
	var p model.Problem
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.Problem{}, err
	}
	return p, nil
}
