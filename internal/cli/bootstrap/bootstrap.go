// Package bootstrap wires the session controller from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"codearena/internal/cli/config"
	"codearena/internal/common/cache"
	"codearena/internal/common/mq"
	"codearena/internal/workspace/judgeclient"
	"codearena/internal/workspace/notify"
	"codearena/internal/workspace/repository"
	"codearena/internal/workspace/service"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Runtime owns the controller and everything it was built on.
type Runtime struct {
	Controller *service.SessionController
	Judge      *judgeclient.Client
	Codes      *repository.CodeStore

	closers []func() error
}

// Build connects storage and notifications and returns a ready controller.
// Anything opened before a failure is closed again.
func Build(ctx context.Context, cfg config.Config, tokenProvider func() string, observer service.Observer) (_ *Runtime, err error) {
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.closeAll()
		}
	}()

	rt.Judge = judgeclient.New(cfg.Judge.BaseURL, cfg.Judge.Timeout, tokenProvider)

	repo, problems, err := rt.buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	channel, err := rt.buildChannel(ctx, cfg.Notify)
	if err != nil {
		return nil, err
	}

	rt.Codes = repository.NewCodeStore(repo, repository.WithDebounce(cfg.Storage.Debounce))
	rt.Controller, err = service.NewSessionController(service.Dependencies{
		Judge:         rt.Judge,
		Problems:      problems,
		Codes:         rt.Codes,
		Channel:       channel,
		Observer:      observer,
		RedirectDelay: cfg.Session.RedirectDelay,
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "arena runtime ready",
		zap.String("judge", cfg.Judge.BaseURL),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("notify", cfg.Notify.Driver),
	)
	return rt, nil
}

func (rt *Runtime) buildStorage(cfg config.Config) (repository.CodeRepository, service.ProblemSource, error) {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Addr = cfg.Storage.Redis.Addr
		redisCfg.Password = cfg.Storage.Redis.Password
		redisCfg.DB = cfg.Storage.Redis.DB
		redisCache, err := cache.NewRedisCacheWithConfig(redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis failed: %w", err)
		}
		rt.closers = append(rt.closers, redisCache.Close)
		problems := repository.NewCachedProblemSource(rt.Judge, redisCache, cfg.Problems.CacheTTL, cfg.Problems.EmptyTTL)
		return repository.NewCacheCodeRepository(redisCache), problems, nil
	case config.StorageFile:
		local := cache.NewLRUCache(cfg.Problems.LocalSize, nil)
		rt.closers = append(rt.closers, local.Close)
		problems := repository.NewCachedProblemSource(rt.Judge, local, cfg.Problems.CacheTTL, cfg.Problems.EmptyTTL)
		return repository.NewFileCodeRepository(cfg.Storage.FilePath), problems, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func (rt *Runtime) buildChannel(ctx context.Context, cfg config.NotifyConfig) (notify.Channel, error) {
	var channel notify.Channel
	switch cfg.Driver {
	case config.NotifyMemory:
		channel = notify.NewMemoryHub()
	case config.NotifyWebSocket:
		ws, err := notify.DialWebSocket(ctx, notify.WebSocketConfig{URL: cfg.WebSocketURL})
		if err != nil {
			return nil, fmt.Errorf("dial relay failed: %w", err)
		}
		channel = ws
	case config.NotifyKafka:
		queue, err := mq.NewKafkaQueue(mq.KafkaConfig{Brokers: cfg.Brokers, ClientID: "codearena"})
		if err != nil {
			return nil, fmt.Errorf("create kafka queue failed: %w", err)
		}
		if err := queue.Start(); err != nil {
			_ = queue.Close()
			return nil, fmt.Errorf("start kafka queue failed: %w", err)
		}
		kc, err := notify.NewKafkaChannel(queue, notify.KafkaChannelConfig{
			Topic:       cfg.Topic,
			GroupPrefix: cfg.GroupPrefix,
			EventTTL:    cfg.EventTTL,
		})
		if err != nil {
			_ = queue.Close()
			return nil, err
		}
		channel = kc
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
	rt.closers = append(rt.closers, channel.Close)
	return channel, nil
}

// Close shuts every session down, writes outstanding drafts and releases connections.
func (rt *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if rt.Controller != nil {
		firstErr = rt.Controller.Shutdown(ctx)
	}
	if rt.Codes != nil {
		if err := rt.Codes.FlushAll(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := rt.closeAll(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (rt *Runtime) closeAll() error {
	var firstErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rt.closers = nil
	return firstErr
}
