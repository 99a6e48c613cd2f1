package repository

import (
	"context"
	"sync"
	"time"

	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultDebounce     = 2 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// CodeStore buffers drafts in memory and writes each one through to a CodeRepository
// on the trailing edge of a debounce window. Only the newest text of a key is written.
type CodeStore struct {
	repo     CodeRepository
	clock    clockwork.Clock
	debounce time.Duration

	mu     sync.Mutex
	drafts map[string]*draft

	// writeMu orders repository writes so an older text never lands after a newer one.
	writeMu sync.Mutex
}

// draft is a pending, not yet persisted text.
type draft struct {
	text   string
	gen    uint64
	timer  clockwork.Timer
	cancel chan struct{}
}

// CodeStoreOption customizes a CodeStore.
type CodeStoreOption func(*CodeStore)

// WithClock injects the clock that drives the debounce.
func WithClock(clock clockwork.Clock) CodeStoreOption {
	return func(s *CodeStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) CodeStoreOption {
	return func(s *CodeStore) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func NewCodeStore(repo CodeRepository, opts ...CodeStoreOption) *CodeStore {
	s := &CodeStore{
		repo:     repo,
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		drafts:   make(map[string]*draft),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current text of a draft. Pending text wins over the durable copy.
func (s *CodeStore) Load(ctx context.Context, problemID, language string) (string, bool, error) {
	key := CodeKey(problemID, language)
	s.mu.Lock()
	if d, ok := s.drafts[key]; ok {
		text := d.text
		s.mu.Unlock()
		return text, true, nil
	}
	s.mu.Unlock()

	text, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, apperrors.Wrapf(err, apperrors.CodeLoadFailed, "load code %s failed", key)
	}
	return text, found, nil
}

// SetCode replaces the buffered text and re-arms the debounce. Empty text is ignored.
func (s *CodeStore) SetCode(problemID, language, text string) {
	if text == "" {
		return
	}
	key := CodeKey(problemID, language)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[key]
	if !ok {
		d = &draft{}
		s.drafts[key] = d
	}
	d.text = text
	s.arm(key, d)
}

// Flush cancels the pending debounce and writes the pending text now.
// On failure the text stays pending.
func (s *CodeStore) Flush(ctx context.Context, problemID, language string) error {
	return s.flush(ctx, CodeKey(problemID, language))
}

// FlushAll writes every pending draft and returns the first failure.
func (s *CodeStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.drafts))
	for key := range s.drafts {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := s.flush(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *CodeStore) flush(ctx context.Context, key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	d, ok := s.drafts[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.disarm(d)
	gen, text := d.gen, d.text
	s.mu.Unlock()

	if err := s.repo.Set(ctx, key, text); err != nil {
		return apperrors.Wrapf(err, apperrors.CodePersistFailed, "persist code %s failed", key)
	}
	s.settle(key, d, gen)
	return nil
}

// Discard drops the pending text without writing it.
func (s *CodeStore) Discard(problemID, language string) {
	key := CodeKey(problemID, language)
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[key]; ok {
		s.disarm(d)
		delete(s.drafts, key)
	}
}

// Pending reports whether a draft has text that is not yet durable.
func (s *CodeStore) Pending(problemID, language string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drafts[CodeKey(problemID, language)]
	return ok
}

// arm must be called with s.mu held.
func (s *CodeStore) arm(key string, d *draft) {
	s.disarm(d)
	gen := d.gen
	timer := s.clock.NewTimer(s.debounce)
	cancel := make(chan struct{})
	d.timer, d.cancel = timer, cancel
	go func() {
		select {
		case <-timer.Chan():
			s.fire(key, gen)
		case <-cancel:
		}
	}()
}

// disarm must be called with s.mu held. It invalidates any timer already in flight.
func (s *CodeStore) disarm(d *draft) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		close(d.cancel)
		d.cancel = nil
	}
	d.gen++
}

func (s *CodeStore) fire(key string, gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	d, ok := s.drafts[key]
	if !ok || d.gen != gen {
		s.mu.Unlock()
		return
	}
	d.timer, d.cancel = nil, nil
	text := d.text
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	if err := s.repo.Set(ctx, key, text); err != nil {
		logger.Warn(ctx, "persist code draft failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.settle(key, d, gen)
}

// settle forgets a draft once the written text is still the newest one.
func (s *CodeStore) settle(key string, d *draft, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.drafts[key]; ok && cur == d && d.gen == gen {
		delete(s.drafts, key)
	}
}
