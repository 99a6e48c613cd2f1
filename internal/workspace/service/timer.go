package service

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrTimerUsed = errors.New("deadline timer already started")

type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerStopped
	timerExpired
)

// DeadlineTimer counts down in whole seconds and fires its expiry callback at most once.
// A Stop observed before the expiring tick always wins, and no tick is delivered after
// Stop returns. onTick must not call Stop.
type DeadlineTimer struct {
	clock clockwork.Clock

	// tickMu is held while a tick is delivered; Stop takes it first.
	tickMu sync.Mutex

	mu        sync.Mutex
	state     timerState
	remaining int
	stopCh    chan struct{}
}

func NewDeadlineTimer(clock clockwork.Clock) *DeadlineTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DeadlineTimer{clock: clock}
}

// Start begins the countdown. onTick receives the remaining seconds after every tick;
// onExpire runs once when the countdown reaches zero. A timer can only be started once.
func (t *DeadlineTimer) Start(initialSeconds int, onTick func(remaining int), onExpire func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != timerIdle {
		return ErrTimerUsed
	}
	if initialSeconds < 0 {
		initialSeconds = 0
	}
	t.state = timerRunning
	t.remaining = initialSeconds
	t.stopCh = make(chan struct{})
	go t.loop(t.stopCh, onTick, onExpire)
	return nil
}

// Stop halts the countdown. It is idempotent and a no-op after expiry.
// It waits for a tick that is being delivered.
func (t *DeadlineTimer) Stop() {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != timerRunning {
		if t.state == timerIdle {
			t.state = timerStopped
		}
		return
	}
	t.state = timerStopped
	close(t.stopCh)
}

// Remaining returns the seconds left on the countdown.
func (t *DeadlineTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *DeadlineTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerRunning
}

// Expired reports whether the expiry callback has been fired.
func (t *DeadlineTimer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerExpired
}

func (t *DeadlineTimer) loop(stopCh chan struct{}, onTick func(int), onExpire func()) {
	next := t.clock.Now()
	for {
		next = next.Add(time.Second)
		timer := t.clock.NewTimer(next.Sub(t.clock.Now()))
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.Chan():
		}

		t.tickMu.Lock()
		t.mu.Lock()
		if t.state != timerRunning {
			t.mu.Unlock()
			t.tickMu.Unlock()
			return
		}
		if t.remaining > 0 {
			t.remaining--
		}
		remaining := t.remaining
		expired := remaining == 0
		if expired {
			t.state = timerExpired
		}
		t.mu.Unlock()

		if onTick != nil {
			onTick(remaining)
		}
		t.tickMu.Unlock()
		if expired {
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
