package view

import (
	"sync"
	"time"
)

// TypingEmitter debounces the local participant's typing hint: a "typing"
// signal fires at most once per interval, and a "stopped typing" signal
// fires after the idle timeout. Signals are best-effort; the emit callback
// typically posts the fire-and-forget typing endpoint.
type TypingEmitter struct {
	mu       sync.Mutex
	emit     func(typing bool)
	interval time.Duration
	idle     time.Duration
	now      func() time.Time

	lastSent  time.Time
	typing    bool
	idleTimer *time.Timer
}

func NewTypingEmitter(interval, idle time.Duration, emit func(typing bool)) *TypingEmitter {
	return &TypingEmitter{
		emit:     emit,
		interval: interval,
		idle:     idle,
		now:      time.Now,
	}
}

// Keystroke signals local input activity.
func (t *TypingEmitter) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.typing || now.Sub(t.lastSent) >= t.interval {
		t.typing = true
		t.lastSent = now
		t.emit(true)
	}

	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(t.idle, t.stop)
}

// Stop immediately emits the stopped-typing signal if one is pending, e.g.
// when the participant submits.
func (t *TypingEmitter) Stop() {
	t.mu.Lock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	t.mu.Unlock()

	t.stop()
}

func (t *TypingEmitter) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		return
	}
	t.typing = false
	t.emit(false)
}
