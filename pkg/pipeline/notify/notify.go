// Package notify delivers transient user notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Error   Level = "error"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 1500 * time.Millisecond

type Notification struct {
	Message string
	Level   Level
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lvl := slog.LevelInfo
	if n.Level == Error {
		lvl = slog.LevelError
	}

	logger.Log(context.Background(), lvl, n.Message, slog.String("kind", string(n.Level)))
}

// Board keeps the notification currently on screen. A new notification replaces the
// current one and each notification is dismissed after the TTL.
type Board struct {
	mu      sync.Mutex
	current *Notification
	gen     uint64
	timer   *time.Timer
	ttl     time.Duration
	next    Notifier
}

type BoardOption func(*Board)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) BoardOption {
	return func(b *Board) {
		b.ttl = ttl
	}
}

// WithForward passes every notification on to next as well.
func WithForward(next Notifier) BoardOption {
	return func(b *Board) {
		b.next = next
	}
}

func NewBoard(opts ...BoardOption) *Board {
	b := &Board{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Board) Notify(n Notification) {
	b.mu.Lock()

	if b.timer != nil {
		b.timer.Stop()
	}

	b.gen++
	gen := b.gen
	b.current = &n
	b.timer = time.AfterFunc(b.ttl, func() {
		b.dismiss(gen)
	})
	b.mu.Unlock()

	if b.next != nil {
		b.next.Notify(n)
	}
}

func (b *Board) dismiss(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}

	b.current = nil
	b.timer = nil
}

// Current returns the notification on screen, if any.
func (b *Board) Current() (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return Notification{}, false
	}

	return *b.current, true
}

// Close dismisses the current notification and stops its timer.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}

	b.gen++
	b.current = nil
	b.timer = nil
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification{}, r.sent...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sent) == 0 {
		return Notification{}, false
	}

	return r.sent[len(r.sent)-1], true
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = (*Board)(nil)
	_ Notifier = (*Recorder)(nil)
)
