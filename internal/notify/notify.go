// Package notify delivers transient, user-facing messages (the storefront's toasts).
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindOutOfStock     Kind = "out_of_stock"
	KindAdditionFailed Kind = "addition_failed"
	KindRemovalFailed  Kind = "removal_failed"
	KindUpdateFailed   Kind = "update_failed"
)

// Notification is plain text for the shopper. Kind exists for routing, not for display.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Log writes notifications as warnings.
type Log struct {
	log *logrus.Entry
}

func NewLog(log *logrus.Entry) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, n Notification) {
	l.log.WithField("kind", n.Kind).Warn(n.Message)
}

// Buffer keeps the most recent notifications until a reader drains them.
type Buffer struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

const DefaultBufferSize = 20

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultBufferSize
	}
	return &Buffer{limit: limit}
}

func (b *Buffer) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == b.limit {
		b.items = append(b.items[:0], b.items[1:]...)
	}
	b.items = append(b.items, n)
}

// Drain returns buffered notifications oldest first and empties the buffer.
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	b.items = b.items[:0]
	return out
}

type multi []Notifier

// Multi fans a notification out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}
