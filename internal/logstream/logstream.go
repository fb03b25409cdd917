// Package logstream fans formatted log lines out to live subscribers,
// with a bounded replay buffer so a new subscriber sees recent history.
// It backs the web UI's live log view.
package logstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultReplay is how many recent lines a new subscriber receives.
const DefaultReplay = 100

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls further behind than this loses lines rather than blocking
// the logger.
const subscriberBuffer = 64

// Broadcaster distributes log lines to subscribers. Safe for
// concurrent use.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan string]struct{}
	ring   []string
	replay int
}

// NewBroadcaster creates a broadcaster keeping up to replay lines for
// new subscribers. replay <= 0 uses DefaultReplay.
func NewBroadcaster(replay int) *Broadcaster {
	if replay <= 0 {
		replay = DefaultReplay
	}
	return &Broadcaster{
		subs:   make(map[chan string]struct{}),
		replay: replay,
	}
}

// Subscribe registers a new subscriber. The returned channel first
// yields the replay buffer, then live lines. cancel unregisters and
// closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer+b.replay)

	b.mu.Lock()
	for _, line := range b.ring {
		ch <- line
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish appends a line to the replay buffer and delivers it to all
// subscribers. Slow subscribers drop lines instead of blocking.
func (b *Broadcaster) Publish(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring = append(b.ring, line)
	if len(b.ring) > b.replay {
		b.ring = b.ring[len(b.ring)-b.replay:]
	}
	for ch := range b.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Handler is a slog.Handler that formats each record into a single
// line, publishes it to a Broadcaster, and forwards the record to the
// wrapped handler unchanged.
type Handler struct {
	next  slog.Handler
	b     *Broadcaster
	attrs []slog.Attr
	group string
}

// NewHandler wraps next so every record it accepts is also streamed
// through b.
func NewHandler(next slog.Handler, b *Broadcaster) *Handler {
	return &Handler{next: next, b: b}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.b.Publish(h.format(r))
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		next:  h.next.WithAttrs(attrs),
		b:     h.b,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
		group: h.group,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	g := name
	if h.group != "" {
		g = h.group + "." + name
	}
	return &Handler{next: h.next.WithGroup(name), b: h.b, attrs: h.attrs, group: g}
}

func (h *Handler) format(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s",
		r.Time.Format("15:04:05"),
		r.Level.String(),
		r.Message,
	)
	write := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	return b.String()
}
