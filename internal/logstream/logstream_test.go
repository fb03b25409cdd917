package logstream

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func drain(ch <-chan string) []string {
	var out []string
	for {
		select {
		case line := <-ch:
			out = append(out, line)
		default:
			return out
		}
	}
}

func TestSubscribeReceivesReplayThenLive(t *testing.T) {
	b := NewBroadcaster(10)
	b.Publish("one")
	b.Publish("two")

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish("three")

	got := drain(ch)
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReplayBufferBounded(t *testing.T) {
	b := NewBroadcaster(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		b.Publish(line)
	}

	ch, cancel := b.Subscribe()
	defer cancel()

	got := drain(ch)
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroadcaster(10)
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // second call is a no-op

	b.Publish("after cancel")
	if _, ok := <-ch; ok {
		t.Error("channel still delivering after cancel")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(1)
	_, cancel := b.Subscribe()
	defer cancel()

	// Far more lines than the subscriber buffer holds; Publish must not
	// block even though nobody is reading.
	for i := 0; i < subscriberBuffer*3; i++ {
		b.Publish("line")
	}
}

func TestHandlerPublishesAndForwards(t *testing.T) {
	b := NewBroadcaster(10)
	var buf bytes.Buffer
	next := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewHandler(next, b))

	ch, cancel := b.Subscribe()
	defer cancel()

	logger.Info("tool executed", "tool", "create_visit")

	got := drain(ch)
	if len(got) != 1 {
		t.Fatalf("published %d lines, want 1", len(got))
	}
	if !strings.Contains(got[0], "tool executed") || !strings.Contains(got[0], "tool=create_visit") {
		t.Errorf("line = %q", got[0])
	}
	if !strings.Contains(buf.String(), "tool executed") {
		t.Error("record not forwarded to the wrapped handler")
	}
}

func TestHandlerWithAttrs(t *testing.T) {
	b := NewBroadcaster(10)
	next := slog.NewTextHandler(io.Discard, nil)
	logger := slog.New(NewHandler(next, b)).With("session", "abc")

	ch, cancel := b.Subscribe()
	defer cancel()

	logger.Info("turn started")

	got := drain(ch)
	if len(got) != 1 {
		t.Fatalf("published %d lines, want 1", len(got))
	}
	if !strings.Contains(got[0], "session=abc") {
		t.Errorf("line = %q, want bound attr included", got[0])
	}
}
