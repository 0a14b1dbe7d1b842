package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// SentMessage is one message captured by FakeSender.
type SentMessage struct {
	Channel string
	Text    string
}

// FakeSender records outbound chat messages. Set Err to make sends fail.
type FakeSender struct {
	mu       sync.Mutex
	messages []SentMessage
	attempts int
	err      error
}

// Send records the message, or returns the configured error.
func (f *FakeSender) Send(ctx context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, SentMessage{Channel: channel, Text: text})
	return nil
}

// SetErr makes subsequent sends fail with err (nil restores success).
func (f *FakeSender) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Messages returns a copy of every successful send.
func (f *FakeSender) Messages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.messages...)
}

// Attempts counts every Send call, failed ones included.
func (f *FakeSender) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Last returns the most recent successful send text, or "".
func (f *FakeSender) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].Text
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
