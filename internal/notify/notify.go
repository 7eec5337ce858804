// Package notify is the thin presentation layer: toasts, confirmation
// prompts and the transient cell flash.
package notify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrNotConfirmed is returned by destructive operations the user declined.
var ErrNotConfirmed = errors.New("operation not confirmed")

// Notifier shows a short non-blocking message.
type Notifier interface {
	Notify(message, title string, seconds int)
}

// Confirmer asks a yes/no question. Only destructive operations use it.
type Confirmer interface {
	Confirm(title, prompt string) bool
}

// Flasher briefly highlights a location to acknowledge a change.
type Flasher interface {
	Flash(ctx context.Context, location, color string) error
}

// Console writes notifications to a writer and reads confirmations from a
// reader. With AssumeYes set every confirmation is granted without a prompt.
type Console struct {
	mu        sync.Mutex
	out       io.Writer
	in        *bufio.Reader
	AssumeYes bool
	// FlashDuration is how long a flash blocks the caller.
	FlashDuration time.Duration
}

// NewConsole returns a console presenter.
func NewConsole(out io.Writer, in io.Reader) *Console {
	c := &Console{out: out}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// Notify implements Notifier.
func (c *Console) Notify(message, title string, seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if title != "" {
		fmt.Fprintf(c.out, "%s: %s\n", title, message)
		return
	}
	fmt.Fprintln(c.out, message)
}

// Confirm implements Confirmer. Anything other than y or yes is a refusal.
func (c *Console) Confirm(title, prompt string) bool {
	if c.AssumeYes {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in == nil {
		return false
	}

	fmt.Fprintf(c.out, "%s\n%s [y/N]: ", title, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Flash implements Flasher by pausing for FlashDuration.
func (c *Console) Flash(ctx context.Context, location, color string) error {
	if c.FlashDuration <= 0 {
		return nil
	}
	t := time.NewTimer(c.FlashDuration)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards notifications, refuses confirmations and flashes instantly.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(string, string, int) {}

// Confirm implements Confirmer.
func (Nop) Confirm(string, string) bool { return false }

// Flash implements Flasher.
func (Nop) Flash(context.Context, string, string) error { return nil }

// Answer is a Confirmer with a fixed answer.
type Answer bool

// Confirm implements Confirmer.
func (a Answer) Confirm(string, string) bool { return bool(a) }
