// Package clock provides the time and identity sources consumed by the core.
package clock

import (
	"os"
	"os/user"
	"strings"
	"sync"
	"time"
)

// UnknownActor is reported when no identity is available.
const UnknownActor = "Unknown"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Identity reports who is performing the current action.
type Identity interface {
	CurrentActor() string
}

// System is the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Fixed is a settable clock for tests.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed returns a clock stopped at t.
func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

// Now returns the stored time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// StaticIdentity always reports the same actor.
type StaticIdentity string

// CurrentActor returns the actor, or UnknownActor when empty.
func (s StaticIdentity) CurrentActor() string {
	return Actor(string(s))
}

// EnvIdentity resolves the actor from, in order: an explicit value, the
// EVIDENCA_ACTOR environment variable, a configured default and the OS user.
type EnvIdentity struct {
	Explicit string
	Default  string
}

// CurrentActor implements Identity.
func (e EnvIdentity) CurrentActor() string {
	for _, candidate := range []string{e.Explicit, os.Getenv("EVIDENCA_ACTOR"), e.Default} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return UnknownActor
}

// Actor returns actor on a single line with runs of whitespace collapsed,
// or UnknownActor when blank.
func Actor(actor string) string {
	actor = strings.Join(strings.Fields(actor), " ")
	if actor == "" {
		return UnknownActor
	}
	return actor
}
