package clock

import (
	"testing"
	"time"
)

func TestActorFallback(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", UnknownActor},
		{"   ", UnknownActor},
		{" u1@x.com ", "u1@x.com"},
		{"evil\nx\r\ny", "evil x y"},
		{"\n\t", UnknownActor},
	}

	for _, tt := range tests {
		if got := Actor(tt.in); got != tt.want {
			t.Errorf("Actor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvIdentityOrder(t *testing.T) {
	t.Setenv("EVIDENCA_ACTOR", "env-user")

	if got := (EnvIdentity{Explicit: "flag-user", Default: "cfg"}).CurrentActor(); got != "flag-user" {
		t.Errorf("explicit should win, got %q", got)
	}
	if got := (EnvIdentity{Default: "cfg"}).CurrentActor(); got != "env-user" {
		t.Errorf("env should beat config, got %q", got)
	}

	t.Setenv("EVIDENCA_ACTOR", "")
	if got := (EnvIdentity{Default: "cfg"}).CurrentActor(); got != "cfg" {
		t.Errorf("config default expected, got %q", got)
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixed(start)

	c.Advance(36 * time.Hour)
	if !c.Now().Equal(start.Add(36 * time.Hour)) {
		t.Errorf("unexpected time %v", c.Now())
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("unexpected time after Set %v", c.Now())
	}
}
