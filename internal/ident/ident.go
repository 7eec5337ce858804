// Package ident allocates short row identifiers.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// TokenLength is the length of generated identifiers.
const TokenLength = 8

// Allocator hands out short identifiers for rows that do not have one yet.
type Allocator struct {
	newToken func() string
}

// New returns an Allocator backed by random UUIDs.
func New() *Allocator {
	return &Allocator{newToken: func() string {
		return uuid.NewString()[:TokenLength]
	}}
}

// NewWithGenerator returns an Allocator using gen for new tokens.
func NewWithGenerator(gen func() string) *Allocator {
	return &Allocator{newToken: gen}
}

// Allocate returns existing unchanged when it is set and a fresh token
// otherwise. An assigned identifier is never replaced.
func (a *Allocator) Allocate(existing string) string {
	if strings.TrimSpace(existing) != "" {
		return existing
	}
	return a.newToken()
}

// Token returns a fresh token unconditionally.
func (a *Allocator) Token() string {
	return a.newToken()
}
