// Package domain provides the core building blocks shared by every bounded
// context in the workflow engine: identifiers, timestamps, error kinds, and
// the in-process domain event system.
package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// NanoID — URL-safe identifiers for executions and step results
// ---------------------------------------------------------------------------

// nanoIDAlphabet is the URL-safe alphabet NanoIDs are drawn from.
const nanoIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// DefaultNanoIDLength is the length used for execution and step-result IDs.
const DefaultNanoIDLength = 21

// NanoID is a URL-safe identifier over [A-Za-z0-9_-], length 1-100.
type NanoID string

// String implements fmt.Stringer.
func (id NanoID) String() string { return string(id) }

// IsZero returns true if the ID is empty.
func (id NanoID) IsZero() bool { return id == "" }

// NewNanoID generates a cryptographically random NanoID of the given length.
// Entropy failure is unrecoverable, so it panics rather than returning an
// error every caller would have to re-panic on.
func NewNanoID(length int) NanoID {
	if length <= 0 {
		length = DefaultNanoIDLength
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		panic(fmt.Sprintf("domain: failed to generate nanoid: %v", err))
	}
	out := make([]byte, length)
	for i, v := range raw {
		out[i] = nanoIDAlphabet[int(v)%len(nanoIDAlphabet)]
	}
	return NanoID(out)
}

// NewExecutionID mints a 21-character NanoID for a WorkflowExecution.
func NewExecutionID() NanoID { return NewNanoID(DefaultNanoIDLength) }

// NewResultID mints a NanoID for an ExecutionStepResult.
func NewResultID() NanoID { return NewNanoID(DefaultNanoIDLength) }

// ---------------------------------------------------------------------------
// Timestamp value object
// ---------------------------------------------------------------------------

// Timestamp wraps time.Time with JSON-friendly serialization and domain semantics.
type Timestamp struct {
	time.Time
}

// Now returns the current UTC timestamp.
func Now() Timestamp { return Timestamp{time.Now().UTC()} }

// ZeroTime returns the zero-value timestamp.
func ZeroTime() Timestamp { return Timestamp{} }

// TimestampFrom wraps an existing time.Time.
func TimestampFrom(t time.Time) Timestamp { return Timestamp{t.UTC()} }

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool { return t.Time.IsZero() }
