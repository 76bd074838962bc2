// Package provider abstracts model backends behind a single invocation
// interface, with an ordered failover chain on top.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single, stateless model invocation. Instructions carry the
// system prompt, Input the composed user turn.
type Request struct {
	Instructions string
	Input        string
}

// Response is the raw model output plus invocation metadata. Text is
// unprocessed model output; normalization happens downstream.
type Response struct {
	Text       string
	Provider   string
	FailedOver bool
}

// Invoker executes one model request.
type Invoker interface {
	// Name identifies the backing provider, e.g. "openai" or "gemini".
	Name() string
	Invoke(ctx context.Context, req Request) (Response, error)
}

// InvocationError reports that every provider in a chain failed. The fatal
// invocation path surfaces it unchanged so callers can tell model failure
// apart from parse failure.
type InvocationError struct {
	Attempts []AttemptError
}

// AttemptError records one provider's failure within a chain.
type AttemptError struct {
	Provider string
	Err      error
}

func (e *InvocationError) Error() string {
	if len(e.Attempts) == 0 {
		return "model invocation failed: no providers configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "model invocation failed on all providers: " + strings.Join(parts, "; ")
}

func (e *InvocationError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
