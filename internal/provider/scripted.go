package provider

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays a fixed sequence of responses. It exists for tests and
// offline runs; each Invoke consumes the next queued reply.
type Scripted struct {
	name string

	mu      sync.Mutex
	replies []ScriptedReply
	calls   []Request
}

// ScriptedReply is one queued outcome. When Err is set the reply fails.
type ScriptedReply struct {
	Text string
	Err  error
}

// NewScripted creates a scripted invoker named name with the given replies.
func NewScripted(name string, replies ...ScriptedReply) *Scripted {
	if name == "" {
		name = "scripted"
	}
	return &Scripted{name: name, replies: replies}
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if len(s.replies) == 0 {
		return Response{}, fmt.Errorf("%s: script exhausted after %d calls", s.name, len(s.calls))
	}

	next := s.replies[0]
	s.replies = s.replies[1:]
	if next.Err != nil {
		return Response{}, next.Err
	}
	return Response{Text: next.Text, Provider: s.name}, nil
}

// Calls returns a copy of every request seen so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
