// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"io"
	"sync"

	"github/itish2003/pdfchat/llm"
)

// Provider replays Fragments on every stream it opens and records each request.
// After the fragments, Recv returns StreamErr, or io.EOF when StreamErr is nil.
// OpenErr, when set, makes Stream fail before any fragment is produced.
type Provider struct {
	Fragments []string
	StreamErr error
	OpenErr   error

	// OnRecv, if set, runs before each fragment is handed out with the
	// fragment's zero-based index.
	OnRecv func(i int)

	mu       sync.Mutex
	requests []llm.Request
	received int
	closed   int
}

func (p *Provider) Name() string  { return "fake" }
func (p *Provider) Model() string { return "fake-model" }

func (p *Provider) Stream(_ context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	return &stream{p: p}, nil
}

// Requests returns every request passed to Stream, in order.
func (p *Provider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.requests...)
}

// Received is the number of fragments handed out across all streams.
func (p *Provider) Received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// Closed is the number of streams that were closed.
func (p *Provider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type stream struct {
	p    *Provider
	next int
}

func (s *stream) Recv() (string, error) {
	if s.next >= len(s.p.Fragments) {
		if s.p.StreamErr != nil {
			return "", s.p.StreamErr
		}
		return "", io.EOF
	}
	i := s.next
	s.next++
	if s.p.OnRecv != nil {
		s.p.OnRecv(i)
	}
	s.p.mu.Lock()
	s.p.received++
	s.p.mu.Unlock()
	return s.p.Fragments[i], nil
}

func (s *stream) Close() error {
	s.p.mu.Lock()
	s.p.closed++
	s.p.mu.Unlock()
	return nil
}
