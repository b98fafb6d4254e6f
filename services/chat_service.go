package services

import (
	"context"
	"errors"
	"io"

	"github/itish2003/pdfchat/llm"
	"github/itish2003/pdfchat/models"

	"github.com/apex/log"
)

// ErrNoContext is returned when a chat is requested before any PDF was loaded.
var ErrNoContext = errors.New("no PDF context loaded")

// UpstreamError wraps any failure reported by the LLM provider, whether the
// stream could not be opened or broke part way through.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// ChatService answers questions about the loaded document.
type ChatService interface {
	OpenStream(ctx context.Context, req models.ChatStreamRequest) (*EventStream, error)
}

type chatServiceImpl struct {
	store    *ContextStore
	provider llm.Provider
}

func NewChatService(store *ContextStore, provider llm.Provider) ChatService {
	return &chatServiceImpl{
		store:    store,
		provider: provider,
	}
}

// OpenStream snapshots the document text into the system prompt and returns a
// stream that has not contacted the provider yet. It fails with ErrNoContext
// when nothing has been loaded.
func (c *chatServiceImpl) OpenStream(ctx context.Context, req models.ChatStreamRequest) (*EventStream, error) {
	text := c.store.Get()
	if text == "" {
		return nil, ErrNoContext
	}

	logger := log.WithFields(log.Fields{
		"provider":        c.provider.Name(),
		"model":           c.provider.Model(),
		"conversation_id": req.ConversationID,
		"request_id":      req.RequestID,
	})
	logger.Infof("Received question: %s", req.Message)

	return &EventStream{
		provider: c.provider,
		request: llm.Request{
			Model:  c.provider.Model(),
			System: GetSystemPrompt(text),
			User:   req.Message,
		},
		logger: logger,
	}, nil
}

type StreamState int

const (
	StatePending StreamState = iota
	StateStreaming
	StateCompleted
	StateDisconnected
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventStream lazily produces the events of one chat answer. Each call to Next
// pulls from the provider until it has an event to return, checking ctx after
// every upstream fragment. A cancelled ctx ends the stream silently.
//
// An EventStream is not safe for concurrent use.
type EventStream struct {
	provider llm.Provider
	request  llm.Request
	upstream llm.Stream
	state    StreamState
	events   int
	logger   log.Interface
}

// Request returns the exact request sent (or to be sent) upstream.
func (s *EventStream) Request() llm.Request { return s.request }

func (s *EventStream) State() StreamState { return s.state }

// Next returns the next event, or false once the stream has ended. After a
// done or error event, Next always returns false.
func (s *EventStream) Next(ctx context.Context) (models.StreamEvent, bool) {
	if s.state != StatePending && s.state != StateStreaming {
		return models.StreamEvent{}, false
	}

	if s.upstream == nil {
		if ctx.Err() != nil {
			return s.disconnected()
		}
		upstream, err := s.provider.Stream(ctx, s.request)
		if err != nil {
			if ctx.Err() != nil {
				return s.disconnected()
			}
			return s.fail(err)
		}
		s.upstream = upstream
		s.state = StateStreaming
	}

	for {
		fragment, err := s.upstream.Recv()
		if ctx.Err() != nil {
			return s.disconnected()
		}
		if errors.Is(err, io.EOF) {
			s.finish(StateCompleted)
			s.logger.WithField("events", s.events).Info("Stream completed")
			return models.DoneEvent(), true
		}
		if err != nil {
			return s.fail(err)
		}
		if fragment == "" {
			continue
		}
		s.events++
		return models.ContentEvent(fragment), true
	}
}

// Close releases the upstream stream. It is safe to call more than once.
func (s *EventStream) Close() error {
	if s.upstream == nil {
		return nil
	}
	err := s.upstream.Close()
	s.upstream = nil
	return err
}

func (s *EventStream) disconnected() (models.StreamEvent, bool) {
	s.finish(StateDisconnected)
	s.logger.WithField("events", s.events).Warn("Client disconnected, stopping stream")
	return models.StreamEvent{}, false
}

func (s *EventStream) fail(err error) (models.StreamEvent, bool) {
	s.finish(StateFailed)
	upErr := &UpstreamError{Provider: s.provider.Name(), Err: err}
	s.logger.WithError(upErr).Error("Error in chat stream")
	return models.ErrorEvent(upErr.Error()), true
}

func (s *EventStream) finish(state StreamState) {
	s.state = state
	if err := s.Close(); err != nil {
		s.logger.WithError(err).Debug("closing upstream stream")
	}
}
