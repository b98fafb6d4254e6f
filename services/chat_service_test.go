package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github/itish2003/pdfchat/llm/llmtest"
	"github/itish2003/pdfchat/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ctx context.Context, s *EventStream) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	for {
		ev, ok := s.Next(ctx)
		if !ok {
			return events
		}
		events = append(events, ev)
		require.Less(t, len(events), 100, "stream did not terminate")
	}
}

func loadedStore(text string) *ContextStore {
	store := NewContextStore()
	store.Set(text)
	return store
}

func TestOpenStream_NoContext(t *testing.T) {
	provider := &llmtest.Provider{Fragments: []string{"never"}}
	svc := NewChatService(NewContextStore(), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "hi"})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNoContext)
	assert.Empty(t, provider.Requests())
}

func TestEventStream_ContentThenDone(t *testing.T) {
	provider := &llmtest.Provider{Fragments: []string{"The ", "", "answer", " is 42."}}
	svc := NewChatService(loadedStore("some document"), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "What is the answer?"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, StatePending, s.State())
	assert.Empty(t, provider.Requests(), "provider must not be contacted before the first Next")

	events := collect(t, context.Background(), s)
	assert.Equal(t, []models.StreamEvent{
		models.ContentEvent("The "),
		models.ContentEvent("answer"),
		models.ContentEvent(" is 42."),
		models.DoneEvent(),
	}, events)
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 1, provider.Closed())

	_, ok := s.Next(context.Background())
	assert.False(t, ok, "no event may follow done")
}

func TestEventStream_SendsExactlyTwoMessages(t *testing.T) {
	provider := &llmtest.Provider{}
	svc := NewChatService(loadedStore("Chapter one."), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "Summarise", ConversationID: "abc"})
	require.NoError(t, err)
	collect(t, context.Background(), s)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, s.Request(), reqs[0])
	assert.Equal(t, "fake-model", reqs[0].Model)
	assert.Equal(t, systemPromptPreamble+"Chapter one.", reqs[0].System)
	assert.Equal(t, "Summarise", reqs[0].User)
}

func TestEventStream_TruncatesDocumentAt3000Chars(t *testing.T) {
	head := strings.Repeat("a", 3000)
	tail := strings.Repeat("Z", 2000)
	provider := &llmtest.Provider{}
	svc := NewChatService(loadedStore(head+tail), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)
	collect(t, context.Background(), s)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, systemPromptPreamble+head, reqs[0].System)
	assert.NotContains(t, reqs[0].System, "Z")
	assert.NotContains(t, reqs[0].User, "Z")
}

func TestEventStream_ConversationIDHasNoEffect(t *testing.T) {
	provider := &llmtest.Provider{Fragments: []string{"ok"}}
	svc := NewChatService(loadedStore("doc"), provider)

	for _, id := range []string{"first", "second", ""} {
		s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "same question", ConversationID: id})
		require.NoError(t, err)
		collect(t, context.Background(), s)
	}

	reqs := provider.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, reqs[0], reqs[1])
	assert.Equal(t, reqs[1], reqs[2])
}

func TestEventStream_PromptSnapshotSurvivesLaterUpload(t *testing.T) {
	store := loadedStore("original text")
	provider := &llmtest.Provider{Fragments: []string{"a", "b"}}
	svc := NewChatService(store, provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)
	provider.OnRecv = func(i int) {
		if i == 0 {
			store.Set("replacement text")
		}
	}
	collect(t, context.Background(), s)

	assert.Equal(t, systemPromptPreamble+"original text", provider.Requests()[0].System)

	provider.OnRecv = nil
	next, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)
	collect(t, context.Background(), next)
	assert.Equal(t, systemPromptPreamble+"replacement text", provider.Requests()[1].System)
}

func TestEventStream_UpstreamErrorMidStream(t *testing.T) {
	provider := &llmtest.Provider{
		Fragments: []string{"partial"},
		StreamErr: errors.New("connection reset by peer"),
	}
	svc := NewChatService(loadedStore("doc"), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)

	events := collect(t, context.Background(), s)
	assert.Equal(t, []models.StreamEvent{
		models.ContentEvent("partial"),
		models.ErrorEvent("connection reset by peer"),
	}, events)
	assert.Equal(t, StateFailed, s.State())
}

func TestEventStream_OpenFailureIsInStreamError(t *testing.T) {
	provider := &llmtest.Provider{OpenErr: errors.New("invalid api key")}
	svc := NewChatService(loadedStore("doc"), provider)

	s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)

	events := collect(t, context.Background(), s)
	assert.Equal(t, []models.StreamEvent{models.ErrorEvent("invalid api key")}, events)
	assert.Equal(t, StateFailed, s.State())
}

func TestEventStream_NeverBothDoneAndError(t *testing.T) {
	scenarios := []*llmtest.Provider{
		{Fragments: []string{"a", "b"}},
		{Fragments: []string{"a"}, StreamErr: errors.New("boom")},
		{OpenErr: errors.New("refused")},
		{},
	}
	for _, provider := range scenarios {
		svc := NewChatService(loadedStore("doc"), provider)
		s, err := svc.OpenStream(context.Background(), models.ChatStreamRequest{Message: "q"})
		require.NoError(t, err)

		events := collect(t, context.Background(), s)
		require.NotEmpty(t, events)
		terminal := 0
		for i, ev := range events {
			if ev.Terminal() {
				terminal++
				assert.Equal(t, len(events)-1, i, "terminal event must be last")
			} else {
				assert.Equal(t, models.EventContent, ev.Type)
			}
		}
		assert.Equal(t, 1, terminal)
	}
}

func TestEventStream_DisconnectAfterSecondFragment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &llmtest.Provider{Fragments: []string{"one", "two", "three", "four"}}
	svc := NewChatService(loadedStore("doc"), provider)

	s, err := svc.OpenStream(ctx, models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)

	var events []models.StreamEvent
	for {
		ev, ok := s.Next(ctx)
		if !ok {
			break
		}
		events = append(events, ev)
		if len(events) == 2 {
			cancel()
		}
	}

	assert.Equal(t, []models.StreamEvent{
		models.ContentEvent("one"),
		models.ContentEvent("two"),
	}, events)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 3, provider.Received(), "upstream consumption stops at the first fragment after disconnect")
	assert.Equal(t, 1, provider.Closed())
}

func TestEventStream_DisconnectBeforeOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &llmtest.Provider{Fragments: []string{"one"}}
	svc := NewChatService(loadedStore("doc"), provider)

	s, err := svc.OpenStream(ctx, models.ChatStreamRequest{Message: "q"})
	require.NoError(t, err)

	_, ok := s.Next(ctx)
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, provider.Requests())
}

func TestUpstreamError_Unwraps(t *testing.T) {
	cause := errors.New("429 rate limited")
	err := error(&UpstreamError{Provider: "openai", Err: cause})

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "openai", upErr.Provider)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "429 rate limited", err.Error())
}
