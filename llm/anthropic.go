package llm

import (
	"context"
	"io"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider builds a provider for the Messages API. Extra options
// are applied after the API key, e.g. to point the client at another base URL.
func NewAnthropicProvider(apiKey, model string, maxTokens int, opts ...anthropicopt.RequestOption) *AnthropicProvider {
	cl := anthropic.NewClient(append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}, opts...)...)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicProvider{client: &cl, model: model, maxTokens: maxTokens}
}

func (a *AnthropicProvider) Name() string  { return "anthropic" }
func (a *AnthropicProvider) Model() string { return a.model }

func (a *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	stream := a.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(modelOr(req.Model, a.model)),
		MaxTokens: int64(a.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// Recv skips every event that is not a text delta.
func (s *anthropicStream) Recv() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
			return text.Text, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
