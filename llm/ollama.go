package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"
)

const DefaultOllamaModel = "llama3.2"

type OllamaProvider struct {
	client *ollama.Client
	model  string
}

// NewOllamaProvider talks to an Ollama server at host. The HTTP client has no
// timeout so long generations are not cut off mid-stream.
func NewOllamaProvider(host, model string) (*OllamaProvider, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	return &OllamaProvider{client: ollama.NewClient(u, &http.Client{}), model: model}, nil
}

func (o *OllamaProvider) Name() string  { return "ollama" }
func (o *OllamaProvider) Model() string { return o.model }

// Stream runs the callback-based Chat call in a goroutine and hands fragments
// over an unbuffered channel, so the upstream read never runs ahead of Recv.
func (o *OllamaProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	streaming := true
	chatReq := &ollama.ChatRequest{
		Model: modelOr(req.Model, o.model),
		Messages: []ollama.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream: &streaming,
	}

	s := &ollamaStream{
		fragments: make(chan string),
		result:    make(chan error, 1),
		cancel:    cancel,
	}
	go func() {
		defer close(s.fragments)
		s.result <- o.client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case s.fragments <- resp.Message.Content:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s, nil
}

type ollamaStream struct {
	fragments chan string
	result    chan error
	cancel    context.CancelFunc
	err       error
	finished  bool
}

func (s *ollamaStream) Recv() (string, error) {
	if s.finished {
		return "", s.err
	}
	if fragment, ok := <-s.fragments; ok {
		return fragment, nil
	}
	s.finished = true
	s.err = io.EOF
	if err := <-s.result; err != nil {
		s.err = fmt.Errorf("ollama chat failed: %w", err)
	}
	return "", s.err
}

func (s *ollamaStream) Close() error {
	s.cancel()
	return nil
}
