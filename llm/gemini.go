package llm

import (
	"context"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a Gemini API client. An empty baseURL keeps the
// SDK default endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Name() string  { return "gemini" }
func (g *GeminiProvider) Model() string { return g.model }

// Stream sends the system prompt as the SystemInstruction and the question as
// the only content turn.
func (g *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	var system *genai.Content
	if contents := genai.Text(req.System); len(contents) > 0 {
		system = contents[0]
	}
	seq := g.client.Models.GenerateContentStream(ctx, modelOr(req.Model, g.model), genai.Text(req.User), &genai.GenerateContentConfig{
		SystemInstruction: system,
	})
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (string, error) {
	resp, err, ok := s.next()
	if !ok {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("gemini stream failed: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}
