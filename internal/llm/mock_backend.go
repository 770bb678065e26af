package llm

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// MockBackend is a test double for Backend.
// GenerateContentFunc can be overridden; by default every call returns an
// empty JSON object as text. Thread-safe for use in concurrent tests.
type MockBackend struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	mu sync.Mutex

	// Calls tracks all invocations for assertions
	Calls []MockCall
}

// MockCall records one GenerateContent invocation.
type MockCall struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Text returns the concatenated text parts of the call's contents.
func (c MockCall) Text() string {
	var out string
	for _, content := range c.Contents {
		for _, part := range content.Parts {
			out += part.Text
		}
	}
	return out
}

// ImageCount returns the number of inline images sent in the call.
func (c MockCall) ImageCount() int {
	n := 0
	for _, content := range c.Contents {
		for _, part := range content.Parts {
			if part.InlineData != nil {
				n++
			}
		}
	}
	return n
}

var _ Backend = (*MockBackend)(nil)

func (m *MockBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Model: model, Contents: contents, Config: config})
	fn := m.GenerateContentFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, model, contents, config)
	}
	return TextResponse("{}"), nil
}

// CallsFor returns the recorded calls made against model.
func (m *MockBackend) CallsFor(model string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []MockCall
	for _, c := range m.Calls {
		if c.Model == model {
			calls = append(calls, c)
		}
	}
	return calls
}

// CallCount returns the total number of recorded calls.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// TextResponse builds a single-candidate response holding text.
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

// ImageResponse builds a single-candidate response holding an image and an
// optional caption.
func ImageResponse(data []byte, mimeType, caption string) *genai.GenerateContentResponse {
	parts := []*genai.Part{}
	if caption != "" {
		parts = append(parts, genai.NewPartFromText(caption))
	}
	parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromParts(parts, genai.RoleModel),
		}},
	}
}
