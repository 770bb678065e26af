package llm

import (
	"context"

	"google.golang.org/genai"
)

// Image is a decoded image payload as it is sent to the backend.
type Image struct {
	Data     []byte
	MIMEType string
}

// DefaultImageMIMEType is assumed when the client did not say otherwise.
const DefaultImageMIMEType = "image/jpeg"

// Part returns the image as an inline genai part.
func (img Image) Part() *genai.Part {
	mime := img.MIMEType
	if mime == "" {
		mime = DefaultImageMIMEType
	}
	return genai.NewPartFromBytes(img.Data, mime)
}

// Usage contains token usage and cost information for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Backend is the generateContent surface of the vision-generation service.
// *genai.Models satisfies it.
type Backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
