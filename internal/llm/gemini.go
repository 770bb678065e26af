package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Default model identifiers.
const (
	DefaultStandardImageModel    = "gemini-2.5-flash-image"
	DefaultHighQualityImageModel = "gemini-3-pro-image-preview"
	DefaultAnalysisModel         = "gemini-2.0-flash"
	DefaultInspectionModel       = "gemini-2.0-flash"
)

// Pricing per million tokens, used for cost logging only.
type modelPrice struct {
	input  float64
	output float64
}

var modelPrices = map[string]modelPrice{
	"gemini-2.0-flash":           {input: 0.10, output: 0.40},
	"gemini-2.5-flash-image":     {input: 0.30, output: 30.00},
	"gemini-3-pro-image-preview": {input: 2.00, output: 120.00},
}

// NewGeminiBackend creates a Backend talking to the Gemini API.
func NewGeminiBackend(ctx context.Context, apiKey string) (Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

type unconfiguredBackend struct{}

func (unconfiguredBackend) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, ErrMissingAPIKey
}

// UnconfiguredBackend returns a Backend that fails every call with
// ErrMissingAPIKey. It stands in when the server starts without a key.
func UnconfiguredBackend() Backend {
	return unconfiguredBackend{}
}

// Request describes one generateContent call.
type Request struct {
	Model string
	// Purpose labels the call in logs and error messages.
	Purpose string
	System  string
	// Parts form a single user turn. Ignored when Contents is set.
	Parts    []*genai.Part
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Client wraps a Backend with request logging.
type Client struct {
	backend Backend
}

// NewClient creates a client over the given backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

// Generate issues the request. Upstream errors are wrapped so that
// StatusCode can still recover the upstream status.
func (c *Client) Generate(ctx context.Context, req Request) (*genai.GenerateContentResponse, error) {
	contents := req.Contents
	if contents == nil {
		contents = []*genai.Content{genai.NewContentFromParts(req.Parts, genai.RoleUser)}
	}

	config := req.Config
	if req.System != "" {
		withSystem := genai.GenerateContentConfig{}
		if config != nil {
			withSystem = *config
		}
		withSystem.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		config = &withSystem
	}

	start := time.Now()
	result, err := c.backend.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		log.Warn().
			Err(err).
			Str("model", req.Model).
			Str("purpose", req.Purpose).
			Int("status", StatusCode(err)).
			Dur("elapsed", time.Since(start)).
			Msg("llm call failed")
		return nil, fmt.Errorf("%s call failed: %w", req.Purpose, err)
	}

	usage := usageOf(req.Model, result)
	log.Info().
		Str("model", req.Model).
		Str("purpose", req.Purpose).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("elapsed", time.Since(start)).
		Msg("llm call")

	return result, nil
}

func usageOf(model string, result *genai.GenerateContentResponse) Usage {
	usage := Usage{}
	if result == nil || result.UsageMetadata == nil {
		return usage
	}
	usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
	usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
	if price, ok := modelPrices[model]; ok {
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, price.input, price.output)
	}
	return usage
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

// ExtractJSONObject extracts a JSON object from text that may contain
// markdown code blocks or other formatting.
func ExtractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", truncate(text, 200))
	}
	return text[start : end+1], nil
}

// FirstImage returns the first inline image of the first candidate.
func FirstImage(result *genai.GenerateContentResponse) (Image, bool) {
	for _, part := range firstParts(result) {
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
			return Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, true
		}
	}
	return Image{}, false
}

// FirstText returns the first text part of the first candidate.
func FirstText(result *genai.GenerateContentResponse) string {
	for _, part := range firstParts(result) {
		if part.Text != "" {
			return part.Text
		}
	}
	return ""
}

// JoinedText concatenates every text part of the first candidate.
func JoinedText(result *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, part := range firstParts(result) {
		b.WriteString(part.Text)
	}
	return b.String()
}

func firstParts(result *genai.GenerateContentResponse) []*genai.Part {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0] == nil || result.Candidates[0].Content == nil {
		return nil
	}
	return result.Candidates[0].Content.Parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
