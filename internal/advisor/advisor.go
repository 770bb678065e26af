// Package advisor implements the auxiliary tidying features: strategic room
// analysis, mask inpainting, micro-task spot analysis and the item address
// chat.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/genai"
)

var (
	// ErrNoImage is returned when inpainting produced no image.
	ErrNoImage = errors.New("inpainting produced no image")
	// ErrItemNameRequired is returned by ChatAddress without an item name.
	ErrItemNameRequired = errors.New("itemName is required")
)

const (
	defaultRateLimitRetries = 2
	rateLimitBackoffUnit    = 3 * time.Second
)

var spotsObjectPattern = regexp.MustCompile(`(?s)\{.*"spots".*\}`)

// Advisor issues the auxiliary requests.
type Advisor struct {
	client           *llm.Client
	textModel        string
	imageModel       string
	rateLimitRetries int
	sleep            func(ctx context.Context, d time.Duration) error
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithSleep replaces the wait used between rate-limit retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Advisor) {
		a.sleep = sleep
	}
}

// New creates an advisor. textModel serves analysis and chat, imageModel
// serves inpainting.
func New(client *llm.Client, textModel, imageModel string, opts ...Option) *Advisor {
	a := &Advisor{
		client:           client,
		textModel:        textModel,
		imageModel:       imageModel,
		rateLimitRetries: defaultRateLimitRetries,
		sleep:            sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LanguageName returns the English name of the language, used to tell the
// model which language to answer in.
func LanguageName(tag language.Tag) string {
	base, conf := tag.Base()
	name := display.English.Languages().Name(base)
	if conf == language.No || name == "" {
		return "English"
	}
	return name
}

// StrategicResult is the outcome of a strategic analysis.
type StrategicResult struct {
	Analysis string
	Raw      *genai.GenerateContentResponse
}

// StrategicAnalysis picks the zone to start tidying and proposes tasks.
func (a *Advisor) StrategicAnalysis(ctx context.Context, img llm.Image, lang language.Tag) (*StrategicResult, error) {
	result, err := a.client.Generate(ctx, llm.Request{
		Model:   a.textModel,
		Purpose: "strategic analysis",
		Parts:   []*genai.Part{img.Part(), genai.NewPartFromText(strategicPrompt(LanguageName(lang)))},
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.4),
			MaxOutputTokens: 2048,
		},
	})
	if err != nil {
		return nil, err
	}
	return &StrategicResult{Analysis: llm.FirstText(result), Raw: result}, nil
}

// Inpaint runs a fixed cleanup edit. If mask is set the edit is confined to
// the white area of the mask.
func (a *Advisor) Inpaint(ctx context.Context, img llm.Image, mask *llm.Image) (llm.Image, error) {
	parts := []*genai.Part{genai.NewPartFromText(inpaintPrompt), img.Part()}
	if mask != nil && len(mask.Data) > 0 {
		parts = append(parts, genai.NewPartFromText(inpaintMaskPrompt), mask.Part())
	}

	result, err := a.client.Generate(ctx, llm.Request{
		Model:   a.imageModel,
		Purpose: "inpaint",
		Parts:   parts,
		Config: &genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
			Temperature:        genai.Ptr[float32](0.3),
		},
	})
	if err != nil {
		return llm.Image{}, err
	}

	out, ok := llm.FirstImage(result)
	if !ok {
		return llm.Image{}, ErrNoImage
	}
	return out, nil
}

// Spot is one micro tidying task.
type Spot struct {
	Category      string `json:"category"`
	Location      string `json:"location"`
	Items         string `json:"items"`
	Action        string `json:"action"`
	Principle     string `json:"principle"`
	VisualEffect  string `json:"visualEffect"`
	EstimatedTime string `json:"estimatedTime"`
}

// SpotsResult is the outcome of a cleanup spots analysis. When the model
// output could not be parsed, Parsed is false and RawText holds it.
type SpotsResult struct {
	Spots              []Spot `json:"spots"`
	TotalEstimatedTime string `json:"totalEstimatedTime"`
	Encouragement      string `json:"encouragement"`
	RawText            string `json:"-"`
	Parsed             bool   `json:"-"`
}

// CleanupSpots proposes micro tidying tasks. Upstream rate limiting is
// retried with a growing wait.
func (a *Advisor) CleanupSpots(ctx context.Context, img llm.Image, lang language.Tag) (*SpotsResult, error) {
	req := llm.Request{
		Model:   a.textModel,
		Purpose: "cleanup spots",
		System:  spotsSystemInstruction(LanguageName(lang)),
		Parts:   []*genai.Part{genai.NewPartFromText(spotsPrompt), img.Part()},
		Config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.3),
			TopP:             genai.Ptr[float32](0.9),
			TopK:             genai.Ptr[float32](32),
			ResponseMIMEType: "application/json",
		},
	}

	var result *genai.GenerateContentResponse
	var err error
	for attempt := 0; ; attempt++ {
		result, err = a.client.Generate(ctx, req)
		if err == nil || !llm.IsRateLimited(err) || attempt >= a.rateLimitRetries {
			break
		}
		wait := rateLimitBackoffUnit * time.Duration(attempt+1)
		log.Info().Int("retry", attempt+1).Dur("wait", wait).Msg("rate limited, retrying cleanup spots")
		if err := a.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	text := llm.FirstText(result)
	spots := ParseSpots(text)
	log.Info().Int("spots", len(spots.Spots)).Bool("parsed", spots.Parsed).Msg("cleanup spots analyzed")
	return spots, nil
}

// ParseSpots parses spots output, falling back to the outermost object
// that mentions "spots".
func ParseSpots(text string) *SpotsResult {
	var res SpotsResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &res); err == nil {
		return finishSpots(&res)
	}
	if match := spotsObjectPattern.FindString(text); match != "" {
		if err := json.Unmarshal([]byte(match), &res); err == nil {
			return finishSpots(&res)
		}
	}
	return &SpotsResult{Spots: []Spot{}, RawText: text}
}

func finishSpots(res *SpotsResult) *SpotsResult {
	if res.Spots == nil {
		res.Spots = []Spot{}
	}
	res.Parsed = true
	return res
}

// ChatMessage is one turn of the address chat.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest is an address chat turn request.
type ChatRequest struct {
	Image    *llm.Image
	ItemName string
	Category string
	Messages []ChatMessage
	Language language.Tag
}

// ChatAddress continues the conversation about where an item should live.
func (a *Advisor) ChatAddress(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.ItemName) == "" {
		return "", ErrItemNameRequired
	}
	category := req.Category
	if category == "" {
		category = "unknown"
	}

	result, err := a.client.Generate(ctx, llm.Request{
		Model:    a.textModel,
		Purpose:  "address chat",
		System:   chatSystemInstruction(req.ItemName, category, LanguageName(req.Language)),
		Contents: chatContents(req),
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.7),
			TopP:            genai.Ptr[float32](0.9),
			TopK:            genai.Ptr[float32](40),
			MaxOutputTokens: 300,
		},
	})
	if err != nil {
		return "", err
	}
	return llm.JoinedText(result), nil
}

// chatContents maps the history to backend turns. The photo goes with the
// first turn when that turn is the user's.
func chatContents(req ChatRequest) []*genai.Content {
	hasImage := req.Image != nil && len(req.Image.Data) > 0

	if len(req.Messages) == 0 {
		parts := []*genai.Part{genai.NewPartFromText(chatOpening(req.ItemName))}
		if hasImage {
			parts = append(parts, req.Image.Part())
		}
		return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		parts := []*genai.Part{genai.NewPartFromText(msg.Text)}
		role := genai.Role(genai.RoleUser)
		if msg.Role == "ai" || msg.Role == genai.RoleModel {
			role = genai.RoleModel
		} else if len(contents) == 0 && hasImage {
			parts = append(parts, req.Image.Part())
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
