package cleanup

import (
	"context"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/genai"
)

// SceneAnalyzer returns the raw structured analysis text for a room photo.
type SceneAnalyzer interface {
	AnalyzeScene(ctx context.Context, img llm.Image) (string, error)
}

// GeminiSceneAnalyzer runs scene analysis on a text model in JSON mode.
type GeminiSceneAnalyzer struct {
	client *llm.Client
	model  string
}

// NewGeminiSceneAnalyzer creates an analyzer using model.
func NewGeminiSceneAnalyzer(client *llm.Client, model string) *GeminiSceneAnalyzer {
	return &GeminiSceneAnalyzer{client: client, model: model}
}

func (a *GeminiSceneAnalyzer) AnalyzeScene(ctx context.Context, img llm.Image) (string, error) {
	result, err := a.client.Generate(ctx, llm.Request{
		Model:   a.model,
		Purpose: "scene analysis",
		Parts:   []*genai.Part{genai.NewPartFromText(sceneAnalysisPrompt), img.Part()},
		Config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.1),
			MaxOutputTokens:  2048,
			ResponseMIMEType: "application/json",
			ResponseSchema:   sceneAnalysisSchema,
		},
	})
	if err != nil {
		return "", err
	}
	return llm.FirstText(result), nil
}

// CachedSceneAnalyzer keeps recent analyses that parsed, keyed by a hash of
// the image bytes. The least recently used entry is evicted first.
type CachedSceneAnalyzer struct {
	inner   SceneAnalyzer
	entries *lru.Cache[string, string]
}

// NewCachedSceneAnalyzer wraps inner with a cache of up to size entries. A
// size <= 0 disables caching.
func NewCachedSceneAnalyzer(inner SceneAnalyzer, size int) *CachedSceneAnalyzer {
	c := &CachedSceneAnalyzer{inner: inner}
	if size > 0 {
		// New only fails for a non-positive size.
		c.entries, _ = lru.New[string, string](size)
	}
	return c
}

func hashImage(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *CachedSceneAnalyzer) AnalyzeScene(ctx context.Context, img llm.Image) (string, error) {
	if c.entries == nil {
		return c.inner.AnalyzeScene(ctx, img)
	}

	key := hashImage(img.Data)
	if cached, ok := c.entries.Get(key); ok {
		log.Debug().Str("hash", key[:16]).Int("entries", c.Len()).Msg("scene analysis cache hit")
		return cached, nil
	}

	text, err := c.inner.AnalyzeScene(ctx, img)
	if err != nil {
		return text, err
	}
	// Refusals and broken JSON would pin the degraded defaults for this photo.
	if _, perr := parseFields(text); perr != nil {
		log.Debug().Str("hash", key[:16]).Err(perr).Msg("scene analysis not cached")
		return text, nil
	}

	c.entries.Add(key, text)
	log.Debug().Str("hash", key[:16]).Int("entries", c.Len()).Msg("cached scene analysis")
	return text, nil
}

// Len returns the number of cached analyses.
func (c *CachedSceneAnalyzer) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
