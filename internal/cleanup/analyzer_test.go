package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type countingAnalyzer struct {
	calls int
	text  string
	// texts, when set, are returned in order and the last one repeats.
	texts []string
	err   error
}

func (a *countingAnalyzer) AnalyzeScene(ctx context.Context, img llm.Image) (string, error) {
	a.calls++
	if len(a.texts) > 0 {
		return a.texts[min(a.calls, len(a.texts))-1], a.err
	}
	return a.text, a.err
}

func TestGeminiSceneAnalyzer(t *testing.T) {
	backend := &llm.MockBackend{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return llm.TextResponse(`{"room_type": "office"}`), nil
		},
	}
	analyzer := NewGeminiSceneAnalyzer(llm.NewClient(backend), testAnalysisModel)

	text, err := analyzer.AnalyzeScene(context.Background(), llm.Image{Data: []byte("jpeg")})

	require.NoError(t, err)
	assert.Equal(t, `{"room_type": "office"}`, text)
	require.Len(t, backend.CallsFor(testAnalysisModel), 1)
	call := backend.Calls[0]
	assert.Equal(t, "application/json", call.Config.ResponseMIMEType)
	require.NotNil(t, call.Config.ResponseSchema)
	assert.Subset(t, call.Config.ResponseSchema.Required, []string{"critical_appliances", "keep_items", "remove_items", "room_type"})
	assert.Equal(t, genai.TypeArray, call.Config.ResponseSchema.Properties["critical_appliances"].Items.Properties["bbox"].Type)
	assert.Equal(t, float32(0.1), *call.Config.Temperature)
	assert.Equal(t, int32(2048), call.Config.MaxOutputTokens)
	assert.Equal(t, 1, call.ImageCount())
	assert.Contains(t, call.Text(), "critical_appliances")
}

func TestCachedSceneAnalyzer_HitsAndMisses(t *testing.T) {
	inner := &countingAnalyzer{text: `{"room_type": "kitchen"}`}
	cached := NewCachedSceneAnalyzer(inner, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		text, err := cached.AnalyzeScene(ctx, llm.Image{Data: []byte("same")})
		require.NoError(t, err)
		assert.Equal(t, inner.text, text)
	}
	assert.Equal(t, 1, inner.calls)

	_, _ = cached.AnalyzeScene(ctx, llm.Image{Data: []byte("other")})
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedSceneAnalyzer_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingAnalyzer{text: "{}"}
	cached := NewCachedSceneAnalyzer(inner, 2)
	ctx := context.Background()

	for _, img := range []string{"a", "b", "a", "c"} {
		_, _ = cached.AnalyzeScene(ctx, llm.Image{Data: []byte(img)})
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 2, cached.Len())

	_, _ = cached.AnalyzeScene(ctx, llm.Image{Data: []byte("a")})
	assert.Equal(t, 3, inner.calls, "recently used entry still cached")

	_, _ = cached.AnalyzeScene(ctx, llm.Image{Data: []byte("b")})
	assert.Equal(t, 4, inner.calls, "least recently used entry was evicted")
}

func TestCachedSceneAnalyzer_DoesNotCacheUnparseableOutput(t *testing.T) {
	inner := &countingAnalyzer{texts: []string{"Sorry, I cannot help with that.", `{"room_type": "office"}`}}
	cached := NewCachedSceneAnalyzer(inner, 4)
	ctx := context.Background()
	img := llm.Image{Data: []byte("room")}

	first, err := cached.AnalyzeScene(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I cannot help with that.", first)
	assert.Equal(t, 0, cached.Len())

	second, err := cached.AnalyzeScene(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, RoomOffice, ExtractAnalysis(second, nil).Room)

	third, err := cached.AnalyzeScene(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, second, third)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedSceneAnalyzer_DoesNotCacheFailures(t *testing.T) {
	inner := &countingAnalyzer{err: errors.New("boom")}
	cached := NewCachedSceneAnalyzer(inner, 4)

	for i := 0; i < 2; i++ {
		_, err := cached.AnalyzeScene(context.Background(), llm.Image{Data: []byte("x")})
		assert.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.Len())
}

func TestCachedSceneAnalyzer_ZeroSizeDisables(t *testing.T) {
	inner := &countingAnalyzer{text: "{}"}
	cached := NewCachedSceneAnalyzer(inner, 0)

	for i := 0; i < 2; i++ {
		_, err := cached.AnalyzeScene(context.Background(), llm.Image{Data: []byte("x")})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.Len())
}
