package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"google.golang.org/genai"
)

const (
	textModel  = "text-model"
	imageModel = "image-model"
)

func newTestAdvisor(fn func(call int, model string) (*genai.GenerateContentResponse, error)) (*Advisor, *llm.MockBackend, *[]time.Duration) {
	calls := 0
	backend := &llm.MockBackend{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return fn(calls, model)
		},
	}
	waits := &[]time.Duration{}
	a := New(llm.NewClient(backend), textModel, imageModel, WithSleep(func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}))
	return a, backend, waits
}

var photo = llm.Image{Data: []byte("jpeg")}

func TestStrategicAnalysis(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse("Start with the desk. {\"selectedZone\": \"desk\"}"), nil
	})

	res, err := a.StrategicAnalysis(context.Background(), photo, language.Japanese)

	require.NoError(t, err)
	assert.Equal(t, "Start with the desk. {\"selectedZone\": \"desk\"}", res.Analysis)
	assert.NotNil(t, res.Raw)
	call := backend.Calls[0]
	assert.Equal(t, textModel, call.Model)
	assert.Equal(t, float32(0.4), *call.Config.Temperature)
	assert.Equal(t, int32(2048), call.Config.MaxOutputTokens)
	assert.Contains(t, call.Text(), "Write all user-facing text in Japanese.")
}

func TestStrategicAnalysis_UpstreamError(t *testing.T) {
	a, _, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 403, Message: "API key not valid"}
	})

	_, err := a.StrategicAnalysis(context.Background(), photo, language.English)

	require.Error(t, err)
	assert.Equal(t, 403, llm.StatusCode(err))
	assert.Equal(t, "API key not valid", llm.Message(err))
}

func TestInpaint(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.ImageResponse([]byte("png"), "image/png", ""), nil
	})

	out, err := a.Inpaint(context.Background(), photo, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), out.Data)
	assert.Equal(t, imageModel, backend.Calls[0].Model)
	assert.Equal(t, 1, backend.Calls[0].ImageCount())
	assert.Equal(t, float32(0.3), *backend.Calls[0].Config.Temperature)

	_, err = a.Inpaint(context.Background(), photo, &llm.Image{Data: []byte("mask")})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls[1].ImageCount())
	assert.Contains(t, backend.Calls[1].Text(), "mask")
}

func TestInpaint_NoImage(t *testing.T) {
	a, _, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse("cannot"), nil
	})

	_, err := a.Inpaint(context.Background(), photo, nil)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestCleanupSpots(t *testing.T) {
	a, backend, waits := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse(`{"spots": [{"category": "kitchen", "location": "table", "items": "mug", "action": "take the mug to the kitchen", "estimatedTime": "30s"}], "totalEstimatedTime": "5 min", "encouragement": "You can do it!"}`), nil
	})

	res, err := a.CleanupSpots(context.Background(), photo, language.English)

	require.NoError(t, err)
	assert.True(t, res.Parsed)
	require.Len(t, res.Spots, 1)
	assert.Equal(t, "take the mug to the kitchen", res.Spots[0].Action)
	assert.Equal(t, "5 min", res.TotalEstimatedTime)
	assert.Equal(t, "You can do it!", res.Encouragement)
	assert.Empty(t, *waits)

	cfg := backend.Calls[0].Config
	require.NotNil(t, cfg.SystemInstruction)
	assert.Contains(t, cfg.SystemInstruction.Parts[0].Text, "Always answer in English.")
	assert.Equal(t, float32(32), *cfg.TopK)
	assert.Equal(t, float32(0.9), *cfg.TopP)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
}

func TestCleanupSpots_RetriesRateLimit(t *testing.T) {
	a, backend, waits := newTestAdvisor(func(call int, _ string) (*genai.GenerateContentResponse, error) {
		if call < 3 {
			return nil, genai.APIError{Code: 429, Message: "quota"}
		}
		return llm.TextResponse(`{"spots": []}`), nil
	})

	res, err := a.CleanupSpots(context.Background(), photo, language.English)

	require.NoError(t, err)
	assert.True(t, res.Parsed)
	assert.Equal(t, 3, backend.CallCount())
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, *waits)
}

func TestCleanupSpots_RateLimitExhausted(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 429, Message: "quota"}
	})

	_, err := a.CleanupSpots(context.Background(), photo, language.English)

	require.Error(t, err)
	assert.True(t, llm.IsRateLimited(err))
	assert.Equal(t, 3, backend.CallCount())
}

func TestCleanupSpots_OtherErrorsNotRetried(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 500, Message: "internal"}
	})

	_, err := a.CleanupSpots(context.Background(), photo, language.English)

	require.Error(t, err)
	assert.Equal(t, 1, backend.CallCount())
}

func TestParseSpots(t *testing.T) {
	embedded := ParseSpots("Here are your tasks:\n{\"spots\": [{\"action\": \"stack the books\"}]}\nGood luck")
	assert.True(t, embedded.Parsed)
	require.Len(t, embedded.Spots, 1)
	assert.Equal(t, "stack the books", embedded.Spots[0].Action)

	garbage := ParseSpots("I could not see the room clearly.")
	assert.False(t, garbage.Parsed)
	assert.Equal(t, "I could not see the room clearly.", garbage.RawText)
	assert.NotNil(t, garbage.Spots)
	assert.Empty(t, garbage.Spots)

	noSpots := ParseSpots(`{"encouragement": "nice"}`)
	assert.True(t, noSpots.Parsed)
	assert.NotNil(t, noSpots.Spots)
}

func TestChatAddress(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromText("How about "),
				genai.NewPartFromText("the second drawer?"),
			}, genai.RoleModel),
		}}}, nil
	})

	reply, err := a.ChatAddress(context.Background(), ChatRequest{
		Image:    &photo,
		ItemName: "scissors",
		Messages: []ChatMessage{
			{Role: "user", Text: "Where should my scissors go?"},
			{Role: "ai", Text: "How often do you use them?"},
			{Role: "user", Text: "Daily."},
		},
		Language: language.English,
	})

	require.NoError(t, err)
	assert.Equal(t, "How about the second drawer?", reply)

	call := backend.Calls[0]
	require.Len(t, call.Contents, 3)
	assert.Equal(t, "user", call.Contents[0].Role)
	assert.Equal(t, "model", call.Contents[1].Role)
	assert.Equal(t, "user", call.Contents[2].Role)
	assert.Equal(t, 1, call.ImageCount(), "image only on the first user turn")
	assert.Len(t, call.Contents[0].Parts, 2)
	assert.Contains(t, call.Config.SystemInstruction.Parts[0].Text, "- Name: scissors")
	assert.Contains(t, call.Config.SystemInstruction.Parts[0].Text, "- Category: unknown")
	assert.Equal(t, int32(300), call.Config.MaxOutputTokens)
	assert.Equal(t, float32(40), *call.Config.TopK)
}

func TestChatAddress_Opening(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse("Let's find a home for it!"), nil
	})

	_, err := a.ChatAddress(context.Background(), ChatRequest{Image: &photo, ItemName: "charger", Category: "electronics"})

	require.NoError(t, err)
	call := backend.Calls[0]
	require.Len(t, call.Contents, 1)
	assert.Contains(t, call.Text(), `"charger"`)
	assert.Equal(t, 1, call.ImageCount())
}

func TestChatAddress_AITurnFirstGetsNoImage(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse("ok"), nil
	})

	_, err := a.ChatAddress(context.Background(), ChatRequest{
		Image:    &photo,
		ItemName: "keys",
		Messages: []ChatMessage{{Role: "ai", Text: "Hi!"}, {Role: "user", Text: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, backend.Calls[0].ImageCount())
}

func TestChatAddress_RequiresItemName(t *testing.T) {
	a, backend, _ := newTestAdvisor(func(int, string) (*genai.GenerateContentResponse, error) {
		return llm.TextResponse("ok"), nil
	})

	_, err := a.ChatAddress(context.Background(), ChatRequest{ItemName: "  "})

	assert.ErrorIs(t, err, ErrItemNameRequired)
	assert.Equal(t, 0, backend.CallCount())
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Japanese", LanguageName(language.Japanese))
	assert.Equal(t, "English", LanguageName(language.AmericanEnglish))
}
