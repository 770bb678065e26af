package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const (
	testAnalysisModel   = "analysis-model"
	testInspectionModel = "inspection-model"
	testStandardModel   = "standard-image-model"
	testHQModel         = "hq-image-model"
)

var testModels = Models{Standard: testStandardModel, HighQuality: testHQModel}

var overloaded = genai.APIError{Code: 503, Message: "The model is overloaded.", Status: "UNAVAILABLE"}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestGenerator(backend *llm.MockBackend, sleeps *sleepRecorder) *Generator {
	return NewGenerator(llm.NewClient(backend), testModels, WithSleep(sleeps.sleep))
}

func imageBackend(byModel map[string]func() (*genai.GenerateContentResponse, error)) *llm.MockBackend {
	return &llm.MockBackend{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if fn, ok := byModel[model]; ok {
				return fn()
			}
			return nil, errors.New("unexpected model " + model)
		},
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		state   genState
		outcome callOutcome
		retries int
		tier    Tier
		want    genState
	}{
		{"success", stateAttempt, outcomeSuccess, 0, TierStandard, stateDone},
		{"rejected", stateAttempt, outcomeRejected, 0, TierHighQuality, stateFailed},
		{"overload retries left", stateAttempt, outcomeOverloaded, 0, TierStandard, stateOverloadRetry},
		{"overload during retry", stateOverloadRetry, outcomeOverloaded, 1, TierStandard, stateOverloadRetry},
		{"retries exhausted standard", stateOverloadRetry, outcomeOverloaded, 2, TierStandard, stateFailed},
		{"retries exhausted hq", stateOverloadRetry, outcomeOverloaded, 2, TierHighQuality, stateFallback},
		{"rejected during retry", stateOverloadRetry, outcomeRejected, 1, TierHighQuality, stateFailed},
		{"fallback success", stateFallback, outcomeSuccess, 2, TierHighQuality, stateDone},
		{"fallback overloaded", stateFallback, outcomeOverloaded, 2, TierHighQuality, stateFailed},
		{"fallback rejected", stateFallback, outcomeRejected, 2, TierHighQuality, stateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transition(tc.state, tc.outcome, tc.retries, DefaultOverloadRetries, tc.tier))
		})
	}
}

func TestGenerator_Success(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testStandardModel: func() (*genai.GenerateContentResponse, error) {
			return llm.ImageResponse([]byte("png"), "image/png", ""), nil
		},
	})
	sleeps := &sleepRecorder{}

	res, err := newTestGenerator(backend, sleeps).Generate(context.Background(), GenerateRequest{
		Instruction: "clean", Image: llm.Image{Data: []byte("in")}, Tier: TierStandard, Temperature: 0.65,
	})

	require.NoError(t, err)
	assert.Equal(t, testStandardModel, res.Model)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 1, res.Calls)
	assert.Empty(t, sleeps.waits)

	call := backend.Calls[0]
	assert.Equal(t, []string{"IMAGE", "TEXT"}, call.Config.ResponseModalities)
	assert.Equal(t, float32(0.65), *call.Config.Temperature)
	assert.Equal(t, "clean", call.Text())
	assert.Equal(t, 1, call.ImageCount())
}

func TestGenerator_RetriesOverloadThenSucceeds(t *testing.T) {
	calls := 0
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testStandardModel: func() (*genai.GenerateContentResponse, error) {
			calls++
			if calls < 3 {
				return nil, overloaded
			}
			return llm.ImageResponse([]byte("png"), "image/png", ""), nil
		},
	})
	sleeps := &sleepRecorder{}

	res, err := newTestGenerator(backend, sleeps).Generate(context.Background(), GenerateRequest{Tier: TierStandard})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Calls)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, []time.Duration{DefaultOverloadBackoff, DefaultOverloadBackoff}, sleeps.waits)
}

func TestGenerator_FallbackFromHighQuality(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testHQModel: func() (*genai.GenerateContentResponse, error) { return nil, overloaded },
		testStandardModel: func() (*genai.GenerateContentResponse, error) {
			return llm.ImageResponse([]byte("png"), "image/png", ""), nil
		},
	})
	sleeps := &sleepRecorder{}

	res, err := newTestGenerator(backend, sleeps).Generate(context.Background(), GenerateRequest{
		Instruction: "clean", Tier: TierHighQuality, Temperature: 0.4, FallbackTemperature: 0.7,
	})

	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, testStandardModel, res.Model)
	assert.Equal(t, TierStandard, res.Tier)
	assert.Equal(t, float32(0.7), res.Temperature)
	assert.Equal(t, 4, res.Calls)
	assert.Len(t, backend.CallsFor(testHQModel), 3)

	fallback := backend.CallsFor(testStandardModel)
	require.Len(t, fallback, 1)
	assert.Equal(t, float32(0.7), *fallback[0].Config.Temperature)
	assert.Equal(t, "clean", fallback[0].Text(), "fallback reuses the instruction")
}

func TestGenerator_StandardOverloadExhausted(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testStandardModel: func() (*genai.GenerateContentResponse, error) { return nil, overloaded },
	})
	sleeps := &sleepRecorder{}

	_, err := newTestGenerator(backend, sleeps).Generate(context.Background(), GenerateRequest{Tier: TierStandard})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.True(t, backendErr.Overloaded)
	assert.Equal(t, 503, backendErr.Status)
	assert.Equal(t, 3, backend.CallCount(), "no fallback from the standard tier")
	assert.Len(t, sleeps.waits, 2)
}

func TestGenerator_FallbackAlsoOverloaded(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testHQModel:       func() (*genai.GenerateContentResponse, error) { return nil, overloaded },
		testStandardModel: func() (*genai.GenerateContentResponse, error) { return nil, overloaded },
	})

	_, err := newTestGenerator(backend, &sleepRecorder{}).Generate(context.Background(), GenerateRequest{Tier: TierHighQuality})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.True(t, backendErr.Overloaded)
	assert.Equal(t, testStandardModel, backendErr.Model)
	assert.Equal(t, 4, backendErr.Calls)
	assert.Equal(t, 4, backend.CallCount())
}

func TestGenerator_RejectedStopsImmediately(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testHQModel: func() (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: 400, Message: "Unable to process input image."}
		},
	})
	sleeps := &sleepRecorder{}

	_, err := newTestGenerator(backend, sleeps).Generate(context.Background(), GenerateRequest{Tier: TierHighQuality})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.False(t, backendErr.Overloaded)
	assert.Equal(t, 400, backendErr.Status)
	assert.Equal(t, "Unable to process input image.", backendErr.Message)
	assert.Equal(t, 1, backend.CallCount())
	assert.Empty(t, sleeps.waits)
}

func TestGenerator_SleepErrorAborts(t *testing.T) {
	backend := imageBackend(map[string]func() (*genai.GenerateContentResponse, error){
		testStandardModel: func() (*genai.GenerateContentResponse, error) { return nil, overloaded },
	})
	g := NewGenerator(llm.NewClient(backend), testModels, WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	_, err := g.Generate(context.Background(), GenerateRequest{Tier: TierStandard})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, backend.CallCount())
}

func TestModelsFor(t *testing.T) {
	assert.Equal(t, testHQModel, testModels.For(TierHighQuality))
	assert.Equal(t, testStandardModel, testModels.For(TierStandard))
}
