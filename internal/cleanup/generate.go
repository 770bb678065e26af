package cleanup

import (
	"context"
	"time"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	DefaultOverloadRetries = 2
	DefaultOverloadBackoff = 2 * time.Second
)

// Models maps tiers to image model identifiers.
type Models struct {
	Standard    string
	HighQuality string
}

// For returns the model serving tier.
func (m Models) For(tier Tier) string {
	if tier == TierHighQuality {
		return m.HighQuality
	}
	return m.Standard
}

// GenerateRequest is one logical "produce an image" operation.
type GenerateRequest struct {
	Instruction string
	Image       llm.Image
	Tier        Tier
	Temperature float32
	// FallbackTemperature is used if the request falls back to the
	// standard tier.
	FallbackTemperature float32
	Attempt             int
}

// GenerateResult is the outcome of a successful operation.
type GenerateResult struct {
	Response *genai.GenerateContentResponse
	// Tier and Model identify what actually served the request.
	Tier         Tier
	Model        string
	UsedFallback bool
	// Temperature is the one the serving call ran at.
	Temperature float32
	// Calls is the number of backend calls made, including retries.
	Calls int
}

type genState int

const (
	stateAttempt genState = iota
	stateOverloadRetry
	stateFallback
	stateDone
	stateFailed
)

func (s genState) String() string {
	switch s {
	case stateAttempt:
		return "attempt"
	case stateOverloadRetry:
		return "overload-retry"
	case stateFallback:
		return "fallback"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

type callOutcome int

const (
	outcomeSuccess callOutcome = iota
	outcomeOverloaded
	outcomeRejected
)

func classify(err error) callOutcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case llm.IsOverloaded(err):
		return outcomeOverloaded
	default:
		return outcomeRejected
	}
}

// transition returns the state after a call made in state s. retries is the
// number of overload retries already made.
func transition(s genState, o callOutcome, retries, maxRetries int, requested Tier) genState {
	if o == outcomeSuccess {
		return stateDone
	}
	if s == stateFallback || o == outcomeRejected {
		return stateFailed
	}
	if retries < maxRetries {
		return stateOverloadRetry
	}
	if requested == TierHighQuality {
		return stateFallback
	}
	return stateFailed
}

// Generator invokes the image model, retrying on overload and falling back
// from the high-quality tier to the standard tier.
type Generator struct {
	client     *llm.Client
	models     Models
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithOverloadRetries sets how many times an overloaded call is reissued.
func WithOverloadRetries(n int) GeneratorOption {
	return func(g *Generator) {
		g.maxRetries = n
	}
}

// WithBackoff sets the wait between overload retries.
func WithBackoff(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.backoff = d
	}
}

// WithSleep replaces the wait function. Tests use it to avoid real waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) GeneratorOption {
	return func(g *Generator) {
		g.sleep = sleep
	}
}

// NewGenerator creates a generator.
func NewGenerator(client *llm.Client, models Models, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client:     client,
		models:     models,
		maxRetries: DefaultOverloadRetries,
		backoff:    DefaultOverloadBackoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Models returns the configured model identifiers.
func (g *Generator) Models() Models {
	return g.models
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

// Generate runs the operation. Failures are returned as *BackendError.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	state := stateAttempt
	retries := 0
	calls := 0
	tier := req.Tier
	temperature := req.Temperature

	for {
		if state == stateOverloadRetry {
			log.Info().
				Int("retry", retries).
				Int("maxRetries", g.maxRetries).
				Dur("backoff", g.backoff).
				Msg("model overloaded, waiting before retry")
			if err := g.sleep(ctx, g.backoff); err != nil {
				return nil, err
			}
		}

		model := g.models.For(tier)
		log.Info().
			Str("model", model).
			Str("state", state.String()).
			Int("attempt", req.Attempt).
			Float32("temperature", temperature).
			Int("instructionLength", len(req.Instruction)).
			Msg("image generation request")

		result, err := g.client.Generate(ctx, llm.Request{
			Model:   model,
			Purpose: "image generation",
			Parts:   []*genai.Part{genai.NewPartFromText(req.Instruction), req.Image.Part()},
			Config: &genai.GenerateContentConfig{
				ResponseModalities: []string{"IMAGE", "TEXT"},
				Temperature:        genai.Ptr(temperature),
			},
		})
		calls++

		next := transition(state, classify(err), retries, g.maxRetries, req.Tier)
		switch next {
		case stateDone:
			return &GenerateResult{
				Response:     result,
				Tier:         tier,
				Model:        model,
				UsedFallback: state == stateFallback,
				Temperature:  temperature,
				Calls:        calls,
			}, nil
		case stateFailed:
			return nil, &BackendError{
				Status:     llm.StatusCode(err),
				Message:    llm.Message(err),
				Overloaded: llm.IsOverloaded(err),
				Model:      model,
				Calls:      calls,
				Err:        err,
			}
		case stateOverloadRetry:
			retries++
		case stateFallback:
			log.Warn().
				Str("from", model).
				Str("to", g.models.Standard).
				Msg("model still overloaded, falling back to standard tier")
			tier = TierStandard
			temperature = req.FallbackTemperature
		}
		state = next
	}
}
