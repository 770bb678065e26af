package cleanup

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RetryTemperature is used for the second attempt regardless of mode.
const RetryTemperature float32 = 0.3

// InitialTemperature returns the first-attempt temperature. The high-quality
// tier runs cooler; the standard tier needs more freedom to make a visible
// change.
func InitialTemperature(tier Tier, mode EditMode) float32 {
	if tier == TierHighQuality {
		if mode == ModeStrong {
			return 0.5
		}
		return 0.4
	}
	if mode == ModeStrong {
		return 0.8
	}
	return 0.65
}

// FallbackTemperature returns the temperature used when a high-quality
// request falls back to the standard tier.
func FallbackTemperature(mode EditMode) float32 {
	if mode == ModeStrong {
		return 0.8
	}
	return 0.7
}

// EditRequest is an incoming cleanup request.
type EditRequest struct {
	Image       llm.Image
	EditType    string
	HighQuality bool
}

// InspectionSkipped is reported when no verdict was obtained.
type InspectionSkipped struct {
	Message string `json:"message"`
}

// Debug describes how a request was served.
type Debug struct {
	RunID                    string            `json:"runId"`
	RoomType                 RoomClass         `json:"roomType"`
	RemoveItemCount          int               `json:"removeItemCount"`
	ProtectedBoundariesCount int               `json:"protectedBoundariesCount"`
	CriticalAppliancesCount  int               `json:"criticalAppliancesCount"`
	CriticalAppliances       []ProtectedRegion `json:"criticalAppliances"`
	Temperature              float32           `json:"temperature"`
	RetryTemperature         *float32          `json:"retryTemperature"`
	InspectionResult         any               `json:"inspectionResult"`
	DidRetry                 bool              `json:"didRetry"`
	UsedFallbackModel        bool              `json:"usedFallbackModel"`
	OriginalModelRequested   string            `json:"originalModelRequested"`
	ActualModelUsed          string            `json:"actualModelUsed"`
	AnalysisDegraded         bool              `json:"analysisDegraded"`
	GenerationCalls          int               `json:"generationCalls"`

	// Verdict is the final inspection verdict, nil when inspection was skipped.
	Verdict *InspectionVerdict `json:"-"`
	// Attempts lists the generation attempts in order.
	Attempts []GenerationAttempt `json:"-"`
}

// EditResult is a successful cleanup.
type EditResult struct {
	Image        llm.Image
	Model        string
	UsedFallback bool
	Usage        quota.Status
	Debug        Debug
}

// Pipeline runs analyze, generate, inspect and at most one retry for each
// request, charging quota as it goes.
type Pipeline struct {
	tracker   *quota.Tracker
	analyzer  SceneAnalyzer
	generator *Generator
	inspector Inspector
}

// NewPipeline creates a pipeline.
func NewPipeline(tracker *quota.Tracker, analyzer SceneAnalyzer, generator *Generator, inspector Inspector) *Pipeline {
	return &Pipeline{
		tracker:   tracker,
		analyzer:  analyzer,
		generator: generator,
		inspector: inspector,
	}
}

// Usage returns the current quota snapshot.
func (p *Pipeline) Usage() quota.Status {
	return p.tracker.Status()
}

// Edit runs the pipeline. Errors are ErrInvalidImage, *QuotaError,
// *BackendError, *NoImageError or a context error.
func (p *Pipeline) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if len(req.Image.Data) == 0 {
		return nil, ErrInvalidImage
	}

	mode := ParseEditType(req.EditType)
	tier := TierStandard
	if req.HighQuality {
		tier = TierHighQuality
	}
	capability := tier.Capability()

	if !p.tracker.CanUse(capability) {
		log.Warn().
			Str("capability", string(capability)).
			Int("limit", p.tracker.Limit(capability)).
			Msg("daily limit reached, rejecting edit")
		return nil, &QuotaError{Capability: capability, Usage: p.tracker.Status()}
	}

	runID := uuid.NewString()
	logger := log.With().Str("runId", runID).Str("tier", string(tier)).Str("mode", string(mode)).Logger()

	text, err := p.analyzer.AnalyzeScene(ctx, req.Image)
	analysis := ExtractAnalysis(text, err)
	regions := analysis.ProtectedRegions()

	compose := ComposeInput{
		Mode:              mode,
		Targets:           analysis.Targets,
		Room:              analysis.Room,
		Regions:           regions,
		StandardTierBoost: tier == TierStandard,
	}

	first := GenerationAttempt{
		Number:      1,
		Temperature: InitialTemperature(tier, mode),
		Tier:        tier,
		Instruction: Compose(compose).String(),
	}
	gen, err := p.generator.Generate(ctx, GenerateRequest{
		Instruction:         first.Instruction,
		Image:               req.Image,
		Tier:                tier,
		Temperature:         first.Temperature,
		FallbackTemperature: FallbackTemperature(mode),
		Attempt:             first.Number,
	})
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		return nil, err
	}

	img, ok := llm.FirstImage(gen.Response)
	if !ok {
		text := llm.FirstText(gen.Response)
		logger.Warn().Str("text", truncateText(text, 300)).Msg("generation returned no image")
		return nil, &NoImageError{Text: text}
	}
	p.tracker.Increment(capability)

	debug := Debug{
		RunID:                    runID,
		RoomType:                 analysis.Room,
		RemoveItemCount:          len(analysis.Targets),
		ProtectedBoundariesCount: len(analysis.Keep),
		CriticalAppliancesCount:  len(analysis.Critical),
		CriticalAppliances:       nonNilRegions(analysis.Critical),
		Temperature:              gen.Temperature,
		OriginalModelRequested:   p.generator.Models().For(tier),
		AnalysisDegraded:         analysis.Degraded,
		GenerationCalls:          gen.Calls,
		Attempts:                 []GenerationAttempt{first},
	}
	result := &EditResult{
		Image:        img,
		Model:        gen.Model,
		UsedFallback: gen.UsedFallback,
	}

	verdict := p.inspect(ctx, logger, req.Image, img, analysis.Room)

	if verdict != nil && verdict.Verdict == VerdictFail && p.tracker.CanUse(quota.Retry) {
		retry := &RetryContext{Reason: verdict.Reason}
		if verdict.FixInstruction != nil {
			retry.FixInstruction = *verdict.FixInstruction
		}
		compose.Retry = retry

		second := GenerationAttempt{
			Number:      2,
			Temperature: RetryTemperature,
			Tier:        tier,
			Instruction: Compose(compose).String(),
		}
		debug.Attempts = append(debug.Attempts, second)
		logger.Info().Str("reason", verdict.Reason).Msg("inspection failed, retrying generation")

		retryGen, err := p.generator.Generate(ctx, GenerateRequest{
			Instruction:         second.Instruction,
			Image:               req.Image,
			Tier:                tier,
			Temperature:         second.Temperature,
			FallbackTemperature: RetryTemperature,
			Attempt:             second.Number,
		})
		if err != nil {
			var backendErr *BackendError
			if errors.As(err, &backendErr) {
				debug.GenerationCalls += backendErr.Calls
			}
			logger.Warn().Err(err).Msg("retry generation failed, keeping first image")
		} else if retryImg, ok := llm.FirstImage(retryGen.Response); !ok {
			debug.GenerationCalls += retryGen.Calls
			logger.Warn().Msg("retry returned no image, keeping first image")
		} else {
			debug.GenerationCalls += retryGen.Calls
			p.tracker.Increment(quota.Retry)
			p.tracker.Increment(capability)

			if v := p.inspect(ctx, logger, req.Image, retryImg, analysis.Room); v != nil {
				verdict = v
			}

			result.Image = retryImg
			result.Model = retryGen.Model
			result.UsedFallback = retryGen.UsedFallback
			debug.DidRetry = true
			retryTemp := RetryTemperature
			debug.RetryTemperature = &retryTemp
		}
	}

	debug.Verdict = verdict
	if verdict != nil {
		debug.InspectionResult = verdict
	} else {
		debug.InspectionResult = InspectionSkipped{Message: "inspection skipped"}
	}
	debug.UsedFallbackModel = result.UsedFallback
	debug.ActualModelUsed = result.Model

	result.Debug = debug
	result.Usage = p.tracker.Status()

	logger.Info().
		Str("model", result.Model).
		Bool("usedFallback", result.UsedFallback).
		Bool("didRetry", debug.DidRetry).
		Int("generationCalls", debug.GenerationCalls).
		Msg("edit complete")

	return result, nil
}

// inspect runs the inspector if quota allows and charges inspection quota
// when a verdict comes back.
func (p *Pipeline) inspect(ctx context.Context, logger zerolog.Logger, original, generated llm.Image, room RoomClass) *InspectionVerdict {
	if !p.tracker.CanUse(quota.Inspection) {
		logger.Info().Msg("inspection limit reached, skipping inspection")
		return nil
	}
	verdict := p.inspector.Inspect(ctx, original, generated, room)
	if verdict != nil {
		p.tracker.Increment(quota.Inspection)
	}
	return verdict
}

func nonNilRegions(regions []ProtectedRegion) []ProtectedRegion {
	if regions == nil {
		return []ProtectedRegion{}
	}
	return regions
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
