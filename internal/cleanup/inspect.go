package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultPassThreshold is the minimum every sub-score must reach to PASS.
const DefaultPassThreshold = 8

// Inspector compares a generated image with its original. It returns nil
// when no verdict could be obtained.
type Inspector interface {
	Inspect(ctx context.Context, original, generated llm.Image, room RoomClass) *InspectionVerdict
}

// GeminiInspector asks a vision model for a structured verdict.
type GeminiInspector struct {
	client    *llm.Client
	model     string
	threshold int
}

// NewGeminiInspector creates an inspector. A threshold <= 0 selects
// DefaultPassThreshold.
func NewGeminiInspector(client *llm.Client, model string, threshold int) *GeminiInspector {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	return &GeminiInspector{client: client, model: model, threshold: threshold}
}

func (i *GeminiInspector) Inspect(ctx context.Context, original, generated llm.Image, room RoomClass) *InspectionVerdict {
	result, err := i.client.Generate(ctx, llm.Request{
		Model:   i.model,
		Purpose: "inspection",
		Parts: []*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(inspectionPrompt, room, i.threshold)),
			original.Part(),
			generated.Part(),
		},
		Config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.1),
			MaxOutputTokens:  1024,
			ResponseMIMEType: "application/json",
			ResponseSchema:   inspectionSchema,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("inspection unavailable")
		return nil
	}

	verdict, err := ParseVerdict(llm.FirstText(result), i.threshold)
	if err != nil {
		log.Warn().Err(err).Msg("inspection result unparseable")
		return nil
	}

	event := log.Info().
		Str("verdict", string(verdict.Verdict)).
		Int("structural", verdict.StructuralScore).
		Int("appliance", verdict.ApplianceScore).
		Int("cleanup", verdict.CleanupScore).
		Strs("missing", verdict.MissingItems).
		Str("reason", verdict.Reason)
	if verdict.FixInstruction != nil {
		event = event.Str("fix", *verdict.FixInstruction)
	}
	event.Msg("inspection complete")

	return verdict
}

type rawScore struct {
	Score  *float64 `json:"score"`
	Issues []string `json:"issues"`
}

type rawAppliance struct {
	rawScore
	MissingAppliances []string `json:"missing_appliances"`
}

type rawVerdict struct {
	Structural     *rawScore     `json:"structural_integrity"`
	Appliance      *rawAppliance `json:"appliance_preservation"`
	Cleanup        *rawScore     `json:"cleanup_effectiveness"`
	OverallReason  string        `json:"overall_reason"`
	FixInstruction *string       `json:"fix_instruction"`
}

var errMissingScore = errors.New("inspection result is missing a score")

// ParseVerdict parses inspector output. The verdict is derived from the
// scores; any verdict stated by the model is ignored.
func ParseVerdict(text string, threshold int) (*InspectionVerdict, error) {
	obj, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var raw rawVerdict
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse inspection result: %w", err)
	}
	if raw.Structural == nil || raw.Structural.Score == nil ||
		raw.Appliance == nil || raw.Appliance.Score == nil ||
		raw.Cleanup == nil || raw.Cleanup.Score == nil {
		return nil, errMissingScore
	}

	v := &InspectionVerdict{
		StructuralScore: clampScore(*raw.Structural.Score),
		ApplianceScore:  clampScore(*raw.Appliance.Score),
		CleanupScore:    clampScore(*raw.Cleanup.Score),
		MissingItems:    nonNil(raw.Appliance.MissingAppliances),
		Reason:          raw.OverallReason,
	}

	issues := make([]string, 0)
	issues = append(issues, raw.Structural.Issues...)
	issues = append(issues, raw.Appliance.Issues...)
	issues = append(issues, raw.Cleanup.Issues...)
	v.Issues = issues

	if raw.FixInstruction != nil && *raw.FixInstruction != "" {
		fix := *raw.FixInstruction
		v.FixInstruction = &fix
	}

	v.Verdict = DeriveVerdict(threshold, v.StructuralScore, v.ApplianceScore, v.CleanupScore)
	return v, nil
}

// DeriveVerdict is PASS only when every score reaches threshold.
func DeriveVerdict(threshold int, scores ...int) Verdict {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	for _, s := range scores {
		if s < threshold {
			return VerdictFail
		}
	}
	return VerdictPass
}

func clampScore(score float64) int {
	switch {
	case score < 0:
		return 0
	case score > 10:
		return 10
	default:
		return int(score)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
