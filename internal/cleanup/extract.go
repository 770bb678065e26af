package cleanup

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/rs/zerolog/log"
)

// DefaultConfidence is used when a region carries no valid confidence.
const DefaultConfidence = 0.8

// DefaultRemovalTargets is the generic clutter list used when analysis is
// unavailable.
var DefaultRemovalTargets = []RemovalTarget{
	{Label: "papers and documents", Location: "on the counter"},
	{Label: "small items and knick-knacks", Location: "on the counter"},
	{Label: "scattered dishes and cups"},
	{Label: "trash, empty boxes and packaging"},
	{Label: "items", Location: "on the floor"},
}

var itemFieldPattern = regexp.MustCompile(`"item"\s*:\s*"([^"]+)"`)

type rawRegion struct {
	Item       string          `json:"item"`
	Type       string          `json:"type"`
	BBox       json.RawMessage `json:"bbox"`
	Confidence json.RawMessage `json:"confidence"`
}

type rawTarget struct {
	Item     string `json:"item"`
	Location string `json:"location"`
}

// DegradedAnalysis is the result used when the analysis call failed.
func DegradedAnalysis() Analysis {
	return Analysis{
		Targets:  append([]RemovalTarget(nil), DefaultRemovalTargets...),
		Room:     RoomKitchen,
		Degraded: true,
	}
}

// ExtractAnalysis turns raw analysis output into an Analysis. callErr is the
// error of the analysis call itself, if any. It never fails: a failed call or
// unparseable output yields DegradedAnalysis, and output that is not valid
// JSON but still names items yields those items as removal targets.
func ExtractAnalysis(text string, callErr error) Analysis {
	if callErr != nil {
		log.Warn().Err(callErr).Msg("scene analysis failed, using default removal list")
		return DegradedAnalysis()
	}

	fields, err := parseFields(text)
	if err != nil {
		targets := scanItemFragments(text)
		if len(targets) == 0 {
			log.Warn().Err(err).Msg("scene analysis unparseable, using default removal list")
			return DegradedAnalysis()
		}
		log.Warn().Err(err).Int("items", len(targets)).Msg("scene analysis partially parsed")
		return Analysis{Targets: targets, Room: RoomGeneral}
	}

	analysis := Analysis{
		Critical: parseRegions(fields["critical_appliances"], RegionCritical),
		Keep:     parseRegions(fields["keep_items"], RegionKeep),
		Targets:  parseTargets(fields["remove_items"]),
		Room:     RoomGeneral,
	}
	if raw, ok := fields["room_type"]; ok {
		var room string
		if json.Unmarshal(raw, &room) == nil {
			analysis.Room = ParseRoomClass(strings.ToLower(strings.TrimSpace(room)))
		}
	}

	log.Info().
		Str("room", string(analysis.Room)).
		Int("critical", len(analysis.Critical)).
		Int("keep", len(analysis.Keep)).
		Int("remove", len(analysis.Targets)).
		Msg("scene analysis parsed")

	return analysis
}

func parseFields(text string) (map[string]json.RawMessage, error) {
	obj, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// elements splits a JSON array into its raw elements. Anything that is not an
// array yields nil.
func elements(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	return elems
}

func parseRegions(raw json.RawMessage, kind RegionKind) []ProtectedRegion {
	var regions []ProtectedRegion
	for _, elem := range elements(raw) {
		var r rawRegion
		if err := json.Unmarshal(elem, &r); err != nil {
			continue
		}
		box, ok := parseBoundingBox(r.BBox)
		if !ok {
			continue
		}
		regions = append(regions, ProtectedRegion{
			Label:      r.Item,
			Kind:       kind,
			Type:       r.Type,
			Box:        box,
			Confidence: parseConfidence(r.Confidence),
		})
	}
	return regions
}

func parseTargets(raw json.RawMessage) []RemovalTarget {
	var targets []RemovalTarget
	for _, elem := range elements(raw) {
		var t rawTarget
		if err := json.Unmarshal(elem, &t); err != nil || strings.TrimSpace(t.Item) == "" {
			continue
		}
		targets = append(targets, RemovalTarget{
			Label:    strings.TrimSpace(t.Item),
			Location: strings.TrimSpace(t.Location),
		})
	}
	return targets
}

// thousandScaleCutoff separates normalized boxes that overshoot a little from
// boxes on a 0..1000 scale.
const thousandScaleCutoff = 2.0

// parseBoundingBox accepts exactly four numbers. A box with any value above
// thousandScaleCutoff is on a 0..1000 scale and is rescaled. Every value is
// then clamped into 0..1, so a generous margin never drops or shrinks the box.
func parseBoundingBox(raw json.RawMessage) (BoundingBox, bool) {
	var values []float64
	if len(raw) == 0 || json.Unmarshal(raw, &values) != nil || len(values) != 4 {
		return BoundingBox{}, false
	}

	scale := 1.0
	for _, v := range values {
		if v > thousandScaleCutoff {
			scale = 1000
		}
	}

	var box BoundingBox
	for i, v := range values {
		box[i] = min(max(v/scale, 0), 1)
	}
	return box, true
}

func parseConfidence(raw json.RawMessage) float64 {
	var c float64
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil || c <= 0 || c > 1 {
		return DefaultConfidence
	}
	return c
}

// scanItemFragments recovers "item" values from text that failed to parse.
// When a remove_items key is present only the text after it is scanned, so
// appliances listed earlier are not turned into removal targets.
func scanItemFragments(text string) []RemovalTarget {
	if i := strings.Index(text, `"remove_items"`); i >= 0 {
		text = text[i:]
	}
	var targets []RemovalTarget
	for _, m := range itemFieldPattern.FindAllStringSubmatch(text, -1) {
		targets = append(targets, RemovalTarget{Label: m[1]})
	}
	return targets
}
