package cleanup

import (
	"github.com/raine/katazuke-proxy/internal/quota"
)

// EditMode selects how aggressive the cleanup instruction is.
type EditMode string

const (
	ModeStandard EditMode = "standard"
	ModeStrong   EditMode = "strong"
	ModeLight    EditMode = "light"
)

// ParseEditType maps the wire editType to an EditMode. Unknown values
// fall back to ModeLight.
func ParseEditType(editType string) EditMode {
	switch editType {
	case "future_vision":
		return ModeStandard
	case "future_vision_stronger":
		return ModeStrong
	default:
		return ModeLight
	}
}

// Tier is the quality/cost level of the image model.
type Tier string

const (
	TierStandard    Tier = "standard"
	TierHighQuality Tier = "high-quality"
)

// Capability returns the quota capability a generation at this tier charges.
func (t Tier) Capability() quota.Capability {
	if t == TierHighQuality {
		return quota.HighQualityGeneration
	}
	return quota.StandardGeneration
}

// RoomClass drives which room-specific protection rules are added.
type RoomClass string

const (
	RoomKitchen RoomClass = "kitchen"
	RoomBedroom RoomClass = "bedroom"
	RoomLiving  RoomClass = "living"
	RoomOffice  RoomClass = "office"
	RoomGeneral RoomClass = "general"
)

// ParseRoomClass normalizes a room type reported by analysis.
func ParseRoomClass(s string) RoomClass {
	switch RoomClass(s) {
	case RoomKitchen, RoomBedroom, RoomLiving, RoomOffice:
		return RoomClass(s)
	default:
		return RoomGeneral
	}
}

// BoundingBox is [yMin, xMin, yMax, xMax], normalized to 0..1.
type BoundingBox [4]float64

// RegionKind tells where a protected region came from in the analysis.
type RegionKind string

const (
	RegionCritical RegionKind = "critical"
	RegionKeep     RegionKind = "keep"
)

// ProtectedRegion marks an item whose pixels must not change.
type ProtectedRegion struct {
	Label      string      `json:"item"`
	Kind       RegionKind  `json:"-"`
	Type       string      `json:"-"`
	Box        BoundingBox `json:"bbox"`
	Confidence float64     `json:"-"`
}

// RemovalTarget is an item the generation should remove.
type RemovalTarget struct {
	Label    string
	Location string
}

// String renders the target as "<location> <item>".
func (t RemovalTarget) String() string {
	if t.Location == "" {
		return t.Label
	}
	return t.Location + " " + t.Label
}

// Analysis is the structured outcome of scene analysis.
type Analysis struct {
	Critical []ProtectedRegion
	Keep     []ProtectedRegion
	Targets  []RemovalTarget
	Room     RoomClass
	// Degraded is set when the defaults were used because analysis failed.
	Degraded bool
}

// ProtectedRegions returns critical regions followed by keep regions.
func (a Analysis) ProtectedRegions() []ProtectedRegion {
	regions := make([]ProtectedRegion, 0, len(a.Critical)+len(a.Keep))
	regions = append(regions, a.Critical...)
	return append(regions, a.Keep...)
}

// Verdict is the inspector's judgment.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// InspectionVerdict is the parsed result of one inspection.
type InspectionVerdict struct {
	Verdict         Verdict  `json:"verdict"`
	StructuralScore int      `json:"structuralScore"`
	ApplianceScore  int      `json:"applianceScore"`
	CleanupScore    int      `json:"cleanupScore"`
	MissingItems    []string `json:"missingItems"`
	Issues          []string `json:"issues"`
	Reason          string   `json:"reason"`
	FixInstruction  *string  `json:"fixInstruction"`
}

// Passed reports whether the verdict is PASS.
func (v *InspectionVerdict) Passed() bool {
	return v != nil && v.Verdict == VerdictPass
}

// GenerationAttempt describes one generation pass of a request.
type GenerationAttempt struct {
	Number      int
	Temperature float32
	Tier        Tier
	Instruction string
}
