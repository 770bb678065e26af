package cleanup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"
)

// SectionKind identifies one block of a generation instruction.
type SectionKind string

// Sections appear in this order.
const (
	SectionRetry      SectionKind = "retry"
	SectionProtection SectionKind = "protection"
	SectionInvariants SectionKind = "invariants"
	SectionRemoval    SectionKind = "removal"
	SectionMode       SectionKind = "mode"
	SectionTierBoost  SectionKind = "tier-boost"
	SectionQuality    SectionKind = "quality"
)

// Section is one rendered block.
type Section struct {
	Kind SectionKind
	Text string
}

// Instruction is a composed generation instruction.
type Instruction struct {
	Sections []Section
}

// String renders the instruction as sent to the backend.
func (in Instruction) String() string {
	texts := make([]string, len(in.Sections))
	for i, s := range in.Sections {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n\n")
}

// Has reports whether the instruction contains a section of the given kind.
func (in Instruction) Has(kind SectionKind) bool {
	for _, s := range in.Sections {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// Kinds lists the section kinds in order.
func (in Instruction) Kinds() []SectionKind {
	kinds := make([]SectionKind, len(in.Sections))
	for i, s := range in.Sections {
		kinds[i] = s.Kind
	}
	return kinds
}

// RetryContext carries what the inspector said about the rejected attempt.
type RetryContext struct {
	FixInstruction string
	Reason         string
}

// ComposeInput holds everything the composer needs.
type ComposeInput struct {
	Mode    EditMode
	Targets []RemovalTarget
	Room    RoomClass
	Regions []ProtectedRegion
	// StandardTierBoost adds the aggressive cleanup block used for the
	// standard model, which tends to under-edit.
	StandardTierBoost bool
	Retry             *RetryContext
}

// ComposeInstruction builds the first-attempt instruction text.
func ComposeInstruction(mode EditMode, targets []RemovalTarget, room RoomClass, regions []ProtectedRegion) string {
	return Compose(ComposeInput{Mode: mode, Targets: targets, Room: room, Regions: regions}).String()
}

// Compose assembles the instruction sections. The output depends only on
// the input.
func Compose(in ComposeInput) Instruction {
	var sections []Section
	if in.Retry != nil {
		sections = append(sections, Section{SectionRetry, retrySection(in.Retry, in.Regions)})
	}
	sections = append(sections,
		Section{SectionProtection, protectionSection(in.Regions)},
		Section{SectionInvariants, invariantsSection(in.Room, len(in.Regions) > 0)},
		Section{SectionRemoval, removalSection(in.Targets)},
		Section{SectionMode, modeSection(in.Mode)},
	)
	if in.StandardTierBoost {
		sections = append(sections, Section{SectionTierBoost, formatSection(tierBoostText)})
	}
	sections = append(sections, Section{SectionQuality, formatSection(qualityText)})
	return Instruction{Sections: sections}
}

func formatSection(text string) string {
	return strings.TrimSpace(dedent.Dedent(text))
}

func formatBox(box BoundingBox) string {
	parts := make([]string, len(box))
	for i, v := range box {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func protectionSection(regions []ProtectedRegion) string {
	var b strings.Builder
	b.WriteString(formatSection(`
		######################################################################
		#  CRITICAL - DO NOT REMOVE - READ THIS FIRST                        #
		######################################################################

		THE FOLLOWING ITEMS MUST REMAIN VISIBLE IN THE OUTPUT IMAGE.
		IF ANY OF THESE ITEMS DISAPPEAR OR ARE ALTERED, THE GENERATION IS A FAILURE.

		[PROTECTED ITEMS]
	`))
	b.WriteString("\n")

	if len(regions) == 0 {
		b.WriteString("- IH cooktop / gas stove (if visible)\n")
		b.WriteString("- Kitchen sink and faucet (if visible)\n")
		b.WriteString("- All large furniture and appliances")
		return b.String()
	}

	for i, r := range regions {
		fmt.Fprintf(&b, "★ %d. %s | PROTECTED ZONE: %s\n", i+1, r.Label, formatBox(r.Box))
	}
	b.WriteString("\n[PIXEL-LEVEL PROTECTION ZONES]\n")
	b.WriteString("These coordinate regions contain essential items.\n")
	b.WriteString("You MUST preserve the ORIGINAL PIXELS in these regions EXACTLY as they are:\n")
	for i, r := range regions {
		fmt.Fprintf(&b, "ZONE %d: %s -> bbox%s - DO NOT MODIFY", i+1, r.Label, formatBox(r.Box))
		if i < len(regions)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

const baseInvariantsText = `
	[IMMUTABLE LAWS - ABSOLUTELY DO NOT ALTER]

	1. CAMERA & PERSPECTIVE
	   - Keep the EXACT same camera angle and focal length
	   - Maintain the original perspective and vanishing points
	   - Do NOT change the viewpoint or crop

	2. LIGHTING & SHADOWS
	   - Preserve the original lighting direction and intensity
	   - Keep all existing shadows in their original positions
	   - Do NOT add new light sources or change ambient lighting

	3. ARCHITECTURAL ELEMENTS
	   - Walls, ceiling and floor materials are PERMANENT
	   - Windows, doors and their frames cannot be moved or altered
	   - Curtains, blinds and window treatments stay as-is

	4. TEXTURE PRESERVATION
	   - Maintain the exact wood grain pattern of floors
	   - Keep wall paint texture and color identical
	   - Preserve carpet patterns and fabric textures

	5. FIXED INSTALLATIONS
	   - Kitchen appliances (stove, sink, refrigerator) are BOLTED DOWN
	   - Built-in cabinets and shelving are PERMANENT
	   - Ceiling lights and fixtures cannot be removed
`

var roomInvariants = map[RoomClass]string{
	RoomKitchen: `
		6. KITCHEN-SPECIFIC PROTECTION
		   - IH cooktop / gas burners: MUST remain visible and unchanged
		   - Range hood / ventilation: PERMANENT fixture
		   - Sink and faucet: cannot be altered
		   - Counter surfaces: keep original material and color
	`,
	RoomBedroom: `
		6. BEDROOM-SPECIFIC PROTECTION
		   - Bed frame and headboard: PERMANENT
		   - Closet doors and handles: cannot be altered
		   - Bedside tables: keep in original position
	`,
	RoomLiving: `
		6. LIVING ROOM-SPECIFIC PROTECTION
		   - Sofa and main seating: PERMANENT placement
		   - TV and entertainment unit: cannot be removed
		   - Coffee table: keep in original position
	`,
	RoomOffice: `
		6. OFFICE-SPECIFIC PROTECTION
		   - Desk and chair: PERMANENT placement
		   - Monitor and computer equipment: keep as-is
		   - Bookshelf: cannot be removed
	`,
}

func invariantsSection(room RoomClass, hasRegions bool) string {
	text := formatSection(baseInvariantsText)
	if extra, ok := roomInvariants[room]; ok {
		text += "\n\n" + formatSection(extra)
	}
	if hasRegions {
		text += "\n\n" + formatSection(`
			[ADDITIONAL PROTECTION REMINDER]
			The items and zones listed in the CRITICAL section above are IMMUTABLE.
			Any modification to these protected zones will result in rejection.
		`)
	}
	return text
}

func removalSection(targets []RemovalTarget) string {
	var b strings.Builder
	b.WriteString("[ITEMS TO REMOVE]\n")
	if len(targets) == 0 {
		b.WriteString("(no analysis result - remove general clutter)")
		return b.String()
	}
	for i, t := range targets {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, t)
	}
	return b.String()
}

func modeSection(mode EditMode) string {
	switch mode {
	case ModeStandard:
		return formatSection(`
			######################################################################
			#  MANDATORY: DRAMATIC TRANSFORMATION REQUIRED                       #
			######################################################################

			The output image MUST show a DRAMATIC "before and after" difference.
			If the input has clutter on counters or floors, the output MUST have CLEAN surfaces.
			A subtle change is NOT acceptable.

			[MISSION] Transform this messy room into a CLEAN, organized space.

			[REQUIRED RESULT]
			- Countertops: MUST be 90% clear (only permanent appliances remain)
			- Floor: MUST be completely clear of loose items
			- Sink area: MUST be clean and empty
			- The difference from the original MUST be immediately obvious

			[EDITING RULES]
			1. AGGRESSIVELY remove all clutter and loose items listed above
			2. Where items are removed, RECONSTRUCT the background from surrounding textures
			3. Do NOT add any new objects, decorations or furniture
			4. Preserve ONLY the items in PROTECTED ZONES
			5. The result should look professionally cleaned

			[TECHNIQUE]
			- Use content-aware fill to restore hidden surfaces
			- Match floor and wall textures seamlessly
			- Maintain consistent lighting across edited areas

			Generate a DRAMATICALLY CLEANER version of this room.
		`)
	case ModeStrong:
		return formatSection(`
			######################################################################
			#  MANDATORY: EXTREME TRANSFORMATION REQUIRED                        #
			######################################################################

			This is a DEEP CLEAN operation. Imagine a professional cleaning service spent hours on this room.
			If the change is not DRAMATIC, this generation is a FAILURE.

			[MISSION] Extreme deep clean to a "model home" level of cleanliness.

			[AGGRESSIVE CLEANUP REQUIREMENTS]
			- Clear 100% of loose items from ALL surfaces
			- Remove EVERYTHING from countertops except built-in appliances
			- Clear ALL floor clutter completely
			- Remove items from the sink area

			[ABSOLUTE PROHIBITIONS - VIOLATION = FAILURE]
			- NEVER remove or alter items in the PROTECTED ZONES
			- NEVER remove large furniture (tables, chairs, sofas, beds)
			- NEVER remove kitchen appliances (stove, cooktop, refrigerator, microwave, sink)
			- NEVER add vases, plants, flowers or decorations
			- NEVER change wall colors or floor materials
			- NEVER alter the room layout or furniture positions

			[RECONSTRUCTION TECHNIQUE]
			- Seamlessly restore the surface under removed clutter
			- Use the surrounding floor and table texture to fill gaps
			- Leave no ghost shadows or artifacts
			- DOUBLE-CHECK that protected zones are unchanged

			Create an EXTREMELY CLEAN version, like a model home showroom.
		`)
	default:
		return formatSection(`
			[MISSION] Light cleanup of this room.

			[RULES]
			- Remove only obvious clutter
			- Keep all furniture and appliances, especially those in PROTECTED ZONES
			- Do not add anything new
		`)
	}
}

const tierBoostText = `
	############################################################
	#  AGGRESSIVE CLEANUP REQUIRED                             #
	############################################################

	THIS IMAGE MUST LOOK DRAMATICALLY DIFFERENT AFTER CLEANING.
	Make this room look like a professional cleaner spent 2 hours here.

	REMOVE COMPLETELY:
	- ALL papers, documents and mail on surfaces
	- ALL dishes, cups and bottles
	- ALL clothes, bags and personal items
	- ALL small clutter and random objects
	- ALL trash and packaging

	RESULT REQUIRED:
	- Countertops 90% empty, only fixed appliances remain
	- Tables completely clear
	- No loose items visible on the floor

	IF THE OUTPUT LOOKS SIMILAR TO THE INPUT, THIS IS A FAILURE.
`

const qualityText = `
	[OUTPUT QUALITY REQUIREMENTS]
	- High-resolution photography quality (8K UHD)
	- Realistic shadows with soft edges
	- Natural indoor lighting preservation
	- Professional architectural photography style
	- No blur, no distortion, no artifacts
	- Clean and sharp edges on all objects
	- Photorealistic texture rendering
`

func retrySection(retry *RetryContext, regions []ProtectedRegion) string {
	reason := retry.FixInstruction
	if reason == "" {
		reason = retry.Reason
	}
	if reason == "" {
		reason = "The previous image did not pass quality inspection."
	}

	var reminder strings.Builder
	if len(regions) == 0 {
		reminder.WriteString("- All kitchen appliances (cooktop, sink, etc.) MUST REMAIN\n")
		reminder.WriteString("- All large furniture MUST REMAIN")
	}
	for i, r := range regions {
		if i > 0 {
			reminder.WriteString("\n")
		}
		fmt.Fprintf(&reminder, "- %s at bbox%s - MUST REMAIN", r.Label, formatBox(r.Box))
	}

	header := formatSection(`
		############################################################
		#  RETRY ATTEMPT - PREVIOUS GENERATION FAILED              #
		############################################################

		[FAILURE REASON]
	`)
	footer := formatSection(`
		[MANDATORY FIX]
		You MUST fix this issue. The previous image was REJECTED.

		[REMINDER - PROTECTED ITEMS]
	`)
	return header + "\n" + reason + "\n\n" + footer + "\n" + reminder.String() +
		"\n\nDO NOT repeat the same mistake. Be MORE CONSERVATIVE this time."
}
