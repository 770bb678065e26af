package cleanup

import "google.golang.org/genai"

func stringSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func numberSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }

func stringListSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: stringSchema()}
}

func objectSchema(properties map[string]*genai.Schema, ordering []string, required ...string) *genai.Schema {
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       properties,
		Required:         required,
		PropertyOrdering: ordering,
	}
}

func listOf(item *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: item}
}

// bboxSchema is [ymin, xmin, ymax, xmax].
func bboxSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       numberSchema(),
		Description: "[ymin, xmin, ymax, xmax] normalized to 0..1",
	}
}

// sceneAnalysisSchema pins the keys ExtractAnalysis reads.
var sceneAnalysisSchema = objectSchema(map[string]*genai.Schema{
	"critical_appliances": listOf(objectSchema(map[string]*genai.Schema{
		"item":       stringSchema(),
		"type":       stringSchema(),
		"bbox":       bboxSchema(),
		"confidence": numberSchema(),
	}, []string{"item", "type", "bbox", "confidence"}, "item", "bbox")),
	"keep_items": listOf(objectSchema(map[string]*genai.Schema{
		"item":     stringSchema(),
		"location": stringSchema(),
		"reason":   stringSchema(),
		"bbox":     bboxSchema(),
	}, []string{"item", "location", "reason", "bbox"}, "item")),
	"remove_items": listOf(objectSchema(map[string]*genai.Schema{
		"item":     stringSchema(),
		"location": stringSchema(),
		"reason":   stringSchema(),
	}, []string{"item", "location", "reason"}, "item")),
	"room_type":  stringSchema(),
	"confidence": numberSchema(),
},
	[]string{"critical_appliances", "keep_items", "remove_items", "room_type", "confidence"},
	"critical_appliances", "keep_items", "remove_items", "room_type",
)

// scoreSchema is a sub-score with its issues plus any extra string lists.
func scoreSchema(extraLists ...string) *genai.Schema {
	properties := map[string]*genai.Schema{
		"score":  {Type: genai.TypeInteger},
		"issues": stringListSchema(),
	}
	ordering := []string{"score", "issues"}
	for _, name := range extraLists {
		properties[name] = stringListSchema()
		ordering = append(ordering, name)
	}
	return objectSchema(properties, ordering, "score")
}

// inspectionSchema pins the keys ParseVerdict reads.
var inspectionSchema = objectSchema(map[string]*genai.Schema{
	"verdict":                {Type: genai.TypeString, Enum: []string{"PASS", "FAIL"}},
	"structural_integrity":   scoreSchema(),
	"appliance_preservation": scoreSchema("missing_appliances"),
	"cleanup_effectiveness":  scoreSchema(),
	"overall_reason":         stringSchema(),
	"fix_instruction":        {Type: genai.TypeString, Nullable: genai.Ptr(true)},
},
	[]string{"verdict", "structural_integrity", "appliance_preservation", "cleanup_effectiveness", "overall_reason", "fix_instruction"},
	"structural_integrity", "appliance_preservation", "cleanup_effectiveness", "overall_reason",
)
