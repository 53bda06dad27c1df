package adapt

import "bridgetalk/internal/llm"

// AdaptSchema defines the JSON schema for single-message adaptation.
var AdaptSchema = &llm.Schema{
	Name:        "adapt-message",
	Description: "An adapted message with an optional contextual note",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"adapted_text": map[string]any{
				"type":        "string",
				"description": "The message adapted into the requested direction",
			},
			"note": map[string]any{
				"type":        "string",
				"description": "One sentence on what was adjusted and why, or empty",
			},
		},
		"required":             []any{"adapted_text", "note"},
		"additionalProperties": false,
	},
}

// OptionsSchema defines the JSON schema for strategy generation.
var OptionsSchema = &llm.Schema{
	Name:        "phrasing-strategies",
	Description: "Three distinct phrasing strategies for a stated intent",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"options": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"strategy": map[string]any{
							"type":        "string",
							"description": "Short strategy label (2-4 words)",
						},
						"reference_text": map[string]any{
							"type":        "string",
							"description": "The refined phrasing in English",
						},
						"target_text": map[string]any{
							"type":        "string",
							"description": "The same phrasing in the student's language",
						},
						"rationale": map[string]any{
							"type":        "string",
							"description": "One sentence on when this strategy works",
						},
					},
					"required":             []any{"strategy", "reference_text", "target_text", "rationale"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"options"},
		"additionalProperties": false,
	},
}

// AnalysisSchema defines the JSON schema for profile analysis.
var AnalysisSchema = &llm.Schema{
	Name:        "profile-analysis",
	Description: "Updated sensitivity profile and teacher guide for a student",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sensitivities": map[string]any{
				"type":        "string",
				"description": "Rewritten comma-separated sensitivities list",
			},
			"guide": map[string]any{
				"type":        "string",
				"description": "Practical communication guide for the teacher (3-5 sentences)",
			},
		},
		"required":             []any{"sensitivities", "guide"},
		"additionalProperties": false,
	},
}
