package feedback

import (
	"fmt"
	"strings"

	"classcoach/internal/analysis"
	"classcoach/internal/services"
)

var rubricDimensions = []string{
	"speech_delivery",
	"engagement_pace",
	"vocal_variety",
	"professional_communication",
	"grade_level_appropriateness",
}

// normalize fills scores and recommendations from the older rubric layout
// (overall_score, detailed_analysis.*.score, action_plan) when a model answers
// in that shape.
func normalize(doc analysis.Document) {
	if _, ok := doc["scores"]; !ok {
		scores := map[string]any{}
		if overall, ok := doc.Float("overall_score"); ok {
			scores["overall"] = overall
		}
		if detailed, ok := doc.Object("detailed_analysis"); ok {
			for _, dim := range rubricDimensions {
				section, ok := detailed.Object(dim)
				if !ok {
					continue
				}
				if score, ok := section.Float("score"); ok {
					scores[dim] = score
				}
			}
		}
		if len(scores) > 0 {
			doc["scores"] = scores
		}
	}
	if _, ok := doc["recommendations"]; !ok {
		if plan, ok := doc["action_plan"]; ok {
			doc["recommendations"] = plan
		}
	}
}

// validate enforces the stored feedback contract: scores is a non-empty object
// of numbers within 0..100 and recommendations is a non-empty string or list
// of strings.
func validate(doc analysis.Document) error {
	scores, ok := doc.Object("scores")
	if !ok {
		return invalid("scores missing or not an object")
	}
	if len(scores) == 0 {
		return invalid("scores is empty")
	}
	for name := range scores {
		value, ok := scores.Float(name)
		if !ok {
			return invalid(fmt.Sprintf("score %q is not a number", name))
		}
		if value < 0 || value > 100 {
			return invalid(fmt.Sprintf("score %q out of range: %v", name, value))
		}
	}

	switch recs := doc["recommendations"].(type) {
	case string:
		if strings.TrimSpace(recs) == "" {
			return invalid("recommendations is empty")
		}
	case []any:
		if len(recs) == 0 {
			return invalid("recommendations is empty")
		}
		for i, item := range recs {
			text, ok := item.(string)
			if !ok || strings.TrimSpace(text) == "" {
				return invalid(fmt.Sprintf("recommendation %d is not text", i))
			}
		}
	case nil:
		return invalid("recommendations missing")
	default:
		return invalid("recommendations must be text or a list of text")
	}
	return nil
}

func invalid(message string) error {
	return services.Wrap(services.ErrInvalidResponse, stageName, "validate", message, nil)
}
