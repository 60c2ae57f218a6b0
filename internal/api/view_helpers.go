package api

import (
	"fmt"
	"slices"
	"strings"

	"classcoach/internal/analysis"
)

// ScoreEntry is one rubric dimension from a feedback document.
type ScoreEntry struct {
	Dimension string
	Score     float64
}

// OverallScore extracts scores.overall from a feedback document.
func OverallScore(feedback analysis.Document) (float64, bool) {
	scores, ok := feedback.Object("scores")
	if !ok {
		return 0, false
	}
	return scores.Float("overall")
}

// Scores lists the rubric dimensions with overall first and the rest sorted
// by name.
func Scores(feedback analysis.Document) []ScoreEntry {
	scores, ok := feedback.Object("scores")
	if !ok {
		return nil
	}
	out := make([]ScoreEntry, 0, len(scores))
	for key := range scores {
		if value, ok := scores.Float(key); ok {
			out = append(out, ScoreEntry{Dimension: key, Score: value})
		}
	}
	slices.SortFunc(out, func(a, b ScoreEntry) int {
		switch {
		case a.Dimension == "overall":
			return -1
		case b.Dimension == "overall":
			return 1
		default:
			return strings.Compare(a.Dimension, b.Dimension)
		}
	})
	return out
}

// Recommendations normalizes the recommendations field to a list.
func Recommendations(feedback analysis.Document) []string {
	switch v := feedback["recommendations"].(type) {
	case string:
		if text := strings.TrimSpace(v); text != "" {
			return []string{text}
		}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if text := strings.TrimSpace(fmt.Sprint(item)); text != "" {
				out = append(out, text)
			}
		}
		return out
	}
	return nil
}

// MetricFloat extracts a numeric field from a stage document, or fallback.
func MetricFloat(doc analysis.Document, key string, fallback float64) float64 {
	if value, ok := doc.Float(key); ok {
		return value
	}
	return fallback
}
