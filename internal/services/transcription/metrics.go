package transcription

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Filler words counted in Spanish classroom speech. Multi-word entries are
// matched as consecutive tokens.
var spanishFillers = []string{
	"eh", "este", "esto", "um", "uh", "mm", "hmm", "bueno", "o sea",
	"entonces", "pues", "como", "verdad", "no", "si", "claro",
	"emmm", "eeeh", "aaa", "eee",
}

const (
	pausePunctuation = ".,;:!?"
	estimatedPauseMS = 500
	estimatedMaxMS   = 1000
	estimatedMinMS   = 200
)

// PauseStats estimates pauses from sentence punctuation.
type PauseStats struct {
	Count   int `json:"count"`
	AvgMS   int `json:"avg_ms"`
	TotalMS int `json:"total_ms"`
	MaxMS   int `json:"max_ms"`
	MinMS   int `json:"min_ms"`
}

// SpeechMetrics summarizes delivery characteristics of a transcript.
type SpeechMetrics struct {
	WordCount   int            `json:"word_count"`
	WPM         float64        `json:"wpm"`
	Fillers     map[string]int `json:"fillers"`
	FillerCount int            `json:"filler_count"`
	FillerRate  float64        `json:"filler_rate"`
	Pauses      PauseStats     `json:"pauses"`
}

// TopFillers returns up to n fillers ordered by count, then alphabetically.
func (m SpeechMetrics) TopFillers(n int) []string {
	names := make([]string, 0, len(m.Fillers))
	for name := range m.Fillers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if m.Fillers[names[i]] != m.Fillers[names[j]] {
			return m.Fillers[names[i]] > m.Fillers[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

var spanishLower = cases.Lower(language.Spanish)

// ComputeMetrics derives speech metrics from a transcript. The speaking rate
// uses the span between the first and last segment; without segments it falls
// back to the reported duration and then to treating the text as one minute.
func ComputeMetrics(text string, segments []Segment, duration float64) SpeechMetrics {
	wordCount := len(strings.Fields(text))

	var wpm float64
	switch {
	case len(segments) > 0:
		span := segments[len(segments)-1].End - segments[0].Start
		if span > 0 {
			wpm = float64(wordCount) / span * 60
		}
	case duration > 0:
		wpm = float64(wordCount) / duration * 60
	default:
		wpm = float64(wordCount)
	}

	fillers := countFillers(text)
	total := 0
	for _, n := range fillers {
		total += n
	}
	var rate float64
	if wordCount > 0 {
		rate = round(float64(total)/float64(wordCount)*100, 2)
	}

	return SpeechMetrics{
		WordCount:   wordCount,
		WPM:         round(wpm, 1),
		Fillers:     fillers,
		FillerCount: total,
		FillerRate:  rate,
		Pauses:      estimatePauses(text),
	}
}

func countFillers(text string) map[string]int {
	tokens := strings.FieldsFunc(spanishLower.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
	counts := make(map[string]int)
	for _, filler := range spanishFillers {
		parts := strings.Fields(filler)
		for i := 0; i+len(parts) <= len(tokens); i++ {
			if matchesAt(tokens, i, parts) {
				counts[filler]++
			}
		}
	}
	return counts
}

func matchesAt(tokens []string, i int, parts []string) bool {
	for j, part := range parts {
		if tokens[i+j] != part {
			return false
		}
	}
	return true
}

func estimatePauses(text string) PauseStats {
	count := 0
	for _, r := range text {
		if strings.ContainsRune(pausePunctuation, r) {
			count++
		}
	}
	return PauseStats{
		Count:   count,
		AvgMS:   estimatedPauseMS,
		TotalMS: count * estimatedPauseMS,
		MaxMS:   estimatedMaxMS,
		MinMS:   estimatedMinMS,
	}
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
