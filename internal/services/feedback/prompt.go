package feedback

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"classcoach/internal/analysis"
)

//go:embed system_prompt.txt
var systemPrompt string

const (
	userPromptPrefix = "Analyze this classroom teaching session and provide educational feedback:\n\n"
	transcriptLimit  = 500
	fillerLimit      = 5
)

// SystemPrompt returns the RIC rubric sent as the system message.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// BuildUserPrompt renders the lesson context and stage metrics as the user
// message.
func BuildUserPrompt(lesson analysis.EducationalContext, transcription, prosody analysis.Document) string {
	return userPromptPrefix + summarize(lesson, transcription, prosody)
}

func summarize(lesson analysis.EducationalContext, transcription, prosody analysis.Document) string {
	lesson = lesson.WithDefaults()
	var b strings.Builder

	b.WriteString("=== CONTEXTO EDUCATIVO ===\n")
	fmt.Fprintf(&b, "Materia: %s\n", lesson.Subject)
	fmt.Fprintf(&b, "Grado: %s\n", lesson.GradeLevel)
	fmt.Fprintf(&b, "Tema de la clase: %s\n", lesson.LessonTopic)
	if extra := strings.TrimSpace(lesson.AdditionalContext); extra != "" {
		fmt.Fprintf(&b, "Contexto adicional: %s\n", extra)
	}

	if len(transcription) > 0 {
		b.WriteString("\n=== ANÁLISIS DE TRANSCRIPCIÓN ===\n")
		text, ok := transcription.String("text")
		if !ok {
			text = "N/A"
		}
		fmt.Fprintf(&b, "Texto: %s...\n", truncateRunes(text, transcriptLimit))
		wpm, _ := transcription.Float("wpm")
		fmt.Fprintf(&b, "Velocidad de habla: %s palabras por minuto\n", formatNumber(wpm))
		pauses, _ := transcription.Object("pauses")
		count, _ := pauses.Float("count")
		avg, _ := pauses.Float("avg_ms")
		fmt.Fprintf(&b, "Total de pausas: %s\n", formatNumber(count))
		fmt.Fprintf(&b, "Duración promedio de pausas: %sms\n", formatNumber(avg))
		if fillers, ok := transcription.Object("fillers"); ok && len(fillers) > 0 {
			fmt.Fprintf(&b, "Muletillas detectadas: %s\n", topFillers(fillers, fillerLimit))
		}
	}

	if len(prosody) > 0 {
		b.WriteString("\n=== ANÁLISIS PROSÓDICO ===\n")
		fmt.Fprintf(&b, "Tono promedio: %.1f Hz\n", floatOrZero(prosody, "f0_mean_hz"))
		fmt.Fprintf(&b, "Rango de tono: %.1f Hz\n", floatOrZero(prosody, "f0_range_hz"))
		fmt.Fprintf(&b, "Variabilidad del tono (Jitter): %.2f%%\n", floatOrZero(prosody, "jitter_local"))
		fmt.Fprintf(&b, "Estabilidad del volumen (Shimmer): %.2f%%\n", floatOrZero(prosody, "shimmer_local"))
		fmt.Fprintf(&b, "Volumen promedio: %.1f dB\n", floatOrZero(prosody, "intensity_mean_db"))
		fmt.Fprintf(&b, "Rango de volumen: %.1f dB\n", floatOrZero(prosody, "intensity_range_db"))
		if rate, ok := prosody.Float("speech_rate"); ok {
			fmt.Fprintf(&b, "Núcleos silábicos por minuto: %.1f\n", rate)
		}
		if ratio, ok := prosody.Float("phonation_ratio"); ok {
			fmt.Fprintf(&b, "Proporción de fonación: %.0f%%\n", ratio*100)
		}
		if method, ok := prosody.String("method"); ok && method == "estimated" {
			b.WriteString("Nota: valores prosódicos estimados, no medidos.\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func floatOrZero(doc analysis.Document, key string) float64 {
	v, _ := doc.Float(key)
	return v
}

// formatNumber prints whole numbers without a decimal part.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func topFillers(fillers analysis.Document, limit int) string {
	type entry struct {
		word  string
		count float64
	}
	entries := make([]entry, 0, len(fillers))
	for word := range fillers {
		count, _ := fillers.Float(word)
		entries = append(entries, entry{word: word, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].word < entries[j].word
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s: %s", e.word, formatNumber(e.count))
	}
	return strings.Join(parts, ", ")
}
