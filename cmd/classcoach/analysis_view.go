package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
)

func renderAnalysis(item api.Analysis, colorize bool) string {
	var b strings.Builder

	pairs := [][2]string{
		{"ID", strconv.FormatInt(item.ID, 10)},
		{"File", item.OriginalFilename},
		{"Status", coloredStatus(item.Status, colorize)},
		{"Subject", item.Context.Subject},
		{"Grade", item.Context.GradeLevel},
		{"Topic", item.Context.LessonTopic},
		{"Created", relativeTime(item.CreatedAt)},
	}
	if item.Context.AdditionalContext != "" {
		pairs = append(pairs, [2]string{"Notes", item.Context.AdditionalContext})
	}
	if item.CompletedAt != "" {
		pairs = append(pairs, [2]string{"Finished", relativeTime(item.CompletedAt)})
	}
	if item.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", paint(item.ErrorMessage, ansiRed, colorize)})
	}
	b.WriteString(renderPairs(pairs))
	b.WriteString("\n")

	if metrics := metricRows(item); len(metrics) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(renderSectionHeader("Delivery", colorize), "\n"))
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Metric", "Value"}, metrics, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	if scores := api.Scores(item.Feedback); len(scores) > 0 {
		rows := make([][]string, 0, len(scores))
		for _, s := range scores {
			rows = append(rows, []string{statusLabel(s.Dimension), strconv.FormatFloat(s.Score, 'f', -1, 64)})
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(renderSectionHeader("Scores", colorize), "\n"))
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Dimension", "Score"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	if recs := api.Recommendations(item.Feedback); len(recs) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(renderSectionHeader("Recommendations", colorize), "\n"))
		b.WriteString("\n")
		for i, rec := range recs {
			fmt.Fprintf(&b, "%2d. %s\n", i+1, rec)
		}
	}
	return b.String()
}

func metricRows(item api.Analysis) [][]string {
	var rows [][]string
	add := func(label string, doc analysis.Document, key, unit string) {
		value, ok := doc.Float(key)
		if !ok {
			return
		}
		text := humanize.FormatFloat("#,###.#", value)
		if unit != "" {
			text += " " + unit
		}
		rows = append(rows, []string{label, text})
	}
	add("Duration", item.Transcription, "duration", "s")
	add("Words", item.Transcription, "word_count", "")
	add("Words per minute", item.Transcription, "wpm", "")
	add("Filler words", item.Transcription, "filler_count", "")
	add("Filler rate", item.Transcription, "filler_rate", "%")
	add("Speech rate", item.Prosody, "speech_rate", "wpm")
	add("Mean pitch", item.Prosody, "f0_mean_hz", "Hz")
	add("Pitch range", item.Prosody, "f0_range_hz", "Hz")
	add("Mean intensity", item.Prosody, "intensity_mean_db", "dB")
	if pauses, ok := item.Prosody.Object("pauses"); ok {
		add("Pauses", pauses, "count", "")
	}
	return rows
}

// relativeTime renders an API timestamp as "3 minutes ago", falling back to
// the raw value when it does not parse.
func relativeTime(value string) string {
	if value == "" {
		return "-"
	}
	t, ok := api.ParseTime(value)
	if !ok {
		return value
	}
	return humanize.Time(t)
}
