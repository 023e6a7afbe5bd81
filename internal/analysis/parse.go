// Package analysis normalizes the model's best-effort JSON output into the
// persisted result record. Malformed output degrades, it never fails a task.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"callscribe/internal/queue"
)

// Defaults for absent or unusable fields, kept user-visible in Russian since
// they surface directly in reports.
const (
	defaultSummary    = "Без саммари"
	defaultSentiment  = "N/A"
	defaultAddress    = "Не указан"
	defaultDialogType = "N/A"
	noMarkersSummary  = "Нет маркеров"
	malformedSummary  = "Ошибка формата ответа нейросети"
	malformedAddress  = "Не определен"
	malformedDialog   = "Не определен"
	rawSnippetRunes   = 100
	minDialogueRunes  = 10
)

// Marker is a single operator-conduct violation flagged by the analysis.
type Marker struct {
	Type   string
	Phrase string
}

// Outcome is the normalized analysis output. Degraded outcomes carry the raw
// transcript and placeholder fields instead of parsed values.
type Outcome struct {
	Result   queue.Result
	Markers  []Marker
	Degraded bool
}

// Parse turns the model's raw response into a persistable outcome. transcript
// is the cleaned recognition text used as the fallback dialogue on any parse
// or safety-check failure.
func Parse(raw, transcript string) Outcome {
	cleaned := stripFences(raw)

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Outcome{
			Degraded: true,
			Result: queue.Result{
				Summary:        malformedSummary,
				Sentiment:      defaultSentiment,
				Address:        malformedAddress,
				DialogType:     malformedDialog,
				MarkersSummary: truncateRunes(raw, rawSnippetRunes),
				Transcript:     transcript,
			},
		}
	}

	result := queue.Result{
		Summary:         stringField(payload, "summary", defaultSummary),
		Sentiment:       stringField(payload, "sentiment", defaultSentiment),
		Address:         joinedField(payload, "address", ", ", defaultAddress),
		DialogType:      stringField(payload, "dialog_type", defaultDialogType),
		ResidentPhrase:  stringField(payload, "resident_phrase", ""),
		ProblemDuration: stringField(payload, "accident_duration", ""),
	}

	relevant := boolField(payload, "is_relevant_hard")
	result.IsRelevant = relevant
	// Category flags only mean something for a relevant call; an irrelevant
	// one never contributes to statistics regardless of what the model set.
	if relevant {
		if stats, ok := payload["stats_categories"].(map[string]any); ok {
			result.RefusalDeadline = boolField(stats, "refusal_deadline")
			result.NoBrigade = boolField(stats, "no_brigade")
			result.LongDuration = boolField(stats, "long_duration")
			result.RedirectOtherOrg = boolField(stats, "redirect_other_org")
		}
	}

	if loc, ok := payload["location"].(map[string]any); ok {
		result.Street = stringField(loc, "street", "")
		result.House = stringField(loc, "house", "")
	}

	markers := parseMarkers(payload["markers"])
	if len(markers) > 0 {
		parts := make([]string, 0, len(markers))
		for _, m := range markers {
			parts = append(parts, fmt.Sprintf("%s ('%s')", m.Type, m.Phrase))
		}
		result.MarkersSummary = strings.Join(parts, "; ")
	} else {
		result.MarkersSummary = noMarkersSummary
	}

	dialogue := joinedField(payload, "cleaned_dialogue", "\n", transcript)
	if utf8.RuneCountInString(dialogue) < minDialogueRunes {
		dialogue = transcript
	}
	result.Transcript = dialogue

	return Outcome{Result: result, Markers: markers}
}

// stripFences removes a surrounding markdown code fence that leaked through
// despite the prompt asking for bare JSON.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if _, rest, found := strings.Cut(cleaned, "\n"); found {
			cleaned = rest
		}
	}
	if strings.HasSuffix(cleaned, "```") {
		if idx := strings.LastIndex(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}
	return cleaned
}

func stringField(payload map[string]any, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	return coerceString(value)
}

// joinedField reads a field that should be a string but is sometimes a list.
func joinedField(payload map[string]any, key, sep, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	if list, ok := value.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, coerceString(item))
		}
		return strings.Join(parts, sep)
	}
	return coerceString(value)
}

func boolField(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func parseMarkers(value any) []Marker {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	markers := make([]Marker, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Type:   stringField(entry, "marker_type", "Marker"),
			Phrase: stringField(entry, "operator_phrase", ""),
		})
	}
	if len(markers) == 0 {
		return nil
	}
	return markers
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
