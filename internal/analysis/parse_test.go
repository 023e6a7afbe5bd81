package analysis_test

import (
	"strings"
	"testing"

	"callscribe/internal/analysis"
)

const fallbackTranscript = "диспетчер: слушаю вас, резидент: прорвало трубу на кухне"

func TestParseWellFormed(t *testing.T) {
	raw := `{
		"summary": "Прорыв трубы",
		"sentiment": "негативный",
		"address": "ул. Ленина 5",
		"dialog_type": "авария",
		"is_relevant_hard": true,
		"resident_phrase": "третий день течет",
		"accident_duration": "3 дня",
		"stats_categories": {"refusal_deadline": false, "no_brigade": true, "long_duration": true, "redirect_other_org": false},
		"location": {"street": "Ленина", "house": "5"},
		"markers": [{"marker_type": "Грубость", "operator_phrase": "это не наша проблема"}],
		"cleaned_dialogue": "Диспетчер: слушаю вас.\nЖитель: прорвало трубу."
	}`

	out := analysis.Parse(raw, fallbackTranscript)
	if out.Degraded {
		t.Fatal("expected well-formed outcome")
	}
	r := out.Result
	if r.Summary != "Прорыв трубы" || r.Sentiment != "негативный" {
		t.Fatalf("unexpected summary/sentiment: %+v", r)
	}
	if !r.IsRelevant || !r.NoBrigade || !r.LongDuration {
		t.Fatalf("unexpected flags: %+v", r)
	}
	if r.RefusalDeadline || r.RedirectOtherOrg {
		t.Fatalf("expected unset flags to stay false: %+v", r)
	}
	if r.Street != "Ленина" || r.House != "5" {
		t.Fatalf("unexpected location: %+v", r)
	}
	if r.MarkersSummary != "Грубость ('это не наша проблема')" {
		t.Fatalf("unexpected markers summary: %q", r.MarkersSummary)
	}
	if len(out.Markers) != 1 || out.Markers[0].Type != "Грубость" {
		t.Fatalf("unexpected markers: %+v", out.Markers)
	}
	if !strings.HasPrefix(r.Transcript, "Диспетчер") {
		t.Fatalf("unexpected transcript: %q", r.Transcript)
	}
}

func TestParseStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"summary\": \"ок\", \"is_relevant_hard\": false}\n```"
	out := analysis.Parse(raw, fallbackTranscript)
	if out.Degraded {
		t.Fatal("expected fenced JSON to parse")
	}
	if out.Result.Summary != "ок" {
		t.Fatalf("unexpected summary: %q", out.Result.Summary)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	out := analysis.Parse(`{}`, fallbackTranscript)
	r := out.Result
	if r.Summary != "Без саммари" || r.Sentiment != "N/A" || r.Address != "Не указан" || r.DialogType != "N/A" {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if r.MarkersSummary != "Нет маркеров" {
		t.Fatalf("unexpected markers summary: %q", r.MarkersSummary)
	}
	if r.IsRelevant || r.NoBrigade {
		t.Fatalf("expected flags false by default: %+v", r)
	}
	if r.Transcript != fallbackTranscript {
		t.Fatalf("expected fallback transcript, got %q", r.Transcript)
	}
}

func TestParseGatesCategoryFlagsOnRelevance(t *testing.T) {
	raw := `{
		"is_relevant_hard": false,
		"stats_categories": {"refusal_deadline": true, "no_brigade": true, "long_duration": true, "redirect_other_org": true}
	}`
	out := analysis.Parse(raw, fallbackTranscript)
	r := out.Result
	if r.IsRelevant || r.RefusalDeadline || r.NoBrigade || r.LongDuration || r.RedirectOtherOrg {
		t.Fatalf("expected all flags false for irrelevant call: %+v", r)
	}
}

func TestParseCoercesListFields(t *testing.T) {
	raw := `{
		"address": ["ул. Ленина", "д. 5"],
		"cleaned_dialogue": ["Диспетчер: слушаю.", "Житель: нет воды в доме."]
	}`
	out := analysis.Parse(raw, fallbackTranscript)
	if out.Result.Address != "ул. Ленина, д. 5" {
		t.Fatalf("unexpected address: %q", out.Result.Address)
	}
	if out.Result.Transcript != "Диспетчер: слушаю.\nЖитель: нет воды в доме." {
		t.Fatalf("unexpected transcript: %q", out.Result.Transcript)
	}
}

func TestParseShortDialogueFallsBack(t *testing.T) {
	out := analysis.Parse(`{"cleaned_dialogue": "ок"}`, fallbackTranscript)
	if out.Result.Transcript != fallbackTranscript {
		t.Fatalf("expected fallback for trivial dialogue, got %q", out.Result.Transcript)
	}
}

func TestParseMalformedDegrades(t *testing.T) {
	raw := "I could not produce JSON because the dialogue was unclear"
	out := analysis.Parse(raw, fallbackTranscript)
	if !out.Degraded {
		t.Fatal("expected degraded outcome")
	}
	r := out.Result
	if r.Summary != "Ошибка формата ответа нейросети" {
		t.Fatalf("unexpected summary: %q", r.Summary)
	}
	if r.Transcript != fallbackTranscript {
		t.Fatalf("expected raw transcript preserved, got %q", r.Transcript)
	}
	if !strings.HasPrefix(r.MarkersSummary, "I could not") {
		t.Fatalf("expected raw snippet in markers summary, got %q", r.MarkersSummary)
	}
	if r.IsRelevant || r.NoBrigade || r.RefusalDeadline || r.LongDuration || r.RedirectOtherOrg {
		t.Fatalf("expected all flags false: %+v", r)
	}
	if len(out.Markers) != 0 {
		t.Fatalf("expected no markers, got %+v", out.Markers)
	}
}

func TestParseTruncatesRawSnippet(t *testing.T) {
	raw := strings.Repeat("я", 300)
	out := analysis.Parse(raw, fallbackTranscript)
	if !out.Degraded {
		t.Fatal("expected degraded outcome")
	}
	if got := len([]rune(out.Result.MarkersSummary)); got != 100 {
		t.Fatalf("expected 100-rune snippet, got %d", got)
	}
}
