package transcript_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"callscribe/internal/transcript"
)

func TestStripBoilerplateRemovesNotice(t *testing.T) {
	in := "Здравствуйте, все разговоры записываются. Оператор слушает, что у вас случилось?"
	got := transcript.StripBoilerplate(in)
	want := ". Оператор слушает, что у вас случилось?"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripBoilerplateCaseInsensitive(t *testing.T) {
	in := "ВСЕ РАЗГОВОРЫ ЗАПИСЫВАЮТСЯ, добрый день, прорвало трубу."
	got := transcript.StripBoilerplate(in)
	want := ", добрый день, прорвало трубу."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripBoilerplateUsesLastOccurrence(t *testing.T) {
	in := "разговоры записываются ... разговоры записываются, диспетчер на линии"
	got := transcript.StripBoilerplate(in)
	want := ", диспетчер на линии"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripBoilerplateSecondMarker(t *testing.T) {
	in := "Звонок может быть записан в целях контроля качества. Слушаю вас."
	got := transcript.StripBoilerplate(in)
	want := ". Слушаю вас."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripBoilerplateKeepsTrivialRemainder(t *testing.T) {
	in := "разговоры записываются да"
	if got := transcript.StripBoilerplate(in); got != in {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}

func TestStripBoilerplateLowercaseGrowsBytes(t *testing.T) {
	// Ⱥ lowercases to ⱥ, which is one byte longer, so byte offsets into the
	// lowered search text run past the original string.
	in := strings.Repeat("Ⱥ", 60) + " разговоры записываются оператор слушает"
	got := transcript.StripBoilerplate(in)
	want := "оператор слушает"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripBoilerplateLowercaseShrinksBytes(t *testing.T) {
	// İ lowercases to a shorter byte sequence; a byte-offset cut would land
	// mid-rune and keep part of the marker.
	in := strings.Repeat("İ", 40) + " разговоры записываются диспетчер на линии"
	got := transcript.StripBoilerplate(in)
	want := "диспетчер на линии"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("result is not valid UTF-8: %q", got)
	}
}

func TestStripBoilerplateNoMarker(t *testing.T) {
	in := "Добрый день, у нас нет воды третий день"
	if got := transcript.StripBoilerplate(in); got != in {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}
