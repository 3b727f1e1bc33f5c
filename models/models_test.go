package models

import (
	"errors"
	"testing"
)

func TestParseSourceLabels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		label string
		want  Source
	}{
		{"LLM", SourceLLM},
		{"LLM Model", SourceLLM},
		{"WebSearch", SourceWebSearch},
		{"Google Web Search", SourceWebSearch},
		{"web search", SourceWebSearch},
		{"NewsSearch", SourceNewsSearch},
		{"Google News Search", SourceNewsSearch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSource(tt.label)
			if err != nil {
				t.Fatalf("ParseSource(%q): %v", tt.label, err)
			}
			if got != tt.want {
				t.Fatalf("ParseSource(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestParseSourceUnknown(t *testing.T) {
	if _, err := ParseSource("Encyclopedia"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

func TestSourceTextRoundTrip(t *testing.T) {
	for _, label := range SourceLabels() {
		var s Source
		if err := s.UnmarshalText([]byte(label)); err != nil {
			t.Fatalf("unmarshal %q: %v", label, err)
		}
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		if string(b) != label {
			t.Fatalf("got %q want %q", b, label)
		}
	}
	if _, err := Source(42).MarshalText(); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestTranscriptAppendOrdering(t *testing.T) {
	var tr Transcript
	var err error
	tr, err = tr.Append(Turn{Role: RoleSystem, Content: "be nice"})
	if err != nil {
		t.Fatalf("leading system: %v", err)
	}
	if _, err := tr.Append(Turn{Role: RoleSystem, Content: "again"}); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("duplicate system turn accepted: %v", err)
	}
	if _, err := tr.Append(Turn{Role: RoleAssistant, Content: "hi"}); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("assistant before user accepted: %v", err)
	}
	tr, err = tr.Append(Turn{Role: RoleUser, Content: "q"})
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if _, err := tr.Append(Turn{Role: RoleUser, Content: "q2"}); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("consecutive user turns accepted: %v", err)
	}
	tr, err = tr.Append(Turn{Role: RoleAssistant, Content: "a"})
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	if len(tr) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(tr))
	}
}

func TestTranscriptLast(t *testing.T) {
	tr := Transcript{{Role: RoleUser, Content: "1"}, {Role: RoleAssistant, Content: "2"}, {Role: RoleUser, Content: "3"}}
	if got := tr.Last(2); len(got) != 2 || got[0].Content != "2" {
		t.Fatalf("unexpected tail: %+v", got)
	}
	if got := tr.Last(10); len(got) != 3 {
		t.Fatalf("expected full transcript, got %d", len(got))
	}
}
