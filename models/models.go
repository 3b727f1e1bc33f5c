package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a transcript does not exist for a session
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownSource is returned when a routing label maps to no known source
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidTurn is returned when an append would break transcript ordering
	ErrInvalidTurn = errors.New("invalid turn")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered, append-only conversation of one session.
type Transcript []Turn

// Append returns t with turn appended. It rejects a duplicated or misplaced
// system turn and two consecutive user or assistant turns.
func (t Transcript) Append(turn Turn) (Transcript, error) {
	switch turn.Role {
	case RoleSystem:
		if len(t) > 0 {
			return t, fmt.Errorf("%w: system turn must lead the transcript", ErrInvalidTurn)
		}
	case RoleUser, RoleAssistant:
		if n := len(t); n > 0 && t[n-1].Role == turn.Role {
			return t, fmt.Errorf("%w: consecutive %s turns", ErrInvalidTurn, turn.Role)
		}
		if turn.Role == RoleAssistant && (len(t) == 0 || t[len(t)-1].Role == RoleSystem) {
			return t, fmt.Errorf("%w: assistant turn without a user turn", ErrInvalidTurn)
		}
	default:
		return t, fmt.Errorf("%w: role %q", ErrInvalidTurn, turn.Role)
	}
	return append(t, turn), nil
}

// Last returns at most the final n turns.
func (t Transcript) Last(n int) Transcript {
	if n <= 0 || n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// Source is the answer strategy chosen for a turn.
type Source int

const (
	SourceLLM Source = iota
	SourceWebSearch
	SourceNewsSearch
)

// NoSearchQuery is the search query literal used when no search is needed.
const NoSearchQuery = "NA"

var sourceLabels = map[Source]string{
	SourceLLM:        "LLM",
	SourceWebSearch:  "WebSearch",
	SourceNewsSearch: "NewsSearch",
}

// SourceLabels returns the canonical labels in declaration order.
func SourceLabels() []string {
	return []string{sourceLabels[SourceLLM], sourceLabels[SourceWebSearch], sourceLabels[SourceNewsSearch]}
}

func (s Source) String() string {
	if l, ok := sourceLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

func (s Source) MarshalText() ([]byte, error) {
	if _, ok := sourceLabels[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSource maps a label to a Source. Older label spellings are accepted.
func ParseSource(label string) (Source, error) {
	key := strings.ToLower(strings.Join(strings.Fields(label), ""))
	switch key {
	case "llm", "llmmodel":
		return SourceLLM, nil
	case "websearch", "googlewebsearch":
		return SourceWebSearch, nil
	case "newssearch", "googlenewssearch":
		return SourceNewsSearch, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSource, label)
}

type RoutingDecision struct {
	Source      Source `json:"source"`
	SearchQuery string `json:"search_query"`
}

type Chunk struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	Index     int    `json:"index"`
}

// Page is the extracted main text of a fetched URL.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}
