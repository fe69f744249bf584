package adapters

import (
	"encoding/json"
	"strings"
)

// questionMarkers are literal prefixes some clients wrap around the actual
// question. Matching is by first occurrence; text after the marker wins.
var questionMarkers = []string{
	"My question is:",
	"我的問題是：",
	"我的问题是：",
}

// ExtractCoreQuestion derives the canonical question from a raw prompt:
// unwrap one level of JSON-encoded "mainText" payloads, then strip question
// markers until none remain. A non-empty prompt always yields a non-empty
// question; when stripping leaves nothing the raw prompt stands.
func ExtractCoreQuestion(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return prompt
	}

	if unwrapped, ok := unwrapMainText(trimmed); ok {
		unwrapped = strings.TrimSpace(unwrapped)
		if unwrapped != "" {
			trimmed = unwrapped
		}
	}

	stripped := stripQuestionMarkers(trimmed)
	if stripped == "" {
		return trimmed
	}
	return stripped
}

// unwrapMainText handles prompts that are themselves a JSON array of
// structured messages, pulling mainText from a leading user element.
func unwrapMainText(prompt string) (string, bool) {
	if !strings.HasPrefix(prompt, "[") {
		return "", false
	}

	var wrapped []struct {
		Role     string `json:"role"`
		MainText string `json:"mainText"`
	}
	if err := json.Unmarshal([]byte(prompt), &wrapped); err != nil {
		return "", false
	}
	if len(wrapped) == 0 || wrapped[0].Role != "user" || wrapped[0].MainText == "" {
		return "", false
	}
	return wrapped[0].MainText, true
}

// stripQuestionMarkers removes marker prefixes repeatedly so the result is
// stable under re-parsing.
func stripQuestionMarkers(text string) string {
	for {
		marker, idx := firstMarker(text)
		if idx < 0 {
			return strings.TrimSpace(text)
		}
		text = text[idx+len(marker):]
	}
}

func firstMarker(text string) (string, int) {
	best := -1
	bestMarker := ""
	for _, marker := range questionMarkers {
		if idx := strings.Index(text, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestMarker = marker
		}
	}
	return bestMarker, best
}
