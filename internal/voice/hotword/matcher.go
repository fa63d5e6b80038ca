package hotword

import (
	"strings"

	"github.com/inboxpilot/voicepilot/internal/voice/intent"
)

// Matcher checks fragments for the wake word after the same corrections
// the intent classifier applies, so phonetic near-misses count.
type Matcher struct {
	corrector *intent.Corrector
	phrases   []string
}

// NewMatcher creates a matcher for the wake word and optional extra
// phrases ("ok piloto").
func NewMatcher(wakeWord string, extra ...string) *Matcher {
	c := intent.NewCorrector(wakeWord)
	phrases := []string{c.WakeWord()}
	for _, p := range extra {
		if p = intent.Fold(intent.Normalize(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Matcher{corrector: c, phrases: phrases}
}

// WakeWord returns the canonical wake word
func (m *Matcher) WakeWord() string {
	return m.corrector.WakeWord()
}

// Match reports whether the fragment contains a wake phrase as whole words
func (m *Matcher) Match(fragment string) bool {
	text := " " + intent.Fold(m.corrector.Correct(fragment)) + " "
	for _, p := range m.phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
