// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     intent
// Description: Utterance classification
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package intent

import (
	"strings"
	"sync"
)

// Classifier maps utterances to intents. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	corrector *Corrector
	rules     []Rule
}

// Option configures a Classifier
type Option func(*Classifier)

// WithWakeWord sets the wake word whose near-misses are corrected
func WithWakeWord(word string) Option {
	return func(c *Classifier) {
		c.corrector = NewCorrector(word)
	}
}

// WithCorrections appends corrections after the default table
func WithCorrections(extra ...Correction) Option {
	return func(c *Classifier) {
		c.corrector = NewCorrector(c.corrector.WakeWord(), extra...)
	}
}

// WithRules replaces the rule table
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// New creates a classifier with the default correction table and rules
func New(opts ...Option) *Classifier {
	c := &Classifier{
		corrector: NewCorrector(DefaultWakeWord),
		rules:     DefaultRules(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Classify runs the default classifier
func Classify(text string) Intent {
	defaultOnce.Do(func() { defaultClassifier = New() })
	return defaultClassifier.Classify(text)
}

// Correct applies the correction table only
func (c *Classifier) Correct(text string) string {
	return c.corrector.Correct(text)
}

// Corrector returns the correction table in use
func (c *Classifier) Corrector() *Corrector {
	return c.corrector
}

// Rules returns a copy of the rule table
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify corrects text and returns the intent of the first matching rule,
// or FreeForm when none matches. Empty input is FreeForm with empty text.
func (c *Classifier) Classify(text string) Intent {
	corrected := c.corrector.Correct(text)
	in := Intent{Tag: FreeForm, Text: corrected}
	if corrected == "" {
		return in
	}

	key := numerals(Fold(corrected))
	for _, rule := range c.rules {
		m := rule.Pattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		in.Tag = rule.Tag
		in.Rule = rule.Name
		if rule.Extract != nil {
			rule.Extract(m, &in)
		}
		return in
	}
	return in
}

var affirmatives = map[string]bool{
	"sim": true, "pode": true, "confirmo": true, "confirma": true, "confirmar": true,
	"ok": true, "okay": true, "claro": true, "isso": true, "manda": true, "aprovo": true,
	"certo": true, "autorizo": true, "positivo": true, "vai": true, "bora": true,
	"yes": true, "yeah": true, "yep": true, "sure": true,
}

var negations = map[string]bool{
	"nao": true, "nunca": true, "no": true, "not": true, "nope": true, "jamais": true,
}

// Affirmative reports whether an utterance reads as consent: at least one
// affirmative word and no negation. It is only consulted while a
// confirmation is pending.
func Affirmative(text string) bool {
	words := strings.Fields(Fold(Normalize(text)))
	yes := false
	for _, w := range words {
		if negations[w] {
			return false
		}
		if affirmatives[w] {
			yes = true
		}
	}
	if !yes {
		joined := strings.Join(words, " ")
		yes = strings.Contains(joined, "com certeza") || strings.Contains(joined, "go ahead")
	}
	return yes
}
