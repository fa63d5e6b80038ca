// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Speech player with generation-guarded synthesis and playback
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

var (
	structuralChars = regexp.MustCompile("[*_#`~<>|\\[\\]{}\\\\]+")
	repeatedPunct   = regexp.MustCompile(`([.!?,;:])[.!?,;:]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// Sanitize prepares text for synthesis: markup characters are removed,
// whitespace and punctuation runs are collapsed and the result is capped at
// maxChars runes, cut on a word boundary when possible.
func Sanitize(text string, maxChars int) string {
	s := structuralChars.ReplaceAllString(text, " ")
	s = repeatedPunct.ReplaceAllString(s, "$1")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)[:maxChars]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// SpeechPlayer synthesizes and plays replies. Every Speak call starts a
// new generation; a result that arrives after a newer Speak or an Abort is
// dropped without calling back.
type SpeechPlayer struct {
	mu       sync.Mutex
	synth    Synthesizer
	player   AudioPlayer
	mute     func(bool)
	maxChars int
	logger   *logging.Logger

	generation uint64
	cancel     context.CancelFunc
	muted      bool
}

// NewSpeechPlayer creates a player. mute is called with true for the
// duration of playback and may be nil.
func NewSpeechPlayer(synth Synthesizer, player AudioPlayer, mute func(bool), maxChars int) *SpeechPlayer {
	if mute == nil {
		mute = func(bool) {}
	}
	return &SpeechPlayer{
		synth:    synth,
		player:   player,
		mute:     mute,
		maxChars: maxChars,
		logger:   logging.New("voice-speech"),
	}
}

// SetMute replaces the mute hook, e.g. once the microphone is open
func (p *SpeechPlayer) SetMute(mute func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mute == nil {
		mute = func(bool) {}
	}
	p.mute = mute
}

// Generation returns the current generation
func (p *SpeechPlayer) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Speaking reports whether a Speak call is still in progress
func (p *SpeechPlayer) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Speak starts synthesis and playback in the background and returns the
// generation it runs under. done is called exactly once unless the
// generation is superseded first.
func (p *SpeechPlayer) Speak(ctx context.Context, req SpeechRequest, done func(err error)) uint64 {
	req.Text = Sanitize(req.Text, p.maxChars)

	p.mu.Lock()
	p.stopLocked()
	p.generation++
	gen := p.generation
	sctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(sctx, gen, req, done)
	return gen
}

func (p *SpeechPlayer) run(ctx context.Context, gen uint64, req SpeechRequest, done func(error)) {
	finish := func(err error) {
		p.mu.Lock()
		if p.generation != gen {
			p.mu.Unlock()
			return
		}
		p.unmuteLocked()
		p.cancel = nil
		p.mu.Unlock()
		if done != nil {
			done(err)
		}
	}

	if req.Text == "" || p.synth == nil || p.player == nil {
		finish(nil)
		return
	}

	audio, err := p.synth.Synthesize(ctx, req)
	if err != nil {
		finish(err)
		return
	}

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		p.logger.Debug("Dropping superseded speech", "generation", gen)
		return
	}
	p.muted = true
	p.mute(true)
	p.mu.Unlock()

	finish(p.player.Play(ctx, audio))
}

// Abort cancels the current speech. Its done callback will not run.
func (p *SpeechPlayer) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.generation++
}

func (p *SpeechPlayer) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.unmuteLocked()
}

func (p *SpeechPlayer) unmuteLocked() {
	if p.muted {
		p.muted = false
		p.mute(false)
	}
}
