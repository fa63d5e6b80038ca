// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     hotword
// Description: Always-on wake word listening between turns
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package hotword

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// Recognizer yields transcribed fragments of ambient audio. Next blocks
// until a fragment is available; an empty fragment means nothing was heard.
type Recognizer interface {
	Next(ctx context.Context) (string, error)
}

// LanguageSetter is implemented by recognizers whose transcription
// language can change while running
type LanguageSetter interface {
	SetLanguage(language string)
}

// Listener runs the recognition loop and calls onHotword when a fragment
// contains the wake word. It starts paused; the controller resumes it when
// the always-on mode is active and pauses it during every turn.
type Listener struct {
	mu          sync.Mutex
	recognizer  Recognizer
	matcher     *Matcher
	onHotword   func()
	logger      *logging.Logger
	paused      bool
	epoch       uint64
	resumeTimer *time.Timer
	wake        chan struct{}
	running     bool
	errorDelay  time.Duration
}

// NewListener creates a paused listener
func NewListener(recognizer Recognizer, matcher *Matcher, onHotword func()) *Listener {
	return &Listener{
		recognizer: recognizer,
		matcher:    matcher,
		onHotword:  onHotword,
		logger:     logging.New("hotword"),
		paused:     true,
		wake:       make(chan struct{}, 1),
		errorDelay: time.Second,
	}
}

// Run loops until ctx is done. Fragments that were being recognized when
// the listener got paused are discarded.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("hotword listener already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.cancelResumeLocked()
		l.mu.Unlock()
	}()

	l.logger.Info("Hotword listener started", "wake_word", l.currentMatcher().WakeWord())

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		paused, epoch := l.snapshot()
		if paused {
			select {
			case <-ctx.Done():
				return nil
			case <-l.wake:
			}
			continue
		}

		fragment, err := l.recognizer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Debug("Hotword recognition failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.errorDelay):
			}
			continue
		}

		if p, e := l.snapshot(); p || e != epoch {
			continue
		}
		if fragment == "" || !l.currentMatcher().Match(fragment) {
			continue
		}

		l.logger.Info("Hotword detected", "fragment", fragment)
		l.Pause()
		if l.onHotword != nil {
			l.onHotword()
		}
	}
}

func (l *Listener) currentMatcher() *Matcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.matcher
}

// Configure replaces the wake word and, when the recognizer supports it,
// the transcription language
func (l *Listener) Configure(wakeWord, language string) {
	m := NewMatcher(wakeWord)
	l.mu.Lock()
	l.matcher = m
	l.mu.Unlock()
	if ls, ok := l.recognizer.(LanguageSetter); ok && language != "" {
		ls.SetLanguage(language)
	}
	l.logger.Debug("Hotword configured", "wake_word", m.WakeWord(), "language", language)
}

func (l *Listener) snapshot() (bool, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused, l.epoch
}

// Pause stops matching and cancels a scheduled resume
func (l *Listener) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelResumeLocked()
	if !l.paused {
		l.paused = true
		l.epoch++
		l.logger.Debug("Hotword listener paused")
	}
}

// Resume starts matching immediately
func (l *Listener) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelResumeLocked()
	l.resumeLocked()
}

func (l *Listener) resumeLocked() {
	if !l.paused {
		return
	}
	l.paused = false
	l.epoch++
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.logger.Debug("Hotword listener resumed")
}

// ResumeAfter resumes once delay has passed and ready reports true. While
// ready is false the check is repeated every delay. A Pause in between
// cancels the pending resume.
func (l *Listener) ResumeAfter(delay time.Duration, ready func() bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelResumeLocked()

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		if ready != nil && !ready() {
			l.mu.Lock()
			if l.resumeTimer == timer {
				timer.Reset(delay)
			}
			l.mu.Unlock()
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.resumeTimer != timer {
			return
		}
		l.resumeTimer = nil
		l.resumeLocked()
	})
	l.resumeTimer = timer
}

func (l *Listener) cancelResumeLocked() {
	if l.resumeTimer != nil {
		l.resumeTimer.Stop()
		l.resumeTimer = nil
	}
}

// Paused reports whether matching is suspended
func (l *Listener) Paused() bool {
	p, _ := l.snapshot()
	return p
}
