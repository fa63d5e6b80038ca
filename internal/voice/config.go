// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Turn controller configuration
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice/vad"
)

// Config holds the controller thresholds and defaults
type Config struct {
	// SessionID identifies the backend session. When empty the id saved by
	// Deps.Sessions is reused, or a new one is generated and saved.
	SessionID string

	// Providers restricts chat requests to these mail providers
	Providers []string

	// Prefs are the defaults used until a saved preference overrides them
	Prefs Prefs

	// Cues enables the state earcons
	Cues bool

	// Silence detection while Listening
	VAD vad.Config

	// Maximum recording length for hands-free and manual turns
	MaxRecordingAuto   time.Duration
	MaxRecordingManual time.Duration

	// MinAudioBytes below which a capture counts as no speech
	MinAudioBytes int

	// ProcessingTimeout is the watchdog on the Processing state
	ProcessingTimeout time.Duration

	// Chaining and recovery delays
	AutoListenDelay    time.Duration
	HotwordResumeDelay time.Duration
	ErrorRecoveryDelay time.Duration

	// Barge-in: InterruptSamples consecutive readings above
	// VAD.Threshold*InterruptFactor stop playback
	InterruptFactor  float64
	InterruptSamples int

	// Background job polling
	JobPollInterval time.Duration
	JobMaxAttempts  int

	// MaxSpeechChars caps the sanitized speech text
	MaxSpeechChars int

	// DoubleConfirmDeletes is the delete count that requires two approvals
	DoubleConfirmDeletes int

	// ListLimit caps how many messages LIST_EMAILS reads out
	ListLimit int
}

// DefaultPrefs returns the preference defaults
func DefaultPrefs() Prefs {
	return Prefs{
		Mode:       ModeManual,
		Language:   "pt",
		Voice:      "nova",
		Speed:      1.0,
		WakeWord:   "piloto",
		TTSEnabled: true,
	}
}

// DefaultConfig returns default controller configuration
func DefaultConfig() Config {
	return Config{
		Prefs:                DefaultPrefs(),
		Cues:                 true,
		VAD:                  vad.DefaultConfig(),
		MaxRecordingAuto:     12 * time.Second,
		MaxRecordingManual:   30 * time.Second,
		MinAudioBytes:        1500,
		ProcessingTimeout:    45 * time.Second,
		AutoListenDelay:      time.Second,
		HotwordResumeDelay:   1500 * time.Millisecond,
		ErrorRecoveryDelay:   2500 * time.Millisecond,
		InterruptFactor:      2.0,
		InterruptSamples:     3,
		JobPollInterval:      2 * time.Second,
		JobMaxAttempts:       20,
		MaxSpeechChars:       4096,
		DoubleConfirmDeletes: 5,
		ListLimit:            5,
	}
}

// withDefaults fills zero fields from DefaultConfig. JobPollInterval may
// stay zero to poll without waiting. JobMaxAttempts is capped so the poll
// budget ends inside ProcessingTimeout.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefs == (Prefs{}) {
		c.Prefs = d.Prefs
	}
	if c.Prefs.Mode == "" {
		c.Prefs.Mode = d.Prefs.Mode
	}
	if c.Prefs.Language == "" {
		c.Prefs.Language = d.Prefs.Language
	}
	if c.Prefs.Speed <= 0 {
		c.Prefs.Speed = d.Prefs.Speed
	}
	if c.VAD.Interval <= 0 {
		c.VAD.Interval = d.VAD.Interval
	}
	if c.VAD.Threshold <= 0 {
		c.VAD.Threshold = d.VAD.Threshold
	}
	if c.VAD.MinSoundSamples <= 0 {
		c.VAD.MinSoundSamples = d.VAD.MinSoundSamples
	}
	if c.VAD.SilenceWindow <= 0 {
		c.VAD.SilenceWindow = d.VAD.SilenceWindow
	}
	if c.MaxRecordingAuto <= 0 {
		c.MaxRecordingAuto = d.MaxRecordingAuto
	}
	if c.MaxRecordingManual <= 0 {
		c.MaxRecordingManual = d.MaxRecordingManual
	}
	if c.MinAudioBytes <= 0 {
		c.MinAudioBytes = d.MinAudioBytes
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = d.ProcessingTimeout
	}
	if c.AutoListenDelay <= 0 {
		c.AutoListenDelay = d.AutoListenDelay
	}
	if c.HotwordResumeDelay <= 0 {
		c.HotwordResumeDelay = d.HotwordResumeDelay
	}
	if c.ErrorRecoveryDelay <= 0 {
		c.ErrorRecoveryDelay = d.ErrorRecoveryDelay
	}
	if c.InterruptFactor <= 0 {
		c.InterruptFactor = d.InterruptFactor
	}
	if c.InterruptSamples <= 0 {
		c.InterruptSamples = d.InterruptSamples
	}
	if c.JobPollInterval < 0 {
		c.JobPollInterval = 0
	}
	if c.JobMaxAttempts <= 0 {
		c.JobMaxAttempts = d.JobMaxAttempts
	}
	// polling must give up before the processing watchdog fires
	if c.JobPollInterval > 0 {
		limit := int(c.ProcessingTimeout/c.JobPollInterval) - 1
		if limit < 1 {
			limit = 1
		}
		if c.JobMaxAttempts > limit {
			c.JobMaxAttempts = limit
		}
	}
	if c.MaxSpeechChars <= 0 {
		c.MaxSpeechChars = d.MaxSpeechChars
	}
	if c.DoubleConfirmDeletes <= 0 {
		c.DoubleConfirmDeletes = d.DoubleConfirmDeletes
	}
	if c.ListLimit <= 0 {
		c.ListLimit = d.ListLimit
	}
	return c
}
