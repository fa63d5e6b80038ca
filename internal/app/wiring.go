// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     app
// Description: Maps the file configuration onto the components
// Author:      Mike Stoffels
// Created:     2025-12-16
// License:     MIT
// ============================================================================

package app

import (
	"fmt"

	"github.com/inboxpilot/voicepilot/internal/backend"
	"github.com/inboxpilot/voicepilot/internal/backend/openai"
	"github.com/inboxpilot/voicepilot/internal/store"
	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/internal/voice/vad"
	"github.com/inboxpilot/voicepilot/pkg/core/config"
)

// MemoryStorePath keeps the queue in memory instead of sqlite
const MemoryStorePath = "memory"

// VoiceConfig builds the controller configuration
func VoiceConfig(cfg *config.Config) (voice.Config, error) {
	mode, err := voice.ParseMode(cfg.Voice.Mode)
	if err != nil {
		return voice.Config{}, fmt.Errorf("voice.mode: %w", err)
	}

	tts := true
	if cfg.Voice.TTSEnabled != nil {
		tts = *cfg.Voice.TTSEnabled
	}
	cues := true
	if cfg.Voice.Cues != nil {
		cues = *cfg.Voice.Cues
	}

	t := cfg.Timing
	return voice.Config{
		SessionID: cfg.Backend.SessionID,
		Providers: cfg.Backend.Providers,
		Prefs: voice.Prefs{
			Mode:       mode,
			Language:   cfg.Voice.Language,
			Voice:      cfg.Voice.Voice,
			Speed:      cfg.Voice.Speed,
			Style:      cfg.Voice.Style,
			WakeWord:   cfg.Voice.WakeWord,
			TTSEnabled: tts,
		},
		Cues: cues,
		VAD: vad.Config{
			Interval:        t.VADInterval.Duration,
			Threshold:       t.SilenceThreshold,
			MinSoundSamples: t.MinSoundSamples,
			SilenceWindow:   t.SilenceWindow.Duration,
		},
		MaxRecordingAuto:     t.MaxRecordingAuto.Duration,
		MaxRecordingManual:   t.MaxRecordingManual.Duration,
		MinAudioBytes:        t.MinAudioBytes,
		ProcessingTimeout:    t.ProcessingTimeout.Duration,
		AutoListenDelay:      t.AutoListenDelay.Duration,
		HotwordResumeDelay:   t.HotwordResumeDelay.Duration,
		ErrorRecoveryDelay:   t.ErrorRecoveryDelay.Duration,
		InterruptFactor:      t.InterruptFactor,
		InterruptSamples:     t.InterruptSamples,
		JobPollInterval:      t.JobPollInterval.Duration,
		JobMaxAttempts:       t.JobMaxAttempts,
		MaxSpeechChars:       t.MaxSpeechChars,
		DoubleConfirmDeletes: t.DoubleConfirmDeletes,
	}, nil
}

// NewBackendClient creates the backend adapter
func NewBackendClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		APIKey:    cfg.Backend.APIKey,
		Providers: cfg.Backend.Providers,
		Timeout:   cfg.Backend.Timeout.Duration,
	})
}

// NewDirectProvider creates the OpenAI provider, or nil when no key is set
func NewDirectProvider(cfg *config.Config) *openai.Provider {
	if cfg.OpenAI.APIKey == "" {
		return nil
	}
	p, err := openai.New(openai.Config{
		APIKey:   cfg.OpenAI.APIKey,
		BaseURL:  cfg.OpenAI.BaseURL,
		STTModel: cfg.OpenAI.STTModel,
		TTSModel: cfg.OpenAI.TTSModel,
	})
	if err != nil {
		return nil
	}
	return p
}

// SpeechServices picks transcription and synthesis. The backend endpoints
// are used when enabled; the direct provider serves otherwise and stands
// in for a failing transcription. Without a direct provider the backend is
// always used.
func SpeechServices(cfg *config.Config, client *backend.Client, direct *openai.Provider) (voice.Transcriber, voice.Synthesizer) {
	if direct == nil {
		return client, client
	}

	var transcriber voice.Transcriber
	if cfg.Backend.UseTranscribe {
		transcriber = backend.NewFallbackTranscriber(client, direct)
	} else {
		transcriber = backend.NewFallbackTranscriber(direct, client)
	}

	var synth voice.Synthesizer = direct
	if cfg.Backend.UseSpeech {
		synth = client
	}
	return transcriber, synth
}

// NewQueueStore opens the sqlite queue store, or the in-memory one when
// the path is MemoryStorePath
func NewQueueStore(cfg *config.Config) (store.QueueStore, error) {
	if cfg.Store.Path == MemoryStorePath {
		return store.NewMemoryQueueStore(), nil
	}
	s, err := store.NewSQLiteQueueStore(store.SQLiteQueueConfig{Path: cfg.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	return s, nil
}
