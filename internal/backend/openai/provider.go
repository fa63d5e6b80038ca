// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     openai
// Description: Direct speech provider on the OpenAI audio API
// Author:      Mike Stoffels
// Created:     2025-12-12
// License:     MIT
// ============================================================================

package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inboxpilot/voicepilot/internal/backend"
	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// Config holds provider configuration
type Config struct {
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
}

// DefaultConfig returns default provider configuration
func DefaultConfig() Config {
	return Config{
		STTModel: openai.Whisper1,
		TTSModel: string(openai.TTSModel1),
	}
}

// Provider transcribes and synthesizes speech without going through the
// InboxPilot backend
type Provider struct {
	client   *openai.Client
	sttModel string
	ttsModel openai.SpeechModel
	logger   *logging.Logger
}

var (
	_ voice.Transcriber = (*Provider)(nil)
	_ voice.Synthesizer = (*Provider)(nil)
)

// New creates a provider. It fails without an API key.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: API key is required")
	}
	d := DefaultConfig()
	if cfg.STTModel == "" {
		cfg.STTModel = d.STTModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = d.TTSModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client:   openai.NewClientWithConfig(clientCfg),
		sttModel: cfg.STTModel,
		ttsModel: openai.SpeechModel(cfg.TTSModel),
		logger:   logging.New("openai-speech"),
	}, nil
}

// Transcribe sends WAV audio to the transcription endpoint
func (p *Provider) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.sttModel,
		Reader:   bytes.NewReader(audio),
		FilePath: "recording.wav",
		Language: language,
	})
	if err != nil {
		return "", convertError(ctx, err)
	}
	text := strings.TrimSpace(resp.Text)
	p.logger.Debug("Transcribed", "model", p.sttModel, "chars", len(text))
	return text, nil
}

// Synthesize returns mp3 audio. Speed is clamped to the range the API
// accepts; style instructions are not supported by this model family.
func (p *Provider) Synthesize(ctx context.Context, req voice.SpeechRequest) ([]byte, error) {
	speed := req.Speed
	switch {
	case speed <= 0:
		speed = 1.0
	case speed < 0.25:
		speed = 0.25
	case speed > 4.0:
		speed = 4.0
	}
	voiceName := req.Voice
	if voiceName == "" {
		voiceName = string(openai.VoiceNova)
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.ttsModel,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voiceName),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, convertError(ctx, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	return audio, nil
}

// convertError maps API failures onto backend.APIError so rate limits and
// billing problems read the same as when they come from the backend
func convertError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.HTTPStatusCode == 429 && apiErr.Type == "insufficient_quota" {
			code = backend.CodeAuthOrBilling
		}
		return backend.NewAPIError(apiErr.HTTPStatusCode, code, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return backend.NewAPIError(reqErr.HTTPStatusCode, "", reqErr.Error())
	}
	return fmt.Errorf("openai request failed: %w", err)
}
