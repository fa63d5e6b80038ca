package hotword

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source captures a window of ambient microphone audio
type Source interface {
	Capture(ctx context.Context, window time.Duration) ([]int16, error)
}

// Gate decides whether a window contains speech worth transcribing
type Gate interface {
	Voiced(samples []int16) (bool, error)
}

// Transcriber turns encoded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// AudioRecognizer implements Recognizer by capturing fixed windows,
// dropping unvoiced ones and transcribing the rest.
type AudioRecognizer struct {
	source      Source
	gate        Gate
	transcriber Transcriber
	encode      func([]int16) []byte
	window      time.Duration
	timeout     time.Duration

	mu       sync.Mutex
	language string
}

// NewAudioRecognizer creates a recognizer. gate may be nil to transcribe
// every window.
func NewAudioRecognizer(source Source, gate Gate, transcriber Transcriber, encode func([]int16) []byte, window time.Duration, language string) *AudioRecognizer {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &AudioRecognizer{
		source:      source,
		gate:        gate,
		transcriber: transcriber,
		encode:      encode,
		window:      window,
		language:    language,
		timeout:     3 * time.Second,
	}
}

// SetLanguage changes the language passed to the transcriber
func (r *AudioRecognizer) SetLanguage(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.language = language
}

// Next captures one window and returns its transcript, or "" when the
// window held no speech.
func (r *AudioRecognizer) Next(ctx context.Context) (string, error) {
	samples, err := r.source.Capture(ctx, r.window)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if len(samples) == 0 {
		return "", nil
	}

	if r.gate != nil {
		voiced, err := r.gate.Voiced(samples)
		if err != nil {
			return "", err
		}
		if !voiced {
			return "", nil
		}
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	language := r.language
	r.mu.Unlock()

	text, err := r.transcriber.Transcribe(tctx, r.encode(samples), language)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}
