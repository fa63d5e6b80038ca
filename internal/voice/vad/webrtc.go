// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     vad
// Description: WebRTC voice activity gate
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// Voicing decides whether a chunk of audio contains speech. The hotword
// listener uses it to skip transcription of background noise.
type Voicing struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
	minFrames  int
}

// NewVoicing creates a WebRTC based gate. mode is the aggressiveness
// (0-3); minFrames is how many 10 ms frames must be voiced.
func NewVoicing(sampleRate, mode, minFrames int) (*Voicing, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate %d, must be one of 8000, 16000, 32000, 48000", sampleRate)
	}
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if minFrames < 1 {
		minFrames = 1
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &Voicing{
		vad:        v,
		sampleRate: sampleRate,
		mode:       mode,
		minFrames:  minFrames,
	}, nil
}

// Voiced reports whether at least minFrames 10 ms frames contain speech
func (w *Voicing) Voiced(samples []int16) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	frameSize := w.sampleRate / 100
	voiced := 0
	for i := 0; i+frameSize <= len(samples); i += frameSize {
		active, err := w.vad.Process(w.sampleRate, int16ToBytes(samples[i:i+frameSize]))
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			voiced++
			if voiced >= w.minFrames {
				return true, nil
			}
		}
	}
	return false, nil
}

// Mode returns the aggressiveness mode
func (w *Voicing) Mode() int {
	return w.mode
}

// int16ToBytes converts int16 slice to bytes (little-endian)
func int16ToBytes(samples []int16) []byte {
	bytes := make([]byte, len(samples)*2)
	for i, s := range samples {
		bytes[i*2] = byte(s)
		bytes[i*2+1] = byte(s >> 8)
	}
	return bytes
}
