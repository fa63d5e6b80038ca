// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     vad
// Description: Energy-based end-of-utterance and barge-in detection
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package vad

import (
	"math"
	"time"
)

// Sampler consumes one energy reading per tick and reports when its
// condition is met.
type Sampler interface {
	Sample(level float64) bool
}

// Config holds the silence detector thresholds
type Config struct {
	// Interval between two level readings
	Interval time.Duration

	// Threshold is the RMS level (0..1) separating sound from silence
	Threshold float64

	// MinSoundSamples consecutive loud readings confirm an utterance
	MinSoundSamples int

	// SilenceWindow of uninterrupted quiet after confirmation ends it
	SilenceWindow time.Duration
}

// DefaultConfig returns default detector configuration
func DefaultConfig() Config {
	return Config{
		Interval:        50 * time.Millisecond,
		Threshold:       0.02,
		MinSoundSamples: 3,
		SilenceWindow:   1500 * time.Millisecond,
	}
}

// State is a snapshot of the silence detector
type State struct {
	SoundSamples int
	Confirmed    bool
	Silence      time.Duration
	Ended        bool
}

// SilenceDetector signals "sustained silence after sustained sound".
// Leading clicks or breaths shorter than MinSoundSamples readings are
// forgotten, so an utterance must be confirmed before silence counts.
type SilenceDetector struct {
	config  Config
	sound   int
	quiet   int
	confirm bool
	ended   bool
}

// NewSilenceDetector creates a detector
func NewSilenceDetector(cfg Config) *SilenceDetector {
	if cfg.MinSoundSamples < 1 {
		cfg.MinSoundSamples = 1
	}
	return &SilenceDetector{config: cfg}
}

// Sample feeds one reading. It returns true exactly once, on the reading
// that completes the silence window.
func (d *SilenceDetector) Sample(level float64) bool {
	if d.ended {
		return false
	}

	loud := level > d.config.Threshold
	if !d.confirm {
		if loud {
			d.sound++
			if d.sound >= d.config.MinSoundSamples {
				d.confirm = true
			}
		} else {
			d.sound = 0
		}
		return false
	}

	if loud {
		d.sound++
		d.quiet = 0
		return false
	}

	d.quiet++
	if d.silence() >= d.config.SilenceWindow {
		d.ended = true
		return true
	}
	return false
}

func (d *SilenceDetector) silence() time.Duration {
	return time.Duration(d.quiet) * d.config.Interval
}

// State returns the current detector state
func (d *SilenceDetector) State() State {
	return State{
		SoundSamples: d.sound,
		Confirmed:    d.confirm,
		Silence:      d.silence(),
		Ended:        d.ended,
	}
}

// Reset clears the detector for reuse
func (d *SilenceDetector) Reset() {
	d.sound = 0
	d.quiet = 0
	d.confirm = false
	d.ended = false
}

// InterruptDetector watches the microphone during playback. It fires after
// Required consecutive readings above Factor times the silence threshold;
// a single quiet reading restarts the count, which keeps playback bleed and
// echo from stopping speech.
type InterruptDetector struct {
	threshold float64
	required  int
	count     int
	fired     bool
}

// NewInterruptDetector creates a barge-in detector
func NewInterruptDetector(silenceThreshold, factor float64, required int) *InterruptDetector {
	if required < 1 {
		required = 1
	}
	return &InterruptDetector{
		threshold: silenceThreshold * factor,
		required:  required,
	}
}

// Sample feeds one reading and returns true once when barge-in is detected
func (d *InterruptDetector) Sample(level float64) bool {
	if d.fired {
		return false
	}
	if level > d.threshold {
		d.count++
	} else {
		d.count = 0
	}
	if d.count >= d.required {
		d.fired = true
		return true
	}
	return false
}

// Threshold returns the effective level threshold
func (d *InterruptDetector) Threshold() float64 {
	return d.threshold
}

// RMS returns the root mean square of 16-bit samples scaled to 0..1
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
