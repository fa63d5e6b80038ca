// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     audio
// Description: Speech and cue playback through the beep speaker
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// DefaultPlaybackRate is the speaker rate; synthesized mp3 is resampled to it
const DefaultPlaybackRate = 44100

// Player plays synthesized speech. Play blocks until the audio has been
// played or ctx is cancelled.
type Player struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	ready      bool
	playing    bool
	logger     *logging.Logger
}

// NewPlayer creates a player for the given speaker rate
func NewPlayer(sampleRate int) *Player {
	if sampleRate <= 0 {
		sampleRate = DefaultPlaybackRate
	}
	return &Player{
		sampleRate: beep.SampleRate(sampleRate),
		logger:     logging.New("audio-playback"),
	}
}

// init opens the speaker once; the buffer is 100ms
func (p *Player) init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	if err := speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	p.ready = true
	return nil
}

// Play decodes mp3 or WAV audio and plays it
func (p *Player) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	if err := p.init(); err != nil {
		return err
	}

	streamer, format, err := decode(audio)
	if err != nil {
		return err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		s = beep.Resample(4, format.SampleRate, p.sampleRate, s)
	}

	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		p.logger.Debug("Playback cancelled")
		return ctx.Err()
	}
}

// IsPlaying returns whether audio is currently playing
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func decode(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if bytes.HasPrefix(audio, []byte("RIFF")) {
		s, f, err := wav.Decode(bytes.NewReader(audio))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav: %w", err)
		}
		return s, f, nil
	}
	s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	return s, f, nil
}

// tone describes one earcon
type tone struct {
	freq     float64
	duration time.Duration
}

var cueTones = map[voice.Cue][]tone{
	voice.CueListening:  {{880, 90 * time.Millisecond}, {1320, 90 * time.Millisecond}},
	voice.CueProcessing: {{660, 70 * time.Millisecond}},
	voice.CueSpeaking:   {{1320, 60 * time.Millisecond}, {880, 60 * time.Millisecond}},
}

// Cues plays short earcons on the player's speaker without blocking
type Cues struct {
	player *Player
	volume float64
}

// NewCues creates a cue player sharing p's speaker
func NewCues(p *Player, volume float64) *Cues {
	if volume <= 0 || volume > 1 {
		volume = 0.2
	}
	return &Cues{player: p, volume: volume}
}

// Cue plays the earcon for cue
func (c *Cues) Cue(cue voice.Cue) {
	tones, ok := cueTones[cue]
	if !ok {
		return
	}
	if err := c.player.init(); err != nil {
		c.player.logger.Debug("Cue skipped", "cue", cue, "error", err)
		return
	}
	speaker.Play(cueStreamer(c.player.sampleRate, tones, c.volume))
}

func cueStreamer(sr beep.SampleRate, tones []tone, volume float64) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(tones))
	for _, t := range tones {
		parts = append(parts, sine(sr, t.freq, sr.N(t.duration), volume))
	}
	return beep.Seq(parts...)
}

// sine generates n samples of a sine wave with a short linear fade at both
// ends to avoid clicks
func sine(sr beep.SampleRate, freq float64, n int, volume float64) beep.Streamer {
	fade := sr.N(5 * time.Millisecond)
	i := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= n {
			return 0, false
		}
		k := 0
		for ; k < len(samples) && i < n; k++ {
			gain := volume
			if i < fade {
				gain *= float64(i) / float64(fade)
			} else if n-i < fade {
				gain *= float64(n-i) / float64(fade)
			}
			v := gain * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
			samples[k][0], samples[k][1] = v, v
			i++
		}
		return k, true
	})
}
