// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     audio
// Description: Shared microphone stream - recordings, level taps and
//              fixed capture windows all read from one input stream
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/internal/voice/vad"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// ErrStreamClosed is returned by operations on a closed stream
var ErrStreamClosed = errors.New("audio: stream closed")

// Stream distributes microphone buffers to the active recording, the level
// taps and pending capture windows. While muted, recordings and windows
// receive silence; taps keep reading the raw level so that a voice
// interrupt can still be detected during playback.
type Stream struct {
	mu         sync.Mutex
	sampleRate int
	live       bool
	muted      bool
	recording  *recording
	taps       map[*tap]struct{}
	windows    map[*window]struct{}
	done       chan struct{}
	closeFn    func() error
	logger     *logging.Logger
}

func newStream(sampleRate int, closeFn func() error) *Stream {
	return &Stream{
		sampleRate: sampleRate,
		live:       true,
		taps:       make(map[*tap]struct{}),
		windows:    make(map[*window]struct{}),
		done:       make(chan struct{}),
		closeFn:    closeFn,
		logger:     logging.New("audio-stream"),
	}
}

// SampleRate returns the capture rate in Hz
func (s *Stream) SampleRate() int {
	return s.sampleRate
}

// Live reports whether the stream still delivers audio
func (s *Stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// SetMuted replaces recorded audio with silence while muted
func (s *Stream) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// Record starts a recording. A recording still running is discarded.
func (s *Stream) Record() (voice.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil, ErrStreamClosed
	}
	if s.recording != nil {
		s.logger.Debug("Discarding unfinished recording", "samples", len(s.recording.samples))
		s.recording.stopped = true
	}
	r := &recording{stream: s, samples: make([]int16, 0, s.sampleRate*10)}
	s.recording = r
	return r, nil
}

// Analyser attaches a level tap
func (s *Stream) Analyser() (vad.Analyser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil, ErrStreamClosed
	}
	t := &tap{stream: s}
	s.taps[t] = struct{}{}
	return t, nil
}

// Capture waits for the next window of audio. It serves the hotword
// recognizer and shares the stream with recordings.
func (s *Stream) Capture(ctx context.Context, d time.Duration) ([]int16, error) {
	n := int(float64(s.sampleRate) * d.Seconds())
	if n <= 0 {
		return nil, nil
	}
	w := &window{need: n, samples: make([]int16, 0, n), ready: make(chan []int16, 1)}

	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.windows[w] = struct{}{}
	s.mu.Unlock()

	select {
	case samples := <-w.ready:
		return samples, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.windows, w)
		s.mu.Unlock()
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrStreamClosed
	}
}

// feed distributes one buffer
func (s *Stream) feed(buf []int16) {
	level := vad.RMS(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return
	}
	for t := range s.taps {
		t.level.Store(math.Float64bits(level))
	}

	in := buf
	if s.muted {
		in = make([]int16, len(buf))
	}
	if s.recording != nil && !s.recording.stopped {
		s.recording.samples = append(s.recording.samples, in...)
	}
	for w := range s.windows {
		room := w.need - len(w.samples)
		if room > len(in) {
			room = len(in)
		}
		w.samples = append(w.samples, in[:room]...)
		if len(w.samples) >= w.need {
			w.ready <- w.samples
			delete(s.windows, w)
		}
	}
}

// Close stops the stream and releases the device
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return nil
	}
	s.live = false
	close(s.done)
	s.recording = nil
	s.taps = make(map[*tap]struct{})
	s.windows = make(map[*window]struct{})
	closeFn := s.closeFn
	s.mu.Unlock()

	if closeFn != nil {
		return closeFn()
	}
	return nil
}

type recording struct {
	stream  *Stream
	samples []int16
	stopped bool
}

// Stop ends the recording and returns it as 16-bit mono WAV
func (r *recording) Stop() ([]byte, error) {
	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.stopped {
		return nil, errors.New("audio: recording already stopped")
	}
	r.stopped = true
	if s.recording == r {
		s.recording = nil
	}
	if len(r.samples) == 0 {
		return nil, nil
	}
	return EncodeWAV(r.samples, s.sampleRate), nil
}

type tap struct {
	stream *Stream
	level  atomic.Uint64
}

func (t *tap) Level() float64 {
	return math.Float64frombits(t.level.Load())
}

func (t *tap) Close() error {
	t.stream.mu.Lock()
	defer t.stream.mu.Unlock()
	delete(t.stream.taps, t)
	return nil
}

type window struct {
	need    int
	samples []int16
	ready   chan []int16
}
