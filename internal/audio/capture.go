// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     audio
// Description: Microphone input using PortAudio
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

const (
	// DefaultSampleRate is the capture rate (16kHz for speech recognition)
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is the default buffer size
	DefaultFramesPerBuffer = 512

	// DefaultChannels is mono audio
	DefaultChannels = 1
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	SampleRate int
	BufferSize int
	Channels   int
	DeviceName string // Name of the input device (empty = default)
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate: DefaultSampleRate,
		BufferSize: DefaultFramesPerBuffer,
		Channels:   DefaultChannels,
	}
}

// Microphone opens the shared input stream. The controller opens it on
// the first turn; the hotword recognizer captures from the same stream.
type Microphone struct {
	mu     sync.Mutex
	cfg    CaptureConfig
	stream *Stream
	logger *logging.Logger
}

// NewMicrophone creates a microphone
func NewMicrophone(cfg CaptureConfig) *Microphone {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultFramesPerBuffer
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	return &Microphone{cfg: cfg, logger: logging.New("audio-capture")}
}

// Open returns the live stream, opening the device if needed. The stream
// outlives ctx; it runs until Close.
func (m *Microphone) Open(ctx context.Context) (voice.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.open()
}

// Capture records one window for the hotword recognizer
func (m *Microphone) Capture(ctx context.Context, d time.Duration) ([]int16, error) {
	s, err := m.open()
	if err != nil {
		return nil, err
	}
	return s.Capture(ctx, d)
}

func (m *Microphone) open() (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil && m.stream.Live() {
		return m.stream, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	buffer := make([]int16, m.cfg.BufferSize*m.cfg.Channels)
	pa, err := m.openInput(buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, classifyOpenError(err)
	}
	if err := pa.Start(); err != nil {
		pa.Close()
		portaudio.Terminate()
		return nil, classifyOpenError(fmt.Errorf("failed to start audio stream: %w", err))
	}

	var stopOnce sync.Once
	var stopErr error
	s := newStream(m.cfg.SampleRate, func() error {
		stopOnce.Do(func() {
			pa.Stop()
			if err := pa.Close(); err != nil {
				stopErr = fmt.Errorf("failed to close audio stream: %w", err)
			}
			portaudio.Terminate()
		})
		return stopErr
	})
	m.stream = s

	m.logger.Info("Microphone opened",
		"device", m.deviceLabel(),
		"sample_rate", m.cfg.SampleRate,
		"buffer", m.cfg.BufferSize)

	go m.readLoop(s, pa, buffer)
	return s, nil
}

// openInput opens the configured device, falling back to the default input
func (m *Microphone) openInput(buffer []int16) (*portaudio.Stream, error) {
	if m.cfg.DeviceName != "" && m.cfg.DeviceName != "default" {
		device, err := findDeviceByName(m.cfg.DeviceName)
		if err == nil {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: m.cfg.Channels,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      float64(m.cfg.SampleRate),
				FramesPerBuffer: m.cfg.BufferSize,
			}
			return portaudio.OpenStream(params, buffer)
		}
		m.logger.Warn("Input device not found, using default", "device", m.cfg.DeviceName)
	}
	return portaudio.OpenDefaultStream(m.cfg.Channels, 0, float64(m.cfg.SampleRate), m.cfg.BufferSize, buffer)
}

// readLoop continuously reads audio from the device into s
func (m *Microphone) readLoop(s *Stream, pa *portaudio.Stream, buffer []int16) {
	channels := m.cfg.Channels
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := pa.Read(); err != nil {
			if !s.Live() {
				return
			}
			if !errors.Is(err, portaudio.InputOverflowed) {
				m.logger.Debug("Audio read failed", "error", err)
			}
			continue
		}
		s.feed(downmix(buffer, channels))
	}
}

// downmix copies the buffer, averaging interleaved channels to mono
func downmix(buffer []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(buffer))
		copy(out, buffer)
		return out
	}
	out := make([]int16, len(buffer)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(buffer[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func (m *Microphone) deviceLabel() string {
	if m.cfg.DeviceName == "" {
		return "default"
	}
	return m.cfg.DeviceName
}

// Close releases the shared stream
func (m *Microphone) Close() error {
	m.mu.Lock()
	s := m.stream
	m.stream = nil
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// classifyOpenError maps device refusals to voice.ErrMicDenied
func classifyOpenError(err error) error {
	if errors.Is(err, portaudio.DeviceUnavailable) || errors.Is(err, portaudio.InvalidDevice) {
		return fmt.Errorf("%w: %v", voice.ErrMicDenied, err)
	}
	return fmt.Errorf("failed to open audio stream: %w", err)
}

// findDeviceByName finds a PortAudio input device by name
func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// DeviceInfo holds information about an audio device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns a list of available input devices
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var defaultInputName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputName = def.Name
	}

	var inputDevices []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultInputName,
			})
		}
	}
	return inputDevices, nil
}
