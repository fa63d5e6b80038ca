package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Backend BackendConfig `toml:"backend" yaml:"backend"`
	OpenAI  OpenAIConfig  `toml:"openai" yaml:"openai"`
	Voice   VoiceConfig   `toml:"voice" yaml:"voice"`
	Timing  TimingConfig  `toml:"timing" yaml:"timing"`
	Audio   AudioConfig   `toml:"audio" yaml:"audio"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	Feed    FeedConfig    `toml:"feed" yaml:"feed"`
	Health  HealthConfig  `toml:"health" yaml:"health"`
	Hotkey  HotkeyConfig  `toml:"hotkey" yaml:"hotkey"`

	// Path is the file the configuration was loaded from, empty for defaults
	Path string `toml:"-" yaml:"-"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name" yaml:"name"`
	DataDir   string `toml:"data_dir" yaml:"data_dir"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`
	EnvFile   string `toml:"env_file" yaml:"env_file"`
}

// BackendConfig holds the InboxPilot backend connection
type BackendConfig struct {
	BaseURL   string   `toml:"base_url" yaml:"base_url"`
	APIKey    string   `toml:"api_key" yaml:"api_key"`
	SessionID string   `toml:"session_id" yaml:"session_id"`
	Providers []string `toml:"providers" yaml:"providers"`
	Timeout   Duration `toml:"timeout" yaml:"timeout"`
	// UseTranscribe routes transcription through the backend. When false the
	// OpenAI provider is called directly.
	UseTranscribe bool `toml:"use_transcribe" yaml:"use_transcribe"`
	UseSpeech     bool `toml:"use_speech" yaml:"use_speech"`
}

// OpenAIConfig holds the direct speech provider settings
type OpenAIConfig struct {
	APIKey   string `toml:"api_key" yaml:"api_key"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	STTModel string `toml:"stt_model" yaml:"stt_model"`
	TTSModel string `toml:"tts_model" yaml:"tts_model"`
}

// VoiceConfig holds the default user preferences
type VoiceConfig struct {
	Mode       string  `toml:"mode" yaml:"mode"`
	Language   string  `toml:"language" yaml:"language"`
	Voice      string  `toml:"voice" yaml:"voice"`
	Speed      float64 `toml:"speed" yaml:"speed"`
	Style      string  `toml:"style" yaml:"style"`
	WakeWord   string  `toml:"wake_word" yaml:"wake_word"`
	TTSEnabled *bool   `toml:"tts_enabled" yaml:"tts_enabled"`
	Cues       *bool   `toml:"cues" yaml:"cues"`
}

// TimingConfig holds every controller threshold
type TimingConfig struct {
	VADInterval          Duration `toml:"vad_interval" yaml:"vad_interval"`
	SilenceThreshold     float64  `toml:"silence_threshold" yaml:"silence_threshold"`
	MinSoundSamples      int      `toml:"min_sound_samples" yaml:"min_sound_samples"`
	SilenceWindow        Duration `toml:"silence_window" yaml:"silence_window"`
	MaxRecordingAuto     Duration `toml:"max_recording_auto" yaml:"max_recording_auto"`
	MaxRecordingManual   Duration `toml:"max_recording_manual" yaml:"max_recording_manual"`
	MinAudioBytes        int      `toml:"min_audio_bytes" yaml:"min_audio_bytes"`
	ProcessingTimeout    Duration `toml:"processing_timeout" yaml:"processing_timeout"`
	AutoListenDelay      Duration `toml:"auto_listen_delay" yaml:"auto_listen_delay"`
	HotwordResumeDelay   Duration `toml:"hotword_resume_delay" yaml:"hotword_resume_delay"`
	ErrorRecoveryDelay   Duration `toml:"error_recovery_delay" yaml:"error_recovery_delay"`
	InterruptFactor      float64  `toml:"interrupt_factor" yaml:"interrupt_factor"`
	InterruptSamples     int      `toml:"interrupt_samples" yaml:"interrupt_samples"`
	JobPollInterval      Duration `toml:"job_poll_interval" yaml:"job_poll_interval"`
	JobMaxAttempts       int      `toml:"job_max_attempts" yaml:"job_max_attempts"`
	MaxSpeechChars       int      `toml:"max_speech_chars" yaml:"max_speech_chars"`
	DoubleConfirmDeletes int      `toml:"double_confirm_deletes" yaml:"double_confirm_deletes"`
}

// AudioConfig holds microphone settings
type AudioConfig struct {
	SampleRate    int      `toml:"sample_rate" yaml:"sample_rate"`
	FramesPerRead int      `toml:"frames_per_read" yaml:"frames_per_read"`
	InputDevice   string   `toml:"input_device" yaml:"input_device"`
	HotwordWindow Duration `toml:"hotword_window" yaml:"hotword_window"`
	VADMode       int      `toml:"vad_mode" yaml:"vad_mode"`
}

// StoreConfig holds the queue database location. The path "memory" keeps
// the queue in memory only.
type StoreConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// FeedConfig holds the websocket status feed settings
type FeedConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Host    string `toml:"host" yaml:"host"`
	Port    int    `toml:"port" yaml:"port"`
}

// HealthConfig holds the gRPC health endpoint settings
type HealthConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Host     string   `toml:"host" yaml:"host"`
	Port     int      `toml:"port" yaml:"port"`
	Interval Duration `toml:"interval" yaml:"interval"`
}

// HotkeyConfig holds the global manual trigger
type HotkeyConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Keys    string `toml:"keys" yaml:"keys"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalYAML formats the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load loads configuration from a TOML or YAML file, chosen by extension
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// .env next to the config file feeds the secret expansion below
	envFile := cfg.General.EnvFile
	if envFile == "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()
	cfg.Path = path

	return &cfg, nil
}

// Default returns a configuration built only from defaults and the
// environment, for running without a config file.
func Default() *Config {
	_ = loadEnvFile(".env")
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg
}

// ErrNoConfig is returned by LoadFromEnv when no config file exists
var ErrNoConfig = errors.New("no config file found")

// LoadFromEnv loads configuration from the VOICEPILOT_CONFIG environment variable
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("VOICEPILOT_CONFIG")
	if path == "" {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return nil, fmt.Errorf("%w, set VOICEPILOT_CONFIG or create configs/voicepilot.toml", ErrNoConfig)
	}

	return Load(path)
}

// DefaultPaths lists the locations searched by LoadFromEnv
func DefaultPaths() []string {
	return []string{
		"./configs/voicepilot.toml",
		"./configs/voicepilot.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/voicepilot/config.toml"),
	}
}

// loadEnvFile loads KEY=value pairs without overriding variables that are
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "voicepilot"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = filepath.Join(os.Getenv("HOME"), ".local/share/voicepilot")
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Backend
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8000"
	}
	if c.Backend.APIKey == "" {
		c.Backend.APIKey = "${INBOXPILOT_API_KEY}"
	}
	if c.Backend.Timeout.Duration == 0 {
		c.Backend.Timeout.Duration = 60 * time.Second
	}

	// OpenAI
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = "${OPENAI_API_KEY}"
	}
	if c.OpenAI.STTModel == "" {
		c.OpenAI.STTModel = "whisper-1"
	}
	if c.OpenAI.TTSModel == "" {
		c.OpenAI.TTSModel = "tts-1"
	}

	// Voice
	if c.Voice.Mode == "" {
		c.Voice.Mode = "manual"
	}
	if c.Voice.Language == "" {
		c.Voice.Language = "pt"
	}
	if c.Voice.Voice == "" {
		c.Voice.Voice = "nova"
	}
	if c.Voice.Speed == 0 {
		c.Voice.Speed = 1.0
	}
	if c.Voice.WakeWord == "" {
		c.Voice.WakeWord = "piloto"
	}
	if c.Voice.TTSEnabled == nil {
		enabled := true
		c.Voice.TTSEnabled = &enabled
	}
	if c.Voice.Cues == nil {
		enabled := true
		c.Voice.Cues = &enabled
	}

	c.Timing.applyDefaults()

	// Audio
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FramesPerRead == 0 {
		c.Audio.FramesPerRead = 320
	}
	if c.Audio.HotwordWindow.Duration == 0 {
		c.Audio.HotwordWindow.Duration = 2 * time.Second
	}
	if c.Audio.VADMode == 0 {
		c.Audio.VADMode = 2
	}

	// Store
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.General.DataDir, "queue.db")
	}

	// Feed
	if c.Feed.Host == "" {
		c.Feed.Host = "127.0.0.1"
	}
	if c.Feed.Port == 0 {
		c.Feed.Port = 8765
	}

	// Health
	if c.Health.Host == "" {
		c.Health.Host = "127.0.0.1"
	}
	if c.Health.Port == 0 {
		c.Health.Port = 9765
	}
	if c.Health.Interval.Duration == 0 {
		c.Health.Interval.Duration = 15 * time.Second
	}

	// Hotkey
	if c.Hotkey.Keys == "" {
		c.Hotkey.Keys = "ctrl+shift+space"
	}
}

func (t *TimingConfig) applyDefaults() {
	if t.VADInterval.Duration == 0 {
		t.VADInterval.Duration = 50 * time.Millisecond
	}
	if t.SilenceThreshold == 0 {
		t.SilenceThreshold = 0.02
	}
	if t.MinSoundSamples == 0 {
		t.MinSoundSamples = 3
	}
	if t.SilenceWindow.Duration == 0 {
		t.SilenceWindow.Duration = 1500 * time.Millisecond
	}
	if t.MaxRecordingAuto.Duration == 0 {
		t.MaxRecordingAuto.Duration = 12 * time.Second
	}
	if t.MaxRecordingManual.Duration == 0 {
		t.MaxRecordingManual.Duration = 30 * time.Second
	}
	if t.MinAudioBytes == 0 {
		t.MinAudioBytes = 1500
	}
	if t.ProcessingTimeout.Duration == 0 {
		t.ProcessingTimeout.Duration = 45 * time.Second
	}
	if t.AutoListenDelay.Duration == 0 {
		t.AutoListenDelay.Duration = time.Second
	}
	if t.HotwordResumeDelay.Duration == 0 {
		t.HotwordResumeDelay.Duration = 1500 * time.Millisecond
	}
	if t.ErrorRecoveryDelay.Duration == 0 {
		t.ErrorRecoveryDelay.Duration = 2500 * time.Millisecond
	}
	if t.InterruptFactor == 0 {
		t.InterruptFactor = 2.0
	}
	if t.InterruptSamples == 0 {
		t.InterruptSamples = 3
	}
	if t.JobPollInterval.Duration == 0 {
		t.JobPollInterval.Duration = 2 * time.Second
	}
	if t.JobMaxAttempts == 0 {
		t.JobMaxAttempts = 20
	}
	if t.MaxSpeechChars == 0 {
		t.MaxSpeechChars = 4096
	}
	if t.DoubleConfirmDeletes == 0 {
		t.DoubleConfirmDeletes = 5
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.Backend.APIKey = os.ExpandEnv(c.Backend.APIKey)
	c.Backend.BaseURL = os.ExpandEnv(c.Backend.BaseURL)
	c.OpenAI.APIKey = os.ExpandEnv(c.OpenAI.APIKey)
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
}

// FeedAddress returns the listen address of the status feed
func (c *Config) FeedAddress() string {
	return fmt.Sprintf("%s:%d", c.Feed.Host, c.Feed.Port)
}

// HealthAddress returns the listen address of the health endpoint
func (c *Config) HealthAddress() string {
	return fmt.Sprintf("%s:%d", c.Health.Host, c.Health.Port)
}
