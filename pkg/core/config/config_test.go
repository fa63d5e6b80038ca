package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"complex", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "50ms", 50 * time.Millisecond, false},
		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && d.Duration != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.expected)
			}
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	d := Duration{1500 * time.Millisecond}
	result, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(result) != "1.5s" {
		t.Errorf("MarshalText() = %v, want 1.5s", string(result))
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.General.Name != "voicepilot" {
		t.Errorf("General.Name = %v, want voicepilot", cfg.General.Name)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("General.LogLevel = %v, want info", cfg.General.LogLevel)
	}
	if cfg.Voice.Mode != "manual" {
		t.Errorf("Voice.Mode = %v, want manual", cfg.Voice.Mode)
	}
	if cfg.Voice.WakeWord != "piloto" {
		t.Errorf("Voice.WakeWord = %v, want piloto", cfg.Voice.WakeWord)
	}
	if cfg.Voice.TTSEnabled == nil || !*cfg.Voice.TTSEnabled {
		t.Error("Voice.TTSEnabled should default to true")
	}

	timing := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"VADInterval", cfg.Timing.VADInterval.Duration, 50 * time.Millisecond},
		{"SilenceWindow", cfg.Timing.SilenceWindow.Duration, 1500 * time.Millisecond},
		{"MaxRecordingAuto", cfg.Timing.MaxRecordingAuto.Duration, 12 * time.Second},
		{"MaxRecordingManual", cfg.Timing.MaxRecordingManual.Duration, 30 * time.Second},
		{"ProcessingTimeout", cfg.Timing.ProcessingTimeout.Duration, 45 * time.Second},
		{"AutoListenDelay", cfg.Timing.AutoListenDelay.Duration, time.Second},
		{"HotwordResumeDelay", cfg.Timing.HotwordResumeDelay.Duration, 1500 * time.Millisecond},
		{"ErrorRecoveryDelay", cfg.Timing.ErrorRecoveryDelay.Duration, 2500 * time.Millisecond},
		{"JobPollInterval", cfg.Timing.JobPollInterval.Duration, 2 * time.Second},
	}
	for _, tt := range timing {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	budget := time.Duration(cfg.Timing.JobMaxAttempts) * cfg.Timing.JobPollInterval.Duration
	if budget >= cfg.Timing.ProcessingTimeout.Duration {
		t.Errorf("job poll budget %v does not fit in ProcessingTimeout %v", budget, cfg.Timing.ProcessingTimeout.Duration)
	}

	if cfg.Timing.SilenceThreshold != 0.02 {
		t.Errorf("SilenceThreshold = %v, want 0.02", cfg.Timing.SilenceThreshold)
	}
	if cfg.Timing.MinAudioBytes != 1500 {
		t.Errorf("MinAudioBytes = %v, want 1500", cfg.Timing.MinAudioBytes)
	}
	if cfg.Timing.DoubleConfirmDeletes != 5 {
		t.Errorf("DoubleConfirmDeletes = %v, want 5", cfg.Timing.DoubleConfirmDeletes)
	}
	if cfg.Timing.MaxSpeechChars != 4096 {
		t.Errorf("MaxSpeechChars = %v, want 4096", cfg.Timing.MaxSpeechChars)
	}
}

func TestConfig_Addresses(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if got := cfg.FeedAddress(); got != "127.0.0.1:8765" {
		t.Errorf("FeedAddress() = %v, want 127.0.0.1:8765", got)
	}
	if got := cfg.HealthAddress(); got != "127.0.0.1:9765" {
		t.Errorf("HealthAddress() = %v, want 127.0.0.1:9765", got)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("Load() expected error for non-existent file")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "voicepilot.toml")

	configContent := `
[general]
log_level = "debug"

[backend]
base_url = "https://inbox.example.com"
providers = ["gmail", "outlook"]

[voice]
mode = "auto"

[timing]
silence_window = "2s"
min_audio_bytes = 2000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.LogLevel != "debug" {
		t.Errorf("General.LogLevel = %v, want debug", cfg.General.LogLevel)
	}
	if cfg.Backend.BaseURL != "https://inbox.example.com" {
		t.Errorf("Backend.BaseURL = %v", cfg.Backend.BaseURL)
	}
	if len(cfg.Backend.Providers) != 2 {
		t.Errorf("Backend.Providers = %v, want 2 entries", cfg.Backend.Providers)
	}
	if cfg.Voice.Mode != "auto" {
		t.Errorf("Voice.Mode = %v, want auto", cfg.Voice.Mode)
	}
	if cfg.Timing.SilenceWindow.Duration != 2*time.Second {
		t.Errorf("Timing.SilenceWindow = %v, want 2s", cfg.Timing.SilenceWindow.Duration)
	}
	if cfg.Timing.MinAudioBytes != 2000 {
		t.Errorf("Timing.MinAudioBytes = %v, want 2000", cfg.Timing.MinAudioBytes)
	}
	if cfg.Path != configPath {
		t.Errorf("Path = %v, want %v", cfg.Path, configPath)
	}
	// defaults still applied for missing values
	if cfg.Timing.ProcessingTimeout.Duration != 45*time.Second {
		t.Errorf("Timing.ProcessingTimeout = %v, want 45s (default)", cfg.Timing.ProcessingTimeout.Duration)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "voicepilot.yaml")

	configContent := `
voice:
  mode: always-on
  wake_word: copiloto
timing:
  auto_listen_delay: 750ms
feed:
  enabled: true
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Voice.Mode != "always-on" {
		t.Errorf("Voice.Mode = %v, want always-on", cfg.Voice.Mode)
	}
	if cfg.Voice.WakeWord != "copiloto" {
		t.Errorf("Voice.WakeWord = %v, want copiloto", cfg.Voice.WakeWord)
	}
	if cfg.Timing.AutoListenDelay.Duration != 750*time.Millisecond {
		t.Errorf("Timing.AutoListenDelay = %v, want 750ms", cfg.Timing.AutoListenDelay.Duration)
	}
	if !cfg.Feed.Enabled || cfg.Feed.Port != 9000 {
		t.Errorf("Feed = %+v, want enabled on 9000", cfg.Feed)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	os.Unsetenv("VOICEPILOT_TEST_KEY")
	defer os.Unsetenv("VOICEPILOT_TEST_KEY")

	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("VOICEPILOT_TEST_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	configPath := filepath.Join(tmpDir, "voicepilot.toml")
	if err := os.WriteFile(configPath, []byte("[backend]\napi_key = \"${VOICEPILOT_TEST_KEY}\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.APIKey != "from-dotenv" {
		t.Errorf("Backend.APIKey = %v, want from-dotenv", cfg.Backend.APIKey)
	}
}

func TestConfig_expandEnvVars(t *testing.T) {
	os.Setenv("TEST_OPENAI_KEY", "secret-key-123")
	defer os.Unsetenv("TEST_OPENAI_KEY")

	cfg := &Config{
		OpenAI: OpenAIConfig{APIKey: "$TEST_OPENAI_KEY"},
	}

	cfg.expandEnvVars()

	if cfg.OpenAI.APIKey != "secret-key-123" {
		t.Errorf("APIKey = %v, want secret-key-123", cfg.OpenAI.APIKey)
	}
}

func TestLoadFromEnv_NoConfigFound(t *testing.T) {
	original := os.Getenv("VOICEPILOT_CONFIG")
	os.Unsetenv("VOICEPILOT_CONFIG")
	originalHome := os.Getenv("HOME")
	defer func() {
		if original != "" {
			os.Setenv("VOICEPILOT_CONFIG", original)
		}
		os.Setenv("HOME", originalHome)
	}()

	originalWd, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Setenv("HOME", tmpDir)
	os.Chdir(tmpDir)
	defer os.Chdir(originalWd)

	_, err := LoadFromEnv()
	if !errors.Is(err, ErrNoConfig) {
		t.Errorf("LoadFromEnv() error = %v, want ErrNoConfig", err)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "voicepilot.toml")
	if err := os.WriteFile(configPath, []byte("[voice]\nmode = \"manual\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Config, 8)
	w := NewWatcher(configPath, func(c *Config) { changes <- c })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	// The watch may not be registered yet, so keep writing until seen
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Voice.Mode != "always_on" {
				t.Errorf("Voice.Mode = %v, want always_on", c.Voice.Mode)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(configPath, []byte("[voice]\nmode = \"always_on\"\n"), 0644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload within 5s")
		}
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "voicepilot.toml")
	if err := os.WriteFile(configPath, []byte("[voice\n"), 0644); err != nil {
		t.Fatal(err)
	}

	called := false
	w := NewWatcher(configPath, func(*Config) { called = true })
	w.reload(configPath)
	if called {
		t.Error("onChange called for a file that does not parse")
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "voicepilot.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Voice.Mode != "manual" {
		t.Errorf("Voice.Mode = %v, want manual", cfg.Voice.Mode)
	}
	if cfg.Timing.SilenceWindow.Duration != 1500*time.Millisecond {
		t.Errorf("Timing.SilenceWindow = %v, want 1.5s", cfg.Timing.SilenceWindow.Duration)
	}
	if cfg.Hotkey.Keys != "ctrl+shift+space" {
		t.Errorf("Hotkey.Keys = %v", cfg.Hotkey.Keys)
	}
}
