// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Settings persistence
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// settingsFile is the on-disk layout
type settingsFile struct {
	Voice   Prefs        `toml:"voice"`
	Session sessionEntry `toml:"session"`

	hasVoice bool
}

type sessionEntry struct {
	ID string `toml:"id"`
}

// FileSettings stores preferences as TOML
type FileSettings struct {
	mu   sync.Mutex
	path string
}

// NewFileSettings stores settings at path
func NewFileSettings(path string) *FileSettings {
	return &FileSettings{path: path}
}

// DefaultSettingsPath returns ~/.config/voicepilot/settings.toml
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "voicepilot", "settings.toml"), nil
}

// Path returns the settings file location
func (s *FileSettings) Path() string {
	return s.path
}

// Load reads the saved preferences; nil when none were saved yet
func (s *FileSettings) Load() (*Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.readLocked()
	if err != nil || f == nil || !f.hasVoice {
		return nil, err
	}
	if f.Voice.Mode != "" {
		mode, err := ParseMode(string(f.Voice.Mode))
		if err != nil {
			return nil, err
		}
		f.Voice.Mode = mode
	}
	return &f.Voice, nil
}

// Save writes the preferences, creating the directory if needed
func (s *FileSettings) Save(prefs Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.readLocked()
	if err != nil || f == nil {
		f = &settingsFile{}
	}
	f.Voice = prefs
	return s.writeLocked(*f)
}

// LoadSessionID returns the saved session id, "" when none was saved
func (s *FileSettings) LoadSessionID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.readLocked()
	if err != nil || f == nil {
		return "", err
	}
	return f.Session.ID, nil
}

// SaveSessionID stores id next to the preferences
func (s *FileSettings) SaveSessionID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.readLocked()
	if err != nil {
		return err
	}
	if f == nil {
		f = &settingsFile{}
	}
	f.Session.ID = id
	return s.writeLocked(*f)
}

// readLocked decodes the file; nil when it does not exist
func (s *FileSettings) readLocked() (*settingsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var f settingsFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	f.hasVoice = md.IsDefined("voice")
	return &f, nil
}

func (s *FileSettings) writeLocked(f settingsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
