// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Session data model shared by the controller and its adapters
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"fmt"
	"time"
)

// Mode selects what happens after a turn returns to idle
type Mode string

const (
	// ModeManual waits for an explicit trigger
	ModeManual Mode = "manual"

	// ModeAuto re-arms the microphone after AutoListenDelay
	ModeAuto Mode = "auto"

	// ModeAlwaysOn resumes wake word listening after HotwordResumeDelay
	ModeAlwaysOn Mode = "always_on"
)

// ParseMode accepts the persisted mode names plus a few aliases
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "manual":
		return ModeManual, nil
	case "auto", "handsfree", "hands-free":
		return ModeAuto, nil
	case "always_on", "always-on", "alwayson", "hotword":
		return ModeAlwaysOn, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ActionKind is a mail action the backend knows how to execute
type ActionKind string

const (
	ActionSend       ActionKind = "send"
	ActionDelete     ActionKind = "delete"
	ActionMarkRead   ActionKind = "mark_read"
	ActionMarkUnread ActionKind = "mark_unread"
	ActionSkip       ActionKind = "skip"
)

// Valid reports whether k is one of the known action kinds
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSend, ActionDelete, ActionMarkRead, ActionMarkUnread, ActionSkip:
		return true
	}
	return false
}

// ActionRecord is one queued mail action. Body is only set for send.
type ActionRecord struct {
	Key    string     `json:"key"`
	Action ActionKind `json:"action"`
	Body   string     `json:"body,omitempty"`
}

// SnapshotItem summarizes one visible message
type SnapshotItem struct {
	Key      string `json:"key"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider,omitempty"`
	Read     bool   `json:"read"`
}

// Snapshot is the ordered list of messages a user can refer to by number
type Snapshot struct {
	Items    []SnapshotItem `json:"items"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// Len returns the number of items; a nil snapshot is empty
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// At resolves a 1-based index
func (s *Snapshot) At(index int) (SnapshotItem, bool) {
	if index < 1 || index > s.Len() {
		return SnapshotItem{}, false
	}
	return s.Items[index-1], true
}

// Keys returns the message keys in display order
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, s.Len())
	if s == nil {
		return keys
	}
	for _, it := range s.Items {
		keys = append(keys, it.Key)
	}
	return keys
}

// Unread counts items not yet read
func (s *Snapshot) Unread() int {
	n := 0
	if s == nil {
		return n
	}
	for _, it := range s.Items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Remove drops the item with the given key
func (s *Snapshot) Remove(key string) bool {
	if s == nil {
		return false
	}
	for i, it := range s.Items {
		if it.Key == key {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return true
		}
	}
	return false
}

// SetRead flags the item with the given key
func (s *Snapshot) SetRead(key string, read bool) bool {
	if s == nil {
		return false
	}
	for i := range s.Items {
		if s.Items[i].Key == key {
			s.Items[i].Read = read
			return true
		}
	}
	return false
}

// Clone returns a deep copy
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Items:    append([]SnapshotItem(nil), s.Items...),
		LoadedAt: s.LoadedAt,
	}
}

// ConfirmationKind names what a pending confirmation would execute
type ConfirmationKind string

const (
	ConfirmDeleteAll     ConfirmationKind = "delete_all"
	ConfirmDispatchQueue ConfirmationKind = "dispatch_queue"
	ConfirmLLMProposed   ConfirmationKind = "llm_proposed"
)

// PendingConfirmation holds a destructive batch waiting for approval
type PendingConfirmation struct {
	Kind             ConfirmationKind `json:"kind"`
	Actions          []ActionRecord   `json:"actions"`
	RequiresDouble   bool             `json:"requires_double_confirm"`
	FirstConfirmDone bool             `json:"first_confirm_done"`
	CreatedAt        time.Time        `json:"created_at"`
}

// DispatchMode distinguishes validation from execution
type DispatchMode string

const (
	DispatchExecute DispatchMode = "execute"
	DispatchDryRun  DispatchMode = "dry_run"
)

// DispatchStatus is the per-action outcome reported by the backend
type DispatchStatus string

const (
	StatusOK      DispatchStatus = "ok"
	StatusSkipped DispatchStatus = "skipped"
	StatusError   DispatchStatus = "error"
)

// DispatchRequest is a batch sent for execution
type DispatchRequest struct {
	SessionID     string         `json:"session_id"`
	Actions       []ActionRecord `json:"actions"`
	Mode          DispatchMode   `json:"mode"`
	ConfirmDelete bool           `json:"confirm_delete"`
}

// DispatchResult is the outcome of one action
type DispatchResult struct {
	Key     string         `json:"key"`
	Action  ActionKind     `json:"action"`
	Status  DispatchStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// DispatchResponse carries the per-action results
type DispatchResponse struct {
	Results []DispatchResult `json:"results"`
}

// MessageLevel grades a user-visible message
type MessageLevel string

const (
	LevelInfo  MessageLevel = "info"
	LevelWarn  MessageLevel = "warn"
	LevelError MessageLevel = "error"
)

// Message is a line shown or spoken to the user
type Message struct {
	Level  MessageLevel `json:"level"`
	Text   string       `json:"text"`
	TurnID uint64       `json:"turn_id,omitempty"`
	At     time.Time    `json:"at"`
}

// Status is the observable controller status rendered after every
// transition
type Status struct {
	State    State            `json:"state"`
	Previous State            `json:"previous"`
	Mode     Mode             `json:"mode"`
	TurnID   uint64           `json:"turn_id"`
	Busy     bool             `json:"busy"`
	Queue    int              `json:"queue"`
	Pending  ConfirmationKind `json:"pending,omitempty"`
	Snapshot int              `json:"snapshot"`
	Reason   string           `json:"reason,omitempty"`
	Since    time.Time        `json:"since"`
}

// Prefs are the persisted user preferences
type Prefs struct {
	Mode       Mode    `toml:"mode"`
	Language   string  `toml:"language"`
	Voice      string  `toml:"voice"`
	Speed      float64 `toml:"speed"`
	Style      string  `toml:"style"`
	WakeWord   string  `toml:"wake_word"`
	TTSEnabled bool    `toml:"tts_enabled"`
}

// merge overlays the non-zero fields of o. TTSEnabled is always taken
// from o since false is a valid saved choice.
func (p Prefs) merge(o Prefs) Prefs {
	if o.Mode != "" {
		p.Mode = o.Mode
	}
	if o.Language != "" {
		p.Language = o.Language
	}
	if o.Voice != "" {
		p.Voice = o.Voice
	}
	if o.Speed > 0 {
		p.Speed = o.Speed
	}
	if o.Style != "" {
		p.Style = o.Style
	}
	if o.WakeWord != "" {
		p.WakeWord = o.WakeWord
	}
	p.TTSEnabled = o.TTSEnabled
	return p
}
