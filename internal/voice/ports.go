// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Collaborator interfaces consumed by the turn controller
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice/vad"
)

// Microphone opens the shared input stream
type Microphone interface {
	// Open returns ErrMicDenied (wrapped) when access is refused
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream is the single shared microphone handle. A muted stream
// delivers silence to recordings while analysers keep reading the raw
// level, which is what lets barge-in work during playback.
type AudioStream interface {
	Live() bool
	SetMuted(muted bool)

	// Record starts buffering audio until the recording is stopped
	Record() (Recording, error)

	// Analyser taps the stream level; closing it disconnects the tap
	Analyser() (vad.Analyser, error)

	Close() error
}

// Recording is an in-progress capture
type Recording interface {
	// Stop ends the capture and returns the encoded audio
	Stop() ([]byte, error)
}

// Transcriber converts encoded audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// SpeechRequest asks for synthesized audio
type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
	Style string  `json:"instructions,omitempty"`
}

// Synthesizer converts text to encoded audio
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// AudioPlayer plays encoded audio and blocks until it finished or ctx is
// cancelled
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
}

// Cue is a short earcon played on state entry
type Cue string

const (
	CueListening  Cue = "listening"
	CueProcessing Cue = "processing"
	CueSpeaking   Cue = "speaking"
)

// CuePlayer plays cues without blocking
type CuePlayer interface {
	Cue(cue Cue)
}

// ReplyRequest asks for a reply draft
type ReplyRequest struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Tone      string `json:"tone"`
	Language  string `json:"language,omitempty"`
}

// ReplyResult is a draft, or a job reference when Queued is set
type ReplyResult struct {
	DraftBody string `json:"draft_body"`
	Notes     string `json:"notes,omitempty"`
	Queued    bool   `json:"queued,omitempty"`
	JobID     string `json:"job_id,omitempty"`
}

// TriageRequest asks for a priority review of messages
type TriageRequest struct {
	SessionID string   `json:"session_id"`
	Keys      []string `json:"keys"`
	Language  string   `json:"language,omitempty"`
}

// TriageItem is the review of one message
type TriageItem struct {
	Key             string     `json:"key"`
	Priority        string     `json:"priority"`
	Summary         string     `json:"summary"`
	SuggestedAction ActionKind `json:"suggested_action"`
}

// TriageResult lists reviewed messages and the actions they imply
type TriageResult struct {
	Items           []TriageItem   `json:"items"`
	ProposedActions []ActionRecord `json:"proposed_actions,omitempty"`
	Queued          bool           `json:"queued,omitempty"`
	JobID           string         `json:"job_id,omitempty"`
}

// ChatRequest is a free-form question about the visible messages
type ChatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	VisibleKeys []string `json:"visible_keys"`
	Providers   []string `json:"providers,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// ChatResult is an answer plus any actions the assistant proposes
type ChatResult struct {
	Answer          string         `json:"answer"`
	ProposedActions []ActionRecord `json:"proposed_actions,omitempty"`
	Queued          bool           `json:"queued,omitempty"`
	JobID           string         `json:"job_id,omitempty"`
}

// JobState is the lifecycle of a background job
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobRetryWait JobState = "retry_wait"
	JobDone      JobState = "done"
	JobFailed    JobState = "error"
)

// Pending reports whether the job has not reached a terminal state
func (s JobState) Pending() bool {
	return s != JobDone && s != JobFailed
}

// JobStatus is one poll of a background job
type JobStatus struct {
	ID      string          `json:"id"`
	Status  JobState        `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Assistant is the backend that understands and executes mail actions
type Assistant interface {
	SuggestReply(ctx context.Context, req ReplyRequest) (*ReplyResult, error)
	Triage(ctx context.Context, req TriageRequest) (*TriageResult, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResponse, error)
	Job(ctx context.Context, id string) (*JobStatus, error)
}

// SnapshotSource loads the visible message list
type SnapshotSource interface {
	Snapshot(ctx context.Context, sessionID string) (*Snapshot, error)
}

// QueueStore persists the proposed actions and dispatch results
type QueueStore interface {
	SaveQueue(ctx context.Context, sessionID string, actions []ActionRecord) error
	LoadQueue(ctx context.Context, sessionID string) ([]ActionRecord, error)
	RecordResults(ctx context.Context, sessionID string, results []DispatchResult) error
}

// StatusSink observes the controller. Implementations must not call back
// into the controller synchronously.
type StatusSink interface {
	Render(status Status)
	Message(msg Message)
}

// HotwordGate is the always-on listener as seen by the controller
type HotwordGate interface {
	Pause()
	ResumeAfter(delay time.Duration, ready func() bool)
	// Configure switches the wake word and recognition language
	Configure(wakeWord, language string)
}

// SettingsStore persists user preferences. Load returns nil when nothing
// has been saved yet.
type SettingsStore interface {
	Load() (*Prefs, error)
	Save(prefs Prefs) error
}

// SessionKeeper remembers a generated session id so the persisted queue
// survives a restart. LoadSessionID returns "" when none was saved.
type SessionKeeper interface {
	LoadSessionID() (string, error)
	SaveSessionID(id string) error
}
