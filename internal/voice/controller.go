// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Turn controller - arms the microphone, runs one turn at a
//              time and chains the next one according to the mode
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inboxpilot/voicepilot/internal/voice/intent"
	"github.com/inboxpilot/voicepilot/internal/voice/vad"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// Deps are the collaborators of a controller. Transcriber and Assistant
// are required; the rest may be nil.
type Deps struct {
	Microphone  Microphone
	Transcriber Transcriber
	Synthesizer Synthesizer
	Player      AudioPlayer
	Cues        CuePlayer
	Assistant   Assistant
	Snapshots   SnapshotSource
	Queue       QueueStore
	Sink        StatusSink
	Hotword     HotwordGate
	Settings    SettingsStore
	Sessions    SessionKeeper
	Clock       Clock
}

// ControllerContext is the session state owned by one controller
type ControllerContext struct {
	SessionID string
	Snapshot  *Snapshot
	Proposed  []ActionRecord
	Pending   *PendingConfirmation

	// Cursor is the 1-based index of the message read last, 0 for none
	Cursor    int
	LastReply string

	// ActiveTurn is the only turn whose results may be applied; 0 after
	// the turn was abandoned
	ActiveTurn uint64
	NextTurn   uint64

	// RequestLock is set while a turn's request is in flight
	RequestLock bool

	Prefs Prefs
}

func (cc ControllerContext) clone() ControllerContext {
	out := cc
	out.Snapshot = cc.Snapshot.Clone()
	out.Proposed = append([]ActionRecord(nil), cc.Proposed...)
	if cc.Pending != nil {
		p := *cc.Pending
		p.Actions = append([]ActionRecord(nil), cc.Pending.Actions...)
		out.Pending = &p
	}
	return out
}

// turn is one request/response cycle with its own cancellation
type turn struct {
	id         uint64
	source     string
	ctx        context.Context
	cancel     context.CancelFunc
	handsFree  bool
	transcript string
	intent     intent.Intent
	forced     *intent.Intent
	noChain    bool
	dirty      bool
	phases     map[string]time.Time
}

// Controller drives the voice turns. All shared state is guarded by mu;
// every asynchronous completion re-checks its turn id under mu before it
// touches anything.
type Controller struct {
	mu         sync.Mutex
	cfg        Config
	deps       Deps
	clock      Clock
	logger     *logging.Logger
	classifier *intent.Classifier
	state      *StateMachine
	speech     *SpeechPlayer
	cc         ControllerContext
	turn       *turn

	stream        AudioStream
	recording     Recording
	silence       *vad.Monitor
	interrupt     *vad.Monitor
	maxTimer      Timer
	watchdog      Timer
	watchdogSeq   uint64
	chainTimer    Timer
	recoveryTimer Timer
	reason        string

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewController creates a controller in Idle. Saved preferences override
// cfg.Prefs.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if deps.Transcriber == nil {
		return nil, errors.New("voice: transcriber is required")
	}
	if deps.Assistant == nil {
		return nil, errors.New("voice: assistant is required")
	}
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}
	if deps.Cues == nil {
		deps.Cues = nopCues{}
	}
	if deps.Hotword == nil {
		deps.Hotword = nopHotword{}
	}

	logger := logging.New("voice-controller")

	prefs := cfg.Prefs
	if deps.Settings != nil {
		saved, err := deps.Settings.Load()
		if err != nil {
			logger.Warn("Failed to load settings, using defaults", "error", err)
		} else if saved != nil {
			prefs = prefs.merge(*saved)
		}
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = restoreSession(deps.Sessions, logger)
	}

	deps.Hotword.Configure(prefs.WakeWord, prefs.Language)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		clock:      deps.Clock,
		logger:     logger,
		classifier: intent.New(intent.WithWakeWord(prefs.WakeWord)),
		speech:     NewSpeechPlayer(deps.Synthesizer, deps.Player, nil, cfg.MaxSpeechChars),
		cc:         ControllerContext{SessionID: sessionID, Prefs: prefs},
		ctx:        ctx,
		cancel:     cancel,
	}
	c.state = NewStateMachine(deps.Clock, Hooks{
		Exit:   c.onExit,
		Enter:  c.onEnter,
		Render: c.renderLocked,
	})
	return c, nil
}

// restoreSession returns the saved session id, generating and saving a new
// one when there is none
func restoreSession(keeper SessionKeeper, logger *logging.Logger) string {
	if keeper != nil {
		id, err := keeper.LoadSessionID()
		if err != nil {
			logger.Warn("Failed to load session id", "error", err)
		} else if id != "" {
			return id
		}
	}
	id := uuid.NewString()
	if keeper != nil {
		if err := keeper.SaveSessionID(id); err != nil {
			logger.Warn("Failed to save session id", "error", err)
		}
	}
	return id
}

// SessionID returns the backend session id
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.SessionID
}

// State returns the current controller state
func (c *Controller) State() State {
	return c.state.Current()
}

// Status returns the observable status
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Context returns a copy of the session state
func (c *Controller) Context() ControllerContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.clone()
}

// Prefs returns the active preferences
func (c *Controller) Prefs() Prefs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.Prefs
}

// Activate loads the snapshot and the persisted queue, then starts the
// mode's idle behavior. A snapshot failure is returned but does not stop
// activation.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	session := c.cc.SessionID
	c.mu.Unlock()

	var snap *Snapshot
	var snapErr error
	if c.deps.Snapshots != nil {
		snap, snapErr = c.deps.Snapshots.Snapshot(ctx, session)
		if snapErr != nil {
			c.logger.Warn("Failed to load snapshot", "error", snapErr)
			snapErr = fmt.Errorf("load snapshot: %w", snapErr)
		}
	}

	var queue []ActionRecord
	if c.deps.Queue != nil {
		var err error
		queue, err = c.deps.Queue.LoadQueue(ctx, session)
		if err != nil {
			c.logger.Warn("Failed to restore queue", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap != nil {
		c.cc.Snapshot = snap
		c.cc.Cursor = 0
	}
	if len(queue) > 0 && len(c.cc.Proposed) == 0 {
		c.cc.Proposed = queue
		c.logger.Info("Restored queue", "actions", len(queue))
	}
	c.logger.Info("Controller activated",
		"session", session,
		"mode", c.cc.Prefs.Mode,
		"messages", c.cc.Snapshot.Len())
	if c.state.Current() == StateIdle && !c.cc.RequestLock {
		c.chainLocked(nil)
	}
	c.renderLocked()
	return snapErr
}

// Arm starts a manually triggered turn
func (c *Controller) Arm() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armLocked(false)
}

// OnHotword starts a hands-free turn after the wake word was heard
func (c *Controller) OnHotword() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("Wake word detected")
	if err := c.armLocked(true); err != nil {
		c.logger.Debug("Ignoring wake word", "error", err)
	}
}

// Toggle is the single-button control: start listening, finish the
// recording, or stop whatever is in progress.
func (c *Controller) Toggle() error {
	switch c.state.Current() {
	case StateIdle:
		return c.Arm()
	case StateListening:
		return c.StopRecording()
	case StateProcessing, StateSpeaking:
		c.Stop()
	}
	return nil
}

func (c *Controller) armLocked(handsFree bool) error {
	if c.closed {
		return ErrClosed
	}
	if c.cc.RequestLock {
		return ErrBusy
	}
	if c.state.Current() != StateIdle {
		return ErrNotIdle
	}
	if c.deps.Microphone == nil {
		return ErrNoMicrophone
	}
	c.cancelChainLocked()

	stream, err := c.streamLocked()
	if err != nil {
		c.micFailedLocked(err)
		return err
	}
	rec, err := stream.Record()
	if err != nil {
		c.micFailedLocked(err)
		return fmt.Errorf("start recording: %w", err)
	}

	t := c.newTurnLocked("voice")
	t.handsFree = handsFree
	c.recording = rec
	c.state.Transition(StateListening)

	if an, err := stream.Analyser(); err != nil {
		c.logger.Warn("Silence detection unavailable", "error", err)
	} else {
		id := t.id
		c.silence = vad.Start(an, vad.NewSilenceDetector(c.cfg.VAD), c.cfg.VAD.Interval, func() {
			c.captureDone(id, "silence")
		})
	}

	limit := c.cfg.MaxRecordingManual
	if handsFree {
		limit = c.cfg.MaxRecordingAuto
	}
	id := t.id
	c.maxTimer = c.clock.AfterFunc(limit, func() {
		c.captureDone(id, "max_duration")
	})

	c.logger.Info("Listening", "turn", t.id, "hands_free", handsFree, "limit", limit)
	return nil
}

// streamLocked reuses the live microphone stream or opens a new one
func (c *Controller) streamLocked() (AudioStream, error) {
	if c.stream != nil && c.stream.Live() {
		return c.stream, nil
	}
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	s, err := c.deps.Microphone.Open(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	c.stream = s
	c.speech.SetMute(s.SetMuted)
	return s, nil
}

func (c *Controller) micFailedLocked(err error) {
	text, reason := msgMicFailed, "mic_failed"
	if errors.Is(err, ErrMicDenied) {
		text, reason = msgMicDenied, "mic_denied"
	}
	c.logger.Error("Microphone unavailable", "error", err, "kind", KindOf(err))
	c.forceLocked(StateError, reason)
	c.messageLocked(LevelError, text, 0)

	stopTimer(c.recoveryTimer)
	c.recoveryTimer = c.clock.AfterFunc(c.cfg.ErrorRecoveryDelay, c.recover)
}

// recover leaves Error. It does not chain: a failed microphone is not
// retried automatically.
func (c *Controller) recover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoveryTimer = nil
	if c.state.Current() == StateError {
		c.state.Transition(StateIdle)
	}
}

// StopRecording finishes the current recording early
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Current() != StateListening || c.recording == nil {
		return ErrNotIdle
	}
	c.finishCaptureLocked(c.turn, "manual")
	return nil
}

// captureDone is the silence and max-duration callback. It is a no-op
// unless turn id is still the active turn and it is still recording.
func (c *Controller) captureDone(id uint64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || id != c.cc.ActiveTurn || c.state.Current() != StateListening || c.recording == nil {
		c.logger.Debug("Ignoring stale capture stop", "turn", id, "reason", reason)
		return
	}
	c.finishCaptureLocked(c.turn, reason)
}

func (c *Controller) finishCaptureLocked(t *turn, reason string) {
	rec := c.recording
	c.recording = nil
	c.teardownCaptureLocked()

	audio, err := rec.Stop()
	if err != nil {
		c.logger.Error("Recording failed", "turn", t.id, "error", err)
		c.messageLocked(LevelError, msgRecordFailed, t.id)
		c.state.Transition(StateIdle)
		c.chainLocked(t)
		return
	}
	c.logger.Debug("Capture finished", "turn", t.id, "reason", reason, "bytes", len(audio))

	if len(audio) < c.cfg.MinAudioBytes {
		c.messageLocked(LevelInfo, msgNoSpeech, t.id)
		c.state.Transition(StateIdle)
		c.chainLocked(t)
		return
	}

	c.markLocked(t, "captured")
	c.state.Transition(StateProcessing)
	c.cc.RequestLock = true
	go c.transcribe(t, audio, c.cc.Prefs.Language)
}

func (c *Controller) transcribe(t *turn, audio []byte, language string) {
	text, err := c.deps.Transcriber.Transcribe(t.ctx, audio, language)

	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		c.logger.Debug("Dropping stale transcription", "turn", t.id)
		return
	}
	if err != nil {
		c.logger.Error("Transcription failed", "turn", t.id, "error", err)
		c.failLocked(t, errorText(err, msgTranscribeFailed))
		c.mu.Unlock()
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.cc.RequestLock = false
		c.messageLocked(LevelInfo, msgNoSpeech, t.id)
		c.state.Transition(StateIdle)
		c.chainLocked(t)
		c.mu.Unlock()
		return
	}
	t.transcript = text
	c.markLocked(t, "transcribed")
	c.mu.Unlock()

	c.logger.Info("Transcribed", "turn", t.id, "text", text)
	c.runTurn(t)
}

// SubmitText runs a turn from typed text
func (c *Controller) SubmitText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return c.beginTextTurn(text, nil)
}

// ResolveConfirmation answers the pending confirmation from a button
// instead of speech
func (c *Controller) ResolveConfirmation(approve bool) error {
	c.mu.Lock()
	pending := c.cc.Pending != nil
	c.mu.Unlock()
	if !pending {
		return ErrNoPending
	}
	in := intent.Intent{Tag: intent.Deny, Text: "não", Rule: "confirmation-button"}
	if approve {
		in = intent.Intent{Tag: intent.Approve, Text: "sim", Rule: "confirmation-button"}
	}
	return c.beginTextTurn(in.Text, &in)
}

func (c *Controller) beginTextTurn(text string, forced *intent.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cc.RequestLock {
		return ErrBusy
	}
	if c.state.Current() != StateIdle {
		return ErrNotIdle
	}
	c.cancelChainLocked()

	t := c.newTurnLocked("text")
	t.transcript = text
	t.forced = forced
	c.state.Transition(StateListening)
	c.state.Transition(StateProcessing)
	c.cc.RequestLock = true

	go c.runTurn(t)
	return nil
}

// runTurn classifies the transcript, runs the handler and responds
func (c *Controller) runTurn(t *turn) {
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return
	}
	in := c.classifier.Classify(t.transcript)
	if t.forced != nil {
		in = *t.forced
	}
	in = Reinterpret(in, c.cc.Pending != nil)
	t.intent = in
	c.markLocked(t, "classified")
	c.mu.Unlock()

	c.logger.Info("Intent", "turn", t.id, "intent", in.String(), "rule", in.Rule)

	reply, err := c.handle(t, in)
	if err == nil {
		c.persistQueue(t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		c.logger.Debug("Dropping stale turn result", "turn", t.id)
		return
	}
	level := LevelInfo
	if err != nil {
		c.logger.Error("Turn failed", "turn", t.id, "intent", in.String(), "error", err, "kind", KindOf(err))
		reply = errorText(err, msgBackendFailed)
		level = LevelError
	}
	c.respondLocked(t, reply, level)
}

// persistQueue mirrors the proposed actions into the queue store once per
// turn
func (c *Controller) persistQueue(t *turn) {
	if c.deps.Queue == nil {
		return
	}
	c.mu.Lock()
	if !t.dirty || !c.currentLocked(t) {
		c.mu.Unlock()
		return
	}
	session := c.cc.SessionID
	queue := append([]ActionRecord(nil), c.cc.Proposed...)
	c.mu.Unlock()

	if err := c.deps.Queue.SaveQueue(c.ctx, session, queue); err != nil {
		c.logger.Warn("Failed to persist queue", "turn", t.id, "error", err)
	}
}

// respondLocked releases the request lock before speaking so that a stop
// or barge-in during playback is honored
func (c *Controller) respondLocked(t *turn, reply string, level MessageLevel) {
	c.cc.RequestLock = false
	c.markLocked(t, "responded")

	if reply == "" {
		c.state.Transition(StateIdle)
		c.chainLocked(t)
		return
	}
	c.cc.LastReply = reply
	c.messageLocked(level, reply, t.id)

	if !c.cc.Prefs.TTSEnabled || c.deps.Synthesizer == nil || c.deps.Player == nil {
		c.state.Transition(StateIdle)
		c.chainLocked(t)
		return
	}
	if !c.state.Transition(StateSpeaking) {
		return
	}
	req := SpeechRequest{
		Text:  reply,
		Voice: c.cc.Prefs.Voice,
		Speed: c.cc.Prefs.Speed,
		Style: c.cc.Prefs.Style,
	}
	c.speech.Speak(t.ctx, req, func(err error) {
		c.speechDone(t, err)
	})
}

func (c *Controller) speechDone(t *turn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) || c.state.Current() != StateSpeaking {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("Speech failed", "turn", t.id, "error", err)
		c.messageLocked(LevelError, msgAudioFailed, t.id)
	}
	c.state.Transition(StateIdle)
	c.chainLocked(t)
}

func (c *Controller) failLocked(t *turn, text string) {
	c.cc.RequestLock = false
	c.messageLocked(LevelError, text, t.id)
	if !c.state.Transition(StateIdle) {
		c.forceLocked(StateIdle, "error")
	}
	c.chainLocked(t)
}

// bargeIn is the voice-interrupt callback while Speaking
func (c *Controller) bargeIn(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || id != c.cc.ActiveTurn || c.state.Current() != StateSpeaking {
		return
	}
	t := c.turn
	c.logger.Info("Playback interrupted by voice", "turn", id)
	c.speech.Abort()
	c.invalidateTurnLocked()
	c.cc.RequestLock = false
	c.forceLocked(StateIdle, "interrupted")
	c.messageLocked(LevelWarn, msgInterrupted, id)
	c.chainLocked(t)
}

// watchdogFired forces Idle when Processing took too long
func (c *Controller) watchdogFired(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.watchdogSeq || c.state.Current() != StateProcessing {
		return
	}
	t := c.turn
	id := c.cc.ActiveTurn
	c.logger.Warn("Processing timed out", "turn", id, "timeout", c.cfg.ProcessingTimeout)
	c.invalidateTurnLocked()
	c.cc.RequestLock = false
	c.forceLocked(StateIdle, "timeout")
	c.messageLocked(LevelWarn, msgTimeout, id)
	c.chainLocked(t)
}

// Stop aborts speech and the current turn and returns to Idle. Auto mode
// does not re-arm after an explicit stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cancelChainLocked()
	c.speech.Abort()
	c.invalidateTurnLocked()
	c.cc.RequestLock = false
	if c.state.Current() != StateIdle {
		c.forceLocked(StateIdle, "stopped")
		c.messageLocked(LevelInfo, msgStopped, 0)
	}
	if c.cc.Prefs.Mode == ModeAlwaysOn {
		c.deps.Hotword.ResumeAfter(c.cfg.HotwordResumeDelay, c.hotwordReady)
	}
}

// SetMode switches the chaining mode and persists it
func (c *Controller) SetMode(mode Mode) error {
	p := c.Prefs()
	p.Mode = mode
	return c.SetPrefs(p)
}

// SetPrefs applies and persists preferences
func (c *Controller) SetPrefs(p Prefs) error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if p.Speed <= 0 {
		p.Speed = DefaultPrefs().Speed
	}

	c.mu.Lock()
	old := c.cc.Prefs
	c.cc.Prefs = p
	if p.WakeWord != old.WakeWord {
		c.classifier = intent.New(intent.WithWakeWord(p.WakeWord))
	}
	if p.WakeWord != old.WakeWord || p.Language != old.Language {
		c.deps.Hotword.Configure(p.WakeWord, p.Language)
	}
	if p.Mode != old.Mode {
		c.logger.Info("Mode changed", "from", old.Mode, "to", p.Mode)
		c.cancelChainLocked()
		if old.Mode == ModeAlwaysOn {
			c.deps.Hotword.Pause()
		}
		if c.state.Current() == StateIdle && !c.cc.RequestLock {
			c.chainLocked(nil)
		}
		c.renderLocked()
	}
	c.mu.Unlock()

	if c.deps.Settings == nil {
		return nil
	}
	if err := c.deps.Settings.Save(p); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Close stops every timer and monitor and releases the microphone
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancelChainLocked()
	stopTimer(c.recoveryTimer)
	c.stopWatchdogLocked()
	c.speech.Abort()
	c.invalidateTurnLocked()
	c.teardownCaptureLocked()
	c.stopInterruptLocked()
	c.deps.Hotword.Pause()
	c.cancel()

	var err error
	if c.stream != nil {
		err = c.stream.Close()
		c.stream = nil
	}
	return err
}

// chainLocked schedules what follows a turn in the current mode
func (c *Controller) chainLocked(t *turn) {
	if c.closed || (t != nil && t.noChain) {
		return
	}
	c.cancelChainLocked()
	switch c.cc.Prefs.Mode {
	case ModeAuto:
		c.chainTimer = c.clock.AfterFunc(c.cfg.AutoListenDelay, c.autoArm)
	case ModeAlwaysOn:
		c.deps.Hotword.ResumeAfter(c.cfg.HotwordResumeDelay, c.hotwordReady)
	}
}

func (c *Controller) cancelChainLocked() {
	stopTimer(c.chainTimer)
	c.chainTimer = nil
}

func (c *Controller) autoArm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainTimer = nil
	if c.cc.Prefs.Mode != ModeAuto {
		return
	}
	if err := c.armLocked(true); err != nil {
		c.logger.Debug("Auto re-arm skipped", "error", err)
	}
}

// hotwordReady lets the listener resume only once speech and the request
// lock are both clear
func (c *Controller) hotwordReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed &&
		c.cc.Prefs.Mode == ModeAlwaysOn &&
		c.state.Current() == StateIdle &&
		!c.cc.RequestLock &&
		!c.speech.Speaking()
}

func (c *Controller) newTurnLocked(source string) *turn {
	if c.turn != nil {
		c.turn.cancel()
	}
	c.cc.NextTurn++
	ctx, cancel := context.WithCancel(c.ctx)
	t := &turn{
		id:     c.cc.NextTurn,
		source: source,
		ctx:    ctx,
		cancel: cancel,
		phases: make(map[string]time.Time),
	}
	c.turn = t
	c.cc.ActiveTurn = t.id
	c.markLocked(t, "created")
	return t
}

func (c *Controller) invalidateTurnLocked() {
	if c.turn != nil {
		c.turn.cancel()
		c.turn = nil
	}
	c.cc.ActiveTurn = 0
}

func (c *Controller) currentLocked(t *turn) bool {
	return !c.closed && t != nil && c.turn == t && c.cc.ActiveTurn == t.id
}

func (c *Controller) markLocked(t *turn, phase string) {
	if t != nil {
		t.phases[phase] = c.clock.Now()
	}
}

func (c *Controller) forceLocked(s State, reason string) {
	c.reason = reason
	c.state.Force(s)
	c.reason = ""
}

// onExit runs the exit side effects; called with mu held
func (c *Controller) onExit(from, to State) {
	switch from {
	case StateListening:
		c.teardownCaptureLocked()
	case StateProcessing:
		c.stopWatchdogLocked()
	case StateSpeaking:
		c.stopInterruptLocked()
	}
}

// onEnter runs the enter side effects; called with mu held
func (c *Controller) onEnter(from, to State) {
	c.markLocked(c.turn, to.String())
	switch to {
	case StateListening:
		c.cueLocked(CueListening)
		c.deps.Hotword.Pause()
	case StateProcessing:
		c.cueLocked(CueProcessing)
		c.deps.Hotword.Pause()
		c.startWatchdogLocked()
	case StateSpeaking:
		c.cueLocked(CueSpeaking)
		c.deps.Hotword.Pause()
		c.startInterruptLocked()
	}
}

func (c *Controller) cueLocked(cue Cue) {
	if c.cfg.Cues {
		c.deps.Cues.Cue(cue)
	}
}

// teardownCaptureLocked stops silence detection and the max-duration
// timer and discards an unfinished recording
func (c *Controller) teardownCaptureLocked() {
	if c.silence != nil {
		c.silence.Stop()
		c.silence = nil
	}
	stopTimer(c.maxTimer)
	c.maxTimer = nil
	if c.recording != nil {
		if _, err := c.recording.Stop(); err != nil {
			c.logger.Debug("Discarding recording failed", "error", err)
		}
		c.recording = nil
	}
}

func (c *Controller) startWatchdogLocked() {
	c.watchdogSeq++
	seq := c.watchdogSeq
	c.watchdog = c.clock.AfterFunc(c.cfg.ProcessingTimeout, func() {
		c.watchdogFired(seq)
	})
}

func (c *Controller) stopWatchdogLocked() {
	stopTimer(c.watchdog)
	c.watchdog = nil
	c.watchdogSeq++
}

func (c *Controller) startInterruptLocked() {
	if c.stream == nil || !c.stream.Live() {
		return
	}
	an, err := c.stream.Analyser()
	if err != nil {
		c.logger.Debug("Voice interrupt unavailable", "error", err)
		return
	}
	id := c.cc.ActiveTurn
	det := vad.NewInterruptDetector(c.cfg.VAD.Threshold, c.cfg.InterruptFactor, c.cfg.InterruptSamples)
	c.interrupt = vad.Start(an, det, c.cfg.VAD.Interval, func() {
		c.bargeIn(id)
	})
}

func (c *Controller) stopInterruptLocked() {
	if c.interrupt != nil {
		c.interrupt.Stop()
		c.interrupt = nil
	}
}

func (c *Controller) renderLocked() {
	c.deps.Sink.Render(c.statusLocked())
}

func (c *Controller) statusLocked() Status {
	cur := c.state.Current()
	st := Status{
		State:    cur,
		Previous: c.state.Previous(),
		Mode:     c.cc.Prefs.Mode,
		TurnID:   c.cc.ActiveTurn,
		Busy:     c.cc.RequestLock,
		Queue:    len(c.cc.Proposed),
		Snapshot: c.cc.Snapshot.Len(),
		Reason:   c.reason,
		Since:    c.state.EnteredAt(cur),
	}
	if c.cc.Pending != nil {
		st.Pending = c.cc.Pending.Kind
	}
	return st
}

func (c *Controller) messageLocked(level MessageLevel, text string, turnID uint64) {
	c.deps.Sink.Message(Message{
		Level:  level,
		Text:   text,
		TurnID: turnID,
		At:     c.clock.Now(),
	})
}

// errorText picks what the user hears for err: a collaborator message
// meant for the user, the timeout text, or fallback
func errorText(err error, fallback string) string {
	var uf UserFacing
	if errors.As(err, &uf) && strings.TrimSpace(uf.UserMessage()) != "" {
		return uf.UserMessage()
	}
	if KindOf(err) == KindTimeout {
		return msgTimeout
	}
	return fallback
}
