// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Turn controller state machine
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voice

import (
	"fmt"
	"sync"
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// State represents the current state of the turn controller
type State int

const (
	// StateIdle - waiting for a trigger, the wake word or the auto re-arm
	StateIdle State = iota

	// StateListening - recording the user
	StateListening

	// StateProcessing - transcribing and handling the utterance
	StateProcessing

	// StateSpeaking - playing the reply
	StateSpeaking

	// StateError - recovering from a microphone failure
	StateError
)

var stateNames = [...]string{"idle", "listening", "processing", "speaking", "error"}

// String returns the string representation of the state
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Label returns the user facing state name
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Pronto"
	case StateListening:
		return "Ouvindo..."
	case StateProcessing:
		return "Processando..."
	case StateSpeaking:
		return "Falando"
	case StateError:
		return "Erro"
	default:
		return "Desconhecido"
	}
}

// Icon returns an icon for the state
func (s State) Icon() string {
	switch s {
	case StateIdle:
		return "⏸"
	case StateListening:
		return "🎤"
	case StateProcessing:
		return "⚙️"
	case StateSpeaking:
		return "💬"
	case StateError:
		return "❌"
	default:
		return "?"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// validTransitions is the allowed-edges table. Anything else needs Force.
var validTransitions = map[State][]State{
	StateIdle:       {StateListening},
	StateListening:  {StateProcessing, StateIdle, StateError},
	StateProcessing: {StateSpeaking, StateIdle, StateError},
	StateSpeaking:   {StateIdle, StateListening, StateError},
	StateError:      {StateIdle},
}

// CanTransition reports whether from → to is an allowed edge
func CanTransition(from, to State) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}

// Hooks are the side effects run on every transition, guarded or forced.
// Exit runs before Enter, Render runs last and exactly once.
type Hooks struct {
	Exit   func(from, to State)
	Enter  func(from, to State)
	Render func()
}

// StateMachine manages state transitions
type StateMachine struct {
	mu            sync.RWMutex
	currentState  State
	previousState State
	entered       map[State]time.Time
	exited        map[State]time.Time
	hooks         Hooks
	clock         Clock
	logger        *logging.Logger
}

// NewStateMachine creates a state machine in Idle
func NewStateMachine(clock Clock, hooks Hooks) *StateMachine {
	if clock == nil {
		clock = RealClock()
	}
	sm := &StateMachine{
		currentState: StateIdle,
		entered:      make(map[State]time.Time),
		exited:       make(map[State]time.Time),
		hooks:        hooks,
		clock:        clock,
		logger:       logging.New("voice-state"),
	}
	sm.entered[StateIdle] = clock.Now()
	return sm
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// Previous returns the previous state
func (sm *StateMachine) Previous() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previousState
}

// EnteredAt returns when s was last entered
func (sm *StateMachine) EnteredAt(s State) time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.entered[s]
}

// ExitedAt returns when s was last left
func (sm *StateMachine) ExitedAt(s State) time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.exited[s]
}

// StateDuration returns how long we've been in the current state
func (sm *StateMachine) StateDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.clock.Now().Sub(sm.entered[sm.currentState])
}

// Transition moves along an allowed edge. A rejected request leaves the
// state unchanged and is logged.
func (sm *StateMachine) Transition(newState State) bool {
	sm.mu.Lock()
	oldState := sm.currentState
	if !CanTransition(oldState, newState) {
		sm.mu.Unlock()
		sm.logger.Warn("Rejected state transition", "from", oldState, "to", newState)
		return false
	}
	sm.moveLocked(oldState, newState)
	sm.mu.Unlock()

	sm.runHooks(oldState, newState)
	return true
}

// Force rewrites the state without consulting the edge table. Used for
// barge-in, timeouts, microphone failures and explicit stop.
func (sm *StateMachine) Force(newState State) {
	sm.mu.Lock()
	oldState := sm.currentState
	sm.moveLocked(oldState, newState)
	sm.mu.Unlock()

	if !CanTransition(oldState, newState) {
		sm.logger.Debug("Forced state transition", "from", oldState, "to", newState)
	}
	sm.runHooks(oldState, newState)
}

func (sm *StateMachine) moveLocked(from, to State) {
	now := sm.clock.Now()
	sm.exited[from] = now
	sm.entered[to] = now
	sm.previousState = from
	sm.currentState = to
}

func (sm *StateMachine) runHooks(from, to State) {
	if sm.hooks.Exit != nil {
		sm.hooks.Exit(from, to)
	}
	if sm.hooks.Enter != nil {
		sm.hooks.Enter(from, to)
	}
	if sm.hooks.Render != nil {
		sm.hooks.Render()
	}
}

// IsActive returns true if a turn is underway
func (sm *StateMachine) IsActive() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState != StateIdle && sm.currentState != StateError
}
