// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     vad
// Description: Level polling for silence and barge-in
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package vad

import (
	"sync"
	"time"
)

// Analyser is a tap on a live audio stream reporting its current level
type Analyser interface {
	// Level returns the RMS of the most recent audio (0..1)
	Level() float64

	// Close disconnects the tap from the stream
	Close() error
}

// Monitor samples an analyser on a fixed interval and calls onTrigger once
// when the sampler fires.
type Monitor struct {
	analyser  Analyser
	sampler   Sampler
	interval  time.Duration
	onTrigger func()

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Start begins sampling in its own goroutine
func Start(analyser Analyser, sampler Sampler, interval time.Duration, onTrigger func()) *Monitor {
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	m := &Monitor{
		analyser:  analyser,
		sampler:   sampler,
		interval:  interval,
		onTrigger: onTrigger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.sampler.Sample(m.analyser.Level()) {
				continue
			}
			select {
			case <-m.stop:
				return
			default:
			}
			m.Stop()
			if m.onTrigger != nil {
				m.onTrigger()
			}
			return
		}
	}
}

// Stop halts sampling and disconnects the analyser. It is idempotent and
// does not wait for the sampling goroutine, so it may be called while the
// caller holds a lock the trigger callback also takes.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.analyser.Close()
	})
}

// Done is closed when the sampling goroutine has exited
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}
