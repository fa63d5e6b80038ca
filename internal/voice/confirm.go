// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Pending confirmations for destructive batches
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package voice

import (
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice/intent"
)

// NewConfirmation arms a pending confirmation for actions. A batch with at
// least doubleAt deletes needs two approvals, except delete-all which is
// an explicit command and always takes one.
func NewConfirmation(kind ConfirmationKind, actions []ActionRecord, doubleAt int, now time.Time) *PendingConfirmation {
	return &PendingConfirmation{
		Kind:           kind,
		Actions:        append([]ActionRecord(nil), actions...),
		RequiresDouble: kind != ConfirmDeleteAll && CountDeletes(actions) >= doubleAt,
		CreatedAt:      now,
	}
}

// Approve records one approval and reports whether the batch may be
// dispatched now. The first approval of a double confirmation only sets
// FirstConfirmDone.
func (p *PendingConfirmation) Approve() bool {
	if p.RequiresDouble && !p.FirstConfirmDone {
		p.FirstConfirmDone = true
		return false
	}
	return true
}

// Deletes counts the delete actions of the batch
func (p *PendingConfirmation) Deletes() int {
	return CountDeletes(p.Actions)
}

// CountDeletes counts delete actions
func CountDeletes(actions []ActionRecord) int {
	n := 0
	for _, a := range actions {
		if a.Action == ActionDelete {
			n++
		}
	}
	return n
}

// Reinterpret routes an utterance while a confirmation is pending.
// Control intents are honored as classified. Anything else becomes
// APPROVE when it sounds affirmative and DENY otherwise.
func Reinterpret(in intent.Intent, pending bool) intent.Intent {
	if !pending || in.Tag.IsControl() {
		return in
	}
	out := intent.Intent{Tag: intent.Deny, Text: in.Text, Rule: "pending-confirmation"}
	if intent.Affirmative(in.Text) {
		out.Tag = intent.Approve
	}
	return out
}

// mergeActions appends proposed to queue. A proposal for a key that is
// already queued replaces the queued record.
func mergeActions(queue, proposed []ActionRecord) []ActionRecord {
	out := append([]ActionRecord(nil), queue...)
	for _, p := range proposed {
		if p.Key == "" || !p.Action.Valid() {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].Key == p.Key {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}
