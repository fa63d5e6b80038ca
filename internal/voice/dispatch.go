// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Action ordering and dispatch result settlement
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package voice

import (
	"fmt"
	"sort"
	"strings"
)

// dispatchRank is the order the backend executes actions in
var dispatchRank = map[ActionKind]int{
	ActionSend:       0,
	ActionMarkRead:   1,
	ActionMarkUnread: 2,
	ActionDelete:     3,
	ActionSkip:       4,
}

// OrderActions returns a copy sorted send, mark_read, mark_unread, delete,
// skip. Records of the same kind keep their queue order.
func OrderActions(actions []ActionRecord) []ActionRecord {
	out := append([]ActionRecord(nil), actions...)
	sort.SliceStable(out, func(i, j int) bool {
		return dispatchRank[out[i].Action] < dispatchRank[out[j].Action]
	})
	return out
}

// DispatchOutcome is what applyResults changed and what to tell the user
type DispatchOutcome struct {
	OK        int
	Skipped   int
	Failed    []DispatchResult
	Remaining []ActionRecord
}

// applyResults maps dispatch results back onto the snapshot and settles
// the queue with RemainingActions. Deleted and sent messages leave the
// snapshot, mark actions flip the read flag and skips change nothing.
func applyResults(snap *Snapshot, queue []ActionRecord, results []DispatchResult) DispatchOutcome {
	var out DispatchOutcome
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			out.OK++
			switch r.Action {
			case ActionDelete, ActionSend:
				snap.Remove(r.Key)
			case ActionMarkRead:
				snap.SetRead(r.Key, true)
			case ActionMarkUnread:
				snap.SetRead(r.Key, false)
			}
		case StatusSkipped:
			out.Skipped++
		default:
			out.Failed = append(out.Failed, r)
		}
	}

	out.Remaining = RemainingActions(queue, results)
	return out
}

// RemainingActions drops the actions the backend reported as ok or
// skipped. Failed actions and those without a result stay queued for the
// next dispatch.
func RemainingActions(actions []ActionRecord, results []DispatchResult) []ActionRecord {
	done := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Status == StatusOK || r.Status == StatusSkipped {
			done[r.Key+"\x00"+string(r.Action)] = true
		}
	}
	var rest []ActionRecord
	for _, a := range actions {
		if !done[a.Key+"\x00"+string(a.Action)] {
			rest = append(rest, a)
		}
	}
	return rest
}

// Summary is the spoken report; failures are always listed
func (o DispatchOutcome) Summary(label func(key string) string) string {
	if o.OK == 0 && o.Skipped == 0 && len(o.Failed) == 0 {
		return "Nenhuma ação executada."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d ação(ões) executada(s).", o.OK)
	if o.Skipped > 0 {
		fmt.Fprintf(&b, " %d ignorada(s).", o.Skipped)
	}
	if len(o.Failed) > 0 {
		fmt.Fprintf(&b, " %d falha(s):", len(o.Failed))
		for i, f := range o.Failed {
			if i > 0 {
				b.WriteString(";")
			}
			msg := f.Message
			if msg == "" {
				msg = "erro desconhecido"
			}
			fmt.Fprintf(&b, " %s, %s", label(f.Key), msg)
		}
		b.WriteString(".")
	}
	return b.String()
}
