// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     voice
// Description: Intent handlers and the confirmation flow
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package voice

import (
	"fmt"
	"strings"

	"github.com/inboxpilot/voicepilot/internal/voice/intent"
)

// handle routes an intent to its handler and returns the reply text.
// Handlers that call a collaborator drop mu around the call and re-check
// the turn afterwards; the rest run entirely under mu.
func (c *Controller) handle(t *turn, in intent.Intent) (string, error) {
	switch in.Tag {
	case intent.SuggestReply:
		return c.suggestReply(t, in)
	case intent.Triage:
		return c.triage(t)
	case intent.FreeForm:
		return c.chat(t, in.Text)
	case intent.Refresh:
		return c.refresh(t)
	case intent.Approve, intent.DispatchQueue:
		return c.approve(t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		return "", ErrStaleTurn
	}

	switch in.Tag {
	case intent.ReadEmail:
		return c.readLocked(in.Index), nil
	case intent.Next:
		return c.readLocked(0), nil
	case intent.Repeat:
		if c.cc.LastReply == "" {
			return msgNothingToRepeat, nil
		}
		return c.cc.LastReply, nil
	case intent.QueueDelete:
		return c.queueLocked(t, ActionDelete, in.Index), nil
	case intent.QueueMarkRead:
		return c.queueLocked(t, ActionMarkRead, in.Index), nil
	case intent.QueueMarkUnread:
		return c.queueLocked(t, ActionMarkUnread, in.Index), nil
	case intent.DeleteAll:
		return c.deleteAllLocked(), nil
	case intent.ShowQueue:
		return c.showQueueLocked(), nil
	case intent.ClearQueue:
		c.cc.Proposed = nil
		c.cc.Pending = nil
		t.dirty = true
		return msgQueueCleared, nil
	case intent.CountEmails:
		if c.cc.Snapshot == nil {
			return msgNoSnapshot, nil
		}
		return msgCount(c.cc.Snapshot.Len(), c.cc.Snapshot.Unread()), nil
	case intent.ListEmails:
		return c.listLocked(), nil
	case intent.Summary:
		return c.summaryLocked(), nil
	case intent.Stop:
		if c.cc.Pending != nil {
			c.cc.Pending = nil
			return msgCancelled, nil
		}
		t.noChain = true
		return msgStopped, nil
	case intent.Deny:
		if c.cc.Pending == nil {
			return msgNothingToCancel, nil
		}
		c.cc.Pending = nil
		return msgCancelled, nil
	}
	return msgHelp, nil
}

// readLocked reads message index; 0 reads the one after the cursor
func (c *Controller) readLocked(index int) string {
	snap := c.cc.Snapshot
	if snap.Len() == 0 {
		return msgNoSnapshot
	}
	next := index == 0
	if next {
		index = c.cc.Cursor + 1
	}
	it, ok := snap.At(index)
	if !ok {
		if next {
			return msgNoMore
		}
		return msgNotFound(index)
	}
	c.cc.Cursor = index
	return msgReadItem(index, it)
}

// resolveLocked resolves a spoken index; 0 means the message read last
func (c *Controller) resolveLocked(index int) (int, SnapshotItem, bool) {
	if index == 0 {
		index = c.cc.Cursor
	}
	it, ok := c.cc.Snapshot.At(index)
	return index, it, ok
}

func (c *Controller) queueLocked(t *turn, kind ActionKind, index int) string {
	if c.cc.Snapshot.Len() == 0 {
		return msgNoSnapshot
	}
	idx, it, ok := c.resolveLocked(index)
	if !ok {
		return msgNotFound(index)
	}
	c.cc.Proposed = append(c.cc.Proposed, ActionRecord{Key: it.Key, Action: kind})
	t.dirty = true
	return msgQueued(kind, idx, len(c.cc.Proposed))
}

func (c *Controller) deleteAllLocked() string {
	snap := c.cc.Snapshot
	if snap.Len() == 0 {
		return msgNoSnapshot
	}
	actions := make([]ActionRecord, 0, snap.Len())
	for _, it := range snap.Items {
		actions = append(actions, ActionRecord{Key: it.Key, Action: ActionDelete})
	}
	c.cc.Pending = NewConfirmation(ConfirmDeleteAll, actions, c.cfg.DoubleConfirmDeletes, c.clock.Now())
	return msgConfirm(c.cc.Pending)
}

func (c *Controller) showQueueLocked() string {
	if len(c.cc.Proposed) == 0 {
		return msgQueueEmpty
	}
	parts := make([]string, 0, len(c.cc.Proposed))
	for i, a := range c.cc.Proposed {
		if i == c.cfg.ListLimit {
			parts = append(parts, fmt.Sprintf("e mais %d", len(c.cc.Proposed)-i))
			break
		}
		parts = append(parts, describeAction(a, c.labelLocked(a.Key)))
	}
	return msgPending(len(c.cc.Proposed)) + " " + strings.Join(parts, "; ") + "."
}

func (c *Controller) listLocked() string {
	snap := c.cc.Snapshot
	if snap.Len() == 0 {
		return msgNoSnapshot
	}
	var b strings.Builder
	for i, it := range snap.Items {
		if i == c.cfg.ListLimit {
			fmt.Fprintf(&b, " E mais %d.", snap.Len()-i)
			break
		}
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d, de %s: %s.", i+1, orUnknown(it.From), orUnknown(it.Subject))
	}
	return b.String()
}

func (c *Controller) summaryLocked() string {
	snap := c.cc.Snapshot
	if snap.Len() == 0 {
		return msgNoSnapshot
	}
	var b strings.Builder
	b.WriteString(msgCount(snap.Len(), snap.Unread()))
	var unread []string
	for _, it := range snap.Items {
		if !it.Read && len(unread) < 3 {
			unread = append(unread, orUnknown(it.Subject))
		}
	}
	if len(unread) > 0 {
		b.WriteString(" Não lidos: ")
		b.WriteString(strings.Join(unread, "; "))
		b.WriteString(".")
	}
	if n := len(c.cc.Proposed); n > 0 {
		b.WriteString(" ")
		b.WriteString(msgPending(n))
	}
	return b.String()
}

// labelLocked names a message by subject, falling back to its key
func (c *Controller) labelLocked(key string) string {
	if c.cc.Snapshot != nil {
		for _, it := range c.cc.Snapshot.Items {
			if it.Key == key && strings.TrimSpace(it.Subject) != "" {
				return it.Subject
			}
		}
	}
	return key
}

// approve answers APPROVE and DISPATCH_QUEUE. A pending confirmation is
// the only way a batch with deletes reaches dispatch; without one, a
// queue holding deletes arms a confirmation first.
func (c *Controller) approve(t *turn) (string, error) {
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}

	var actions []ActionRecord
	confirmDelete := false
	switch p := c.cc.Pending; {
	case p != nil:
		if !p.Approve() {
			msg := msgConfirm(p)
			c.mu.Unlock()
			return msg, nil
		}
		actions = p.Actions
		confirmDelete = true
		c.cc.Pending = nil
	case len(c.cc.Proposed) == 0:
		c.mu.Unlock()
		return msgQueueEmpty, nil
	case CountDeletes(c.cc.Proposed) > 0:
		c.cc.Pending = NewConfirmation(ConfirmDispatchQueue, c.cc.Proposed, c.cfg.DoubleConfirmDeletes, c.clock.Now())
		msg := msgConfirm(c.cc.Pending)
		c.mu.Unlock()
		return msg, nil
	default:
		actions = append([]ActionRecord(nil), c.cc.Proposed...)
	}
	session := c.cc.SessionID
	c.mu.Unlock()

	return c.dispatch(t, session, actions, confirmDelete)
}

func (c *Controller) dispatch(t *turn, session string, actions []ActionRecord, confirmDelete bool) (string, error) {
	req := DispatchRequest{
		SessionID:     session,
		Actions:       OrderActions(actions),
		Mode:          DispatchExecute,
		ConfirmDelete: confirmDelete,
	}
	c.logger.Info("Dispatching", "turn", t.id, "actions", len(req.Actions), "confirm_delete", confirmDelete)

	resp, err := c.deps.Assistant.Dispatch(t.ctx, req)
	if err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}

	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}
	// Labels must be taken before deleted messages leave the snapshot.
	labels := make(map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		labels[r.Key] = c.labelLocked(r.Key)
	}
	out := applyResults(c.cc.Snapshot, c.cc.Proposed, resp.Results)
	c.cc.Proposed = out.Remaining
	t.dirty = true
	c.mu.Unlock()

	if len(out.Failed) > 0 {
		c.logger.Warn("Dispatch finished with failures", "turn", t.id, "ok", out.OK, "failed", len(out.Failed))
	}
	if c.deps.Queue != nil {
		if err := c.deps.Queue.RecordResults(c.ctx, session, resp.Results); err != nil {
			c.logger.Warn("Failed to record dispatch results", "error", err)
		}
	}
	return out.Summary(func(key string) string { return labels[key] }), nil
}

func (c *Controller) suggestReply(t *turn, in intent.Intent) (string, error) {
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}
	if c.cc.Snapshot.Len() == 0 {
		c.mu.Unlock()
		return msgNoSnapshot, nil
	}
	idx, it, ok := c.resolveLocked(in.Index)
	if !ok {
		c.mu.Unlock()
		return msgNotFound(in.Index), nil
	}
	tone := in.Tone
	if tone == "" {
		tone = intent.ToneNeutral
	}
	req := ReplyRequest{
		SessionID: c.cc.SessionID,
		Key:       it.Key,
		Tone:      string(tone),
		Language:  c.cc.Prefs.Language,
	}
	c.mu.Unlock()

	res, err := c.deps.Assistant.SuggestReply(t.ctx, req)
	if err == nil && (res.Queued || res.JobID != "") && res.DraftBody == "" {
		var done ReplyResult
		err = awaitJob(t.ctx, c.deps.Assistant, res.JobID, c.cfg.JobPollInterval, c.cfg.JobMaxAttempts, &done)
		res = &done
	}
	if err != nil {
		if t.ctx.Err() != nil {
			return "", ErrStaleTurn
		}
		c.logger.Warn("Reply draft failed", "turn", t.id, "key", it.Key, "error", err)
		if uf := errorText(err, ""); uf != "" {
			return msgReplyFailed + " " + uf, nil
		}
		return msgReplyFailed, nil
	}
	body := strings.TrimSpace(res.DraftBody)
	if body == "" {
		return msgReplyFailed, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		return "", ErrStaleTurn
	}
	c.cc.Proposed = append(c.cc.Proposed, ActionRecord{Key: it.Key, Action: ActionSend, Body: body})
	t.dirty = true
	return fmt.Sprintf("Rascunho para o e-mail %d: %s %s", idx, body, msgPending(len(c.cc.Proposed))), nil
}

func (c *Controller) triage(t *turn) (string, error) {
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}
	if c.cc.Snapshot.Len() == 0 {
		c.mu.Unlock()
		return msgTriageEmpty, nil
	}
	req := TriageRequest{
		SessionID: c.cc.SessionID,
		Keys:      c.cc.Snapshot.Keys(),
		Language:  c.cc.Prefs.Language,
	}
	c.mu.Unlock()

	res, err := c.deps.Assistant.Triage(t.ctx, req)
	if err == nil && (res.Queued || res.JobID != "") && len(res.Items) == 0 {
		var done TriageResult
		err = awaitJob(t.ctx, c.deps.Assistant, res.JobID, c.cfg.JobPollInterval, c.cfg.JobMaxAttempts, &done)
		res = &done
	}
	if err != nil {
		return "", fmt.Errorf("triage: %w", err)
	}

	proposed := res.ProposedActions
	if len(proposed) == 0 {
		for _, it := range res.Items {
			if it.SuggestedAction.Valid() && it.SuggestedAction != ActionSkip {
				proposed = append(proposed, ActionRecord{Key: it.Key, Action: it.SuggestedAction})
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		return "", ErrStaleTurn
	}
	return c.triageSummaryLocked(res.Items) + c.mergeProposedLocked(t, proposed), nil
}

func (c *Controller) triageSummaryLocked(items []TriageItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Triagem de %d e-mails.", len(items))
	var urgent []string
	for _, it := range items {
		p := strings.ToLower(it.Priority)
		if p != "high" && p != "alta" && p != "urgent" && p != "urgente" {
			continue
		}
		s := strings.TrimSpace(it.Summary)
		if s == "" {
			s = c.labelLocked(it.Key)
		}
		urgent = append(urgent, s)
	}
	if len(urgent) > 0 {
		fmt.Fprintf(&b, " %d com prioridade alta: %s.", len(urgent), strings.Join(urgent, "; "))
	}
	return b.String()
}

func (c *Controller) chat(t *turn, text string) (string, error) {
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}
	req := ChatRequest{
		SessionID:   c.cc.SessionID,
		Message:     text,
		VisibleKeys: c.cc.Snapshot.Keys(),
		Providers:   c.cfg.Providers,
		Language:    c.cc.Prefs.Language,
	}
	c.mu.Unlock()

	res, err := c.deps.Assistant.Chat(t.ctx, req)
	if err == nil && (res.Queued || res.JobID != "") && res.Answer == "" {
		var done ChatResult
		err = awaitJob(t.ctx, c.deps.Assistant, res.JobID, c.cfg.JobPollInterval, c.cfg.JobMaxAttempts, &done)
		res = &done
	}
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		return "", ErrStaleTurn
	}
	answer := strings.TrimSpace(res.Answer)
	if answer == "" {
		answer = "Sem resposta."
	}
	return answer + c.mergeProposedLocked(t, res.ProposedActions), nil
}

// mergeProposedLocked adds assistant proposals to the queue. A merged
// queue with enough deletes arms a double confirmation.
func (c *Controller) mergeProposedLocked(t *turn, proposed []ActionRecord) string {
	if len(proposed) == 0 {
		return ""
	}
	c.cc.Proposed = mergeActions(c.cc.Proposed, proposed)
	t.dirty = true
	if CountDeletes(c.cc.Proposed) >= c.cfg.DoubleConfirmDeletes {
		c.cc.Pending = NewConfirmation(ConfirmLLMProposed, c.cc.Proposed, c.cfg.DoubleConfirmDeletes, c.clock.Now())
		return " " + msgConfirm(c.cc.Pending)
	}
	return " " + msgPending(len(c.cc.Proposed))
}

func (c *Controller) refresh(t *turn) (string, error) {
	if c.deps.Snapshots == nil {
		return "Atualização indisponível.", nil
	}
	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return "", ErrStaleTurn
	}
	session := c.cc.SessionID
	c.mu.Unlock()

	snap, err := c.deps.Snapshots.Snapshot(t.ctx, session)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(t) {
		return "", ErrStaleTurn
	}
	c.cc.Snapshot = snap
	c.cc.Cursor = 0
	return fmt.Sprintf("%d e-mails carregados, %d não lidos.", snap.Len(), snap.Unread()), nil
}
