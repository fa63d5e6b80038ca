// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     intent
// Description: Utterance classification into structured mail commands
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package intent

import "fmt"

// Tag identifies what the user asked for
type Tag int

const (
	// FreeForm is the fallback: the utterance goes to the conversational
	// collaborator instead of a local handler.
	FreeForm Tag = iota
	ReadEmail
	QueueDelete
	DeleteAll
	QueueMarkRead
	QueueMarkUnread
	SuggestReply
	ShowQueue
	DispatchQueue
	ClearQueue
	CountEmails
	ListEmails
	Help
	Refresh
	Stop
	Deny
	Approve
	Next
	Repeat
	Summary
	Triage
)

var tagNames = map[Tag]string{
	FreeForm:        "FREE_FORM",
	ReadEmail:       "READ_EMAIL",
	QueueDelete:     "QUEUE_DELETE",
	DeleteAll:       "DELETE_ALL",
	QueueMarkRead:   "QUEUE_MARK_READ",
	QueueMarkUnread: "QUEUE_MARK_UNREAD",
	SuggestReply:    "SUGGEST_REPLY",
	ShowQueue:       "SHOW_QUEUE",
	DispatchQueue:   "DISPATCH_QUEUE",
	ClearQueue:      "CLEAR_QUEUE",
	CountEmails:     "COUNT_EMAILS",
	ListEmails:      "LIST_EMAILS",
	Help:            "HELP",
	Refresh:         "REFRESH",
	Stop:            "STOP",
	Deny:            "DENY",
	Approve:         "APPROVE",
	Next:            "NEXT",
	Repeat:          "REPEAT",
	Summary:         "SUMMARY",
	Triage:          "TRIAGE",
}

// String returns the canonical upper-case name
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// IsControl reports whether the tag is honored directly while a
// confirmation is pending.
func (t Tag) IsControl() bool {
	switch t {
	case Approve, DispatchQueue, Deny, Stop:
		return true
	}
	return false
}

// Indexed reports whether the tag addresses one message of the snapshot
func (t Tag) Indexed() bool {
	switch t {
	case ReadEmail, QueueDelete, QueueMarkRead, QueueMarkUnread, SuggestReply:
		return true
	}
	return false
}

// Tone of a requested reply draft
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneFormal   Tone = "formal"
	ToneShort    Tone = "short"
	ToneFriendly Tone = "friendly"
)

// Intent is the classifier output
type Intent struct {
	Tag Tag
	// Index is the 1-based message index, 0 when the utterance named none
	Index int
	// Tone is set for SuggestReply
	Tone Tone
	// Text is the corrected utterance
	Text string
	// Rule names the matching rule, empty for FreeForm
	Rule string
}

func (i Intent) String() string {
	if i.Index > 0 {
		return fmt.Sprintf("%s(index=%d)", i.Tag, i.Index)
	}
	return i.Tag.String()
}
