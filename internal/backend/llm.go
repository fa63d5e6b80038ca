// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     backend
// Description: LLM assistant endpoints: replies, triage, chat, dispatch, jobs
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// replyRequest is the /llm/suggest-reply body
type replyRequest struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Tone      string `json:"tone"`
	Language  string `json:"language,omitempty"`
	Force     bool   `json:"force"`
}

// replyResponse carries notes as a list; the controller wants one line
type replyResponse struct {
	Key        string   `json:"key"`
	DraftBody  string   `json:"draft_body"`
	Notes      []string `json:"notes"`
	Queued     bool     `json:"queued"`
	JobID      string   `json:"job_id"`
	Suggested  string   `json:"suggested_action"`
	Classified string   `json:"classification"`
}

func (r replyResponse) result() *voice.ReplyResult {
	return &voice.ReplyResult{
		DraftBody: r.DraftBody,
		Notes:     strings.Join(r.Notes, " "),
		Queued:    r.Queued,
		JobID:     r.JobID,
	}
}

// SuggestReply asks the backend for a reply draft. Drafts taking longer than
// the request come back as a queued job.
func (c *Client) SuggestReply(ctx context.Context, req voice.ReplyRequest) (*voice.ReplyResult, error) {
	body := replyRequest{
		SessionID: req.SessionID,
		Key:       req.Key,
		Tone:      req.Tone,
		Language:  req.Language,
		Force:     true,
	}

	var resp replyResponse
	if err := c.postJSON(ctx, "/llm/suggest-reply", body, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Triage asks for a priority review of the given messages
func (c *Client) Triage(ctx context.Context, req voice.TriageRequest) (*voice.TriageResult, error) {
	var resp voice.TriageResult
	if err := c.postJSON(ctx, "/llm/triage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// chatRequest sends providers as a comma separated list
type chatRequest struct {
	SessionID   string   `json:"session_id"`
	Message     string   `json:"message"`
	VisibleKeys []string `json:"visible_keys"`
	Providers   string   `json:"providers,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// Chat asks a free-form question about the visible messages
func (c *Client) Chat(ctx context.Context, req voice.ChatRequest) (*voice.ChatResult, error) {
	body := chatRequest{
		SessionID:   req.SessionID,
		Message:     req.Message,
		VisibleKeys: req.VisibleKeys,
		Providers:   strings.Join(req.Providers, ","),
		Language:    req.Language,
	}
	if body.VisibleKeys == nil {
		body.VisibleKeys = []string{}
	}

	var resp voice.ChatResult
	if err := c.postJSON(ctx, "/llm/chat", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// dispatchRequest is the /llm/dispatch body
type dispatchRequest struct {
	SessionID     string               `json:"session_id"`
	Mode          voice.DispatchMode   `json:"mode"`
	Actions       []voice.ActionRecord `json:"actions"`
	ConfirmDelete bool                 `json:"confirm_delete"`
}

type dispatchResponse struct {
	DryRun  bool                   `json:"dry_run"`
	Results []voice.DispatchResult `json:"results"`
}

// Dispatch executes or validates a batch of mail actions
func (c *Client) Dispatch(ctx context.Context, req voice.DispatchRequest) (*voice.DispatchResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = voice.DispatchExecute
	}
	body := dispatchRequest{
		SessionID:     req.SessionID,
		Mode:          mode,
		Actions:       req.Actions,
		ConfirmDelete: req.ConfirmDelete,
	}

	var resp dispatchResponse
	if err := c.postJSON(ctx, "/llm/dispatch", body, &resp); err != nil {
		return nil, err
	}

	// Results without an action echo the request order
	for i := range resp.Results {
		if resp.Results[i].Action == "" && i < len(req.Actions) && resp.Results[i].Key == req.Actions[i].Key {
			resp.Results[i].Action = req.Actions[i].Action
		}
	}
	return &voice.DispatchResponse{Results: resp.Results}, nil
}

// jobResponse is the /llm/job/{id} body
type jobResponse struct {
	JobID        string          `json:"job_id"`
	Status       voice.JobState  `json:"status"`
	JobType      string          `json:"job_type"`
	Attempts     int             `json:"attempts"`
	ErrorCode    string          `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// Job polls a background job
func (c *Client) Job(ctx context.Context, id string) (*voice.JobStatus, error) {
	var resp jobResponse
	if err := c.getJSON(ctx, "/llm/job/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}

	result, err := normalizeResult(resp.JobType, resp.Result)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	if resp.JobID == "" {
		resp.JobID = id
	}
	return &voice.JobStatus{
		ID:      resp.JobID,
		Status:  resp.Status,
		Result:  result,
		Code:    resp.ErrorCode,
		Message: resp.ErrorMessage,
	}, nil
}

// normalizeResult rewrites job results whose shape differs from the
// synchronous response the controller decodes
func normalizeResult(jobType string, raw json.RawMessage) (json.RawMessage, error) {
	if jobType != "suggest_reply" || len(raw) == 0 || string(raw) == "null" {
		return raw, nil
	}
	var reply replyResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply result: %w", err)
	}
	out, err := json.Marshal(reply.result())
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply result: %w", err)
	}
	return out, nil
}
