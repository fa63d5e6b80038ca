// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     backend
// Description: Transcription, synthesis and snapshot endpoints
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads recorded audio and returns the recognized text
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if language == "" {
		language = "pt"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.WriteField("language", language); err != nil {
		return "", fmt.Errorf("failed to write language: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/voice/transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp transcribeResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize returns mp3 audio for req
func (c *Client) Synthesize(ctx context.Context, req voice.SpeechRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/voice/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	audio, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("backend returned empty audio")
	}
	return audio, nil
}

// snapshotItem is one message as listed by /handsfree/context
type snapshotItem struct {
	Key      string `json:"key"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Provider string `json:"provider"`
	Unread   *bool  `json:"unread"`
}

type snapshotResponse struct {
	Reason    string         `json:"reason"`
	Items     []snapshotItem `json:"items"`
	CreatedAt string         `json:"created_at"`
}

// Snapshot loads the message list the user last looked at
func (c *Client) Snapshot(ctx context.Context, sessionID string) (*voice.Snapshot, error) {
	q := url.Values{}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	if len(c.providers) > 0 {
		q.Set("providers", strings.Join(c.providers, ","))
	}
	path := "/handsfree/context"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp snapshotResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Reason == "no_snapshot" {
		return nil, fmt.Errorf("%w: backend has no message list", voice.ErrNoSnapshot)
	}

	snap := &voice.Snapshot{
		Items:    make([]voice.SnapshotItem, 0, len(resp.Items)),
		LoadedAt: time.Now(),
	}
	for _, it := range resp.Items {
		snap.Items = append(snap.Items, voice.SnapshotItem{
			Key:      it.Key,
			From:     it.From,
			Subject:  it.Subject,
			Snippet:  it.Snippet,
			Provider: it.Provider,
			Read:     it.Unread != nil && !*it.Unread,
		})
	}
	return snap, nil
}
