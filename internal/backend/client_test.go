package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, APIKey: "secret", Timeout: 5 * time.Second})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %v, want http://localhost:8000", cfg.BaseURL)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
}

func TestNewClient_TrimsSlash(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://backend:8000/"})
	if c.BaseURL() != "http://backend:8000" {
		t.Errorf("BaseURL() = %v", c.BaseURL())
	}
}

func TestClient_Headers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q, want secret", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID missing")
		}
		w.Write([]byte(`{"status":"healthy","version":"2.1"}`))
	})

	status, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if status.Status != "healthy" || status.Version != "2.1" {
		t.Errorf("status = %+v", status)
	}
}

func TestClient_Transcribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/transcribe" {
			t.Errorf("Path = %v, want /voice/transcribe", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if got := r.FormValue("language"); got != "pt" {
			t.Errorf("language = %q, want pt", got)
		}
		f, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "RIFFDATA" {
			t.Errorf("audio = %q", data)
		}
		w.Write([]byte(`{"ok":true,"text":"  ler email 2 "}`))
	})

	text, err := c.Transcribe(context.Background(), []byte("RIFFDATA"), "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "ler email 2" {
		t.Errorf("text = %q, want 'ler email 2'", text)
	}
}

func TestClient_TranscribeTooShort(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"text":"","message":"Áudio muito curto"}`))
	})

	_, err := c.Transcribe(context.Background(), []byte("x"), "pt")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.UserMessage() != "Áudio muito curto" {
		t.Errorf("UserMessage() = %q", apiErr.UserMessage())
	}
}

func TestClient_Synthesize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req voice.SpeechRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "Olá" || req.Voice != "nova" || req.Speed != 1.25 || req.Style != "calmo" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3mp3"))
	})

	audio, err := c.Synthesize(context.Background(), voice.SpeechRequest{Text: "Olá", Voice: "nova", Speed: 1.25, Style: "calmo"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Errorf("audio = %q", audio)
	}
}

func TestClient_ErrorCodes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		rateLimited bool
		authBilling bool
	}{
		{"rate limit by status", 429, `{"detail":"Too many requests"}`, CodeRateLimited, "Too many requests", true, false},
		{"billing by status", 402, `{"message":"Saldo insuficiente"}`, CodeAuthOrBilling, "Saldo insuficiente", false, true},
		{"forbidden", 403, `not json`, CodeAuthOrBilling, "not json", false, true},
		{"explicit code", 500, `{"ok":false,"error_code":"rate_limited","message":"Limite da OpenAI"}`, CodeRateLimited, "Limite da OpenAI", true, false},
		{"gateway timeout", 504, ``, CodeTimeout, "", false, false},
		{"server error", 500, `{"detail":"boom"}`, CodeUnknown, "boom", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Chat(context.Background(), voice.ChatRequest{SessionID: "s", Message: "oi"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Code != tt.wantCode || apiErr.Message != tt.wantMessage {
				t.Errorf("APIError = %+v", apiErr)
			}
			if IsRateLimited(err) != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v", IsRateLimited(err))
			}
			if IsAuthOrBilling(err) != tt.authBilling {
				t.Errorf("IsAuthOrBilling() = %v", IsAuthOrBilling(err))
			}
		})
	}
}

func TestAPIError_KindAndMessage(t *testing.T) {
	err := &APIError{Status: 504, Code: CodeTimeout}
	if voice.KindOf(err) != voice.KindTimeout {
		t.Errorf("KindOf() = %v, want timeout", voice.KindOf(err))
	}
	if err.UserMessage() == "" {
		t.Error("UserMessage() should never be empty")
	}

	var uf voice.UserFacing
	if !errors.As(error(&APIError{Code: CodeRateLimited, Message: "Aguarde 20s"}), &uf) {
		t.Fatal("APIError should be user facing")
	}
	if uf.UserMessage() != "Aguarde 20s" {
		t.Errorf("UserMessage() = %q", uf.UserMessage())
	}
}

func TestClient_SuggestReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req replyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Key != "gmail:inbox:7" || req.Tone != "formal" || !req.Force {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"ok":true,"key":"gmail:inbox:7","draft_body":"Prezado,","notes":["tom formal","curto"]}`))
	})

	res, err := c.SuggestReply(context.Background(), voice.ReplyRequest{SessionID: "s", Key: "gmail:inbox:7", Tone: "formal"})
	if err != nil {
		t.Fatalf("SuggestReply() error = %v", err)
	}
	if res.DraftBody != "Prezado," || res.Notes != "tom formal curto" || res.Queued {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_SuggestReplyQueued(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"queued":true,"job_id":"job-1","status":"queued","message":"Processando"}`))
	})

	res, err := c.SuggestReply(context.Background(), voice.ReplyRequest{Key: "k"})
	if err != nil {
		t.Fatalf("SuggestReply() error = %v", err)
	}
	if !res.Queued || res.JobID != "job-1" {
		t.Errorf("result = %+v, want queued job-1", res)
	}
}

func TestClient_ChatProvidersJoined(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		json.NewDecoder(r.Body).Decode(&raw)
		if raw["providers"] != "gmail,apple" {
			t.Errorf("providers = %v, want 'gmail,apple'", raw["providers"])
		}
		if keys, ok := raw["visible_keys"].([]interface{}); !ok || len(keys) != 0 {
			t.Errorf("visible_keys = %v, want []", raw["visible_keys"])
		}
		w.Write([]byte(`{"ok":true,"answer":"Apagar 2?","proposed_actions":[{"key":"a","action":"delete"},{"key":"b","action":"delete"}]}`))
	})

	res, err := c.Chat(context.Background(), voice.ChatRequest{SessionID: "s", Message: "limpar", Providers: []string{"gmail", "apple"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Answer != "Apagar 2?" || len(res.ProposedActions) != 2 || res.ProposedActions[1].Action != voice.ActionDelete {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_ChatLLMError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":"llm_error","message":"modelo indisponível"}`))
	})

	_, err := c.Chat(context.Background(), voice.ChatRequest{Message: "oi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "llm_error" {
		t.Errorf("error = %v, want llm_error", err)
	}
}

func TestClient_Triage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req voice.TriageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Keys) != 2 {
			t.Errorf("keys = %v", req.Keys)
		}
		w.Write([]byte(`{"ok":true,"total":2,"items":[
			{"key":"a","summary":"Fatura","suggested_action":"mark_read","priority":"high"},
			{"key":"b","summary":"Promo","suggested_action":"delete","priority":"low"}]}`))
	})

	res, err := c.Triage(context.Background(), voice.TriageRequest{SessionID: "s", Keys: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Triage() error = %v", err)
	}
	if len(res.Items) != 2 || res.Items[1].SuggestedAction != voice.ActionDelete || res.Items[0].Priority != "high" {
		t.Errorf("items = %+v", res.Items)
	}
}

func TestClient_Dispatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req dispatchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Mode != voice.DispatchExecute || !req.ConfirmDelete || len(req.Actions) != 2 {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"ok":true,"dry_run":false,"results":[
			{"key":"a","status":"ok"},
			{"key":"b","action":"delete","status":"error","message":"not found"}]}`))
	})

	res, err := c.Dispatch(context.Background(), voice.DispatchRequest{
		SessionID:     "s",
		Actions:       []voice.ActionRecord{{Key: "a", Action: voice.ActionMarkRead}, {Key: "b", Action: voice.ActionDelete}},
		ConfirmDelete: true,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Results[0].Action != voice.ActionMarkRead {
		t.Errorf("missing action not filled from request: %+v", res.Results[0])
	}
	if res.Results[1].Status != voice.StatusError || res.Results[1].Message != "not found" {
		t.Errorf("result[1] = %+v", res.Results[1])
	}
}

func TestClient_Job(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, st *voice.JobStatus)
	}{
		{
			name: "running",
			body: `{"ok":true,"job_id":"j1","status":"running","job_type":"chat","attempts":1}`,
			check: func(t *testing.T, st *voice.JobStatus) {
				if st.ID != "j1" || st.Status != voice.JobRunning || !st.Status.Pending() {
					t.Errorf("status = %+v", st)
				}
			},
		},
		{
			name: "failed",
			body: `{"ok":true,"job_id":"j1","status":"error","error_code":"rate_limited","error_message":"Limite"}`,
			check: func(t *testing.T, st *voice.JobStatus) {
				if st.Status != voice.JobFailed || st.Code != "rate_limited" || st.Message != "Limite" {
					t.Errorf("status = %+v", st)
				}
			},
		},
		{
			name: "reply notes joined",
			body: `{"ok":true,"job_id":"j1","status":"done","job_type":"suggest_reply","result":{"draft_body":"Oi","notes":["a","b"]}}`,
			check: func(t *testing.T, st *voice.JobStatus) {
				var res voice.ReplyResult
				if err := json.Unmarshal(st.Result, &res); err != nil {
					t.Fatalf("result decode error = %v", err)
				}
				if res.DraftBody != "Oi" || res.Notes != "a b" {
					t.Errorf("result = %+v", res)
				}
			},
		},
		{
			name: "chat result untouched",
			body: `{"ok":true,"job_id":"j1","status":"done","job_type":"chat","result":{"answer":"Pronto"}}`,
			check: func(t *testing.T, st *voice.JobStatus) {
				if !strings.Contains(string(st.Result), "Pronto") {
					t.Errorf("result = %s", st.Result)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/llm/job/j1" {
					t.Errorf("Path = %v, want /llm/job/j1", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})
			st, err := c.Job(context.Background(), "j1")
			if err != nil {
				t.Fatalf("Job() error = %v", err)
			}
			tt.check(t, st)
		})
	}
}

func TestClient_Snapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/handsfree/context" {
			t.Errorf("Path = %v, want /handsfree/context", r.URL.Path)
		}
		if got := r.URL.Query().Get("session_id"); got != "sess" {
			t.Errorf("session_id = %q", got)
		}
		w.Write([]byte(`{"ok":true,"count":2,"items":[
			{"key":"gmail:inbox:1","from":"ana@x.com","subject":"Oi","snippet":"Tudo bem?","provider":"gmail","unread":true},
			{"key":"apple:inbox:2","from":"bob@y.com","subject":"Fatura","snippet":"Segue","provider":"apple","unread":false}]}`))
	})

	snap, err := c.Snapshot(context.Background(), "sess")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Len() != 2 || snap.Unread() != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if it, _ := snap.At(2); it.Key != "apple:inbox:2" || !it.Read || it.Provider != "apple" {
		t.Errorf("item 2 = %+v", it)
	}
}

func TestClient_SnapshotMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"reason":"no_snapshot","count":0,"items":[]}`))
	})

	if _, err := c.Snapshot(context.Background(), "s"); !errors.Is(err, voice.ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Job(ctx, "j1"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallbackTranscriber(t *testing.T) {
	tests := []struct {
		name          string
		primaryErr    error
		wantText      string
		wantSecondary int
	}{
		{"primary ok", nil, "primary", 0},
		{"endpoint missing", &APIError{Status: 404, Code: CodeUnknown}, "secondary", 1},
		{"transport failure", errors.New("connection refused"), "secondary", 1},
		{"rate limited stays", &APIError{Status: 429, Code: CodeRateLimited}, "", 0},
		{"short audio stays", &APIError{Status: 200, Code: CodeUnknown, Message: "Áudio muito curto"}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &stubTranscriber{text: "primary", err: tt.primaryErr}
			if tt.primaryErr != nil {
				primary.text = ""
			}
			secondary := &stubTranscriber{text: "secondary"}

			got, _ := NewFallbackTranscriber(primary, secondary).Transcribe(context.Background(), nil, "pt")
			if got != tt.wantText {
				t.Errorf("text = %q, want %q", got, tt.wantText)
			}
			if secondary.calls != tt.wantSecondary {
				t.Errorf("secondary calls = %d, want %d", secondary.calls, tt.wantSecondary)
			}
		})
	}
}
