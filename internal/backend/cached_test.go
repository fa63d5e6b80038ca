package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/cache"
)

type countingSynth struct {
	calls int
	err   error
}

func (s *countingSynth) Synthesize(ctx context.Context, req voice.SpeechRequest) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3:" + req.Text), nil
}

func TestCachingSynthesizer(t *testing.T) {
	next := &countingSynth{}
	c := cache.New(cache.Config{})
	defer c.Close()
	s := NewCachingSynthesizer(next, c)
	ctx := context.Background()

	req := voice.SpeechRequest{Text: "Fila vazia.", Voice: "nova", Speed: 1}
	first, err := s.Synthesize(ctx, req)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	second, _ := s.Synthesize(ctx, req)
	if next.calls != 1 {
		t.Errorf("backend called %d times, want 1", next.calls)
	}
	if string(first) != string(second) {
		t.Errorf("cached audio differs: %q vs %q", first, second)
	}

	req.Speed = 1.25
	s.Synthesize(ctx, req)
	if next.calls != 2 {
		t.Errorf("speed change should miss the cache, calls = %d", next.calls)
	}
}

func TestCachingSynthesizer_ErrorsNotCached(t *testing.T) {
	next := &countingSynth{err: errors.New("tts down")}
	c := cache.New(cache.Config{})
	defer c.Close()
	s := NewCachingSynthesizer(next, c)

	req := voice.SpeechRequest{Text: "oi", Voice: "nova", Speed: 1}
	if _, err := s.Synthesize(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}
	if c.Size() != 0 {
		t.Error("failed synthesis was cached")
	}
}

func TestSpeechKey(t *testing.T) {
	a := SpeechKey(voice.SpeechRequest{Text: "oi", Voice: "nova", Speed: 1})
	b := SpeechKey(voice.SpeechRequest{Text: "oi", Voice: "alloy", Speed: 1})
	c := SpeechKey(voice.SpeechRequest{Text: "oi", Voice: "nova", Speed: 1, Style: "calmo"})
	if a == b || a == c {
		t.Error("different voice settings must produce different keys")
	}
	if a != SpeechKey(voice.SpeechRequest{Text: "oi", Voice: "nova", Speed: 1}) {
		t.Error("key not stable")
	}
}
