package hotword

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMatcher(t *testing.T) {
	m := NewMatcher("piloto", "ok inbox")

	tests := []struct {
		fragment string
		want     bool
	}{
		{"Piloto", true},
		{"ei, piloto!", true},
		{"pilotu ler email", true},
		{"pi loto", true},
		{"ok inbox", true},
		{"pilotagem", false},
		{"copiloto", false},
		{"", false},
		{"bom dia", false},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			if got := m.Match(tt.fragment); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.fragment, got, tt.want)
			}
		})
	}
}

// chanRecognizer hands out fragments pushed by the test
type chanRecognizer struct {
	fragments chan string
	calls     int32
}

func (r *chanRecognizer) Next(ctx context.Context) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case f := <-r.fragments:
		return f, nil
	}
}

func startListener(t *testing.T, rec Recognizer) (*Listener, chan struct{}, context.CancelFunc) {
	t.Helper()
	hits := make(chan struct{}, 4)
	l := NewListener(rec, NewMatcher("piloto"), func() { hits <- struct{}{} })
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	return l, hits, cancel
}

func waitHit(t *testing.T, hits chan struct{}) {
	t.Helper()
	select {
	case <-hits:
	case <-time.After(2 * time.Second):
		t.Fatal("hotword not reported")
	}
}

func TestListener_StartsPaused(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string, 1)}
	l, hits, cancel := startListener(t, rec)
	defer cancel()

	if !l.Paused() {
		t.Fatal("listener should start paused")
	}
	rec.fragments <- "piloto"
	select {
	case <-hits:
		t.Fatal("paused listener reported a hotword")
	case <-time.After(50 * time.Millisecond):
	}
	if atomic.LoadInt32(&rec.calls) != 0 {
		t.Error("paused listener should not pull fragments")
	}
}

func TestListener_DetectsAndPauses(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string, 4)}
	l, hits, cancel := startListener(t, rec)
	defer cancel()

	l.Resume()
	rec.fragments <- "bom dia"
	rec.fragments <- "piloto"
	waitHit(t, hits)

	if !l.Paused() {
		t.Error("listener should pause itself after a detection")
	}
}

func TestListener_DiscardsFragmentHeardAcrossPause(t *testing.T) {
	rec := &blockingRecognizer{release: make(chan string), entered: make(chan struct{}, 1)}
	l, hits, cancel := startListener(t, rec)
	defer cancel()

	l.Resume()
	<-rec.entered
	l.Pause()
	l.Resume()
	rec.release <- "piloto"

	select {
	case <-hits:
		t.Fatal("fragment recognized across a pause must be discarded")
	case <-time.After(50 * time.Millisecond):
	}
}

type blockingRecognizer struct {
	release chan string
	entered chan struct{}
}

func (r *blockingRecognizer) Next(ctx context.Context) (string, error) {
	select {
	case r.entered <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case f := <-r.release:
		return f, nil
	}
}

func TestListener_ResumeAfterWaitsForReady(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string, 1)}
	l, _, cancel := startListener(t, rec)
	defer cancel()

	var ready atomic.Bool
	l.ResumeAfter(5*time.Millisecond, ready.Load)

	time.Sleep(30 * time.Millisecond)
	if !l.Paused() {
		t.Fatal("listener resumed while not ready")
	}

	ready.Store(true)
	deadline := time.Now().Add(time.Second)
	for l.Paused() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if l.Paused() {
		t.Error("listener did not resume once ready")
	}
}

func TestListener_PauseCancelsScheduledResume(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string, 1)}
	l, _, cancel := startListener(t, rec)
	defer cancel()

	l.ResumeAfter(20*time.Millisecond, nil)
	l.Pause()
	time.Sleep(50 * time.Millisecond)
	if !l.Paused() {
		t.Error("Pause should cancel the scheduled resume")
	}
}

func TestListener_Configure(t *testing.T) {
	tr := &fakeTranscriber{}
	rec := NewAudioRecognizer(fakeSource{samples: make([]int16, 160)}, nil, tr, func(s []int16) []byte { return nil }, time.Second, "pt")
	hits := make(chan struct{}, 4)
	l := NewListener(rec, NewMatcher("piloto"), func() { hits <- struct{}{} })

	l.Configure("assistente", "en")
	if got := l.currentMatcher().WakeWord(); got != "assistente" {
		t.Errorf("WakeWord() = %q, want assistente", got)
	}
	if l.currentMatcher().Match("piloto") {
		t.Error("old wake word still matches after Configure")
	}
	if _, err := rec.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tr.language != "en" {
		t.Errorf("transcribed with language %q, want en", tr.language)
	}
}

func TestListener_ConfiguredWakeWordTriggers(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string, 4)}
	l, hits, cancel := startListener(t, rec)
	defer cancel()

	l.Configure("assistente", "pt")
	l.Resume()
	rec.fragments <- "ei assistente"
	waitHit(t, hits)
}

func TestListener_RunTwice(t *testing.T) {
	rec := &chanRecognizer{fragments: make(chan string)}
	l, _, cancel := startListener(t, rec)
	defer cancel()

	time.Sleep(10 * time.Millisecond)
	if err := l.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

type fakeSource struct {
	samples []int16
	err     error
}

func (s fakeSource) Capture(ctx context.Context, window time.Duration) ([]int16, error) {
	return s.samples, s.err
}

type fakeGate bool

func (g fakeGate) Voiced([]int16) (bool, error) { return bool(g), nil }

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	text     string
	language string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.language = language
	return f.text, nil
}

func TestAudioRecognizer(t *testing.T) {
	encode := func(s []int16) []byte { return make([]byte, len(s)*2) }

	t.Run("unvoiced window skips transcription", func(t *testing.T) {
		tr := &fakeTranscriber{text: "piloto"}
		r := NewAudioRecognizer(fakeSource{samples: make([]int16, 160)}, fakeGate(false), tr, encode, time.Second, "pt")
		text, err := r.Next(context.Background())
		if err != nil || text != "" {
			t.Errorf("Next() = %q, %v; want empty", text, err)
		}
		if tr.calls != 0 {
			t.Errorf("transcriber called %d times, want 0", tr.calls)
		}
	})

	t.Run("voiced window is transcribed", func(t *testing.T) {
		tr := &fakeTranscriber{text: "piloto"}
		r := NewAudioRecognizer(fakeSource{samples: make([]int16, 160)}, fakeGate(true), tr, encode, time.Second, "pt")
		text, err := r.Next(context.Background())
		if err != nil || text != "piloto" {
			t.Errorf("Next() = %q, %v; want piloto", text, err)
		}
	})

	t.Run("capture error", func(t *testing.T) {
		r := NewAudioRecognizer(fakeSource{err: errors.New("device gone")}, nil, &fakeTranscriber{}, encode, time.Second, "pt")
		if _, err := r.Next(context.Background()); err == nil {
			t.Error("Next() should surface capture errors")
		}
	})
}
