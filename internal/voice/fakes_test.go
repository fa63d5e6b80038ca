package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inboxpilot/voicepilot/internal/voice/vad"
)

// fakeClock fires timers only when advanced
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 12, 8, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers in order, outside the
// clock lock so callbacks may schedule new timers
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = t
				break
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.fired = true
		if due.at.After(c.now) {
			c.now = due.at
		}
		c.mu.Unlock()
		due.f()
	}
}

// pending counts timers that have neither fired nor been stopped
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeMic struct {
	mu     sync.Mutex
	err    error
	opens  int
	stream *fakeStream
	audio  []byte
	recErr error
}

func newFakeMic(audioBytes int) *fakeMic {
	return &fakeMic{audio: make([]byte, audioBytes)}
}

func (m *fakeMic) Open(ctx context.Context) (AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	m.stream = &fakeStream{mic: m, live: true}
	return m.stream, nil
}

func (m *fakeMic) Stream() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

func (m *fakeMic) setAudio(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = make([]byte, n)
}

type fakeStream struct {
	mic        *fakeMic
	mu         sync.Mutex
	live       bool
	muted      bool
	muteCalls  int
	recordings int
	level      atomic.Uint64
	analysers  []*fakeAnalyser
}

func (s *fakeStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *fakeStream) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	s.muteCalls++
}

func (s *fakeStream) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *fakeStream) Record() (Recording, error) {
	s.mic.mu.Lock()
	audio, err := s.mic.audio, s.mic.recErr
	s.mic.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.recordings++
	s.mu.Unlock()
	return &fakeRecording{audio: audio}, nil
}

func (s *fakeStream) Recordings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordings
}

func (s *fakeStream) Analyser() (vad.Analyser, error) {
	a := &fakeAnalyser{stream: s}
	s.mu.Lock()
	s.analysers = append(s.analysers, a)
	s.mu.Unlock()
	return a, nil
}

// openAnalysers counts taps not yet disconnected
func (s *fakeStream) openAnalysers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.analysers {
		if !a.closed.Load() {
			n++
		}
	}
	return n
}

func (s *fakeStream) SetLevel(level float64) {
	s.level.Store(math.Float64bits(level))
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = false
	return nil
}

type fakeAnalyser struct {
	stream *fakeStream
	closed atomic.Bool
}

func (a *fakeAnalyser) Level() float64 {
	return math.Float64frombits(a.stream.level.Load())
}

func (a *fakeAnalyser) Close() error {
	a.closed.Store(true)
	return nil
}

type fakeRecording struct {
	audio   []byte
	stopped bool
}

func (r *fakeRecording) Stop() ([]byte, error) {
	if r.stopped {
		return nil, errors.New("already stopped")
	}
	r.stopped = true
	return r.audio, nil
}

// fakeTranscriber returns text. With block set it waits for a release and
// ignores cancellation, like a slow network call.
type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	block chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTranscriber) set(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
}

type fakeSynth struct {
	mu       sync.Mutex
	requests []SpeechRequest
	err      error
}

func (f *fakeSynth) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + req.Text), nil
}

// fakePlayer blocks until the context is cancelled or finish is called
type fakePlayer struct {
	mu     sync.Mutex
	plays  int
	finish chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{finish: make(chan struct{}, 16)}
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.finish:
		return nil
	}
}

func (p *fakePlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

type fakeAssistant struct {
	mu         sync.Mutex
	dispatches []DispatchRequest
	dispatchFn func(DispatchRequest) (*DispatchResponse, error)
	chat       *ChatResult
	chatErr    error
	triage     *TriageResult
	reply      *ReplyResult
	replyErr   error
	jobs       map[string][]JobStatus
	polls      int
}

func (a *fakeAssistant) SuggestReply(ctx context.Context, req ReplyRequest) (*ReplyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.replyErr != nil {
		return nil, a.replyErr
	}
	if a.reply == nil {
		return &ReplyResult{DraftBody: "Obrigado, recebido."}, nil
	}
	r := *a.reply
	return &r, nil
}

func (a *fakeAssistant) Triage(ctx context.Context, req TriageRequest) (*TriageResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.triage == nil {
		return &TriageResult{}, nil
	}
	r := *a.triage
	return &r, nil
}

func (a *fakeAssistant) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chatErr != nil {
		return nil, a.chatErr
	}
	if a.chat == nil {
		return &ChatResult{Answer: "Resposta."}, nil
	}
	r := *a.chat
	return &r, nil
}

func (a *fakeAssistant) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResponse, error) {
	a.mu.Lock()
	a.dispatches = append(a.dispatches, req)
	fn := a.dispatchFn
	a.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	resp := &DispatchResponse{}
	for _, act := range req.Actions {
		resp.Results = append(resp.Results, DispatchResult{Key: act.Key, Action: act.Action, Status: StatusOK})
	}
	return resp, nil
}

func (a *fakeAssistant) Job(ctx context.Context, id string) (*JobStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls++
	seq := a.jobs[id]
	if len(seq) == 0 {
		return nil, fmt.Errorf("unknown job %s", id)
	}
	st := seq[0]
	if len(seq) > 1 {
		a.jobs[id] = seq[1:]
	}
	return &st, nil
}

func (a *fakeAssistant) Dispatches() []DispatchRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]DispatchRequest(nil), a.dispatches...)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

type fakeSnapshots struct {
	mu    sync.Mutex
	snap  *Snapshot
	err   error
	calls int
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap.Clone(), nil
}

type fakeQueue struct {
	mu      sync.Mutex
	saved   map[string][]ActionRecord
	saves   int
	results []DispatchResult
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{saved: make(map[string][]ActionRecord)}
}

func (q *fakeQueue) SaveQueue(ctx context.Context, sessionID string, actions []ActionRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.saves++
	q.saved[sessionID] = append([]ActionRecord(nil), actions...)
	return nil
}

func (q *fakeQueue) LoadQueue(ctx context.Context, sessionID string) ([]ActionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ActionRecord(nil), q.saved[sessionID]...), nil
}

func (q *fakeQueue) RecordResults(ctx context.Context, sessionID string, results []DispatchResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results = append(q.results, results...)
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []Status
	messages []Message
}

func (s *recordingSink) Render(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *recordingSink) Message(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.statuses...)
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Text)
	}
	return out
}

func (s *recordingSink) Last() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}
	}
	return s.messages[len(s.messages)-1]
}

type fakeHotword struct {
	mu       sync.Mutex
	pauses   int
	resumes  int
	ready    func() bool
	wakeWord string
	language string
}

func (h *fakeHotword) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
}

func (h *fakeHotword) ResumeAfter(delay time.Duration, ready func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resumes++
	h.ready = ready
}

func (h *fakeHotword) Configure(wakeWord, language string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakeWord = wakeWord
	h.language = language
}

func (h *fakeHotword) configured() (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wakeWord, h.language
}

func (h *fakeHotword) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauses, h.resumes
}

type userError struct{ msg string }

func (e *userError) Error() string       { return "backend: " + e.msg }
func (e *userError) UserMessage() string { return e.msg }

// harness bundles a controller with its fakes
type harness struct {
	t         *testing.T
	ctrl      *Controller
	clock     *fakeClock
	mic       *fakeMic
	stt       *fakeTranscriber
	synth     *fakeSynth
	player    *fakePlayer
	assistant *fakeAssistant
	snapshots *fakeSnapshots
	queue     *fakeQueue
	sink      *recordingSink
	hotword   *fakeHotword
}

type harnessOption func(*Config, *Deps)

func withMode(m Mode) harnessOption {
	return func(c *Config, _ *Deps) { c.Prefs.Mode = m }
}

func withSpeech() harnessOption {
	return func(c *Config, _ *Deps) { c.Prefs.TTSEnabled = true }
}

func snapshotOf(n int) *Snapshot {
	s := &Snapshot{}
	for i := 1; i <= n; i++ {
		s.Items = append(s.Items, SnapshotItem{
			Key:     fmt.Sprintf("gmail:%03d", i),
			From:    fmt.Sprintf("sender%d@example.com", i),
			Subject: fmt.Sprintf("Assunto %d", i),
			Snippet: "Olá",
		})
	}
	return s
}

func newHarness(t *testing.T, messages int, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     newFakeClock(),
		mic:       newFakeMic(4000),
		stt:       &fakeTranscriber{},
		synth:     &fakeSynth{},
		player:    newFakePlayer(),
		assistant: &fakeAssistant{jobs: make(map[string][]JobStatus)},
		snapshots: &fakeSnapshots{snap: snapshotOf(messages)},
		queue:     newFakeQueue(),
		sink:      &recordingSink{},
		hotword:   &fakeHotword{},
	}

	cfg := DefaultConfig()
	cfg.SessionID = "session-1"
	cfg.Prefs.TTSEnabled = false
	cfg.Cues = false
	cfg.VAD.Interval = time.Millisecond
	cfg.JobPollInterval = 0
	cfg.JobMaxAttempts = 5
	deps := Deps{
		Microphone:  h.mic,
		Transcriber: h.stt,
		Synthesizer: h.synth,
		Player:      h.player,
		Assistant:   h.assistant,
		Snapshots:   h.snapshots,
		Queue:       h.queue,
		Sink:        h.sink,
		Hotword:     h.hotword,
		Clock:       h.clock,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	ctrl, err := NewController(cfg, deps)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(func() { ctrl.Close() })

	if err := ctrl.Activate(context.Background()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return h
}

// waitFor polls cond until it holds or fails the test after two seconds
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitState(s State) {
	h.t.Helper()
	waitFor(h.t, "state "+s.String(), func() bool { return h.ctrl.State() == s })
}

// waitIdle waits until the controller is idle with no request in flight
func (h *harness) waitIdle() {
	h.t.Helper()
	waitFor(h.t, "idle", func() bool {
		st := h.ctrl.Status()
		return st.State == StateIdle && !st.Busy
	})
}

// say runs a complete text turn and returns the reply
func (h *harness) say(text string) string {
	h.t.Helper()
	before := len(h.sink.Texts())
	if err := h.ctrl.SubmitText(text); err != nil {
		h.t.Fatalf("SubmitText(%q) error = %v", text, err)
	}
	h.waitIdle()
	waitFor(h.t, "reply to "+text, func() bool { return len(h.sink.Texts()) > before })
	return h.sink.Last().Text
}
