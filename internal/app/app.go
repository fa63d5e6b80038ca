// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     app
// Description: Application assembly - builds the controller and its
//              collaborators from the configuration and runs the front ends
// Author:      Mike Stoffels
// Created:     2025-12-16
// License:     MIT
// ============================================================================

package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.design/x/hotkey"

	"github.com/inboxpilot/voicepilot/internal/audio"
	"github.com/inboxpilot/voicepilot/internal/backend"
	"github.com/inboxpilot/voicepilot/internal/statusfeed"
	"github.com/inboxpilot/voicepilot/internal/store"
	"github.com/inboxpilot/voicepilot/internal/ui"
	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/internal/voice/hotword"
	"github.com/inboxpilot/voicepilot/internal/voice/vad"
	"github.com/inboxpilot/voicepilot/pkg/core/cache"
	"github.com/inboxpilot/voicepilot/pkg/core/config"
	coregrpc "github.com/inboxpilot/voicepilot/pkg/core/grpc"
	"github.com/inboxpilot/voicepilot/pkg/core/health"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
	"github.com/inboxpilot/voicepilot/pkg/core/version"
)

// Frontend selects how the application is driven
type Frontend string

const (
	FrontendTray     Frontend = "tray"
	FrontendConsole  Frontend = "console"
	FrontendHeadless Frontend = "headless"
)

// playbackRate is the output rate of the speaker; mp3 audio is resampled
const playbackRate = 24000

// App is the assembled voice assistant
type App struct {
	mu       sync.Mutex
	cfg      *config.Config
	frontend Frontend
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Components
	client      *backend.Client
	queue       store.QueueStore
	speechCache *cache.Cache
	mic         *audio.Microphone
	player      *audio.Player
	listener    *hotword.Listener
	ctrl        *voice.Controller

	// Front ends
	hub     *statusfeed.Hub
	tray    *ui.TrayApp
	console *ui.ConsoleSink
	hotkey  *hotkey.Hotkey

	// Health
	registry   *health.Registry
	grpcServer *coregrpc.Server
}

// New builds every component. Devices are opened lazily on the first turn.
func New(cfg *config.Config, frontend Frontend) (*App, error) {
	vcfg, err := VoiceConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		frontend: frontend,
		logger:   logging.New("voicepilot"),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := a.initComponents(vcfg); err != nil {
		cancel()
		a.closeComponents()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return a, nil
}

// initComponents initializes all components
func (a *App) initComponents(vcfg voice.Config) error {
	var err error
	cfg := a.cfg

	a.client = NewBackendClient(cfg)
	transcriber, synth := SpeechServices(cfg, a.client, NewDirectProvider(cfg))

	a.speechCache = cache.New(cache.DefaultConfig())
	synth = backend.NewCachingSynthesizer(synth, a.speechCache)

	a.queue, err = NewQueueStore(cfg)
	if err != nil {
		return err
	}

	// Audio
	a.mic = audio.NewMicrophone(audio.CaptureConfig{
		SampleRate: cfg.Audio.SampleRate,
		BufferSize: cfg.Audio.FramesPerRead,
		Channels:   1,
		DeviceName: cfg.Audio.InputDevice,
	})
	a.player = audio.NewPlayer(playbackRate)

	// Wake word: webrtc voicing gate in front of transcription. The
	// controller reconfigures the listener from the saved preferences.
	var gate hotword.Gate
	if v, err := vad.NewVoicing(cfg.Audio.SampleRate, cfg.Audio.VADMode, 3); err != nil {
		a.logger.Warn("Voicing gate unavailable, transcribing every window", "error", err)
	} else {
		gate = v
	}
	rate := cfg.Audio.SampleRate
	recognizer := hotword.NewAudioRecognizer(a.mic, gate, transcriber,
		func(samples []int16) []byte { return audio.EncodeWAV(samples, rate) },
		cfg.Audio.HotwordWindow.Duration, vcfg.Prefs.Language)
	a.listener = hotword.NewListener(recognizer, hotword.NewMatcher(vcfg.Prefs.WakeWord), a.onHotword)

	// Status sinks
	sinks := voice.MultiSink{voice.NewLogSink("status")}
	if cfg.Feed.Enabled {
		a.hub = statusfeed.NewHub()
		sinks = append(sinks, a.hub)
	}
	switch a.frontend {
	case FrontendTray:
		a.tray = ui.NewTrayApp(ui.TrayCallbacks{
			OnActivate: a.toggle,
			OnStop:     a.stop,
			OnMode:     a.setMode,
			OnQuit:     a.cancel,
		}, a.shortcut())
		sinks = append(sinks, a.tray)
	case FrontendConsole:
		a.console = ui.NewConsoleSink()
		sinks = append(sinks, a.console)
	}

	var settings voice.SettingsStore
	var sessions voice.SessionKeeper
	if path, err := voice.DefaultSettingsPath(); err != nil {
		a.logger.Warn("Settings will not be saved", "error", err)
	} else {
		fs := voice.NewFileSettings(path)
		settings, sessions = fs, fs
	}

	deps := voice.Deps{
		Microphone:  a.mic,
		Transcriber: transcriber,
		Synthesizer: synth,
		Player:      a.player,
		Assistant:   a.client,
		Snapshots:   a.client,
		Queue:       a.queue,
		Sink:        sinks,
		Hotword:     a.listener,
		Settings:    settings,
		Sessions:    sessions,
	}
	if vcfg.Cues {
		deps.Cues = audio.NewCues(a.player, 0.3)
	}

	a.ctrl, err = voice.NewController(vcfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	if a.hub != nil {
		a.hub.Submit = a.ctrl.SubmitText
	}

	a.registry = NewHealthRegistry(a.client, a.ctrl, a.queue, 2*vcfg.ProcessingTimeout, time.Now)
	return nil
}

// Controller returns the turn controller
func (a *App) Controller() *voice.Controller {
	return a.ctrl
}

// Run starts the background services, activates the controller and drives
// the selected front end until ctx is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting InboxPilot Voice", "version", version.String(), "frontend", a.frontend)

	stop := context.AfterFunc(ctx, a.cancel)
	defer stop()
	defer a.Close()

	if err := a.startServices(); err != nil {
		return err
	}

	activateCtx, cancel := context.WithTimeout(a.ctx, a.cfg.Backend.Timeout.Duration)
	if err := a.ctrl.Activate(activateCtx); err != nil && !errors.Is(err, voice.ErrNoSnapshot) {
		a.logger.Warn("Activation incomplete", "error", err)
	}
	cancel()

	switch a.frontend {
	case FrontendTray:
		go func() {
			<-a.ctx.Done()
			a.tray.Quit()
		}()
		// The systray library runs its own event loop
		a.tray.Run()
		a.cancel()
	case FrontendConsole:
		err := ui.RunConsole(a.ctrl, a.console)
		a.cancel()
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
	default:
		<-a.ctx.Done()
	}
	return nil
}

// startServices launches the goroutines that outlive single turns
func (a *App) startServices() error {
	a.goRun("hotword", func() {
		if err := a.listener.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Hotword listener stopped", "error", err)
		}
	})

	if a.hub != nil {
		addr := a.cfg.FeedAddress()
		a.goRun("status-feed", func() {
			if err := a.hub.Serve(a.ctx, addr); err != nil {
				a.logger.Error("Status feed stopped", "error", err)
			}
		})
	}

	if a.cfg.Health.Enabled {
		if err := a.startHealthServer(); err != nil {
			return err
		}
	}

	if a.cfg.Hotkey.Enabled {
		if err := a.registerHotkey(); err != nil {
			a.logger.Warn("Failed to register hotkey", "error", err)
		}
	}

	if a.tray != nil {
		a.goRun("backend-health", a.backendHealthLoop)
	}

	if a.cfg.Path != "" {
		w := config.NewWatcher(a.cfg.Path, a.applyConfig)
		a.goRun("config-watch", func() {
			if err := w.Run(a.ctx); err != nil {
				a.logger.Warn("Config watch stopped", "error", err)
			}
		})
	}
	return nil
}

// applyConfig takes over the settings that can change while running: the
// listening mode and, outside the console, the log level. Everything else
// needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	mode, err := voice.ParseMode(cfg.Voice.Mode)
	if err != nil {
		a.logger.Warn("Ignoring reloaded mode", "mode", cfg.Voice.Mode, "error", err)
	} else if mode != a.ctrl.Status().Mode {
		a.setMode(mode)
	}

	if a.frontend != FrontendConsole && cfg.General.LogLevel != "" {
		logCfg := logging.CurrentConfig()
		if logCfg.Level != cfg.General.LogLevel {
			logCfg.Level = cfg.General.LogLevel
			logging.Configure(logCfg)
		}
	}
}

func (a *App) goRun(name string, fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
		a.logger.Debug("Background task finished", "task", name)
	}()
}

// startHealthServer exposes the registry as grpc.health.v1
func (a *App) startHealthServer() error {
	srvCfg := coregrpc.DefaultServerConfig()
	srvCfg.Address = a.cfg.HealthAddress()
	a.grpcServer = coregrpc.NewServer(srvCfg)

	hs := coregrpc.NewHealthService(a.registry, a.cfg.Health.Interval.Duration, "voicepilot")
	hs.Register(a.grpcServer)
	if err := a.grpcServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	a.goRun("health-service", func() { hs.Run(a.ctx) })

	a.logger.Info("Health endpoint listening", "address", a.grpcServer.Address())
	return nil
}

// registerHotkey registers the global manual trigger. On macOS the hotkey
// library needs the main thread that systray already owns, so the menu bar
// is the trigger there.
func (a *App) registerHotkey() error {
	if runtime.GOOS == "darwin" {
		a.logger.Info("Hotkey disabled on macOS (use menu bar to activate)")
		return nil
	}

	mods, key, err := ParseHotkey(a.cfg.Hotkey.Keys)
	if err != nil {
		return err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}
	a.mu.Lock()
	a.hotkey = hk
	a.mu.Unlock()

	go func() {
		for range hk.Keydown() {
			a.logger.Debug("Hotkey pressed")
			a.toggle()
		}
	}()

	a.logger.Info("Hotkey registered", "shortcut", a.cfg.Hotkey.Keys)
	return nil
}

func (a *App) shortcut() string {
	if !a.cfg.Hotkey.Enabled || runtime.GOOS == "darwin" {
		return ""
	}
	return a.cfg.Hotkey.Keys
}

// backendHealthLoop keeps the tray's backend entry current
func (a *App) backendHealthLoop() {
	// Initial delay
	select {
	case <-time.After(500 * time.Millisecond):
	case <-a.ctx.Done():
		return
	}

	a.checkBackendHealth()

	ticker := time.NewTicker(a.cfg.Health.Interval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.checkBackendHealth()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) checkBackendHealth() {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	st, err := a.client.HealthCheck(ctx)
	if err != nil {
		a.logger.Debug("Backend health check failed", "error", err)
		a.tray.SetBackendStatus(false, "")
		return
	}
	detail := st.Version
	if detail != "" {
		detail = "v" + detail
	}
	a.tray.SetBackendStatus(true, detail)
}

// Callbacks for tray and hotkey

// onHotword is only reachable once Run started the listener
func (a *App) onHotword() {
	a.ctrl.OnHotword()
}

func (a *App) toggle() {
	if err := a.ctrl.Toggle(); err != nil {
		a.logger.Debug("Toggle ignored", "error", err)
	}
}

func (a *App) stop() {
	a.ctrl.Stop()
}

func (a *App) setMode(mode voice.Mode) {
	if err := a.ctrl.SetMode(mode); err != nil {
		a.logger.Warn("Failed to change mode", "mode", mode, "error", err)
	}
}

// Close shuts every component down. It is safe to call more than once.
func (a *App) Close() {
	a.cancel()

	a.mu.Lock()
	hk := a.hotkey
	a.hotkey = nil
	a.mu.Unlock()
	if hk != nil {
		hk.Unregister()
	}

	if a.ctrl != nil {
		if err := a.ctrl.Close(); err != nil {
			a.logger.Debug("Controller close", "error", err)
		}
	}
	if a.grpcServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.grpcServer.Stop(ctx)
		cancel()
		a.grpcServer = nil
	}
	a.wg.Wait()
	a.closeComponents()
}

func (a *App) closeComponents() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.mic != nil {
		a.mic.Close()
	}
	if a.queue != nil {
		a.queue.Close()
		a.queue = nil
	}
	if a.speechCache != nil {
		a.speechCache.Close()
	}
}
