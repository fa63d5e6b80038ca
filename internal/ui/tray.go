// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     ui
// Description: System tray status and controls using fyne.io/systray
// Author:      Mike Stoffels
// Created:     2025-12-14
// License:     MIT
// ============================================================================

package ui

import (
	"fmt"
	"sync"

	"fyne.io/systray"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// TrayCallbacks holds callback functions for tray events. They run on the
// tray's click goroutine.
type TrayCallbacks struct {
	OnActivate func()
	OnStop     func()
	OnMode     func(mode voice.Mode)
	OnQuit     func()
}

var trayModes = []struct {
	mode  voice.Mode
	label string
}{
	{voice.ModeManual, "Manual"},
	{voice.ModeAuto, "Automático"},
	{voice.ModeAlwaysOn, "Sempre ouvindo"},
}

// TrayApp shows the controller status in the system tray. It implements
// voice.StatusSink.
type TrayApp struct {
	mu        sync.Mutex
	callbacks TrayCallbacks
	shortcut  string

	ready         bool
	status        voice.Status
	backendOnline bool
	backendDetail string
	lastMessage   string
	currentIcon   IconState

	menuStatus   *systray.MenuItem
	menuBackend  *systray.MenuItem
	menuQueue    *systray.MenuItem
	menuActivate *systray.MenuItem
	menuStop     *systray.MenuItem
	menuModes    map[voice.Mode]*systray.MenuItem
	menuQuit     *systray.MenuItem
}

var _ voice.StatusSink = (*TrayApp)(nil)

// NewTrayApp creates a new system tray application. shortcut is shown
// next to the activate entry when non-empty.
func NewTrayApp(callbacks TrayCallbacks, shortcut string) *TrayApp {
	return &TrayApp{
		callbacks:   callbacks,
		shortcut:    shortcut,
		currentIcon: IconStateOffline,
		menuModes:   make(map[voice.Mode]*systray.MenuItem),
	}
}

// Run starts the system tray event loop (blocking)
func (t *TrayApp) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit ends the event loop
func (t *TrayApp) Quit() {
	systray.Quit()
}

func (t *TrayApp) onReady() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetIcon(createTextIconBytes(t.currentIcon))
	systray.SetTitle("")
	systray.SetTooltip("InboxPilot Voice")

	t.menuBackend = systray.AddMenuItem("Servidor: verificando...", "Disponibilidade do servidor")
	t.menuBackend.Disable()
	t.menuStatus = systray.AddMenuItem("Status: "+t.status.State.Label(), "Estado atual")
	t.menuStatus.Disable()
	t.menuQueue = systray.AddMenuItem(queueTitle(t.status.Queue), "Ações pendentes")
	t.menuQueue.Disable()

	systray.AddSeparator()

	label := "Falar"
	if t.shortcut != "" {
		label = fmt.Sprintf("Falar (%s)", t.shortcut)
	}
	t.menuActivate = systray.AddMenuItem(label, "Iniciar ou encerrar a gravação")
	t.menuStop = systray.AddMenuItem("Parar", "Interromper o turno atual")

	systray.AddSeparator()

	modeMenu := systray.AddMenuItem("Modo", "Modo de escuta")
	for _, m := range trayModes {
		t.menuModes[m.mode] = modeMenu.AddSubMenuItemCheckbox(m.label, "", m.mode == t.status.Mode)
	}

	systray.AddSeparator()

	t.menuQuit = systray.AddMenuItem("Sair", "Encerrar o aplicativo")

	t.ready = true
	t.applyLocked()

	go t.handleClicks()
}

func (t *TrayApp) handleClicks() {
	modeClicks := make(chan voice.Mode)
	for mode, item := range t.menuModes {
		go func(mode voice.Mode, ch chan struct{}) {
			for range ch {
				modeClicks <- mode
			}
		}(mode, item.ClickedCh)
	}

	for {
		select {
		case <-t.menuActivate.ClickedCh:
			if t.callbacks.OnActivate != nil {
				t.callbacks.OnActivate()
			}
		case <-t.menuStop.ClickedCh:
			if t.callbacks.OnStop != nil {
				t.callbacks.OnStop()
			}
		case mode := <-modeClicks:
			if t.callbacks.OnMode != nil {
				t.callbacks.OnMode(mode)
			}
		case <-t.menuQuit.ClickedCh:
			if t.callbacks.OnQuit != nil {
				t.callbacks.OnQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (t *TrayApp) onExit() {}

// Render updates icon, status, queue and mode entries
func (t *TrayApp) Render(st voice.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = st
	t.applyLocked()
}

// Message shows the latest message as tooltip
func (t *TrayApp) Message(msg voice.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastMessage = msg.Text
	if t.ready {
		systray.SetTooltip(tooltip(msg.Text))
	}
}

// SetBackendStatus updates the backend availability
func (t *TrayApp) SetBackendStatus(online bool, details string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backendOnline = online
	t.backendDetail = details
	t.applyLocked()
}

func (t *TrayApp) applyLocked() {
	icon := iconFor(t.status, t.backendOnline)
	if !t.ready {
		t.currentIcon = icon
		return
	}
	if icon != t.currentIcon {
		t.currentIcon = icon
		systray.SetIcon(createTextIconBytes(icon))
	}

	t.menuStatus.SetTitle(fmt.Sprintf("Status: %s %s", t.status.State.Icon(), t.status.State.Label()))
	t.menuQueue.SetTitle(queueTitle(t.status.Queue))
	t.menuBackend.SetTitle(backendTitle(t.backendOnline, t.backendDetail))

	if t.status.State == voice.StateListening {
		t.menuActivate.SetTitle("Encerrar gravação")
	} else {
		label := "Falar"
		if t.shortcut != "" {
			label = fmt.Sprintf("Falar (%s)", t.shortcut)
		}
		t.menuActivate.SetTitle(label)
	}
	if t.status.State == voice.StateIdle {
		t.menuStop.Disable()
	} else {
		t.menuStop.Enable()
	}

	for mode, item := range t.menuModes {
		if mode == t.status.Mode {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func queueTitle(n int) string {
	switch n {
	case 0:
		return "Fila: vazia"
	case 1:
		return "Fila: 1 ação"
	}
	return fmt.Sprintf("Fila: %d ações", n)
}

func backendTitle(online bool, details string) string {
	if online {
		if details != "" {
			return "Servidor: " + details + " ✓"
		}
		return "Servidor: disponível ✓"
	}
	if details != "" {
		return "Servidor: " + details + " ✗"
	}
	return "Servidor: indisponível ✗"
}

// tooltip shortens long messages for the tray
func tooltip(text string) string {
	const max = 120
	r := []rune(text)
	if len(r) > max {
		return "InboxPilot Voice\n" + string(r[:max-1]) + "…"
	}
	return "InboxPilot Voice\n" + text
}
