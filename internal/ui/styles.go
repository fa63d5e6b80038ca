// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     ui
// Description: Styles for the console client
// Author:      Mike Stoffels
// Created:     2025-12-14
// License:     MIT
// ============================================================================

package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/inboxpilot/voicepilot/internal/voice"
)

// Color Palette
var (
	ColorPrimary   = lipgloss.Color("#8B5CF6") // Violet
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess   = lipgloss.Color("#10B981") // Emerald
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorListening = lipgloss.Color("#FF3B30") // Recording red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray

	ColorText      = lipgloss.Color("#F8FAFC") // Slate 50
	ColorTextMuted = lipgloss.Color("#94A3B8") // Slate 400
)

var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	UserLineStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	InfoLineStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	WarnLineStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorLineStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	InputBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary).
				Padding(0, 1)
)

// stateStyle colors the state badge in the status bar
func stateStyle(s voice.State) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch s {
	case voice.StateListening:
		return base.Foreground(ColorText).Background(ColorListening)
	case voice.StateProcessing:
		return base.Foreground(ColorText).Background(ColorPrimary)
	case voice.StateSpeaking:
		return base.Foreground(ColorText).Background(ColorSuccess)
	case voice.StateError:
		return base.Foreground(ColorText).Background(ColorWarning)
	}
	return base.Foreground(ColorTextMuted)
}

func messageStyle(level voice.MessageLevel) lipgloss.Style {
	switch level {
	case voice.LevelWarn:
		return WarnLineStyle
	case voice.LevelError:
		return ErrorLineStyle
	}
	return InfoLineStyle
}
