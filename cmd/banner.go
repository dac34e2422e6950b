package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/spotremote/internal/shared"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#1DB954")).Padding(0, 1)
)

// banner renders the startup summary printed by serve.
func banner(url string, config *shared.Config) string {
	store := "memory"
	if config.Database.Path != "" {
		store = config.Database.Path
	}

	lines := []string{
		titleStyle.Render("spotremote"),
		labelStyle.Render("open:     ") + url,
		labelStyle.Render("callback: ") + config.Credentials.Spotify.RedirectURI,
		labelStyle.Render("sessions: ") + store,
	}
	if config.Server.TrustProxy {
		lines = append(lines, warnStyle.Render("trusting X-Forwarded-* headers"))
	}

	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}
