package tui

import (
	"github.com/charmbracelet/lipgloss"
	"storedesk/pkg/domain"
)

type palette struct {
	accent lipgloss.Color
	text   lipgloss.Color
	muted  lipgloss.Color
	danger lipgloss.Color
	ok     lipgloss.Color
	border lipgloss.Color
}

var palettes = map[domain.Theme]palette{
	domain.ThemeLight: {
		accent: lipgloss.Color("#5A3FD6"),
		text:   lipgloss.Color("#1F1F1F"),
		muted:  lipgloss.Color("#6B6B6B"),
		danger: lipgloss.Color("#B3261E"),
		ok:     lipgloss.Color("#2E7D32"),
		border: lipgloss.Color("#B8B0E8"),
	},
	domain.ThemeDark: {
		accent: lipgloss.Color("#7D56F4"),
		text:   lipgloss.Color("#FAFAFA"),
		muted:  lipgloss.Color("#8A8A8A"),
		danger: lipgloss.Color("#F25D94"),
		ok:     lipgloss.Color("#04B575"),
		border: lipgloss.Color("#874BFD"),
	},
}

type styles struct {
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	item      lipgloss.Style
	selected  lipgloss.Style
	muted     lipgloss.Style
	label     lipgloss.Style
	banner    lipgloss.Style
	status    lipgloss.Style
	statusErr lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	box       lipgloss.Style
}

func newStyles(theme domain.Theme) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[domain.ThemeLight]
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(p.accent).
			Padding(0, 1),
		tab:       lipgloss.NewStyle().Foreground(p.muted).Padding(0, 1),
		activeTab: lipgloss.NewStyle().Foreground(p.accent).Bold(true).Underline(true).Padding(0, 1),
		item:      lipgloss.NewStyle().Foreground(p.text),
		selected:  lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(p.muted),
		label:     lipgloss.NewStyle().Foreground(p.text).Width(18),
		banner: lipgloss.NewStyle().
			Foreground(p.danger).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(p.danger).
			Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(p.ok),
		statusErr: lipgloss.NewStyle().Foreground(p.danger).Bold(true),
		user:      lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(p.ok).Bold(true),
		box: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
	}
}
