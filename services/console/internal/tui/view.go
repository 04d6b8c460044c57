package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"storedesk/pkg/domain"
	"storedesk/services/console/internal/app"
)

var tabs = []struct {
	view  domain.View
	label string
}{
	{domain.ViewSettings, "Settings"},
	{domain.ViewStores, "Stores"},
	{domain.ViewDocuments, "Documents"},
	{domain.ViewChat, "Chat"},
}

var helpText = map[domain.View]string{
	domain.ViewSettings:  "tab/↑↓ move • enter save • ctrl+r reset • esc stores • ctrl+c quit",
	domain.ViewStores:    "↑↓ move • enter open • n new • d delete • c chat • r refresh • s settings • t theme • q quit",
	domain.ViewDocuments: "↑↓ move • u upload • d delete • r refresh • esc back • t theme • q quit",
	domain.ViewChat:      "enter send • tab switch store • pgup/pgdown scroll • esc stores • ctrl+c quit",
}

func (m Model) View() string {
	var body string
	switch m.snap.View {
	case domain.ViewSettings:
		body = m.viewSettings()
	case domain.ViewStores:
		body = m.viewStores()
	case domain.ViewDocuments:
		body = m.viewDocuments()
	case domain.ViewChat:
		body = m.viewChat()
	}

	parts := []string{m.viewHeader(), "", body}
	if m.prompt != promptNone {
		parts = append(parts, "", m.styles.box.Render(m.promptLabel+"\n"+m.promptIn.View()))
	}
	parts = append(parts, "", m.viewStatus(), m.styles.muted.Render(helpText[m.snap.View]))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewHeader() string {
	items := []string{m.styles.title.Render("storedesk")}
	for _, t := range tabs {
		if t.view == m.snap.View {
			items = append(items, m.styles.activeTab.Render(t.label))
		} else {
			items = append(items, m.styles.tab.Render(t.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

func (m Model) viewStatus() string {
	switch {
	case m.busy:
		return m.spinner.View() + " working..."
	case m.status == "":
		return ""
	case m.statusErr:
		return m.styles.statusErr.Render(m.status)
	default:
		return m.styles.status.Render(m.status)
	}
}

func (m Model) viewSettings() string {
	var b strings.Builder
	b.WriteString(m.styles.muted.Render("Loaded from: "+string(m.snap.SettingsSource)) + "\n\n")
	var blank domain.Endpoints
	for i, f := range blank.Fields() {
		marker := "  "
		if i == m.focus {
			marker = m.styles.selected.Render("> ")
		}
		b.WriteString(marker + m.styles.label.Render(f.Label) + m.fields[i].View() + "\n")
	}
	if !m.snap.Endpoints.StoresConfigured() {
		b.WriteString("\n" + m.styles.muted.Render("Set the list stores endpoint to browse stores and chat."))
	}
	return b.String()
}

func (m Model) viewStores() string {
	var b strings.Builder
	if m.snap.StoresError != nil {
		b.WriteString(m.viewBanner("Could not load stores", m.snap.StoresError) + "\n")
	}
	if len(m.snap.Stores) == 0 {
		b.WriteString(m.styles.muted.Render("No stores yet. Press n to create one."))
		return b.String()
	}
	for i, s := range m.snap.Stores {
		line := fmt.Sprintf("%s  %s  %s", s.Store.Name, m.styles.muted.Render(s.Store.ID), m.countBadge(s))
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + m.styles.item.Render(line) + "\n")
		}
	}
	return b.String()
}

func (m Model) countBadge(s app.StoreSummary) string {
	if s.DocumentCount == nil {
		if s.CountError != "" {
			return m.styles.statusErr.Render("count unavailable")
		}
		return m.styles.muted.Render("...")
	}
	if *s.DocumentCount == 1 {
		return "1 document"
	}
	return fmt.Sprintf("%d documents", *s.DocumentCount)
}

func (m Model) viewDocuments() string {
	var b strings.Builder
	if m.snap.SelectedStore != nil {
		b.WriteString(m.styles.selected.Render(m.snap.SelectedStore.Name) + " " + m.styles.muted.Render(m.snap.SelectedStore.ID) + "\n\n")
	}
	if m.snap.DocumentsError != nil {
		b.WriteString(m.viewBanner("Could not load documents", m.snap.DocumentsError) + "\n")
	}
	if len(m.snap.Documents) == 0 {
		b.WriteString(m.styles.muted.Render("No documents. Press u to upload one."))
		return b.String()
	}
	for i, d := range m.snap.Documents {
		line := d.Name
		var meta []string
		if d.MimeType != "" {
			meta = append(meta, d.MimeType)
		}
		if d.Size != nil {
			meta = append(meta, humanSize(*d.Size))
		}
		if len(meta) > 0 {
			line += "  " + m.styles.muted.Render(strings.Join(meta, ", "))
		}
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func (m Model) viewChat() string {
	header := m.styles.muted.Render("No store selected. Press tab to pick one.")
	if m.snap.ChatStore != nil {
		header = "Chatting with " + m.styles.selected.Render(m.snap.ChatStore.Name)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.styles.box.Render(m.transcript.View()),
		m.chatIn.View(),
	)
}

func (m Model) viewBanner(title string, ev *app.ErrorView) string {
	return m.styles.banner.Render(fmt.Sprintf("%s (%s)\n%s", title, ev.Kind, ev.Message))
}

// renderTranscript refreshes the chat viewport and keeps it pinned to the end.
func (m *Model) renderTranscript() {
	var lines []string
	for _, msg := range m.snap.Transcript {
		lines = append(lines, m.renderMessage(msg.Role, msg.Content))
	}
	if m.pending != "" {
		lines = append(lines, m.renderMessage(domain.RoleUser, m.pending))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.muted.Render("Ask a question to start."))
	}
	m.transcript.SetContent(lipgloss.NewStyle().Width(m.transcript.Width).Render(strings.Join(lines, "\n\n")))
	m.transcript.GotoBottom()
}

func (m Model) renderMessage(role domain.Role, content string) string {
	if role == domain.RoleUser {
		return m.styles.user.Render("you") + "\n" + content
	}
	return m.styles.assistant.Render("assistant") + "\n" + content
}

func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/1024/1024)
	}
}
