// Package tui is the bubbletea front end for a console session. Every remote
// call runs as a tea.Cmd against the shared controller and reports back as a
// message; the model re-reads the controller snapshot when one arrives.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"storedesk/pkg/domain"
	"storedesk/services/console/internal/app"
)

const statusTTL = 4 * time.Second

type promptKind int

const (
	promptNone promptKind = iota
	promptCreateStore
	promptConfirmDelete
	promptUploadPath
)

type storesLoadedMsg struct{ err error }

type documentsLoadedMsg struct{ err error }

type actionDoneMsg struct {
	status string
	err    error
	// refresh reloads the store list after a successful action.
	refresh bool
}

type chatDoneMsg struct{ err error }

type themeChangedMsg struct {
	theme domain.Theme
	err   error
}

type clearStatusMsg struct{ seq int }

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	app    *app.App
	theme  domain.Theme
	styles styles
	snap   app.Snapshot

	width  int
	height int
	cursor int

	fields []textinput.Model
	focus  int

	prompt      promptKind
	promptLabel string
	promptIn    textinput.Model
	pendingID   string

	chatIn     textinput.Model
	transcript viewport.Model
	spinner    spinner.Model
	busy       bool
	pending    string

	status    string
	statusErr bool
	statusSeq int
}

// New builds the model for a started session.
func New(ctx context.Context, a *app.App, theme domain.Theme) Model {
	m := Model{
		ctx:        ctx,
		app:        a,
		theme:      theme,
		styles:     newStyles(theme),
		snap:       a.Snapshot(),
		transcript: viewport.New(80, 12),
	}

	var blank domain.Endpoints
	for range blank.Fields() {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = "https://host/webhook/... or /webhook/..."
		in.CharLimit = 2048
		in.Width = 60
		m.fields = append(m.fields, in)
	}
	m.loadSettingsForm()

	m.promptIn = textinput.New()
	m.promptIn.CharLimit = 1024

	m.chatIn = textinput.New()
	m.chatIn.Prompt = "> "
	m.chatIn.Placeholder = "Ask about the documents in this store"
	m.chatIn.CharLimit = 4000

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.spinner.Style = m.styles.selected

	m.applyFocus()
	m.renderTranscript()
	return m
}

// Run starts the program on the alternate screen.
func Run(ctx context.Context, a *app.App, theme domain.Theme) error {
	p := tea.NewProgram(New(ctx, a, theme), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textinput.Blink}
	if m.snap.View == domain.ViewStores {
		cmds = append(cmds, m.refreshStoresCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.transcript.Width = max(msg.Width-4, 20)
		m.transcript.Height = max(msg.Height-12, 4)
		m.renderTranscript()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case storesLoadedMsg:
		m.sync()
		// Listing failures render as the banner; anything else is a status.
		if msg.err != nil && m.snap.StoresError == nil {
			cmd := m.setStatus("", msg.err)
			return m, cmd
		}
		return m, nil
	case documentsLoadedMsg:
		m.busy = false
		m.sync()
		if msg.err != nil && m.snap.DocumentsError == nil {
			cmd := m.setStatus("", msg.err)
			return m, cmd
		}
		return m, nil
	case actionDoneMsg:
		m.busy = false
		m.sync()
		cmd := m.setStatus(msg.status, msg.err)
		if msg.refresh && msg.err == nil {
			return m, tea.Batch(cmd, m.refreshStoresCmd())
		}
		return m, cmd
	case chatDoneMsg:
		m.busy = false
		m.pending = ""
		m.sync()
		if msg.err != nil {
			cmd := m.setStatus("", msg.err)
			return m, cmd
		}
		return m, nil
	case themeChangedMsg:
		if msg.err != nil {
			cmd := m.setStatus("", msg.err)
			return m, cmd
		}
		m.theme = msg.theme
		m.styles = newStyles(msg.theme)
		m.spinner.Style = m.styles.selected
		m.renderTranscript()
		cmd := m.setStatus("theme: "+string(msg.theme), nil)
		return m, cmd
	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		switch m.snap.View {
		case domain.ViewSettings:
			return m.updateSettings(msg)
		case domain.ViewStores:
			return m.updateStores(msg)
		case domain.ViewDocuments:
			return m.updateDocuments(msg)
		case domain.ViewChat:
			return m.updateChat(msg)
		}
		return m, nil
	}
	cmd := m.updateFocusedInput(msg)
	return m, cmd
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.focusField(m.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.focusField(m.focus - 1)
		return m, nil
	case "enter":
		m.busy = true
		return m, m.saveSettingsCmd(m.formEndpoints())
	case "ctrl+r":
		m.busy = true
		return m, m.resetSettingsCmd()
	case "esc":
		cmd := m.navigate(domain.ViewStores)
		return m, cmd
	}
	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateStores(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	store, hasStore := m.currentStore()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1, len(m.snap.Stores))
	case "down", "j":
		m.moveCursor(1, len(m.snap.Stores))
	case "r":
		return m, m.refreshStoresCmd()
	case "enter":
		if hasStore {
			m.busy = true
			return m, m.selectStoreCmd(store.ID)
		}
	case "n":
		m.openPrompt(promptCreateStore, "", "New store name")
	case "d":
		if hasStore {
			m.openPrompt(promptConfirmDelete, store.ID, fmt.Sprintf("Type %q to delete this store", store.Name))
		}
	case "c":
		if hasStore {
			if err := m.app.SetChatStore(store.ID); err != nil {
				cmd := m.setStatus("", err)
				return m, cmd
			}
		}
		cmd := m.navigate(domain.ViewChat)
		return m, cmd
	case "s", ",":
		cmd := m.navigate(domain.ViewSettings)
		return m, cmd
	case "t":
		return m, m.toggleThemeCmd()
	}
	return m, nil
}

func (m Model) updateDocuments(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1, len(m.snap.Documents))
	case "down", "j":
		m.moveCursor(1, len(m.snap.Documents))
	case "esc", "backspace", "b":
		m.app.Back()
		m.sync()
		return m, nil
	case "r":
		return m, m.refreshDocumentsCmd()
	case "u":
		m.openPrompt(promptUploadPath, "", "Path of the file to upload")
	case "d":
		if m.cursor < len(m.snap.Documents) {
			doc := m.snap.Documents[m.cursor]
			m.busy = true
			return m, m.deleteDocumentCmd(doc.ID, doc.Name)
		}
	case "t":
		return m, m.toggleThemeCmd()
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		cmd := m.navigate(domain.ViewStores)
		return m, cmd
	case "tab":
		cmd := m.cycleChatStore()
		return m, cmd
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	case "enter":
		question := strings.TrimSpace(m.chatIn.Value())
		if question == "" || m.busy {
			return m, nil
		}
		m.chatIn.SetValue("")
		m.busy = true
		m.pending = question
		m.renderTranscript()
		return m, m.sendChatCmd(question)
	}
	var cmd tea.Cmd
	m.chatIn, cmd = m.chatIn.Update(msg)
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		value := m.promptIn.Value()
		kind, id := m.prompt, m.pendingID
		m.closePrompt()
		m.busy = true
		switch kind {
		case promptCreateStore:
			return m, m.createStoreCmd(value)
		case promptConfirmDelete:
			return m, m.deleteStoreCmd(id, value)
		case promptUploadPath:
			return m, m.uploadCmd(value)
		}
		m.busy = false
		return m, nil
	}
	var cmd tea.Cmd
	m.promptIn, cmd = m.promptIn.Update(msg)
	return m, cmd
}

// sync re-reads the controller state after a command finished.
func (m *Model) sync() {
	prev := m.snap.View
	m.snap = m.app.Snapshot()
	if m.snap.View != prev {
		m.cursor = 0
		if m.snap.View == domain.ViewSettings {
			m.loadSettingsForm()
		}
	}
	m.clampCursor()
	m.applyFocus()
	m.renderTranscript()
}

func (m *Model) navigate(target domain.View) tea.Cmd {
	if err := m.app.Navigate(target); err != nil {
		return m.setStatus("", err)
	}
	m.sync()
	if target == domain.ViewStores || (target == domain.ViewChat && len(m.snap.Stores) == 0) {
		return m.refreshStoresCmd()
	}
	return nil
}

func (m *Model) setStatus(text string, err error) tea.Cmd {
	m.statusErr = err != nil
	if err != nil {
		text = err.Error()
	}
	if text == "" {
		return nil
	}
	m.status = text
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

func (m *Model) loadSettingsForm() {
	endpoints := m.snap.Endpoints
	for i, f := range endpoints.Fields() {
		m.fields[i].SetValue(*f.Value)
	}
	m.focus = 0
}

func (m Model) formEndpoints() domain.Endpoints {
	var e domain.Endpoints
	for i, f := range e.Fields() {
		*f.Value = strings.TrimSpace(m.fields[i].Value())
	}
	return e
}

func (m *Model) focusField(i int) {
	n := len(m.fields)
	m.focus = ((i % n) + n) % n
	m.applyFocus()
}

// applyFocus keeps exactly one text input focused for the current view.
func (m *Model) applyFocus() {
	for i := range m.fields {
		if m.prompt == promptNone && m.snap.View == domain.ViewSettings && i == m.focus {
			m.fields[i].Focus()
		} else {
			m.fields[i].Blur()
		}
	}
	if m.prompt == promptNone && m.snap.View == domain.ViewChat {
		m.chatIn.Focus()
	} else {
		m.chatIn.Blur()
	}
	if m.prompt != promptNone {
		m.promptIn.Focus()
	} else {
		m.promptIn.Blur()
	}
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.prompt != promptNone:
		m.promptIn, cmd = m.promptIn.Update(msg)
	case m.snap.View == domain.ViewSettings:
		m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	case m.snap.View == domain.ViewChat:
		m.chatIn, cmd = m.chatIn.Update(msg)
	}
	return cmd
}

func (m *Model) openPrompt(kind promptKind, id, label string) {
	m.prompt = kind
	m.pendingID = id
	m.promptLabel = label
	m.promptIn.SetValue("")
	m.applyFocus()
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.pendingID = ""
	m.promptLabel = ""
	m.promptIn.SetValue("")
	m.applyFocus()
}

func (m *Model) moveCursor(delta, n int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if n > 0 && m.cursor >= n {
		m.cursor = n - 1
	}
}

func (m *Model) clampCursor() {
	n := len(m.snap.Stores)
	if m.snap.View == domain.ViewDocuments {
		n = len(m.snap.Documents)
	}
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m Model) currentStore() (domain.Store, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Stores) {
		return domain.Store{}, false
	}
	return m.snap.Stores[m.cursor].Store, true
}

// cycleChatStore scopes the chat to the next listed store.
func (m *Model) cycleChatStore() tea.Cmd {
	stores := m.snap.Stores
	if len(stores) == 0 {
		return m.setStatus("no stores to chat with", nil)
	}
	next := 0
	if m.snap.ChatStore != nil {
		for i, s := range stores {
			if s.Store.ID == m.snap.ChatStore.ID {
				next = (i + 1) % len(stores)
				break
			}
		}
	}
	if err := m.app.SetChatStore(stores[next].Store.ID); err != nil {
		return m.setStatus("", err)
	}
	m.sync()
	return nil
}

func (m Model) refreshStoresCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return storesLoadedMsg{err: a.RefreshStores(ctx)}
	}
}

func (m Model) refreshDocumentsCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return documentsLoadedMsg{err: a.RefreshDocuments(ctx)}
	}
}

func (m Model) selectStoreCmd(storeID string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return documentsLoadedMsg{err: a.SelectStore(ctx, storeID)}
	}
}

func (m Model) saveSettingsCmd(endpoints domain.Endpoints) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.SaveSettings(ctx, endpoints); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "settings saved", refresh: true}
	}
}

func (m Model) resetSettingsCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.ResetSettings(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "settings reset"}
	}
}

func (m Model) createStoreCmd(name string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.CreateStore(ctx, name); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "created " + strings.TrimSpace(name)}
	}
}

func (m Model) deleteStoreCmd(storeID, confirmName string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.DeleteStore(ctx, storeID, confirmName); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "deleted " + confirmName}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		path = strings.TrimSpace(path)
		f, err := os.Open(path)
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()
		name := filepath.Base(path)
		if err := a.UploadDocument(ctx, name, f); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "uploaded " + name}
	}
}

func (m Model) deleteDocumentCmd(documentID, name string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		if err := a.DeleteDocument(ctx, documentID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "deleted " + name}
	}
}

func (m Model) sendChatCmd(question string) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		_, err := a.SendChat(ctx, question)
		return chatDoneMsg{err: err}
	}
}

func (m Model) toggleThemeCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	next := domain.ThemeDark
	if m.theme == domain.ThemeDark {
		next = domain.ThemeLight
	}
	return func() tea.Msg {
		return themeChangedMsg{theme: next, err: a.SetTheme(ctx, next)}
	}
}
