package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"storedesk/pkg/domain"
	"storedesk/pkg/settings"
	"storedesk/pkg/webhook"
)

// Webhook is the remote surface the controller drives.
type Webhook interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	CreateStore(ctx context.Context, name string) error
	DeleteStore(ctx context.Context, storeID string) error
	ListDocuments(ctx context.Context, storeID string) ([]domain.Document, error)
	UploadDocument(ctx context.Context, storeID, fileName string, r io.Reader) error
	DeleteDocument(ctx context.Context, documentID string) error
	Chat(ctx context.Context, storeID, question string, history []domain.ChatTurn) (string, error)
}

// Config holds the collaborators of the controller.
type Config struct {
	Settings *settings.Service
	// ClientOptions are applied every time the webhook client is rebuilt
	// after an endpoint change.
	ClientOptions []webhook.Option
	// NewWebhook overrides client construction.
	NewWebhook func(domain.Endpoints) Webhook
}

// App owns one front-end session: the current view, the resolved endpoints,
// the loaded stores and documents, and the chat transcript.
type App struct {
	settings  *settings.Service
	newClient func(domain.Endpoints) Webhook

	mu         sync.Mutex
	client     Webhook
	endpoints  domain.Endpoints
	source     settings.Source
	view       domain.View
	stores     []domain.Store
	counts     map[string]countResult
	storesErr  error
	selected   string
	documents  []domain.Document
	docsErr    error
	chatStore  string
	transcript []domain.ChatMessage
}

type countResult struct {
	count int
	err   error
}

// New resolves the persisted settings and picks the initial view.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings service required")
	}
	newClient := cfg.NewWebhook
	if newClient == nil {
		opts := cfg.ClientOptions
		newClient = func(e domain.Endpoints) Webhook {
			return webhook.NewClient(e, opts...)
		}
	}
	a := &App{
		settings:  cfg.Settings,
		newClient: newClient,
		counts:    make(map[string]countResult),
	}
	a.applyResolution(cfg.Settings.Resolve(ctx))
	if a.endpoints.StoresConfigured() {
		a.view = domain.ViewStores
	} else {
		a.view = domain.ViewSettings
	}
	slog.Info("session started", "view", a.view, "settings_source", a.source)
	return a, nil
}

// applyResolution swaps endpoints and rebuilds the client. Caller holds mu or
// owns a exclusively.
func (a *App) applyResolution(res settings.Resolution) {
	a.endpoints = res.Endpoints
	a.source = res.Source
	a.client = a.newClient(res.Endpoints)
}

// clearStoresLocked drops everything loaded through the previous endpoints.
func (a *App) clearStoresLocked() {
	a.stores = nil
	a.counts = make(map[string]countResult)
	a.storesErr = nil
	a.selected = ""
	a.documents = nil
	a.docsErr = nil
}

func (a *App) Endpoints() domain.Endpoints {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endpoints
}

func (a *App) View() domain.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// SaveSettings persists the endpoints and always lands on the store list.
func (a *App) SaveSettings(ctx context.Context, endpoints domain.Endpoints) error {
	if err := a.settings.Save(ctx, endpoints); err != nil {
		return err
	}
	res := a.settings.Resolve(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyResolution(res)
	a.clearStoresLocked()
	a.view = domain.ViewStores
	return nil
}

// ResetSettings drops the persisted endpoints and returns to the settings view.
func (a *App) ResetSettings(ctx context.Context) error {
	if err := a.settings.Reset(ctx); err != nil {
		return err
	}
	res := a.settings.Resolve(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyResolution(res)
	a.clearStoresLocked()
	a.view = domain.ViewSettings
	return nil
}

// Navigate moves to target. Stores and Chat need the list-stores endpoint;
// Documents is only reachable through SelectStore.
func (a *App) Navigate(target domain.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch target {
	case domain.ViewSettings:
	case domain.ViewStores, domain.ViewChat:
		if !a.endpoints.StoresConfigured() {
			return fmt.Errorf("%w: %s needs the list-stores endpoint", ErrNavigationBlocked, target)
		}
	case domain.ViewDocuments:
		return fmt.Errorf("%w: select a store to open its documents", ErrNavigationBlocked)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownView, target)
	}
	if a.view == domain.ViewDocuments && target != domain.ViewDocuments {
		a.selected = ""
		a.documents = nil
		a.docsErr = nil
	}
	a.view = target
	return nil
}

// SelectStore opens the documents view for a listed store and loads it.
func (a *App) SelectStore(ctx context.Context, storeID string) error {
	a.mu.Lock()
	if _, ok := a.findStoreLocked(storeID); !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
	}
	a.selected = storeID
	a.documents = nil
	a.docsErr = nil
	a.view = domain.ViewDocuments
	a.mu.Unlock()
	return a.refreshDocuments(ctx, storeID)
}

// Back leaves the documents view and clears the selection.
func (a *App) Back() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view != domain.ViewDocuments {
		return
	}
	a.selected = ""
	a.documents = nil
	a.docsErr = nil
	a.view = domain.ViewStores
}

// RefreshStores reloads the store list, then fetches every store's document
// count in parallel. Count failures are recorded per store.
func (a *App) RefreshStores(ctx context.Context) error {
	client := a.currentClient()
	stores, err := client.ListStores(ctx)
	if err != nil {
		a.mu.Lock()
		a.storesErr = err
		a.mu.Unlock()
		slog.Warn("list stores failed", "kind", webhook.Kind(err), "err", err)
		return err
	}

	results := make([]countResult, len(stores))
	var g errgroup.Group
	for i, store := range stores {
		g.Go(func() error {
			docs, err := client.ListDocuments(ctx, store.ID)
			results[i] = countResult{count: len(docs), err: err}
			return nil
		})
	}
	_ = g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stores = stores
	a.storesErr = nil
	a.counts = make(map[string]countResult, len(stores))
	for i, store := range stores {
		a.counts[store.ID] = results[i]
	}
	return nil
}

// CreateStore creates a store and reloads the list so server-assigned ids show up.
func (a *App) CreateStore(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if err := a.currentClient().CreateStore(ctx, name); err != nil {
		return err
	}
	slog.Info("store created", "name", name)
	if err := a.RefreshStores(ctx); err != nil {
		return fmt.Errorf("store created, reload failed: %w", err)
	}
	return nil
}

// DeleteStore deletes an empty store after the caller retyped its exact name.
func (a *App) DeleteStore(ctx context.Context, storeID, confirmName string) error {
	a.mu.Lock()
	store, ok := a.findStoreLocked(storeID)
	client := a.client
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
	}
	if confirmName != store.Name {
		return ErrConfirmationMismatch
	}

	docs, err := client.ListDocuments(ctx, storeID)
	if err != nil {
		return &CountError{StoreID: storeID, Err: err}
	}
	a.mu.Lock()
	a.counts[storeID] = countResult{count: len(docs)}
	a.mu.Unlock()
	if len(docs) > 0 {
		return fmt.Errorf("%w: %s holds %d documents", ErrStoreNotEmpty, store.Name, len(docs))
	}

	if err := client.DeleteStore(ctx, storeID); err != nil {
		return err
	}
	slog.Info("store deleted", "store_id", storeID)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stores = slices.DeleteFunc(slices.Clone(a.stores), func(s domain.Store) bool { return s.ID == storeID })
	delete(a.counts, storeID)
	if a.selected == storeID {
		a.selected = ""
		a.documents = nil
		a.docsErr = nil
		if a.view == domain.ViewDocuments {
			a.view = domain.ViewStores
		}
	}
	if a.chatStore == storeID {
		a.chatStore = ""
		a.transcript = nil
	}
	return nil
}

// RefreshDocuments reloads the documents of the selected store.
func (a *App) RefreshDocuments(ctx context.Context) error {
	a.mu.Lock()
	storeID := a.selected
	a.mu.Unlock()
	if storeID == "" {
		return ErrNoStoreSelected
	}
	return a.refreshDocuments(ctx, storeID)
}

// refreshDocuments drops the result when storeID is no longer selected.
func (a *App) refreshDocuments(ctx context.Context, storeID string) error {
	docs, err := a.currentClient().ListDocuments(ctx, storeID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selected != storeID {
		slog.Debug("discarding documents of deselected store", "store_id", storeID)
		return nil
	}
	if err != nil {
		a.docsErr = err
		return err
	}
	a.documents = docs
	a.docsErr = nil
	a.counts[storeID] = countResult{count: len(docs)}
	return nil
}

// UploadDocument sends a file to the selected store, then reloads its documents.
func (a *App) UploadDocument(ctx context.Context, fileName string, r io.Reader) error {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return ErrNameRequired
	}
	a.mu.Lock()
	storeID := a.selected
	client := a.client
	a.mu.Unlock()
	if storeID == "" {
		return ErrNoStoreSelected
	}
	if err := client.UploadDocument(ctx, storeID, fileName, r); err != nil {
		return err
	}
	slog.Info("document uploaded", "store_id", storeID, "file", fileName)
	return a.refreshDocuments(ctx, storeID)
}

// DeleteDocument removes the document locally at once and restores the
// previous list if the remote delete fails.
func (a *App) DeleteDocument(ctx context.Context, documentID string) error {
	a.mu.Lock()
	storeID := a.selected
	if storeID == "" {
		a.mu.Unlock()
		return ErrNoStoreSelected
	}
	removal := newSliceRemoval(&a.documents, func(d domain.Document) bool { return d.ID == documentID })
	if !removal.Found() {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	var action Reversible = removal
	action.Apply()
	client := a.client
	a.mu.Unlock()

	err := client.DeleteDocument(ctx, documentID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if a.selected == storeID {
			action.Undo()
		}
		slog.Warn("delete document failed, restored list", "document_id", documentID, "err", err)
		return err
	}
	if a.selected == storeID {
		a.counts[storeID] = countResult{count: len(a.documents)}
	}
	return nil
}

// SetChatStore picks the store the chat is scoped to. A different store
// starts a fresh transcript.
func (a *App) SetChatStore(storeID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if storeID != "" {
		if _, ok := a.findStoreLocked(storeID); !ok {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
		}
	}
	if storeID != a.chatStore {
		a.chatStore = storeID
		a.transcript = nil
	}
	return nil
}

// SendChat appends the question, asks the chat webhook with the prior
// transcript as history and appends the answer. A failure is appended as an
// assistant message and returned.
func (a *App) SendChat(ctx context.Context, question string) (domain.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ChatMessage{}, ErrQuestionRequired
	}

	a.mu.Lock()
	storeID := a.chatStore
	if storeID == "" {
		a.mu.Unlock()
		return domain.ChatMessage{}, ErrNoChatStore
	}
	history := make([]domain.ChatTurn, 0, len(a.transcript))
	for _, m := range a.transcript {
		history = append(history, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	a.transcript = append(a.transcript, newMessage(domain.RoleUser, question))
	client := a.client
	a.mu.Unlock()

	answer, err := client.Chat(ctx, storeID, question, history)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chatStore != storeID {
		return domain.ChatMessage{}, ErrChatStoreChanged
	}
	if err != nil {
		reply := newMessage(domain.RoleAssistant, "Error: "+err.Error())
		a.transcript = append(a.transcript, reply)
		return reply, err
	}
	reply := newMessage(domain.RoleAssistant, answer)
	a.transcript = append(a.transcript, reply)
	return reply, nil
}

// Theme returns the stored theme or fallback.
func (a *App) Theme(ctx context.Context, fallback domain.Theme) domain.Theme {
	return a.settings.Theme(ctx, fallback)
}

func (a *App) SetTheme(ctx context.Context, theme domain.Theme) error {
	return a.settings.SetTheme(ctx, theme)
}

func (a *App) currentClient() Webhook {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

func (a *App) findStoreLocked(storeID string) (domain.Store, bool) {
	for _, s := range a.stores {
		if s.ID == storeID {
			return s, true
		}
	}
	return domain.Store{}, false
}

func newMessage(role domain.Role, content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
