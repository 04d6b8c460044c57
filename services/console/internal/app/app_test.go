package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storedesk/pkg/domain"
	"storedesk/pkg/settings"
	"storedesk/pkg/webhook"
)

// fakeBackend is an in-memory webhook backend keyed by store resource name.
type fakeBackend struct {
	mu        sync.Mutex
	stores    []string
	names     map[string]string
	docs      map[string][]string
	calls     map[string]int
	failPaths map[string]int
	chatSeen  []chatPayload
	nextID    int
}

type chatPayload struct {
	StoreName   string            `json:"storeName"`
	Question    string            `json:"question"`
	ChatHistory []domain.ChatTurn `json:"chatHistory"`
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		names:     make(map[string]string),
		docs:      make(map[string][]string),
		calls:     make(map[string]int),
		failPaths: make(map[string]int),
	}
}

func (f *fakeBackend) addStore(id, name string, docs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, id)
	f.names[id] = name
	f.docs[id] = append([]string(nil), docs...)
}

func (f *fakeBackend) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPaths[path] = status
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++
	if status, ok := f.failPaths[r.URL.Path]; ok {
		http.Error(w, "boom", status)
		return
	}

	var req map[string]any
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if r.URL.Path == "/chat" {
			var p chatPayload
			_ = json.Unmarshal(body, &p)
			f.chatSeen = append(f.chatSeen, p)
		}
	}

	switch r.URL.Path {
	case "/stores":
		items := make([]map[string]string, 0, len(f.stores))
		for _, id := range f.stores {
			items = append(items, map[string]string{"name": id, "displayName": f.names[id]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"fileSearchStores": items})
	case "/create":
		f.nextID++
		id := fmt.Sprintf("fileSearchStores/new-%d", f.nextID)
		f.stores = append(f.stores, id)
		f.names[id] = req["nameFileStore"].(string)
	case "/delete-store":
		id := req["name"].(string)
		for i, s := range f.stores {
			if s == id {
				f.stores = append(f.stores[:i], f.stores[i+1:]...)
				break
			}
		}
	case "/docs":
		id := req["name"].(string)
		items := make([]map[string]string, 0)
		for _, d := range f.docs[id] {
			items = append(items, map[string]string{"name": id + "/documents/" + d, "displayName": d})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": items})
	case "/upload":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := r.FormValue("name")
		f.docs[id] = append(f.docs[id], r.FormValue("fileName"))
	case "/delete-doc":
		docID := req["name"].(string)
		for store, docs := range f.docs {
			for i, d := range docs {
				if store+"/documents/"+d == docID {
					f.docs[store] = append(docs[:i:i], docs[i+1:]...)
				}
			}
		}
	case "/chat":
		_, _ = io.WriteString(w, `[{"output":"answer for `+req["question"].(string)+`"}]`)
	default:
		http.NotFound(w, r)
	}
}

func endpointsFor(baseURL string) domain.Endpoints {
	return domain.Endpoints{
		ListStores:     baseURL + "/stores",
		CreateStore:    baseURL + "/create",
		DeleteStore:    baseURL + "/delete-store",
		ListDocuments:  baseURL + "/docs",
		UploadDocument: baseURL + "/upload",
		DeleteDocument: baseURL + "/delete-doc",
		Chat:           baseURL + "/chat",
	}
}

func newTestApp(t *testing.T, backend *fakeBackend) *App {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	svc := settings.NewService(settings.NewMemoryBackend(), endpointsFor(srv.URL))
	a, err := New(context.Background(), Config{
		Settings:      svc,
		ClientOptions: []webhook.Option{webhook.WithHTTPClient(srv.Client())},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestInitialView(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, Config{Settings: settings.NewService(settings.NewMemoryBackend(), domain.Endpoints{})})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if got := a.View(); got != domain.ViewSettings {
		t.Fatalf("view = %q, want settings", got)
	}

	b := newTestApp(t, newFakeBackend())
	if got := b.View(); got != domain.ViewStores {
		t.Fatalf("view = %q, want stores", got)
	}
}

func TestNavigationGating(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, Config{Settings: settings.NewService(settings.NewMemoryBackend(), domain.Endpoints{Chat: "https://x.example.com/chat"})})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	for _, target := range []domain.View{domain.ViewStores, domain.ViewChat, domain.ViewDocuments} {
		if err := a.Navigate(target); !errors.Is(err, ErrNavigationBlocked) {
			t.Fatalf("navigate %s: err = %v, want ErrNavigationBlocked", target, err)
		}
	}
	if err := a.Navigate("elsewhere"); !errors.Is(err, ErrUnknownView) {
		t.Fatalf("err = %v, want ErrUnknownView", err)
	}

	if err := a.SaveSettings(ctx, domain.Endpoints{ListStores: "https://x.example.com/list"}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if got := a.View(); got != domain.ViewStores {
		t.Fatalf("view after save = %q, want stores", got)
	}
	if err := a.Navigate(domain.ViewChat); err != nil {
		t.Fatalf("navigate chat: %v", err)
	}
	if err := a.Navigate(domain.ViewSettings); err != nil {
		t.Fatalf("navigate settings: %v", err)
	}

	if err := a.ResetSettings(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := a.Endpoints(); got.ListStores != "" || got.Chat != "https://x.example.com/chat" {
		t.Fatalf("endpoints after reset = %+v", got)
	}
	if err := a.Navigate(domain.ViewStores); !errors.Is(err, ErrNavigationBlocked) {
		t.Fatalf("err = %v, want ErrNavigationBlocked after reset", err)
	}
}

func TestSaveSettingsAlwaysGoesToStores(t *testing.T) {
	a := newTestApp(t, newFakeBackend())
	ctx := context.Background()
	if err := a.Navigate(domain.ViewSettings); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := a.SaveSettings(ctx, domain.Endpoints{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := a.View(); got != domain.ViewStores {
		t.Fatalf("view = %q, want stores even with empty list endpoint", got)
	}
	if err := a.SaveSettings(ctx, domain.Endpoints{ListStores: "nope"}); !errors.Is(err, settings.ErrInvalidEndpoints) {
		t.Fatalf("err = %v, want ErrInvalidEndpoints", err)
	}
}

func TestRefreshStoresRecordsCounts(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha", "one.pdf", "two.pdf")
	backend.addStore("fileSearchStores/b", "Beta")
	a := newTestApp(t, backend)

	if err := a.RefreshStores(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	snap := a.Snapshot()
	if len(snap.Stores) != 2 {
		t.Fatalf("stores = %d, want 2", len(snap.Stores))
	}
	if snap.Stores[0].Store.Name != "Alpha" || snap.Stores[0].DocumentCount == nil || *snap.Stores[0].DocumentCount != 2 {
		t.Fatalf("unexpected first summary: %+v", snap.Stores[0])
	}
	if snap.Stores[1].DocumentCount == nil || *snap.Stores[1].DocumentCount != 0 {
		t.Fatalf("unexpected second summary: %+v", snap.Stores[1])
	}
	if got := backend.callCount("/docs"); got != 2 {
		t.Fatalf("count requests = %d, want 2", got)
	}
}

func TestRefreshStoresCountFailureIsPerStore(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha")
	a := newTestApp(t, backend)
	backend.fail("/docs", http.StatusBadGateway)

	if err := a.RefreshStores(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	summary := a.Snapshot().Stores[0]
	if summary.DocumentCount != nil || summary.CountKind != webhook.KindHTTP {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRefreshStoresFailureShowsBanner(t *testing.T) {
	backend := newFakeBackend()
	a := newTestApp(t, backend)
	backend.fail("/stores", http.StatusInternalServerError)

	if err := a.RefreshStores(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	snap := a.Snapshot()
	if snap.StoresError == nil || snap.StoresError.Kind != webhook.KindHTTP {
		t.Fatalf("stores error = %+v, want http error banner", snap.StoresError)
	}
}

func TestCreateStoreRefetches(t *testing.T) {
	backend := newFakeBackend()
	a := newTestApp(t, backend)
	ctx := context.Background()

	if err := a.CreateStore(ctx, "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	if err := a.CreateStore(ctx, " Marketing "); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := a.Snapshot()
	if len(snap.Stores) != 1 || snap.Stores[0].Store.ID != "fileSearchStores/new-1" || snap.Stores[0].Store.Name != "Marketing" {
		t.Fatalf("unexpected stores: %+v", snap.Stores)
	}
	if got := backend.callCount("/stores"); got != 1 {
		t.Fatalf("list requests = %d, want 1", got)
	}
}

func TestDeleteStorePreconditions(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/full", "Full", "a.pdf")
	backend.addStore("fileSearchStores/empty", "Empty")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := a.DeleteStore(ctx, "fileSearchStores/empty", "empty"); !errors.Is(err, ErrConfirmationMismatch) {
		t.Fatalf("err = %v, want ErrConfirmationMismatch", err)
	}
	if err := a.DeleteStore(ctx, "fileSearchStores/full", "Full"); !errors.Is(err, ErrStoreNotEmpty) {
		t.Fatalf("err = %v, want ErrStoreNotEmpty", err)
	}
	if got := backend.callCount("/delete-store"); got != 0 {
		t.Fatalf("delete requests = %d, want 0", got)
	}

	backend.fail("/docs", http.StatusServiceUnavailable)
	err := a.DeleteStore(ctx, "fileSearchStores/empty", "Empty")
	if !errors.Is(err, ErrDocumentCountUnavailable) || errors.Is(err, ErrStoreNotEmpty) {
		t.Fatalf("err = %v, want ErrDocumentCountUnavailable only", err)
	}
	if webhook.Kind(err) != webhook.KindHTTP {
		t.Fatalf("kind = %q, want wrapped http error", webhook.Kind(err))
	}
	if got := backend.callCount("/delete-store"); got != 0 {
		t.Fatalf("delete requests = %d, want 0", got)
	}
	if err := a.DeleteStore(ctx, "fileSearchStores/missing", "x"); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("err = %v, want ErrStoreNotFound", err)
	}
}

func TestDeleteStoreRemovesLocallyAfterSuccess(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha")
	backend.addStore("fileSearchStores/b", "Beta")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SetChatStore("fileSearchStores/a"); err != nil {
		t.Fatalf("set chat store: %v", err)
	}

	if err := a.DeleteStore(ctx, "fileSearchStores/a", "Alpha"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := a.Snapshot()
	if len(snap.Stores) != 1 || snap.Stores[0].Store.ID != "fileSearchStores/b" {
		t.Fatalf("unexpected stores: %+v", snap.Stores)
	}
	if snap.ChatStore != nil {
		t.Fatalf("chat store should be cleared, got %+v", snap.ChatStore)
	}
	if got := backend.callCount("/delete-store"); got != 1 {
		t.Fatalf("delete requests = %d, want 1", got)
	}
}

func TestDeleteStoreFailureKeepsStore(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	backend.fail("/delete-store", http.StatusInternalServerError)
	if err := a.DeleteStore(ctx, "fileSearchStores/a", "Alpha"); err == nil {
		t.Fatalf("expected delete error")
	}
	if got := len(a.Snapshot().Stores); got != 1 {
		t.Fatalf("stores = %d, want 1", got)
	}
}

func TestSelectStoreAndBack(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha", "one.pdf")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SelectStore(ctx, "fileSearchStores/zzz"); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("err = %v, want ErrStoreNotFound", err)
	}
	if err := a.SelectStore(ctx, "fileSearchStores/a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := a.Snapshot()
	if snap.View != domain.ViewDocuments || snap.SelectedStore == nil || snap.SelectedStore.ID != "fileSearchStores/a" {
		t.Fatalf("unexpected snapshot after select: %+v", snap)
	}
	if len(snap.Documents) != 1 || snap.Documents[0].Name != "one.pdf" {
		t.Fatalf("documents = %+v", snap.Documents)
	}

	a.Back()
	snap = a.Snapshot()
	if snap.View != domain.ViewStores || snap.SelectedStore != nil || len(snap.Documents) != 0 {
		t.Fatalf("unexpected snapshot after back: %+v", snap)
	}
	if err := a.RefreshDocuments(ctx); !errors.Is(err, ErrNoStoreSelected) {
		t.Fatalf("err = %v, want ErrNoStoreSelected", err)
	}
}

func TestUploadThenRefetchHasNoDuplicates(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha", "one.pdf")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.UploadDocument(ctx, "x.pdf", strings.NewReader("x")); !errors.Is(err, ErrNoStoreSelected) {
		t.Fatalf("err = %v, want ErrNoStoreSelected", err)
	}
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SelectStore(ctx, "fileSearchStores/a"); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := a.UploadDocument(ctx, "two.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	docs := a.Snapshot().Documents
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if docs[0].Name != "one.pdf" || docs[1].Name != "two.pdf" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	count := a.Snapshot().Stores[0].DocumentCount
	if count == nil || *count != 2 {
		t.Fatalf("count = %v, want 2", count)
	}
}

func TestDeleteDocumentRollsBackInOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha", "one.pdf", "two.pdf", "three.pdf")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SelectStore(ctx, "fileSearchStores/a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	before := a.Snapshot().Documents

	backend.fail("/delete-doc", http.StatusInternalServerError)
	if err := a.DeleteDocument(ctx, "fileSearchStores/a/documents/two.pdf"); err == nil {
		t.Fatalf("expected delete error")
	}
	after := a.Snapshot().Documents
	if len(after) != len(before) {
		t.Fatalf("documents = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Fatalf("documents[%d] = %q, want %q", i, after[i].ID, before[i].ID)
		}
	}
}

func TestDeleteDocumentSuccess(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha", "one.pdf", "two.pdf")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SelectStore(ctx, "fileSearchStores/a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.DeleteDocument(ctx, "fileSearchStores/a/documents/missing"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
	if err := a.DeleteDocument(ctx, "fileSearchStores/a/documents/one.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs := a.Snapshot().Documents
	if len(docs) != 1 || docs[0].Name != "two.pdf" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestChatFlow(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha")
	backend.addStore("fileSearchStores/b", "Beta")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := a.SendChat(ctx, "hello"); !errors.Is(err, ErrNoChatStore) {
		t.Fatalf("err = %v, want ErrNoChatStore", err)
	}
	if err := a.SetChatStore("fileSearchStores/a"); err != nil {
		t.Fatalf("set chat store: %v", err)
	}
	if _, err := a.SendChat(ctx, "  "); !errors.Is(err, ErrQuestionRequired) {
		t.Fatalf("err = %v, want ErrQuestionRequired", err)
	}

	reply, err := a.SendChat(ctx, "first")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Role != domain.RoleAssistant || reply.Content != "answer for first" || reply.ID == "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if _, err := a.SendChat(ctx, "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(backend.chatSeen) != 2 {
		t.Fatalf("chat requests = %d, want 2", len(backend.chatSeen))
	}
	if got := backend.chatSeen[0]; got.StoreName != "fileSearchStores/a" || len(got.ChatHistory) != 0 {
		t.Fatalf("first payload = %+v", got)
	}
	second := backend.chatSeen[1]
	if len(second.ChatHistory) != 2 || second.ChatHistory[0].Content != "first" || second.ChatHistory[1].Role != domain.RoleAssistant {
		t.Fatalf("second history = %+v", second.ChatHistory)
	}
	if got := len(a.Snapshot().Transcript); got != 4 {
		t.Fatalf("transcript = %d, want 4", got)
	}

	if err := a.SetChatStore("fileSearchStores/a"); err != nil {
		t.Fatalf("same store: %v", err)
	}
	if got := len(a.Snapshot().Transcript); got != 4 {
		t.Fatalf("transcript = %d, want unchanged 4", got)
	}
	if err := a.SetChatStore("fileSearchStores/b"); err != nil {
		t.Fatalf("switch store: %v", err)
	}
	if got := len(a.Snapshot().Transcript); got != 0 {
		t.Fatalf("transcript = %d, want cleared", got)
	}
}

func TestChatFailureIsAppended(t *testing.T) {
	backend := newFakeBackend()
	backend.addStore("fileSearchStores/a", "Alpha")
	a := newTestApp(t, backend)
	ctx := context.Background()
	if err := a.RefreshStores(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := a.SetChatStore("fileSearchStores/a"); err != nil {
		t.Fatalf("set chat store: %v", err)
	}
	backend.fail("/chat", http.StatusInternalServerError)

	reply, err := a.SendChat(ctx, "hello")
	if webhook.Kind(err) != webhook.KindHTTP {
		t.Fatalf("err = %v, want http error", err)
	}
	if reply.Role != domain.RoleAssistant || !strings.Contains(reply.Content, "500") {
		t.Fatalf("unexpected error reply: %+v", reply)
	}
	transcript := a.Snapshot().Transcript
	if len(transcript) != 2 || transcript[0].Role != domain.RoleUser || transcript[1].ID != reply.ID {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestSliceRemovalUndo(t *testing.T) {
	items := []string{"a", "b", "c"}
	removal := newSliceRemoval(&items, func(s string) bool { return s == "b" })
	removal.Apply()
	if strings.Join(items, ",") != "a,c" {
		t.Fatalf("items = %v, want a,c", items)
	}
	removal.Undo()
	if strings.Join(items, ",") != "a,b,c" {
		t.Fatalf("items = %v, want a,b,c", items)
	}
	removal.Undo()
	if strings.Join(items, ",") != "a,b,c" {
		t.Fatalf("second undo changed items: %v", items)
	}
}
