package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"storedesk/pkg/domain"
)

func TestListStoresWithoutEndpointMakesNoRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{Chat: srv.URL}, WithHTTPClient(srv.Client()))
	stores, err := client.ListStores(context.Background())
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if stores == nil || len(stores) != 0 {
		t.Fatalf("stores = %#v, want empty non-nil slice", stores)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestListStoresNormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"fileSearchStores":[{"name":"fileSearchStores/abc","displayName":"Marketing"}]}`)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{ListStores: srv.URL + "/webhook/stores"}, WithHTTPClient(srv.Client()))
	stores, err := client.ListStores(context.Background())
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if len(stores) != 1 || stores[0].ID != "fileSearchStores/abc" || stores[0].Name != "Marketing" {
		t.Fatalf("unexpected stores: %+v", stores)
	}
}

func TestJSONRequestBodies(t *testing.T) {
	type captured struct {
		method string
		ctype  string
		body   map[string]any
	}
	var last captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = captured{method: r.Method, ctype: r.Header.Get("Content-Type")}
		last.body = map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&last.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{
		CreateStore:    srv.URL + "/create",
		DeleteStore:    srv.URL + "/delete-store",
		ListDocuments:  srv.URL + "/docs",
		DeleteDocument: srv.URL + "/delete-doc",
	}, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		key   string
		value string
	}{
		{name: "create store", call: func() error { return client.CreateStore(ctx, "Marketing") }, key: "nameFileStore", value: "Marketing"},
		{name: "delete store", call: func() error { return client.DeleteStore(ctx, "fileSearchStores/abc") }, key: "name", value: "fileSearchStores/abc"},
		{name: "list documents", call: func() error {
			_, err := client.ListDocuments(ctx, "fileSearchStores/abc")
			return err
		}, key: "name", value: "fileSearchStores/abc"},
		{name: "delete document", call: func() error { return client.DeleteDocument(ctx, "fileSearchStores/abc/documents/1") }, key: "name", value: "fileSearchStores/abc/documents/1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			if last.method != http.MethodPost {
				t.Fatalf("method = %s, want POST", last.method)
			}
			if last.ctype != "application/json" {
				t.Fatalf("content type = %q, want application/json", last.ctype)
			}
			if last.body[tc.key] != tc.value {
				t.Fatalf("%s = %v, want %q", tc.key, last.body[tc.key], tc.value)
			}
			if len(last.body) != 1 {
				t.Fatalf("unexpected extra fields: %v", last.body)
			}
		})
	}
}

func TestUploadDocumentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("fileName"); got != "informe.pdf" {
			t.Errorf("fileName = %q, want informe.pdf", got)
		}
		if got := r.FormValue("name"); got != "fileSearchStores/abc" {
			t.Errorf("name = %q, want fileSearchStores/abc", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "%PDF-1.4" {
			t.Errorf("file content = %q", data)
		}
		if header.Filename != "informe.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{UploadDocument: srv.URL}, WithHTTPClient(srv.Client()))
	if err := client.UploadDocument(context.Background(), "fileSearchStores/abc", "informe.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestChatPayloadAndAnswer(t *testing.T) {
	var payload struct {
		StoreName   string            `json:"storeName"`
		Question    string            `json:"question"`
		ChatHistory []domain.ChatTurn `json:"chatHistory"`
	}
	var rawHistory json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode chat: %v", err)
		}
		var fields map[string]json.RawMessage
		_ = json.Unmarshal(body, &fields)
		rawHistory = fields["chatHistory"]
		_, _ = io.WriteString(w, `[{"output":"Answer text"}]`)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{Chat: srv.URL}, WithHTTPClient(srv.Client()))
	answer, err := client.Chat(context.Background(), "fileSearchStores/abc", "What is X?", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if answer != "Answer text" {
		t.Fatalf("answer = %q, want Answer text", answer)
	}
	if payload.StoreName != "fileSearchStores/abc" || payload.Question != "What is X?" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if string(rawHistory) != "[]" {
		t.Fatalf("chatHistory = %s, want []", rawHistory)
	}

	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	if _, err := client.Chat(context.Background(), "fileSearchStores/abc", "again", history); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(payload.ChatHistory) != 2 || payload.ChatHistory[1].Role != domain.RoleAssistant {
		t.Fatalf("history = %+v", payload.ChatHistory)
	}
}

func TestEmptyBodyIsTreatedAsEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{ListDocuments: srv.URL, Chat: srv.URL}, WithHTTPClient(srv.Client()))
	docs, err := client.ListDocuments(context.Background(), "s")
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs = %+v, want empty", docs)
	}
	answer, err := client.Chat(context.Background(), "s", "q", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if answer != "{}" {
		t.Fatalf("answer = %q, want {}", answer)
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			http.Error(w, "workflow crashed", http.StatusInternalServerError)
		case "/html":
			_, _ = io.WriteString(w, "<html>oops</html>")
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()
	defer srv.Close()

	tests := []struct {
		name     string
		endpoint string
		opts     []Option
		wantKind ErrorKind
	}{
		{name: "unset endpoint", endpoint: "", wantKind: KindConfigurationMissing},
		{name: "invalid endpoint", endpoint: "not a url", wantKind: KindConfigurationMissing},
		{name: "relative without base", endpoint: "/webhook/chat", wantKind: KindConfigurationMissing},
		{name: "non 2xx", endpoint: srv.URL + "/fail", wantKind: KindHTTP},
		{name: "non json", endpoint: srv.URL + "/html", wantKind: KindResponseParse},
		{name: "unreachable", endpoint: closedURL + "/chat", wantKind: KindNetworkUnreachable},
		{name: "relative with base", endpoint: "/ok", opts: []Option{WithBaseURL(srv.URL)}, wantKind: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := NewClient(domain.Endpoints{Chat: tc.endpoint}, tc.opts...)
			_, err := client.Chat(context.Background(), "s", "q", nil)
			if got := Kind(err); got != tc.wantKind {
				t.Fatalf("kind = %q, want %q (err=%v)", got, tc.wantKind, err)
			}
		})
	}
}

func TestAPIErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Workflow not found"}`)
	}))
	defer srv.Close()

	client := NewClient(domain.Endpoints{DeleteStore: srv.URL}, WithHTTPClient(srv.Client()))
	err := client.DeleteStore(context.Background(), "fileSearchStores/abc")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", apiErr.Status)
	}
	if apiErr.StatusText != "Not Found" {
		t.Fatalf("status text = %q, want Not Found", apiErr.StatusText)
	}
	if !strings.Contains(apiErr.Body, "Workflow not found") {
		t.Fatalf("body = %q", apiErr.Body)
	}
}

func TestCanceledContextIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(domain.Endpoints{Chat: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := client.Chat(ctx, "s", "q", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("canceled request must not be reported as unreachable")
	}
}
