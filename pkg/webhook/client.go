package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storedesk/pkg/domain"
)

const maxErrorBody = 4 << 10

// Client calls the configured webhooks over HTTP. One method per remote action.
type Client struct {
	endpoints  domain.Endpoints
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL sets the origin root-relative endpoints are resolved against.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
			c.baseURL = u
		}
	}
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
		}
	}
}

// NewClient constructs a webhook client for the given endpoints.
func NewClient(endpoints domain.Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the endpoints the client was built with.
func (c *Client) Endpoints() domain.Endpoints {
	return c.endpoints
}

// ListStores fetches and normalizes the store list. With no endpoint
// configured it returns an empty list without calling out.
func (c *Client) ListStores(ctx context.Context) ([]domain.Store, error) {
	const op = "list stores"
	if strings.TrimSpace(c.endpoints.ListStores) == "" {
		return []domain.Store{}, nil
	}
	target, err := c.resolve(op, "list-stores", c.endpoints.ListStores)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	return NormalizeStores(body), nil
}

// CreateStore asks the backend to create a store with the given display name.
func (c *Client) CreateStore(ctx context.Context, name string) error {
	_, err := c.postJSON(ctx, "create store", "create-store", c.endpoints.CreateStore, createStoreRequest{NameFileStore: name})
	return err
}

// DeleteStore deletes the store identified by its resource name.
func (c *Client) DeleteStore(ctx context.Context, storeID string) error {
	_, err := c.postJSON(ctx, "delete store", "delete-store", c.endpoints.DeleteStore, nameRequest{Name: storeID})
	return err
}

// ListDocuments lists the documents of one store.
func (c *Client) ListDocuments(ctx context.Context, storeID string) ([]domain.Document, error) {
	body, err := c.postJSON(ctx, "list documents", "list-documents", c.endpoints.ListDocuments, nameRequest{Name: storeID})
	if err != nil {
		return nil, err
	}
	return NormalizeDocuments(body), nil
}

// UploadDocument sends fileName's content to the store as multipart form data.
func (c *Client) UploadDocument(ctx context.Context, storeID, fileName string, r io.Reader) error {
	const op = "upload document"
	target, err := c.resolve(op, "upload-document", c.endpoints.UploadDocument)
	if err != nil {
		return err
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("%s: create form file: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("%s: read file: %w", op, err)
	}
	if err := writer.WriteField("fileName", fileName); err != nil {
		return fmt.Errorf("%s: write fileName: %w", op, err)
	}
	if err := writer.WriteField("name", storeID); err != nil {
		return fmt.Errorf("%s: write name: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s: close form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.do(op, req)
	return err
}

// DeleteDocument deletes one document by its resource name.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := c.postJSON(ctx, "delete document", "delete-document", c.endpoints.DeleteDocument, nameRequest{Name: documentID})
	return err
}

// Chat asks a question scoped to a store and returns the extracted answer.
func (c *Client) Chat(ctx context.Context, storeID, question string, history []domain.ChatTurn) (string, error) {
	if history == nil {
		history = []domain.ChatTurn{}
	}
	payload := chatRequest{StoreName: storeID, Question: question, ChatHistory: history}
	body, err := c.postJSON(ctx, "chat", "chat", c.endpoints.Chat, payload)
	if err != nil {
		return "", err
	}
	return ExtractAnswer(body), nil
}

func (c *Client) postJSON(ctx context.Context, op, endpoint, rawURL string, payload any) ([]byte, error) {
	target, err := c.resolve(op, endpoint, rawURL)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req)
}

// resolve validates an endpoint and makes root-relative paths absolute.
func (c *Client) resolve(op, endpoint, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &ConfigError{Op: op, Endpoint: endpoint}
	}
	if !domain.IsEndpointURL(rawURL) {
		return "", &ConfigError{Op: op, Endpoint: endpoint, Reason: "is not a valid URL"}
	}
	if !strings.HasPrefix(rawURL, "/") {
		return rawURL, nil
	}
	if c.baseURL == nil {
		return "", &ConfigError{Op: op, Endpoint: endpoint, Reason: "is relative and no webhook base URL is configured"}
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", &ConfigError{Op: op, Endpoint: endpoint, Reason: "is not a valid URL"}
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// do performs the exchange and returns the body, "{}" when empty.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		slog.Warn("webhook unreachable", "op", op, "url", req.URL.String(), "err", err)
		return nil, &NetworkError{Op: op, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	slog.Debug("webhook call",
		"op", op,
		"method", req.Method,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Op:         op,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}
	if readErr != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, &NetworkError{Op: op, URL: req.URL.String(), Err: readErr}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(body) {
		return nil, &ParseError{
			Op:   op,
			Body: truncate(string(body), maxErrorBody),
			Err:  fmt.Errorf("unexpected body starting with %q", truncate(string(body), 32)),
		}
	}
	return body, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type createStoreRequest struct {
	NameFileStore string `json:"nameFileStore"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type chatRequest struct {
	StoreName   string            `json:"storeName"`
	Question    string            `json:"question"`
	ChatHistory []domain.ChatTurn `json:"chatHistory"`
}
