package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storedesk/internal/ratelimit"
	"storedesk/internal/util"
	"storedesk/pkg/domain"
	"storedesk/services/console/internal/app"
)

const defaultMaxUploadBytes = 50 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	ChatRateLimitPerMinute   int
	UploadRateLimitPerMinute int
	MaxUploadBytes           int64
	AllowedOrigins           []string
	TrustedProxies           *util.TrustedProxies
}

// Server exposes the console session over HTTP for the browser front end.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	trusted        *util.TrustedProxies
	chatLimiter    *ratelimit.FixedWindowLimiter
	uploadLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limits are off
// unless a positive per-minute limit is set.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			return nil, nil
		}
		prefix := "storedesk:console:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	chatLimiter, err := newLimiter("chat", cfg.ChatRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	uploadLimiter, err := newLimiter("upload", cfg.UploadRateLimitPerMinute)
	if err != nil {
		_ = chatLimiter.Close()
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedOrigins: cfg.AllowedOrigins,
		trusted:        cfg.TrustedProxies,
		chatLimiter:    chatLimiter,
		uploadLimiter:  uploadLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins)(h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("console", s.trusted, h)
	return util.WithRequestID(h)
}

// Close releases the rate limiter connections.
func (s *Server) Close() error {
	return errors.Join(s.chatLimiter.Close(), s.uploadLimiter.Close())
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/theme", s.handleTheme)
	s.mux.HandleFunc("/api/navigate", s.handleNavigate)
	s.mux.HandleFunc("/api/stores", s.handleStores)
	s.mux.HandleFunc("/api/selection", s.handleSelection)
	s.mux.HandleFunc("/api/documents", s.handleDocuments)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/chat/store", s.handleChatStore)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type settingsResponse struct {
	Endpoints domain.Endpoints `json:"endpoints"`
	Source    string           `json:"source"`
	View      domain.View      `json:"view"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req domain.Endpoints
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.app.SaveSettings(r.Context(), req); err != nil {
			writeAppError(w, r, err)
			return
		}
	case http.MethodDelete:
		if err := s.app.ResetSettings(r.Context()); err != nil {
			writeAppError(w, r, err)
			return
		}
	default:
		methodNotAllowed(w)
		return
	}
	snap := s.app.Snapshot()
	writeJSON(w, http.StatusOK, settingsResponse{
		Endpoints: snap.Endpoints,
		Source:    string(snap.SettingsSource),
		View:      snap.View,
	})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		theme := s.app.Theme(r.Context(), browserTheme(r))
		writeJSON(w, http.StatusOK, map[string]domain.Theme{"theme": theme})
	case http.MethodPut:
		var req themeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		theme := domain.Theme(strings.ToLower(strings.TrimSpace(req.Theme)))
		if err := s.app.SetTheme(r.Context(), theme); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]domain.Theme{"theme": theme})
	default:
		methodNotAllowed(w)
	}
}

// browserTheme reads the Sec-CH-Prefers-Color-Scheme hint. Browsers quote the value.
func browserTheme(r *http.Request) domain.Theme {
	hint := strings.Trim(strings.TrimSpace(r.Header.Get(util.ColorSchemeHint)), `"`)
	if theme, ok := domain.ParseTheme(strings.ToLower(hint)); ok {
		return theme
	}
	return domain.ThemeLight
}

type navigateRequest struct {
	View domain.View `json:"view"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.Navigate(req.View); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type createStoreRequest struct {
	Name string `json:"name"`
}

type deleteStoreRequest struct {
	ID          string `json:"id"`
	ConfirmName string `json:"confirmName"`
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if err := s.app.RefreshStores(r.Context()); err != nil {
			writeAppError(w, r, err)
			return
		}
	case http.MethodPost:
		var req createStoreRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.app.CreateStore(r.Context(), req.Name); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, storesPayload(s.app.Snapshot()))
		return
	case http.MethodDelete:
		var req deleteStoreRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.app.DeleteStore(r.Context(), strings.TrimSpace(req.ID), req.ConfirmName); err != nil {
			writeAppError(w, r, err)
			return
		}
	default:
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, storesPayload(s.app.Snapshot()))
}

func storesPayload(snap app.Snapshot) map[string]any {
	return map[string]any{"stores": snap.Stores}
}

type selectionRequest struct {
	StoreID string `json:"storeId"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req selectionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.app.SelectStore(r.Context(), strings.TrimSpace(req.StoreID)); err != nil {
			writeAppError(w, r, err)
			return
		}
	case http.MethodDelete:
		s.app.Back()
	default:
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type deleteDocumentRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if err := s.app.RefreshDocuments(r.Context()); err != nil {
			writeAppError(w, r, err)
			return
		}
	case http.MethodPost:
		if !s.allowRate(w, r, s.uploadLimiter, "too many uploads") {
			return
		}
		if !s.handleUpload(w, r) {
			return
		}
		writeJSON(w, http.StatusCreated, documentsPayload(s.app.Snapshot()))
		return
	case http.MethodDelete:
		var req deleteDocumentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.app.DeleteDocument(r.Context(), strings.TrimSpace(req.ID)); err != nil {
			writeAppError(w, r, err)
			return
		}
	default:
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, documentsPayload(s.app.Snapshot()))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart form with a file part is required")
		return false
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, "file is required")
			return false
		}
		if err != nil {
			writeUploadReadError(w, err)
			return false
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		err = s.app.UploadDocument(r.Context(), part.FileName(), part)
		_ = part.Close()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return false
		}
		if err != nil {
			writeAppError(w, r, err)
			return false
		}
		return true
	}
}

func writeUploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid multipart body")
}

func documentsPayload(snap app.Snapshot) map[string]any {
	return map[string]any{
		"store":     snap.SelectedStore,
		"documents": snap.Documents,
	}
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := s.app.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"store":      snap.ChatStore,
			"transcript": snap.Transcript,
		})
	case http.MethodPost:
		if !s.allowRate(w, r, s.chatLimiter, "too many chat requests") {
			return
		}
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		reply, err := s.app.SendChat(r.Context(), req.Question)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"reply":      reply,
			"transcript": s.app.Snapshot().Transcript,
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.SetChatStore(strings.TrimSpace(req.StoreID)); err != nil {
		writeAppError(w, r, err)
		return
	}
	snap := s.app.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"store":      snap.ChatStore,
		"transcript": snap.Transcript,
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	ok, retryAfter := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return defaultMaxUploadBytes
	}
	return value
}
