// Package settings persists the webhook endpoints and the theme preference.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"storedesk/pkg/domain"
)

const (
	KeyConfig = "storedesk:config"
	KeyTheme  = "storedesk:theme"
)

var (
	ErrInvalidEndpoints = errors.New("invalid endpoints")
	ErrInvalidTheme     = errors.New("invalid theme")
)

// Source reports which layer a resolved configuration came from.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceDefaults  Source = "defaults"
	SourceEmpty     Source = "empty"
)

type Resolution struct {
	Endpoints domain.Endpoints `json:"endpoints"`
	Source    Source           `json:"source"`
}

// Service resolves and persists settings on top of a Backend.
type Service struct {
	backend  Backend
	defaults domain.Endpoints
}

// NewService builds a settings service. defaults are the built-in endpoints
// used when nothing has been persisted.
func NewService(backend Backend, defaults domain.Endpoints) *Service {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Service{backend: backend, defaults: defaults}
}

// Defaults returns the built-in endpoints.
func (s *Service) Defaults() domain.Endpoints {
	return s.defaults
}

// Resolve merges persisted values over the defaults field by field. A key
// present in the persisted document wins even when its value is empty.
func (s *Service) Resolve(ctx context.Context) Resolution {
	if persisted, ok := s.loadPersisted(ctx); ok {
		merged := s.defaults
		for _, f := range merged.Fields() {
			if value, present := persisted[f.Key]; present {
				*f.Value = value
			}
		}
		return Resolution{Endpoints: merged, Source: SourcePersisted}
	}
	if !s.defaults.IsZero() {
		return Resolution{Endpoints: s.defaults, Source: SourceDefaults}
	}
	return Resolution{Source: SourceEmpty}
}

func (s *Service) loadPersisted(ctx context.Context) (map[string]string, bool) {
	raw, ok, err := s.backend.Get(ctx, KeyConfig)
	if err != nil {
		slog.Warn("settings read failed, using defaults", "key", KeyConfig, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		slog.Warn("persisted settings are not a JSON object, ignoring", "key", KeyConfig)
		return nil, false
	}
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		var str string
		if err := json.Unmarshal(value, &str); err != nil {
			slog.Warn("persisted settings field is not a string, ignoring", "field", key)
			continue
		}
		out[key] = str
	}
	return out, true
}

// Save validates and persists the endpoints.
func (s *Service) Save(ctx context.Context, endpoints domain.Endpoints) error {
	for _, f := range endpoints.Fields() {
		if err := endpoints.Set(f.Key, *f.Value); err != nil {
			return err
		}
	}
	if err := endpoints.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoints, err)
	}
	data, err := json.Marshal(endpoints)
	if err != nil {
		return fmt.Errorf("encode endpoints: %w", err)
	}
	return s.backend.Set(ctx, KeyConfig, string(data))
}

// Reset removes the persisted endpoints so defaults apply again.
func (s *Service) Reset(ctx context.Context) error {
	return s.backend.Delete(ctx, KeyConfig)
}

// Theme returns the persisted theme, or fallback when none is stored.
func (s *Service) Theme(ctx context.Context, fallback domain.Theme) domain.Theme {
	raw, ok, err := s.backend.Get(ctx, KeyTheme)
	if err != nil {
		slog.Warn("theme read failed", "err", err)
	}
	if ok {
		if theme, valid := domain.ParseTheme(raw); valid {
			return theme
		}
	}
	if theme, valid := domain.ParseTheme(string(fallback)); valid {
		return theme
	}
	return domain.ThemeLight
}

// StoredTheme reports the persisted theme without applying a fallback.
func (s *Service) StoredTheme(ctx context.Context) (domain.Theme, bool) {
	raw, ok, err := s.backend.Get(ctx, KeyTheme)
	if err != nil || !ok {
		return "", false
	}
	return domain.ParseTheme(raw)
}

func (s *Service) SetTheme(ctx context.Context, theme domain.Theme) error {
	if _, ok := domain.ParseTheme(string(theme)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return s.backend.Set(ctx, KeyTheme, string(theme))
}
