// Package bootstrap builds the session controller from loaded configuration.
// The HTTP console and the terminal front end share it.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"storedesk/pkg/settings"
	"storedesk/pkg/webhook"
	"storedesk/services/console/internal/app"
	"storedesk/services/console/internal/config"
)

// Session is a ready controller plus the settings service behind it.
type Session struct {
	App      *app.App
	Settings *settings.Service
	backend  settings.Backend
}

// Open opens the configured settings backend and starts a session.
func Open(ctx context.Context, cfg config.FileConfig) (*Session, error) {
	timeout, err := config.ParseRequestTimeout(cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	backend, err := settings.Open(settings.OpenOptions{
		Kind:          cfg.SettingsBackend,
		Dir:           cfg.SettingsDir,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		DatabaseURL:   cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings backend: %w", err)
	}
	svc := settings.NewService(backend, cfg.Endpoints)
	a, err := app.New(ctx, app.Config{
		Settings: svc,
		ClientOptions: []webhook.Option{
			webhook.WithBaseURL(cfg.WebhookBaseURL),
			webhook.WithTimeout(timeout),
		},
	})
	if err != nil {
		closeBackend(backend)
		return nil, err
	}
	return &Session{App: a, Settings: svc, backend: backend}, nil
}

// Close releases the settings backend connection, if it holds one.
func (s *Session) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeBackend(b settings.Backend) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}
