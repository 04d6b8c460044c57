package server

import (
	"context"
	"errors"
	"net/http"

	"storedesk/internal/util"
	"storedesk/pkg/settings"
	"storedesk/pkg/webhook"
	"storedesk/services/console/internal/app"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
	// UpstreamStatus is the webhook's status for http_error responses.
	UpstreamStatus int `json:"upstreamStatus,omitempty"`
}

// writeAppError maps controller and adapter failures to HTTP responses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	logger := util.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", "path", r.URL.Path, "status", status, "kind", resp.Kind, "err", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}
	var apiErr *webhook.APIError
	switch {
	case errors.Is(err, app.ErrDocumentCountUnavailable):
		resp.Kind = "document_count_unavailable"
		return http.StatusFailedDependency, resp
	case errors.Is(err, webhook.ErrConfigurationMissing):
		resp.Kind = string(webhook.KindConfigurationMissing)
		return http.StatusPreconditionFailed, resp
	case errors.Is(err, webhook.ErrNetworkUnreachable):
		resp.Kind = string(webhook.KindNetworkUnreachable)
		resp.Hint = webhook.NetworkHint
		return http.StatusBadGateway, resp
	case errors.As(err, &apiErr):
		resp.Kind = string(webhook.KindHTTP)
		resp.UpstreamStatus = apiErr.Status
		return http.StatusBadGateway, resp
	case errors.Is(err, webhook.ErrResponseParse):
		resp.Kind = string(webhook.KindResponseParse)
		return http.StatusBadGateway, resp
	case errors.Is(err, app.ErrStoreNotFound), errors.Is(err, app.ErrDocumentNotFound):
		resp.Kind = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, app.ErrNavigationBlocked),
		errors.Is(err, app.ErrNoStoreSelected),
		errors.Is(err, app.ErrNoChatStore),
		errors.Is(err, app.ErrStoreNotEmpty),
		errors.Is(err, app.ErrChatStoreChanged):
		resp.Kind = "conflict"
		return http.StatusConflict, resp
	case errors.Is(err, app.ErrConfirmationMismatch),
		errors.Is(err, app.ErrNameRequired),
		errors.Is(err, app.ErrQuestionRequired),
		errors.Is(err, app.ErrUnknownView),
		errors.Is(err, settings.ErrInvalidEndpoints),
		errors.Is(err, settings.ErrInvalidTheme):
		resp.Kind = "invalid_request"
		return http.StatusBadRequest, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Kind = "timeout"
		return http.StatusGatewayTimeout, resp
	default:
		resp.Kind = string(webhook.KindUnknown)
		return http.StatusInternalServerError, resp
	}
}
