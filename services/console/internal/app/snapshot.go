package app

import (
	"slices"

	"storedesk/pkg/domain"
	"storedesk/pkg/settings"
	"storedesk/pkg/webhook"
)

// StoreSummary is a listed store with its document count badge. DocumentCount
// is nil when the count could not be loaded.
type StoreSummary struct {
	Store         domain.Store      `json:"store"`
	DocumentCount *int              `json:"documentCount,omitempty"`
	CountError    string            `json:"countError,omitempty"`
	CountKind     webhook.ErrorKind `json:"countErrorKind,omitempty"`
}

// Snapshot is a copy of the presentable session state.
type Snapshot struct {
	View           domain.View          `json:"view"`
	Endpoints      domain.Endpoints     `json:"endpoints"`
	SettingsSource settings.Source      `json:"settingsSource"`
	Stores         []StoreSummary       `json:"stores"`
	StoresError    *ErrorView           `json:"storesError,omitempty"`
	SelectedStore  *domain.Store        `json:"selectedStore,omitempty"`
	Documents      []domain.Document    `json:"documents"`
	DocumentsError *ErrorView           `json:"documentsError,omitempty"`
	ChatStore      *domain.Store        `json:"chatStore,omitempty"`
	Transcript     []domain.ChatMessage `json:"transcript"`
}

// ErrorView is a list-loading failure shown as an inline banner.
type ErrorView struct {
	Message string            `json:"message"`
	Kind    webhook.ErrorKind `json:"kind"`
}

func newErrorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	return &ErrorView{Message: err.Error(), Kind: webhook.Kind(err)}
}

// Snapshot copies the current state. Slices in the result are not shared
// with the controller.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		View:           a.view,
		Endpoints:      a.endpoints,
		SettingsSource: a.source,
		Stores:         make([]StoreSummary, 0, len(a.stores)),
		StoresError:    newErrorView(a.storesErr),
		Documents:      slices.Clone(a.documents),
		DocumentsError: newErrorView(a.docsErr),
		Transcript:     slices.Clone(a.transcript),
	}
	if snap.Documents == nil {
		snap.Documents = []domain.Document{}
	}
	if snap.Transcript == nil {
		snap.Transcript = []domain.ChatMessage{}
	}
	for _, s := range a.stores {
		summary := StoreSummary{Store: s}
		if c, ok := a.counts[s.ID]; ok {
			if c.err != nil {
				summary.CountError = c.err.Error()
				summary.CountKind = webhook.Kind(c.err)
			} else {
				n := c.count
				summary.DocumentCount = &n
			}
		}
		snap.Stores = append(snap.Stores, summary)
	}
	if a.selected != "" {
		if s, ok := a.findStoreLocked(a.selected); ok {
			snap.SelectedStore = &s
		}
	}
	if a.chatStore != "" {
		if s, ok := a.findStoreLocked(a.chatStore); ok {
			snap.ChatStore = &s
		}
	}
	return snap
}
