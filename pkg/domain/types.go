package domain

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme reports whether value names a known theme.
func ParseTheme(value string) (Theme, bool) {
	switch Theme(value) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	default:
		return "", false
	}
}

type View string

const (
	ViewSettings  View = "settings"
	ViewStores    View = "stores"
	ViewDocuments View = "documents"
	ViewChat      View = "chat"
)

// Store is a remote document collection. ID is the backend resource name
// (e.g. "fileSearchStores/abc"), Name is the display label.
type Store struct {
	ID        string
	Name      string
	CreatedAt string
	// Extra holds raw listing fields that have no canonical slot.
	Extra map[string]json.RawMessage
}

type Document struct {
	ID       string
	Name     string
	MimeType string
	Size     *int64
	Extra    map[string]json.RawMessage
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurn is one history entry sent to the chat webhook.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MarshalJSON emits the extra fields first so canonical fields win on collision.
func (s Store) MarshalJSON() ([]byte, error) {
	out := copyExtra(s.Extra)
	out["id"] = mustRaw(s.ID)
	out["name"] = mustRaw(s.Name)
	if s.CreatedAt != "" {
		out["createdAt"] = mustRaw(s.CreatedAt)
	}
	return json.Marshal(out)
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Store{}
	for key, value := range raw {
		switch key {
		case "id":
			_ = json.Unmarshal(value, &s.ID)
		case "name":
			_ = json.Unmarshal(value, &s.Name)
		case "createdAt":
			_ = json.Unmarshal(value, &s.CreatedAt)
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[key] = value
		}
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := copyExtra(d.Extra)
	out["id"] = mustRaw(d.ID)
	out["name"] = mustRaw(d.Name)
	if d.MimeType != "" {
		out["mimeType"] = mustRaw(d.MimeType)
	}
	if d.Size != nil {
		out["size"] = mustRaw(*d.Size)
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{}
	for key, value := range raw {
		switch key {
		case "id":
			_ = json.Unmarshal(value, &d.ID)
		case "name":
			_ = json.Unmarshal(value, &d.Name)
		case "mimeType":
			_ = json.Unmarshal(value, &d.MimeType)
		case "size":
			var size int64
			if err := json.Unmarshal(value, &size); err == nil {
				d.Size = &size
			}
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = value
		}
	}
	return nil
}

func copyExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(extra)+4)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
