package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints is the set of webhook URLs the front end talks to. An empty
// field disables the matching operation.
type Endpoints struct {
	ListStores     string `json:"listStoresUrl" yaml:"listStoresUrl"`
	CreateStore    string `json:"createStoreUrl" yaml:"createStoreUrl"`
	DeleteStore    string `json:"deleteStoreUrl" yaml:"deleteStoreUrl"`
	ListDocuments  string `json:"listDocumentsUrl" yaml:"listDocumentsUrl"`
	UploadDocument string `json:"uploadDocumentUrl" yaml:"uploadDocumentUrl"`
	DeleteDocument string `json:"deleteDocumentUrl" yaml:"deleteDocumentUrl"`
	Chat           string `json:"chatUrl" yaml:"chatUrl"`
}

// EndpointField names one Endpoints slot by its JSON key.
type EndpointField struct {
	Key   string
	Label string
	Value *string
}

// Fields returns pointers to every slot in declaration order.
func (e *Endpoints) Fields() []EndpointField {
	return []EndpointField{
		{Key: "listStoresUrl", Label: "List stores", Value: &e.ListStores},
		{Key: "createStoreUrl", Label: "Create store", Value: &e.CreateStore},
		{Key: "deleteStoreUrl", Label: "Delete store", Value: &e.DeleteStore},
		{Key: "listDocumentsUrl", Label: "List documents", Value: &e.ListDocuments},
		{Key: "uploadDocumentUrl", Label: "Upload document", Value: &e.UploadDocument},
		{Key: "deleteDocumentUrl", Label: "Delete document", Value: &e.DeleteDocument},
		{Key: "chatUrl", Label: "Chat", Value: &e.Chat},
	}
}

// Get returns the value stored under a JSON key.
func (e Endpoints) Get(key string) (string, error) {
	for _, f := range e.Fields() {
		if f.Key == key {
			return *f.Value, nil
		}
	}
	return "", fmt.Errorf("unknown endpoint key: %s", key)
}

// Set updates the value stored under a JSON key.
func (e *Endpoints) Set(key, value string) error {
	for _, f := range e.Fields() {
		if f.Key == key {
			*f.Value = strings.TrimSpace(value)
			return nil
		}
	}
	return fmt.Errorf("unknown endpoint key: %s", key)
}

func (e Endpoints) IsZero() bool {
	return e == Endpoints{}
}

func (e Endpoints) StoresConfigured() bool {
	return strings.TrimSpace(e.ListStores) != ""
}

func (e Endpoints) ChatConfigured() bool {
	return strings.TrimSpace(e.Chat) != ""
}

// Validate accepts empty fields, absolute http(s) URLs and root-relative paths.
func (e Endpoints) Validate() error {
	var bad []string
	for _, f := range e.Fields() {
		if !IsEndpointURL(*f.Value) {
			bad = append(bad, f.Key)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid endpoint url: %s", strings.Join(bad, ", "))
	}
	return nil
}

// IsEndpointURL reports whether raw is empty, an absolute http(s) URL with a
// host, or a root-relative path.
func IsEndpointURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	if strings.HasPrefix(raw, "/") {
		if strings.HasPrefix(raw, "//") {
			return false
		}
		_, err := url.Parse(raw)
		return err == nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
