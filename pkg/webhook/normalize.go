package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"storedesk/pkg/domain"
)

const (
	untitledStore    = "Untitled Store"
	untitledDocument = "Untitled Document"

	// customMetadataFileName is the customMetadata key the upload workflow
	// stores the original file name under.
	customMetadataFileName = "nombreFile"
)

// storeListShape tags the accepted store-listing payloads.
type storeListShape int

const (
	shapeUnrecognized storeListShape = iota
	// {"fileSearchStores": [...]}
	shapeStoreField
	// [{"fileSearchStores": [...]}]
	shapeWrappedStoreField
	// [...] or {"data": [...]}
	shapeGeneric
)

type storeListing struct {
	shape storeListShape
	items []rawObject
}

type rawObject map[string]json.RawMessage

// NormalizeStores maps any accepted store-listing payload to canonical stores.
// Unrecognized payloads yield an empty slice.
func NormalizeStores(body []byte) []domain.Store {
	listing := classifyStoreListing(body)
	stores := make([]domain.Store, 0, len(listing.items))
	for _, item := range listing.items {
		switch listing.shape {
		case shapeStoreField, shapeWrappedStoreField:
			stores = append(stores, domain.Store{
				ID:        item.text("name"),
				Name:      item.text("displayName", "name"),
				CreatedAt: item.text("createTime"),
				Extra:     item.extra("id", "name", "createdAt"),
			})
		case shapeGeneric:
			id := item.text("id", "name")
			if id == "" {
				id = "store-" + uuid.NewString()
			}
			name := item.text("displayName", "name")
			if name == "" {
				name = untitledStore
			}
			stores = append(stores, domain.Store{
				ID:        id,
				Name:      name,
				CreatedAt: item.text("createTime", "createdAt"),
				Extra:     item.extra("id", "name", "createdAt"),
			})
		}
	}
	return stores
}

func classifyStoreListing(body []byte) storeListing {
	if obj, ok := decodeObject(body); ok {
		if items, ok := obj.array("fileSearchStores"); ok {
			return storeListing{shape: shapeStoreField, items: items}
		}
		if items, ok := obj.array("data"); ok {
			return storeListing{shape: shapeGeneric, items: items}
		}
		return storeListing{shape: shapeUnrecognized}
	}
	arr, ok := decodeArray(body)
	if !ok {
		return storeListing{shape: shapeUnrecognized}
	}
	if len(arr) > 0 {
		if first, ok := decodeObject(arr[0]); ok {
			if items, ok := first.array("fileSearchStores"); ok {
				return storeListing{shape: shapeWrappedStoreField, items: items}
			}
		}
	}
	return storeListing{shape: shapeGeneric, items: objectsOf(arr)}
}

// NormalizeDocuments maps a document-listing payload (bare array, or object
// with a documents/data array) to canonical documents.
func NormalizeDocuments(body []byte) []domain.Document {
	var items []rawObject
	if obj, ok := decodeObject(body); ok {
		if docs, ok := obj.array("documents"); ok {
			items = docs
		} else if docs, ok := obj.array("data"); ok {
			items = docs
		}
	} else if arr, ok := decodeArray(body); ok {
		items = objectsOf(arr)
	}

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		name := item.metadataString(customMetadataFileName)
		if name == "" {
			name = item.text("displayName", "name")
		}
		if name == "" {
			name = untitledDocument
		}
		docs = append(docs, domain.Document{
			ID:       item.text("id", "name"),
			Name:     name,
			MimeType: item.text("mimeType"),
			Size:     item.int64("sizeBytes", "size"),
			Extra:    item.extra("id", "name", "mimeType", "size"),
		})
	}
	return docs
}

// ExtractAnswer pulls the answer text out of a chat response. An array uses
// its first element; when no known field carries text the compact JSON of the
// payload is returned.
func ExtractAnswer(body []byte) string {
	payload := bytes.TrimSpace(body)
	if arr, ok := decodeArray(payload); ok && len(arr) > 0 {
		payload = bytes.TrimSpace(arr[0])
	}
	if obj, ok := decodeObject(payload); ok {
		if answer := obj.text("output", "text", "answer", "message"); answer != "" {
			return answer
		}
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return string(payload)
	}
	return compact.String()
}

func decodeObject(raw []byte) (rawObject, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func decodeArray(raw []byte) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

// objectsOf keeps only the object elements of arr.
func objectsOf(arr []json.RawMessage) []rawObject {
	out := make([]rawObject, 0, len(arr))
	for _, item := range arr {
		if obj, ok := decodeObject(item); ok {
			out = append(out, obj)
		}
	}
	return out
}

func (o rawObject) array(key string) ([]rawObject, bool) {
	arr, ok := decodeArray(o[key])
	if !ok {
		return nil, false
	}
	return objectsOf(arr), true
}

// text returns the first key holding a non-empty string or a non-zero number.
func (o rawObject) text(keys ...string) string {
	for _, key := range keys {
		raw := bytes.TrimSpace(o[key])
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if f, err := n.Float64(); err == nil && f != 0 {
				return n.String()
			}
		}
	}
	return ""
}

func (o rawObject) int64(keys ...string) *int64 {
	for _, key := range keys {
		raw := bytes.TrimSpace(o[key])
		if len(raw) == 0 {
			continue
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return &v
			}
		}
	}
	return nil
}

func (o rawObject) metadataString(key string) string {
	entries, ok := o.array("customMetadata")
	if !ok {
		return ""
	}
	for _, entry := range entries {
		if entry.text("key") == key {
			return entry.text("stringValue")
		}
	}
	return ""
}

// extra copies every field except the canonical ones.
func (o rawObject) extra(canonical ...string) map[string]json.RawMessage {
	skip := make(map[string]struct{}, len(canonical))
	for _, key := range canonical {
		skip[key] = struct{}{}
	}
	var out map[string]json.RawMessage
	for key, value := range o {
		if _, ok := skip[key]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage, len(o))
		}
		out[key] = value
	}
	return out
}
