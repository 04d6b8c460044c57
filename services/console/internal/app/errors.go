package app

import (
	"errors"
	"fmt"
)

var (
	// Navigation and lookup failures.
	ErrNavigationBlocked = errors.New("navigation blocked")
	ErrUnknownView       = errors.New("unknown view")
	ErrNoStoreSelected   = errors.New("no store selected")
	ErrStoreNotFound     = errors.New("store not found")
	ErrDocumentNotFound  = errors.New("document not found")

	// Store deletion preconditions.
	ErrConfirmationMismatch     = errors.New("confirmation does not match store name")
	ErrStoreNotEmpty            = errors.New("store is not empty")
	ErrDocumentCountUnavailable = errors.New("document count unavailable")

	ErrNameRequired     = errors.New("name is required")
	ErrQuestionRequired = errors.New("question is required")
	ErrNoChatStore      = errors.New("no chat store selected")
	// ErrChatStoreChanged indicates an answer arrived after the chat moved to another store.
	ErrChatStoreChanged = errors.New("chat store changed before the answer arrived")
)

// CountError reports a failed document-count check ahead of a store deletion.
type CountError struct {
	StoreID string
	Err     error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("%v for %s: %v", ErrDocumentCountUnavailable, e.StoreID, e.Err)
}

func (e *CountError) Unwrap() error {
	return e.Err
}

func (e *CountError) Is(target error) bool {
	return target == ErrDocumentCountUnavailable
}
