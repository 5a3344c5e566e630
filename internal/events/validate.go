package events

import (
	"fmt"
	"slices"
	"strings"

	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

const maxDocumentIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, field := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return lperrors.ErrInvalidInput
}

// Validate checks the structural fields of ev. maxTextBytes <= 0 disables
// the size limit. The language is not checked here; the preprocessor
// rejects unsupported languages with a more specific error.
func Validate(ev *DocumentEvent, maxTextBytes int) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(ev.DocumentID)
	if id == "" {
		errs["document_id"] = "document_id is required"
	} else if len(ev.DocumentID) > maxDocumentIDLength {
		errs["document_id"] = fmt.Sprintf("document_id must be at most %d characters", maxDocumentIDLength)
	}
	if strings.TrimSpace(ev.Lang) == "" {
		errs["lang"] = "lang is required"
	}
	if maxTextBytes > 0 && len(ev.Text) > maxTextBytes {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextBytes)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
