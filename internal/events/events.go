// Package events defines the Kafka message schemas exchanged by the term
// worker: raw documents in, stemmed term sequences out.
package events

import "time"

// Outcome values recorded for a document once the worker has handled it.
const (
	StatusPreprocessed = "PREPROCESSED"
	StatusFailed       = "FAILED"
)

// DocumentEvent is the payload consumed from the documents topic.
type DocumentEvent struct {
	DocumentID string    `json:"document_id"`
	Lang       string    `json:"lang"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at,omitzero"`
}

// TermsEvent is published to the terms topic after a document has been
// preprocessed. Terms keeps the pipeline's order and repeats.
type TermsEvent struct {
	DocumentID  string    `json:"document_id"`
	Lang        string    `json:"lang"`
	Terms       []string  `json:"terms"`
	TermCount   int       `json:"term_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewTermsEvent builds the event for doc. A nil terms slice is published as
// an empty array.
func NewTermsEvent(doc DocumentEvent, terms []string, at time.Time) TermsEvent {
	if terms == nil {
		terms = []string{}
	}
	return TermsEvent{
		DocumentID:  doc.DocumentID,
		Lang:        doc.Lang,
		Terms:       terms,
		TermCount:   len(terms),
		ProcessedAt: at.UTC(),
	}
}
