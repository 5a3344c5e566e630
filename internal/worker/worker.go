// Package worker turns document events from Kafka into term events.
//
// Each message is decoded, validated, preprocessed and published. Messages
// that can never succeed (undecodable payloads, invalid events, unsupported
// languages) are recorded as failed and acknowledged so they do not block
// the partition. Transient failures are returned to the consumer, which
// leaves the message uncommitted.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/events"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/tracing"
)

// Message outcomes reported to metrics.
const (
	OutcomeOK            = "ok"
	OutcomeMalformed     = "malformed"
	OutcomeInvalid       = "invalid"
	OutcomeUnsupported   = "unsupported"
	OutcomeError         = "error"
	OutcomePublishFailed = "publish_failed"
)

// Processor is satisfied by the cached preprocessor.
type Processor interface {
	Process(ctx context.Context, text, lang string) ([]string, error)
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// StatusRecorder is satisfied by *postgres.StatusStore.
type StatusRecorder interface {
	Record(ctx context.Context, o postgres.Outcome) error
}

type Worker struct {
	processor    Processor
	publisher    Publisher
	status       StatusRecorder
	retry        resilience.RetryConfig
	maxTextBytes int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Option func(*Worker)

// WithStatusRecorder records every outcome. Without one no status is kept.
func WithStatusRecorder(r StatusRecorder) Option {
	return func(w *Worker) { w.status = r }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(w *Worker) { w.retry = cfg }
}

// WithMaxTextBytes rejects documents whose text is larger than n bytes.
func WithMaxTextBytes(n int) Option {
	return func(w *Worker) { w.maxTextBytes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func New(p Processor, pub Publisher, opts ...Option) *Worker {
	w := &Worker{
		processor: p,
		publisher: pub,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
		logger: slog.Default().With("component", "term-worker"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleMessage returns the Kafka handler driving w.
func (w *Worker) HandleMessage() kafka.MessageHandler {
	return w.Handle
}

// Handle processes one document event. A nil return means the message may
// be committed.
func (w *Worker) Handle(ctx context.Context, key []byte, value []byte) error {
	doc, err := kafka.DecodeJSON[events.DocumentEvent](value)
	if err != nil {
		w.logger.Error("failed to decode document event",
			"error", err,
			"key", string(key),
		)
		w.metrics.WorkerMessage(OutcomeMalformed)
		return nil
	}

	ctx = logger.WithDocumentID(ctx, doc.DocumentID)
	ctx, span := tracing.StartSpan(ctx, "handle-document", doc.DocumentID)
	defer func() {
		span.End()
		span.Log(ctx, w.logger, slog.LevelDebug)
	}()
	log := w.logger.With("document_id", doc.DocumentID, "lang", doc.Lang)

	if err := events.Validate(&doc, w.maxTextBytes); err != nil {
		log.Warn("rejecting invalid document event", "error", err)
		span.Fail(err)
		if doc.DocumentID != "" {
			w.record(ctx, log, doc, events.StatusFailed, nil, err)
		}
		w.metrics.WorkerMessage(OutcomeInvalid)
		return nil
	}

	terms, err := w.preprocess(ctx, doc)
	if err != nil {
		span.Fail(err)
		if errors.Is(err, lperrors.ErrUnsupportedLanguage) {
			log.Warn("skipping document in unsupported language", "error", err)
			w.record(ctx, log, doc, events.StatusFailed, nil, err)
			w.metrics.WorkerMessage(OutcomeUnsupported)
			return nil
		}
		w.record(ctx, log, doc, events.StatusFailed, nil, err)
		w.metrics.WorkerMessage(OutcomeError)
		return fmt.Errorf("preprocessing document %s: %w", doc.DocumentID, err)
	}

	if err := w.publish(ctx, doc, terms); err != nil {
		span.Fail(err)
		w.metrics.WorkerMessage(OutcomePublishFailed)
		return fmt.Errorf("publishing terms of document %s: %w", doc.DocumentID, err)
	}

	w.record(ctx, log, doc, events.StatusPreprocessed, terms, nil)
	w.metrics.WorkerMessage(OutcomeOK)
	log.Info("document preprocessed", "terms", len(terms))
	return nil
}

func (w *Worker) preprocess(ctx context.Context, doc events.DocumentEvent) ([]string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "preprocess")
	defer span.End()
	terms, err := w.processor.Process(ctx, doc.Text, doc.Lang)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.SetAttr("terms", len(terms))
	return terms, nil
}

func (w *Worker) publish(ctx context.Context, doc events.DocumentEvent, terms []string) error {
	ctx, span := tracing.StartChildSpan(ctx, "publish")
	defer span.End()
	event := kafka.Event{
		Key:     doc.DocumentID,
		Value:   events.NewTermsEvent(doc, terms, w.now()),
		Headers: map[string]string{"lang": doc.Lang},
	}
	attempts := 0
	err := resilience.Retry(ctx, "publish-terms", w.retry, func(ctx context.Context) error {
		attempts++
		return w.publisher.Publish(ctx, event)
	})
	span.SetAttr("attempts", attempts)
	if err != nil {
		span.Fail(err)
	}
	return err
}

// record stores the outcome when a recorder is configured. Failures are
// logged only.
func (w *Worker) record(ctx context.Context, log *slog.Logger, doc events.DocumentEvent, status string, terms []string, cause error) {
	if w.status == nil {
		return
	}
	_, span := tracing.StartChildSpan(ctx, "record-status")
	defer span.End()
	o := postgres.Outcome{
		DocumentID: doc.DocumentID,
		Lang:       doc.Lang,
		Status:     status,
		Terms:      terms,
	}
	if cause != nil {
		o.Error = cause.Error()
	}
	if err := w.status.Record(ctx, o); err != nil {
		span.Fail(err)
		log.Error("failed to update document status",
			"status", status,
			"error", err,
		)
	}
}
