package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/events"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/batch"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/cache"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/config"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/redis"
)

type app struct {
	cfg      *config.Config
	provider *linguistics.BleveProvider
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"process":     runProcess,
	"languages":   runLanguages,
	"inspect":     runInspect,
	"verify":      runVerify,
	"publish":     runPublish,
	"cache-clear": runCacheClear,
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("lexiprep", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "path to config file")
	if err := fset.Parse(args); err != nil {
		return lperrors.ExitUsage
	}
	if fset.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: lexiprep [-config file] <process|languages|inspect|verify|publish|cache-clear> [args]")
		return lperrors.ExitUsage
	}
	cmd, ok := commands[fset.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fset.Arg(0))
		return lperrors.ExitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return lperrors.ExitUsage
	}
	a := &app{
		cfg:      cfg,
		provider: linguistics.NewBleveProvider(),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		logger:   logger.New(stderr, cfg.Logging.Level, "text"),
	}
	slog.SetDefault(a.logger)
	if err := cfg.Validate(a.provider.Languages()); err != nil {
		fmt.Fprintln(stderr, err)
		return lperrors.ExitUsage
	}

	if err := cmd(ctx, a, fset.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "lexiprep %s: %v\n", fset.Arg(0), err)
		return lperrors.ExitCode(err)
	}
	return lperrors.ExitOK
}

func runProcess(ctx context.Context, a *app, args []string) error {
	fset := flag.NewFlagSet("process", flag.ContinueOnError)
	fset.SetOutput(a.stderr)
	lang := fset.String("lang", a.cfg.Preprocess.DefaultLanguage, "language of documents without one")
	workers := fset.Int("workers", a.cfg.Preprocess.Workers, "documents processed concurrently")
	jsonl := fset.Bool("jsonl", false, "read documents as JSON lines of {id, lang, text}")
	if err := fset.Parse(args); err != nil {
		return lperrors.New(lperrors.ErrInvalidInput, err.Error())
	}

	docs, err := readDocuments(a, fset.Args(), *lang, *jsonl)
	if err != nil {
		return err
	}

	tc, closeCache := a.termCache(ctx)
	defer closeCache()
	p := preprocess.New(a.provider)
	results, err := batch.Process(ctx, cache.NewCached(tc, p), docs, *workers)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	for _, r := range results {
		if r.Terms == nil {
			r.Terms = []string{}
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	return nil
}

// termCache connects to Redis when enabled. Any failure leaves the command
// running without a cache.
func (a *app) termCache(ctx context.Context) (*cache.TermCache, func()) {
	if !a.cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := pkgredis.NewClient(ctx, a.cfg.Redis, cache.KeyPrefix)
	if err != nil {
		a.logger.Warn("redis unavailable, running without term cache", "error", err)
		return nil, func() {}
	}
	return cache.New(client, a.cfg.Redis, cache.WithLogger(a.logger)), func() { client.Close() }
}

func runLanguages(_ context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return lperrors.New(lperrors.ErrInvalidInput, "languages takes no arguments")
	}
	for _, l := range a.provider.Languages() {
		fmt.Fprintln(a.stdout, l)
	}
	return nil
}

func runInspect(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return lperrors.New(lperrors.ErrInvalidInput, "inspect takes exactly one file")
	}
	doc, err := indexstore.NewStore(indexstore.WithLogger(a.logger)).Load(args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	switch v := doc.(type) {
	case indexstore.Fields:
		fmt.Fprintf(tw, "type\tobject\n")
		fmt.Fprintf(tw, "keys\t%d\n", len(v))
		for _, f := range v {
			fmt.Fprintf(tw, "  %s\t%s\n", f.Key, describe(f.Value))
		}
	case []any:
		fmt.Fprintf(tw, "type\tarray\n")
		fmt.Fprintf(tw, "elements\t%d\n", len(v))
	default:
		fmt.Fprintf(tw, "type\t%s\n", describe(v))
	}
	return tw.Flush()
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case indexstore.Fields:
		return fmt.Sprintf("object (%d keys)", len(v))
	case []any:
		return fmt.Sprintf("array (%d elements)", len(v))
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number:
		return "number " + v.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}

func runVerify(_ context.Context, a *app, args []string) error {
	dir := a.cfg.Store.OutputDir
	switch len(args) {
	case 0:
	case 1:
		dir = args[0]
	default:
		return lperrors.New(lperrors.ErrInvalidInput, "verify takes at most one directory")
	}
	snap, err := indexstore.NewStore(indexstore.WithLogger(a.logger)).ReadDir(dir)
	if err != nil {
		return err
	}
	if err := snap.Check(); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d entries\n", indexstore.LexiconFile, len(snap.Lexicon))
	fmt.Fprintf(tw, "%s\t%d postings\n", indexstore.InvertedFile, len(snap.Inverted))
	fmt.Fprintf(tw, "%s\t%d documents\n", indexstore.DocIndexFile, len(snap.DocIndex))
	fmt.Fprintf(tw, "%s\t%d fields\n", indexstore.StatsFile, len(snap.Stats))
	fmt.Fprintln(tw, "ok")
	return tw.Flush()
}

func runPublish(ctx context.Context, a *app, args []string) error {
	fset := flag.NewFlagSet("publish", flag.ContinueOnError)
	fset.SetOutput(a.stderr)
	lang := fset.String("lang", a.cfg.Preprocess.DefaultLanguage, "language of documents without one")
	jsonl := fset.Bool("jsonl", false, "read documents as JSON lines of {id, lang, text}")
	if err := fset.Parse(args); err != nil {
		return lperrors.New(lperrors.ErrInvalidInput, err.Error())
	}
	if a.cfg.Kafka.Topics.Documents == "" {
		return lperrors.New(lperrors.ErrInvalidInput, "kafka.topics.documents is not configured")
	}

	docs, err := readDocuments(a, fset.Args(), *lang, *jsonl)
	if err != nil {
		return err
	}
	batchEvents, err := documentEvents(docs, a.cfg.Preprocess.MaxTextBytes)
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.Documents)
	defer producer.Close()
	if err := producer.PublishBatch(ctx, batchEvents); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "published %d documents to %s\n", len(batchEvents), a.cfg.Kafka.Topics.Documents)
	return nil
}

// documentEvents validates docs and converts them to Kafka events keyed by
// document id.
func documentEvents(docs []batch.Document, maxTextBytes int) ([]kafka.Event, error) {
	out := make([]kafka.Event, 0, len(docs))
	for _, d := range docs {
		ev := events.DocumentEvent{DocumentID: d.ID, Lang: d.Lang, Text: d.Text}
		if err := events.Validate(&ev, maxTextBytes); err != nil {
			return nil, fmt.Errorf("document %q: %w", d.ID, err)
		}
		out = append(out, kafka.Event{Key: d.ID, Value: ev})
	}
	return out, nil
}

func runCacheClear(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return lperrors.New(lperrors.ErrInvalidInput, "cache-clear takes no arguments")
	}
	client, err := pkgredis.NewClient(ctx, a.cfg.Redis, cache.KeyPrefix)
	if err != nil {
		return err
	}
	defer client.Close()
	return cache.New(client, a.cfg.Redis, cache.WithLogger(a.logger)).Invalidate(ctx)
}

// readDocuments reads every file in paths as one document, or stdin when
// paths is empty. With jsonl each input holds one document per line.
func readDocuments(a *app, paths []string, lang string, jsonl bool) ([]batch.Document, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return parseDocuments("-", data, lang, jsonl)
	}
	var docs []batch.Document
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, lperrors.Newf(lperrors.ErrNotFound, "%s", path)
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		parsed, err := parseDocuments(path, data, lang, jsonl)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

func parseDocuments(source string, data []byte, lang string, jsonl bool) ([]batch.Document, error) {
	if !jsonl {
		return []batch.Document{{ID: source, Lang: lang, Text: string(data)}}, nil
	}
	var docs []batch.Document
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var d batch.Document
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return nil, lperrors.Newf(lperrors.ErrMalformedJSON, "%s line %d: %v", source, n, err)
		}
		if d.ID == "" {
			d.ID = fmt.Sprintf("%s:%d", source, n)
		}
		if d.Lang == "" {
			d.Lang = lang
		}
		docs = append(docs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return docs, nil
}
