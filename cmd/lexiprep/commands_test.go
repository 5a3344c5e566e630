package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/events"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/batch"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("LP_REDIS_ENABLED", "false")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func saveIndex(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	lexicon := indexstore.NewLexicon()
	lexicon.Set("run", indexstore.Fields{{Key: "df", Value: 1}})
	postings := indexstore.NewPostings()
	postings.Set("0", []string{"d1"})
	err := indexstore.Save(dir, lexicon, postings,
		map[string][]int{"0": {2}},
		[]indexstore.Fields{{{Key: "id", Value: "d1"}}},
		indexstore.Fields{{Key: "n_docs", Value: 1}},
	)
	require.NoError(t, err)
	return dir
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, lperrors.ExitUsage, code)
	assert.Contains(t, stderr, "usage")

	code, _, stderr = runCLI(t, "", "frobnicate")
	assert.Equal(t, lperrors.ExitUsage, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LP_PREPROCESS_DEFAULT_LANGUAGE", "klingon")
	code, _, stderr := runCLI(t, "", "languages")
	assert.Equal(t, lperrors.ExitUsage, code)
	assert.Contains(t, stderr, "defaultLanguage")
}

func TestLanguages(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "languages")
	require.Equal(t, lperrors.ExitOK, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 16)
	assert.Equal(t, "arabic", lines[0])
	assert.Contains(t, lines, "english")
}

func TestProcess_Stdin(t *testing.T) {
	code, stdout, stderr := runCLI(t, "The quick brown foxes are running", "process")
	require.Equal(t, lperrors.ExitOK, code, stderr)
	assert.Equal(t, `{"id":"-","lang":"english","terms":["quick","brown","fox","run"]}`+"\n", stdout)
}

func TestProcess_JSONLines(t *testing.T) {
	input := `{"id":"a","text":"cats & dogs"}

{"lang":"english","text":"the"}
`
	code, stdout, stderr := runCLI(t, input, "process", "-jsonl", "-workers", "2")
	require.Equal(t, lperrors.ExitOK, code, stderr)
	assert.Equal(t,
		`{"id":"a","lang":"english","terms":["cat","dog"]}`+"\n"+
			`{"id":"-:3","lang":"english","terms":[]}`+"\n",
		stdout)
}

func TestProcess_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("running runs"), 0o644))

	code, stdout, _ := runCLI(t, "", "process", path)
	require.Equal(t, lperrors.ExitOK, code)
	assert.Contains(t, stdout, `"terms":["run","run"]`)

	code, _, stderr := runCLI(t, "", "process", filepath.Join(dir, "missing.txt"))
	assert.Equal(t, lperrors.ExitNotFound, code)
	assert.Contains(t, stderr, "missing.txt")
}

func TestProcess_Errors(t *testing.T) {
	code, _, stderr := runCLI(t, "text", "process", "-lang", "klingon")
	assert.Equal(t, lperrors.ExitUnsupported, code)
	assert.Contains(t, stderr, "klingon")

	code, _, stderr = runCLI(t, "{\"id\":\"a\"\n", "process", "-jsonl")
	assert.Equal(t, lperrors.ExitMalformed, code)
	assert.Contains(t, stderr, "line 1")

	code, _, _ = runCLI(t, "", "process", "-bogus")
	assert.Equal(t, lperrors.ExitUsage, code)
}

func TestInspect(t *testing.T) {
	dir := saveIndex(t)

	code, stdout, _ := runCLI(t, "", "inspect", filepath.Join(dir, indexstore.StatsFile))
	require.Equal(t, lperrors.ExitOK, code)
	assert.Contains(t, stdout, "object")
	assert.Contains(t, stdout, "n_docs")
	assert.Contains(t, stdout, "number 1")

	arr := filepath.Join(dir, "arr.json")
	require.NoError(t, os.WriteFile(arr, []byte(`[1, 2, 3]`), 0o644))
	code, stdout, _ = runCLI(t, "", "inspect", arr)
	require.Equal(t, lperrors.ExitOK, code)
	assert.Contains(t, stdout, "array")

	code, _, _ = runCLI(t, "", "inspect", filepath.Join(dir, "nope.json"))
	assert.Equal(t, lperrors.ExitNotFound, code)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{}\n{}\n"), 0o644))
	code, _, _ = runCLI(t, "", "inspect", bad)
	assert.Equal(t, lperrors.ExitMalformed, code)
}

func TestVerify(t *testing.T) {
	dir := saveIndex(t)

	code, stdout, stderr := runCLI(t, "", "verify", dir)
	require.Equal(t, lperrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "1 entries")
	assert.Contains(t, stdout, "ok")

	broken := `{"termid": "0", "docids": ["d1"], "freqs": [1, 2]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexstore.InvertedFile), []byte(broken), 0o644))
	code, _, _ = runCLI(t, "", "verify", dir)
	assert.Equal(t, lperrors.ExitUsage, code)

	code, _, _ = runCLI(t, "", "verify", t.TempDir())
	assert.Equal(t, lperrors.ExitNotFound, code)
}

func TestVerify_DefaultsToConfiguredOutputDir(t *testing.T) {
	dir := saveIndex(t)
	t.Setenv("LP_STORE_OUTPUT_DIR", dir)

	code, stdout, stderr := runCLI(t, "", "verify")
	require.Equal(t, lperrors.ExitOK, code, stderr)
	assert.Contains(t, stdout, "ok")

	code, _, _ = runCLI(t, "", "verify", dir, dir)
	assert.Equal(t, lperrors.ExitUsage, code)
}

func TestDocumentEvents(t *testing.T) {
	got, err := documentEvents([]batch.Document{{ID: "a", Lang: "english", Text: "x"}}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, events.DocumentEvent{DocumentID: "a", Lang: "english", Text: "x"}, got[0].Value)

	_, err = documentEvents([]batch.Document{{ID: "b", Lang: "english", Text: "too long"}}, 3)
	require.ErrorIs(t, err, lperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), `document "b"`)
}
