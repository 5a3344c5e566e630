// Command lexiprep preprocesses documents into index terms and inspects
// saved index artifacts.
//
// Usage:
//
//	lexiprep [-config file] process [-lang english] [-workers 4] [-jsonl] [file ...]
//	lexiprep [-config file] languages
//	lexiprep [-config file] inspect <file>
//	lexiprep [-config file] verify [dir]
//	lexiprep [-config file] publish [-lang english] [-jsonl] [file ...]
//	lexiprep [-config file] cache-clear
//
// process prints one JSON object per document with its terms. Without files
// it reads a single document (or JSON lines with -jsonl) from stdin. verify
// checks store.outputDir when no directory is given.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
