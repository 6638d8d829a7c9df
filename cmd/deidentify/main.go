// Command deidentify processes a directory of documents in one session,
// optionally writing an XLSX export, appending to the redaction log, and
// watching the directory for new files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/NarendraPati1/deIdentifier/internal/app"
	"github.com/NarendraPati1/deIdentifier/internal/config"
	"github.com/NarendraPati1/deIdentifier/internal/export"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/store"
	"github.com/NarendraPati1/deIdentifier/internal/watch"
)

func main() {
	dir := flag.String("dir", "", "directory of documents to process")
	out := flag.String("out", "", "write results workbook to this .xlsx path")
	dbPath := flag.String("db", "", "append sessions to this redaction log database")
	user := flag.String("user", "cli", "user id recorded in the redaction log")
	watchMode := flag.Bool("watch", false, "keep watching -dir and process new or changed files")
	flag.Parse()

	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: deidentify -dir <path> [-out results.xlsx] [-db log.db] [-watch]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps := app.Build(cfg, log)
	defer comps.Close()

	var db *store.Store
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Error("open store", "path", *dbPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	skip := newSkipSet(*out, *dbPath)
	r := &runner{
		pipe:  comps.Pipeline,
		db:    db,
		out:   *out,
		user:  *user,
		log:   log,
		dedup: watch.NewDeduper(pipeline.ContentHashHex),
		skip:  skip,
	}

	paths, err := scan(*dir, skip)
	if err != nil {
		log.Error("scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if err := r.run(ctx, paths); err != nil {
		log.Error("process batch", "error", err)
		os.Exit(1)
	}

	if !*watchMode {
		return
	}

	events, err := watch.Start(ctx, watch.Config{Root: *dir, Debounce: 500 * time.Millisecond, Logger: log})
	if err != nil {
		log.Error("start watcher", "dir", *dir, "error", err)
		os.Exit(1)
	}
	log.Info("watching for new documents", "dir", *dir)
	for p := range events {
		if err := r.run(ctx, []string{p}); err != nil {
			log.Error("process file", "path", p, "error", err)
		}
	}
}

type runner struct {
	pipe  *pipeline.Pipeline
	db    *store.Store
	out   string
	user  string
	log   *slog.Logger
	dedup *watch.Deduper
	skip  skipSet

	records []pipeline.Record
}

// run processes the paths whose content has not been seen before as one
// session, then refreshes the outputs.
func (r *runner) run(ctx context.Context, paths []string) error {
	var docs []pipeline.Document
	for _, p := range paths {
		if r.skip.has(p) {
			continue
		}
		changed, err := r.dedup.Changed(p)
		if err != nil {
			r.log.Warn("read file", "path", p, "error", err)
			continue
		}
		if !changed {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		docs = append(docs, pipeline.Document{
			ID:       uuid.NewString(),
			Path:     p,
			Filename: filepath.Base(p),
			Size:     info.Size(),
		})
	}
	if len(docs) == 0 {
		return nil
	}

	sess := r.pipe.ProcessBatch(ctx, r.user, docs, func(rec pipeline.Record) {
		if rec.Status == pipeline.RecordFailed {
			r.log.Warn("file failed", "filename", rec.Filename, "error", rec.Error)
		}
	})
	r.records = append(r.records, sess.Records...)

	if r.db != nil {
		if err := r.db.SaveSession(ctx, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if r.out != "" {
		rows := make([][]string, 0, len(r.records))
		for _, rec := range r.records {
			rows = append(rows, rec.Row())
		}
		data, err := export.Workbook(rows, time.Now(), r.log)
		if err != nil {
			return err
		}
		if err := os.WriteFile(r.out, data, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
	}

	r.log.Info("session done",
		"session", sess.Name,
		"files", sess.FilesProcessed,
		"pii_items", sess.PIIItems,
		"phi_items", sess.PHIItems,
	)
	return nil
}

// skipSet holds absolute paths the command writes itself, so they are never
// read back as input.
type skipSet map[string]struct{}

func newSkipSet(paths ...string) skipSet {
	s := make(skipSet)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		s[abs] = struct{}{}
		for _, suffix := range []string{"-wal", "-shm", "-journal"} {
			s[abs+suffix] = struct{}{}
		}
	}
	return s
}

func (s skipSet) has(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	_, ok := s[abs]
	return ok
}

// scan lists supported documents under dir in lexical order, leaving out
// anything in skip.
func scan(dir string, skip skipSet) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && watch.Wanted(p) && !skip.has(p) {
			paths = append(paths, p)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}
