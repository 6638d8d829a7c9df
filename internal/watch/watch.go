// Package watch reports supported documents appearing in a directory tree.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/NarendraPati1/deIdentifier/internal/parser"
)

type Config struct {
	Root        string
	InitialScan bool          // emit files already present
	Debounce    time.Duration // coalesce write bursts per path
	Logger      *slog.Logger
}

// Start watches cfg.Root recursively and emits the path of every supported
// file that is created, written or renamed into place. The channel closes
// when ctx is done.
func Start(ctx context.Context, cfg Config) (<-chan string, error) {
	if cfg.Root == "" {
		return nil, errors.New("no root provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With("root", cfg.Root)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var initial []string
	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && Wanted(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer w.Close()

		send := func(p string) bool {
			select {
			case out <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !send(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		tick := cfg.Debounce / 2
		if tick < 10*time.Millisecond {
			tick = 10 * time.Millisecond
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							log.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !Wanted(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					continue
				}
				if cfg.Debounce <= 0 {
					if !send(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = time.Now().Add(cfg.Debounce)
			case now := <-ticker.C:
				for p, due := range pending {
					if now.Before(due) {
						continue
					}
					delete(pending, p)
					if !send(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watcher error", "error", err)
			}
		}
	}()

	return out, nil
}

// Wanted reports whether path is a supported document that is not a hidden
// or editor lock file.
func Wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return parser.IsSupportedExtension(path)
}

// Deduper remembers the content hash last seen for each path.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]string
	hash func([]byte) string
}

func NewDeduper(hash func([]byte) string) *Deduper {
	return &Deduper{seen: make(map[string]string), hash: hash}
}

// Changed reads path and reports whether its content differs from the last
// call for the same path. A missing file is reported as unchanged.
func (d *Deduper) Changed(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	h := d.hash(data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[path] == h {
		return false, nil
	}
	d.seen[path] = h
	return true, nil
}
