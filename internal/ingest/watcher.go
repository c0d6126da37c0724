package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/telemetry"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxWait      = 30 * time.Second
)

var (
	DefaultImagePatterns      = []string{"*.jpeg", "*.jpg", "*.png"}
	DefaultTranscriptPatterns = []string{"*.txt"}

	ErrUnstableFile = errors.New("file size did not settle")
)

// Ledger is the subset of the ledger store the watcher writes to.
type Ledger interface {
	HasFile(ctx context.Context, key domain.FileKey) (bool, error)
	InsertCapture(ctx context.Context, frame *domain.CaptureFrame, key *domain.FileKey) (int64, error)
	RecordDeadLetter(ctx context.Context, path, stage string, cause error) error
}

type Options struct {
	ImageRoot          string
	TranscriptRoot     string
	ImagePatterns      []string
	TranscriptPatterns []string
	PollInterval       time.Duration
	MaxWait            time.Duration
	// KeepImage stores the raw image bytes in the ledger next to the text.
	KeepImage bool
}

// Watcher turns filesystem creations into ledger records. Events are handled one
// at a time on the watcher goroutine.
type Watcher struct {
	ledger     Ledger
	recognizer Recognizer
	opts       Options

	imageGlobs []glob.Glob
	textGlobs  []glob.Glob
	now        func() time.Time
}

func NewWatcher(ledger Ledger, recognizer Recognizer, opts Options) (*Watcher, error) {
	if opts.ImageRoot == "" {
		return nil, fmt.Errorf("image root: %w", domain.ErrMissingRequiredField)
	}
	if len(opts.ImagePatterns) == 0 {
		opts.ImagePatterns = DefaultImagePatterns
	}
	if len(opts.TranscriptPatterns) == 0 {
		opts.TranscriptPatterns = DefaultTranscriptPatterns
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	imageGlobs, err := compileGlobs(opts.ImagePatterns)
	if err != nil {
		return nil, err
	}
	textGlobs, err := compileGlobs(opts.TranscriptPatterns)
	if err != nil {
		return nil, err
	}

	return &Watcher{
		ledger:     ledger,
		recognizer: recognizer,
		opts:       opts,
		imageGlobs: imageGlobs,
		textGlobs:  textGlobs,
		now:        time.Now,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (w *Watcher) roots() []string {
	roots := []string{w.opts.ImageRoot}
	if w.opts.TranscriptRoot != "" {
		roots = append(roots, w.opts.TranscriptRoot)
	}
	return roots
}

// Run watches both roots recursively until ctx is cancelled. Files already present
// are ingested first. A file whose handling has started is finished before Run
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.roots() {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", root, err)
		}
		if err := addTree(fw, root); err != nil {
			return err
		}
	}
	log.Printf("watcher: watching %s", strings.Join(w.roots(), ", "))

	for _, root := range w.roots() {
		if err := w.scan(ctx, root); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("watcher: stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				// Temp files are renamed away before we get to them.
				continue
			}
			kind := FileCreated
			if info.IsDir() {
				kind = DirectoryCreated
				if err := addTree(fw, ev.Name); err != nil {
					log.Printf("watcher: %v", err)
				}
			}
			if err := w.Handle(ctx, Event{Kind: kind, Path: ev.Name}); err != nil {
				log.Printf("watcher: %s %s: %v", kind, ev.Name, err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: notify error: %v", err)
		}
	}
}

// addTree registers dir and every directory below it.
func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Handle dispatches one event. Directory events scan the new directory because
// files may land in it before its watch is registered.
func (w *Watcher) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case DirectoryCreated:
		return w.scan(ctx, ev.Path)
	case FileCreated:
		return w.ingest(ctx, ev.Path)
	}
	return fmt.Errorf("unknown event kind %v", ev.Kind)
}

// scan ingests every matching file under dir, in lexical order.
func (w *Watcher) scan(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("watcher: scan %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		if err := w.ingest(ctx, path); err != nil {
			log.Printf("watcher: %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) classify(path string) (domain.Source, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	if w.opts.TranscriptRoot != "" && within(w.opts.TranscriptRoot, path) {
		return domain.SourceTranscription, matchAny(w.textGlobs, name)
	}
	return domain.SourceImage, matchAny(w.imageGlobs, name)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// ingest records one file. Per-file failures are written to the dead-letter table
// and logged by the caller; they never stop the watcher.
func (w *Watcher) ingest(ctx context.Context, path string) error {
	source, ok := w.classify(path)
	if !ok {
		return nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	info, err := waitStable(ctx, path, w.opts.PollInterval, w.opts.MaxWait)
	if err != nil {
		if ctx.Err() != nil {
			// Not recorded, so the next start's scan picks it up.
			return nil
		}
		return w.deadLetter(ctx, path, domain.StageRead, err)
	}
	if info.Size() == 0 {
		return w.deadLetter(ctx, path, domain.StageExtraction, domain.ErrEmptyCapture)
	}

	key := domain.FileKey{Path: path, Size: info.Size(), ModTime: info.ModTime()}
	seen, err := w.ledger.HasFile(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if seen {
		return nil
	}

	// Handling that has started runs to completion even during shutdown.
	hctx := context.WithoutCancel(ctx)

	var frame *domain.CaptureFrame
	switch source {
	case domain.SourceImage:
		frame, err = w.readImage(hctx, path)
	case domain.SourceTranscription:
		frame, err = w.readTranscript(hctx, path, info)
	}
	if err != nil {
		return err
	}

	id, err := w.ledger.InsertCapture(hctx, frame, &key)
	if err != nil {
		return w.deadLetter(hctx, path, domain.StageStore, err)
	}
	log.Printf("watcher: recorded %s %d from %s (%d chars)", source, id, filepath.Base(path), len(frame.Text))
	return nil
}

func (w *Watcher) readImage(ctx context.Context, path string) (*domain.CaptureFrame, error) {
	text, err := w.recognizer.Recognize(ctx, path)
	if err != nil {
		return nil, w.deadLetter(ctx, path, domain.StageExtraction, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err))
	}

	frame := &domain.CaptureFrame{
		Source:     domain.SourceImage,
		Text:       FilterTokens(text),
		CapturedAt: CaptureTime(path, w.now()),
	}
	if w.opts.KeepImage {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, w.deadLetter(ctx, path, domain.StageRead, err)
		}
		frame.Image = data
	}
	return frame, nil
}

func (w *Watcher) readTranscript(ctx context.Context, path string, info fs.FileInfo) (*domain.CaptureFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, w.deadLetter(ctx, path, domain.StageRead, err)
	}
	name := filepath.Base(path)
	return &domain.CaptureFrame{
		Source:     domain.SourceTranscription,
		Title:      strings.TrimSuffix(name, filepath.Ext(name)),
		Text:       strings.TrimSpace(string(data)),
		Metadata:   path,
		CapturedAt: info.ModTime(),
	}, nil
}

// deadLetter records the failure and returns it wrapped for logging.
func (w *Watcher) deadLetter(ctx context.Context, path, stage string, cause error) error {
	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("%s failed for %s", stage, filepath.Base(path)))
	if err := w.ledger.RecordDeadLetter(ctx, path, stage, cause); err != nil {
		log.Printf("watcher: failed to record dead letter for %s: %v", path, err)
	}
	return fmt.Errorf("%s failed: %w", stage, cause)
}

// waitStable polls the file size until two consecutive polls agree, so a
// half-written file is never read. A file that stays empty is stable too.
func waitStable(ctx context.Context, path string, interval, maxWait time.Duration) (fs.FileInfo, error) {
	deadline := time.Now().Add(maxWait)
	prev, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		cur, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if cur.Size() == prev.Size() {
			return cur, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %v: %s", ErrUnstableFile, maxWait, path)
		}
		prev = cur
	}
}
