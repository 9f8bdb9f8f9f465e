// Package watcher watches inbox directories for saved extraction dumps and hands each
// settled file to a handler exactly once per version of its contents.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettle = 400 * time.Millisecond

// Handler processes one extraction dump.
type Handler func(ctx context.Context, path string)

// fileVersion identifies a processed file's contents.
type fileVersion struct {
	size    int64
	modTime time.Time
}

// Inbox watches directories for extraction dumps.
type Inbox struct {
	roots      []string
	extensions []string
	recursive  bool
	handle     Handler
	settle     time.Duration
	fsw        *fsnotify.Watcher
	mu         sync.Mutex
	pending    map[string]*time.Timer
	processed  map[string]fileVersion
	rootPaths  map[string][]string // root -> directories added to fsw
	ctx        context.Context
	done       chan struct{}
	started    bool
	stopOnce   sync.Once
	logger     *zap.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithSettleDelay sets how long a file must stay quiet before it is handled.
func WithSettleDelay(d time.Duration) Option {
	return func(in *Inbox) { in.settle = d }
}

// NewInbox creates an inbox over roots. extensions filters file names (empty = all).
func NewInbox(roots []string, extensions []string, recursive bool, handle Handler, opts ...Option) *Inbox {
	in := &Inbox{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		handle:     handle,
		settle:     defaultSettle,
		pending:    make(map[string]*time.Timer),
		processed:  make(map[string]fileVersion),
		rootPaths:  make(map[string][]string),
		ctx:        context.Background(),
		done:       make(chan struct{}),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	return in
}

// Start begins watching. Missing roots are created. It returns once the watches are in
// place; events are handled until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	in.fsw = fsw
	in.ctx = ctx
	in.started = true
	in.logger.Info("inbox watcher starting", zap.Strings("roots", in.roots), zap.Strings("extensions", in.extensions))
	for _, root := range in.roots {
		if err := in.addRootLocked(root); err != nil {
			_ = fsw.Close()
			in.fsw = nil
			in.started = false
			in.mu.Unlock()
			return err
		}
	}
	in.mu.Unlock()
	go in.run(ctx, fsw)
	return nil
}

// Stop ends watching and cancels files still settling.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() {
		close(in.done)
		in.mu.Lock()
		defer in.mu.Unlock()
		for path, t := range in.pending {
			t.Stop()
			delete(in.pending, path)
		}
		if in.fsw != nil {
			_ = in.fsw.Close()
		}
	})
}

func (in *Inbox) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				in.logger.Warn("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !in.underRoot(path) {
		return
	}
	in.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			in.handleNewDirectory(path)
			return
		}
		if matchExtension(path, in.extensions) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.mu.Lock()
		if t, ok := in.pending[path]; ok {
			t.Stop()
			delete(in.pending, path)
		}
		delete(in.processed, path)
		in.mu.Unlock()
	}
}

// handleNewDirectory watches a directory created under a root and processes the dumps
// already inside it.
func (in *Inbox) handleNewDirectory(dir string) {
	in.mu.Lock()
	fsw := in.fsw
	recursive := in.recursive
	in.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				in.logger.Debug("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if matchExtension(path, in.extensions) {
			in.schedule(path)
		}
		return nil
	})
}

// schedule handles path once it has been quiet for the settle delay.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.settle, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		in.process(path)
	})
}

// process runs the handler unless this version of the file was already handled.
func (in *Inbox) process(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	version := fileVersion{size: info.Size(), modTime: info.ModTime()}

	in.mu.Lock()
	if prev, ok := in.processed[path]; ok && prev == version {
		in.mu.Unlock()
		in.logger.Debug("inbox skipping unchanged file", zap.String("path", path))
		return
	}
	in.processed[path] = version
	ctx := in.ctx
	in.mu.Unlock()

	select {
	case <-in.done:
		return
	default:
	}
	in.logger.Info("processing extraction dump", zap.String("path", path), zap.Int64("bytes", version.size))
	if in.handle != nil {
		in.handle(ctx, path)
	}
}

// SyncExisting processes every matching file already present under the roots.
func (in *Inbox) SyncExisting() {
	for _, root := range in.Directories() {
		in.syncDirectory(root)
	}
}

func (in *Inbox) syncDirectory(root string) {
	in.logger.Debug("inbox syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !in.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, in.extensions) {
			in.process(path)
		}
		return nil
	})
}

// AddDirectory adds a root at runtime and optionally processes the dumps already in it.
func (in *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	if in.fsw == nil {
		in.mu.Unlock()
		return nil
	}
	for _, r := range in.roots {
		if filepath.Clean(r) == abs {
			in.mu.Unlock()
			return nil
		}
	}
	if err := in.addRootLocked(abs); err != nil {
		in.mu.Unlock()
		return err
	}
	in.roots = append(in.roots, abs)
	in.mu.Unlock()

	in.logger.Info("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go in.syncDirectory(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Files already handled are not revisited.
func (in *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.fsw == nil {
		return nil
	}
	idx := -1
	for i, r := range in.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range in.rootPaths[abs] {
		_ = in.fsw.Remove(p)
	}
	delete(in.rootPaths, abs)
	in.roots = append(in.roots[:idx], in.roots[idx+1:]...)
	in.logger.Info("inbox directory removed", zap.String("path", abs))
	return nil
}

// Directories returns a copy of the watched roots.
func (in *Inbox) Directories() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.roots...)
}

func (in *Inbox) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if in.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := in.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := in.fsw.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	in.rootPaths[root] = paths
	return nil
}

func (in *Inbox) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range in.Directories() {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
