package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/logging"
)

// FileFunc is called once for every regular file found by a walk, in walk order.
// Returning an error aborts the walk with that error.
type FileFunc func(path string) error

// Stats holds traversal statistics that are updated atomically during the walk.
type Stats struct {
	FilesEmitted   int64         // Regular files reported
	DirsRead       int64         // Directory listings read
	EntriesSkipped int64         // Hidden entries, unfollowed links and special files
	ErrorCount     int64         // Per-entry I/O errors encountered
	ElapsedTime    time.Duration // Duration of the last walk
}

// Walker is a directory traversal instantiated from a root and Options.
type Walker struct {
	root   string
	opts   Options
	logger *zap.Logger

	stats   Stats
	aborted atomic.Bool

	errLock sync.Mutex
	errs    []error
}

// Build instantiates a traversal of root using these options.
func (o Options) Build(root string) *Walker {
	return &Walker{
		root:   root,
		opts:   o,
		logger: logging.OrNop(o.Logger),
	}
}

// Root returns the path the walker was built for.
func (w *Walker) Root() string {
	return w.root
}

// Stats returns a snapshot of the walk statistics.
func (w *Walker) Stats() Stats {
	return Stats{
		FilesEmitted:   atomic.LoadInt64(&w.stats.FilesEmitted),
		DirsRead:       atomic.LoadInt64(&w.stats.DirsRead),
		EntriesSkipped: atomic.LoadInt64(&w.stats.EntriesSkipped),
		ErrorCount:     atomic.LoadInt64(&w.stats.ErrorCount),
		ElapsedTime:    w.stats.ElapsedTime,
	}
}

// Files walks the tree and returns every regular file in walk order.
// Under ErrorHandlingContinue the partial result is returned alongside the error.
func (w *Walker) Files(ctx context.Context) ([]string, error) {
	var files []string
	err := w.Walk(ctx, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

// Walk traverses the tree rooted at the walker's root and calls fn for each
// regular file. Directory listings may be read concurrently, but fn is always
// called from the calling goroutine in depth-first order.
//
// A root that does not exist or is not a directory yields nothing.
func (w *Walker) Walk(ctx context.Context, fn FileFunc) error {
	startTime := time.Now()
	defer func() {
		w.stats.ElapsedTime = time.Since(startTime)
		w.logger.Debug("walk finished",
			zap.String("root", w.root),
			zap.Int64("files", atomic.LoadInt64(&w.stats.FilesEmitted)),
			zap.Int64("dirs", atomic.LoadInt64(&w.stats.DirsRead)),
			zap.Int64("skipped", atomic.LoadInt64(&w.stats.EntriesSkipped)),
			zap.Int64("errors", atomic.LoadInt64(&w.stats.ErrorCount)),
			zap.Duration("elapsed", w.stats.ElapsedTime),
		)
	}()

	w.aborted.Store(false)
	w.errs = nil

	info, err := os.Stat(w.root)
	if err != nil {
		if isMissing(err) {
			w.logger.Debug("walk root does not exist", zap.String("root", w.root))
			return nil
		}
		if err := w.handleError(w.root, err); err != nil {
			return err
		}
		return w.joinedErrors()
	}
	if !info.IsDir() {
		w.logger.Debug("walk root is not a directory", zap.String("root", w.root))
		return nil
	}

	workers := w.opts.Parallelism.Workers()
	w.logger.Debug("starting walk",
		zap.String("root", w.root),
		zap.Int("workers", workers),
		zap.Bool("sort", w.opts.Sort),
		zap.Uint("min_depth", w.opts.MinDepth),
		zap.Uint("max_depth", w.opts.MaxDepth),
		zap.Bool("skip_hidden", w.opts.SkipHidden),
		zap.Bool("follow_links", w.opts.FollowLinks),
		zap.Stringer("error_handling", w.opts.ErrorHandling),
	)

	t := &traversal{
		walker:  w,
		fn:      fn,
		scratch: make([]byte, godirwalk.MinimumScratchBufferSize),
	}
	if workers > 1 {
		t.pool = pool.New().WithMaxGoroutines(workers)
	}

	rootNode := &dirNode{path: w.root}
	if w.opts.FollowLinks {
		if real, err := filepath.EvalSymlinks(w.root); err == nil {
			rootNode.real = real
		} else {
			rootNode.real = filepath.Clean(w.root)
		}
	}

	err = t.visit(ctx, rootNode)
	if t.pool != nil {
		w.aborted.Store(true)
		t.pool.Wait()
	}
	if err != nil {
		return err
	}
	return w.joinedErrors()
}

// handleError applies the error handling policy to a per-entry error.
// It returns a non-nil error only when the walk must stop.
func (w *Walker) handleError(path string, err error) error {
	atomic.AddInt64(&w.stats.ErrorCount, 1)
	wrapped := fmt.Errorf("path %q: %w", path, err)

	switch w.opts.ErrorHandling {
	case ErrorHandlingSkip:
		w.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
		return nil
	case ErrorHandlingContinue:
		w.logger.Warn("error during walk", zap.String("path", path), zap.Error(err))
		w.errLock.Lock()
		w.errs = append(w.errs, wrapped)
		w.errLock.Unlock()
		return nil
	default:
		return wrapped
	}
}

func (w *Walker) joinedErrors() error {
	w.errLock.Lock()
	defer w.errLock.Unlock()
	if len(w.errs) > 0 {
		return errors.Join(w.errs...)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal traversal
// --------------------------------------------------------------------------

// dirNode is a directory whose listing is read at most once, either by a
// pool worker or by the consuming goroutine, whichever gets there first.
type dirNode struct {
	path   string
	real   string // resolved path, only tracked when following links
	depth  uint
	parent *dirNode

	once    sync.Once
	entries godirwalk.Dirents
	err     error
}

func (n *dirNode) load(w *Walker, scratch []byte) {
	n.once.Do(func() {
		if w.aborted.Load() {
			n.err = context.Canceled
			return
		}
		n.entries, n.err = godirwalk.ReadDirents(n.path, scratch)
		if n.err != nil {
			return
		}
		atomic.AddInt64(&w.stats.DirsRead, 1)
		if w.opts.Sort {
			sort.Sort(n.entries)
		}
	})
}

// onChain reports whether real is the resolved path of n or one of its ancestors.
func (n *dirNode) onChain(real string) bool {
	for p := n; p != nil; p = p.parent {
		if p.real == real {
			return true
		}
	}
	return false
}

type entryKind int

const (
	entryFile entryKind = iota
	entryDir
)

type entry struct {
	path string
	kind entryKind
	node *dirNode
}

type traversal struct {
	walker  *Walker
	fn      FileFunc
	pool    *pool.Pool
	scratch []byte
}

func (t *traversal) visit(ctx context.Context, n *dirNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := t.walker
	if n.depth >= w.opts.MaxDepth {
		return nil
	}

	n.load(w, t.scratch)
	if n.err != nil {
		return w.handleError(n.path, n.err)
	}

	entries, err := t.classify(n)
	if err != nil {
		return err
	}

	// Queue subdirectories before descending so siblings are read ahead.
	if t.pool != nil {
		for _, e := range entries {
			if e.kind == entryDir {
				child := e.node
				t.pool.Go(func() { child.load(w, nil) })
			}
		}
	}

	for _, e := range entries {
		switch e.kind {
		case entryFile:
			atomic.AddInt64(&w.stats.FilesEmitted, 1)
			if err := t.fn(e.path); err != nil {
				return err
			}
		case entryDir:
			if err := t.visit(ctx, e.node); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify turns the listing of n into the files to report and the
// directories to descend, applying depth, hidden and symlink policies.
func (t *traversal) classify(n *dirNode) ([]entry, error) {
	w := t.walker
	opts := w.opts
	depth := n.depth + 1
	report := depth >= opts.MinDepth
	descend := depth < opts.MaxDepth

	entries := make([]entry, 0, len(n.entries))
	for _, de := range n.entries {
		name := de.Name()
		if opts.SkipHidden && isHiddenName(name) {
			atomic.AddInt64(&w.stats.EntriesSkipped, 1)
			continue
		}
		path := joinPath(n.path, name)

		isFile, isDir := de.IsRegular(), de.IsDir()
		if de.IsSymlink() {
			if !opts.FollowLinks {
				atomic.AddInt64(&w.stats.EntriesSkipped, 1)
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				if isMissing(err) {
					w.logger.Debug("dangling symlink", zap.String("path", path))
					atomic.AddInt64(&w.stats.EntriesSkipped, 1)
					continue
				}
				if err := w.handleError(path, err); err != nil {
					return nil, err
				}
				continue
			}
			isFile, isDir = info.Mode().IsRegular(), info.IsDir()
		}

		switch {
		case isFile:
			if report {
				entries = append(entries, entry{path: path, kind: entryFile})
			}
		case isDir:
			if !descend {
				continue
			}
			child := &dirNode{path: path, depth: depth, parent: n}
			if opts.FollowLinks {
				real, err := t.resolve(n, name, path, de.IsSymlink())
				if err != nil {
					if err := w.handleError(path, err); err != nil {
						return nil, err
					}
					continue
				}
				if n.onChain(real) {
					w.logger.Warn("skipping symlink cycle", zap.String("path", path), zap.String("target", real))
					atomic.AddInt64(&w.stats.EntriesSkipped, 1)
					continue
				}
				child.real = real
			}
			entries = append(entries, entry{path: path, kind: entryDir, node: child})
		default:
			atomic.AddInt64(&w.stats.EntriesSkipped, 1)
		}
	}
	return entries, nil
}

func (t *traversal) resolve(parent *dirNode, name, path string, isLink bool) (string, error) {
	if !isLink && parent.real != "" {
		return filepath.Join(parent.real, name), nil
	}
	return filepath.EvalSymlinks(path)
}

// joinPath appends name to dir without cleaning dir, so that a root of "."
// produces "./name" and a root with a trailing separator does not double it.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir + name
	}
	return dir + string(os.PathSeparator) + name
}

// isHiddenName reports whether a directory entry name is hidden by Unix convention.
func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
