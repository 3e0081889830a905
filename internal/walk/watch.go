package walk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/logging"
)

// ErrNothingToWatch is returned by Watch when none of the roots is a directory.
var ErrNothingToWatch = errors.New("walk: no directory to watch")

// watchedDir is a directory added to the watcher. display is the path in the
// form a walk of the same root would print it.
type watchedDir struct {
	depth   uint
	display string
}

// watchState tracks the watched directories, keyed by cleaned path.
type watchState struct {
	opts    Options
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	dirs    map[string]watchedDir
	reals   map[string]struct{} // resolved directories, only tracked when following links
	seen    map[string]struct{}
	fn      FileFunc
}

// Watch follows the directory trees under roots and calls fn for every regular
// file that appears after Watch starts, applying the same depth, hidden-entry
// and symlink policies as a walk. Files inside newly created directories are
// reported too. Reported paths have the form a walk of the same root produces.
// Watch returns nil when ctx is done.
func Watch(ctx context.Context, roots []string, opts Options, fn FileFunc) error {
	logger := logging.OrNop(opts.Logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	s := &watchState{
		opts:    opts,
		logger:  logger,
		watcher: watcher,
		dirs:    make(map[string]watchedDir),
		reals:   make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		fn:      fn,
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := s.register(root, root, 0); err != nil {
			return err
		}
	}
	if len(s.dirs) == 0 {
		return ErrNothingToWatch
	}
	logger.Info("watching for new files", zap.Int("directories", len(s.dirs)))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.created(ctx, event.Name); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if s.opts.ErrorHandling == ErrorHandlingStop {
				return fmt.Errorf("watcher error: %w", err)
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// register adds dir, found at depth and printed as display, and every
// directory below it that the walk policies allow to the watcher. dir itself
// is always registered, like the root of a walk.
func (s *watchState) register(dir, display string, depth uint) error {
	if depth >= s.opts.MaxDepth {
		return nil
	}
	top := filepath.Clean(dir)
	return godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: s.opts.FollowLinks,
		Callback: func(path string, de *godirwalk.Dirent) error {
			key := filepath.Clean(path)
			isTop := key == top
			if !isTop && de.IsSymlink() && !s.opts.FollowLinks {
				return nil
			}
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil || !isDir {
				return nil
			}
			d := depth + relativeDepth(dir, path)
			if !isTop && s.opts.SkipHidden && isHiddenName(de.Name()) {
				return filepath.SkipDir
			}
			if d >= s.opts.MaxDepth {
				return filepath.SkipDir
			}
			if _, ok := s.dirs[key]; ok {
				return filepath.SkipDir
			}
			if s.opts.FollowLinks {
				if real, err := filepath.EvalSymlinks(path); err == nil {
					if _, ok := s.reals[real]; ok {
						s.logger.Warn("directory already watched through another path",
							zap.String("path", path), zap.String("target", real))
						return filepath.SkipDir
					}
					s.reals[real] = struct{}{}
				}
			}
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("error watching directory", zap.String("path", path), zap.Error(err))
				return filepath.SkipDir
			}
			s.dirs[key] = watchedDir{depth: d, display: displayPath(dir, display, path)}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			s.logger.Warn("error registering directory", zap.String("path", path), zap.Error(err))
			return godirwalk.SkipNode
		},
	})
}

// created handles a new entry in a watched directory.
func (s *watchState) created(ctx context.Context, path string) error {
	parent, ok := s.dirs[filepath.Dir(path)]
	if !ok {
		return nil
	}
	depth := parent.depth + 1
	name := filepath.Base(path)
	if s.opts.SkipHidden && isHiddenName(name) {
		return nil
	}
	display := joinPath(parent.display, name)

	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if !s.opts.FollowLinks {
			return nil
		}
		if info, err = os.Stat(path); err != nil {
			return nil
		}
	}

	switch {
	case info.Mode().IsRegular():
		if depth >= s.opts.MinDepth {
			return s.report(display)
		}
	case info.IsDir():
		if err := s.register(path, display, depth); err != nil {
			s.logger.Warn("error watching new directory", zap.String("path", path), zap.Error(err))
		}
		// Entries may have been created before the directory was watched.
		sub := s.opts
		sub.MinDepth = saturatingSub(s.opts.MinDepth, depth)
		sub.MaxDepth = saturatingSub(s.opts.MaxDepth, depth)
		return sub.Build(display).Walk(ctx, s.report)
	}
	return nil
}

func (s *watchState) report(path string) error {
	if _, ok := s.seen[path]; ok {
		return nil
	}
	s.seen[path] = struct{}{}
	return s.fn(path)
}

// displayPath maps path, found by walking dir, to the same location below
// display using the unclean joins of a walk.
func displayPath(dir, display, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return display
	}
	return joinPath(display, rel)
}

func relativeDepth(root, path string) uint {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return uint(strings.Count(rel, string(os.PathSeparator)) + 1)
}

func saturatingSub(a, b uint) uint {
	if b > a {
		return 0
	}
	return a - b
}
