package walk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

// createTree creates the given slash-separated files under root
func createTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

// relPaths strips root from every path and converts to slash form
func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("Failed to relativize %s: %v", p, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func walkFiles(t *testing.T, root string, opts Options) []string {
	t.Helper()
	files, err := opts.Build(root).Files(context.Background())
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return relPaths(t, root, files)
}

// TestWalkSortedSkipsHidden tests sorted output with a hidden file omitted
func TestWalkSortedSkipsHidden(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "b", "a", ".c")

	opts := DefaultOptions()
	opts.Sort = true

	got := walkFiles(t, root, opts)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestWalkUnsortedSameSet tests that unsorted walks report the same set of files
func TestWalkUnsortedSameSet(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "b", "a", ".c", "dir/x", "dir/y", "other/z")

	sorted := DefaultOptions()
	sorted.Sort = true
	unsorted := DefaultOptions()

	want := walkFiles(t, root, sorted)
	got := walkFiles(t, root, unsorted)
	sort.Strings(got)
	sort.Strings(want)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected set %v, got %v", want, got)
	}
}

// TestWalkParallelMatchesSequential tests that the read strategy does not change the output order
func TestWalkParallelMatchesSequential(t *testing.T) {
	root := t.TempDir()
	var files []string
	for _, d := range []string{"a", "b", "c", "d", "a/x", "a/y", "c/z/w"} {
		for _, f := range []string{"1", "2", "3"} {
			files = append(files, d+"/f"+f)
		}
	}
	createTree(t, root, files...)

	for _, sorted := range []bool{true, false} {
		seq := DefaultOptions()
		seq.Sort = sorted
		seq.Parallelism = Sequential()
		want := walkFiles(t, root, seq)

		if len(want) != len(files) {
			t.Fatalf("Expected %d files, got %d", len(files), len(want))
		}

		for _, p := range []Parallelism{FixedPool(2), FixedPool(8), DefaultPool()} {
			par := seq
			par.Parallelism = p
			got := walkFiles(t, root, par)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("sort=%v parallelism=%s: expected %v, got %v", sorted, p, want, got)
			}
		}
	}
}

// TestWalkDepthBounds tests min and max depth handling
func TestWalkDepthBounds(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "f0", "d1/f1", "d1/d2/f2")

	tests := []struct {
		name     string
		minDepth uint
		maxDepth uint
		want     []string
	}{
		{"unbounded", 0, ^uint(0), []string{"d1/d2/f2", "d1/f1", "f0"}},
		{"min depth 2", 2, ^uint(0), []string{"d1/d2/f2", "d1/f1"}},
		{"min depth 3", 3, ^uint(0), []string{"d1/d2/f2"}},
		{"max depth 1", 0, 1, []string{"f0"}},
		{"max depth 2", 0, 2, []string{"d1/f1", "f0"}},
		{"max depth 0", 0, 0, []string{}},
		{"exact depth 2", 2, 2, []string{"d1/f1"}},
		{"min above max", 3, 1, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Sort = true
			opts.MinDepth = tt.minDepth
			opts.MaxDepth = tt.maxDepth

			got := walkFiles(t, root, opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestWalkHiddenDirectories tests that hidden directories are not descended unless requested
func TestWalkHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "visible", ".git/config", ".git/objects/ab")

	opts := DefaultOptions()
	opts.Sort = true

	got := walkFiles(t, root, opts)
	if !reflect.DeepEqual(got, []string{"visible"}) {
		t.Errorf("Expected only visible file, got %v", got)
	}

	opts.SkipHidden = false
	got = walkFiles(t, root, opts)
	want := []string{".git/config", ".git/objects/ab", "visible"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestWalkHiddenRoot tests that the root is never filtered as hidden
func TestWalkHiddenRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".config")
	createTree(t, root, "settings")

	got := walkFiles(t, root, DefaultOptions())
	if !reflect.DeepEqual(got, []string{"settings"}) {
		t.Errorf("Expected [settings], got %v", got)
	}
}

// TestWalkSymlinks tests the follow-links policy
func TestWalkSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	createTree(t, root, "real")
	createTree(t, outside, "target", "dir/inner")

	if err := os.Symlink(filepath.Join(outside, "target"), filepath.Join(root, "link")); err != nil {
		t.Skipf("Symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "dir"), filepath.Join(root, "linkdir")); err != nil {
		t.Fatalf("Failed to create directory symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Fatalf("Failed to create dangling symlink: %v", err)
	}

	opts := DefaultOptions()
	opts.Sort = true

	got := walkFiles(t, root, opts)
	if !reflect.DeepEqual(got, []string{"real"}) {
		t.Errorf("Expected links to be ignored, got %v", got)
	}

	opts.FollowLinks = true
	got = walkFiles(t, root, opts)
	want := []string{"link", "linkdir/inner", "real"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestWalkSymlinkCycle tests that a link back to an ancestor does not loop forever
func TestWalkSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "sub/file")

	if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
		t.Skipf("Symlinks not supported: %v", err)
	}

	opts := DefaultOptions()
	opts.Sort = true
	opts.FollowLinks = true

	got := walkFiles(t, root, opts)
	if !reflect.DeepEqual(got, []string{"sub/file"}) {
		t.Errorf("Expected [sub/file], got %v", got)
	}
}

// TestWalkRootNotDirectory tests the silent omission of missing and non-directory roots
func TestWalkRootNotDirectory(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "file")

	for _, path := range []string{
		filepath.Join(root, "missing"),
		filepath.Join(root, "file"),
		filepath.Join(root, "file", "below"),
	} {
		files, err := DefaultOptions().Build(path).Files(context.Background())
		if err != nil {
			t.Errorf("Expected no error for %s, got %v", path, err)
		}
		if len(files) != 0 {
			t.Errorf("Expected no files for %s, got %v", path, files)
		}
	}
}

// TestWalkErrorHandling tests the stop, skip and continue policies on an unreadable directory
func TestWalkErrorHandling(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("Permission checks do not apply to root")
	}

	root := t.TempDir()
	createTree(t, root, "a", "locked/secret", "z")
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}
	defer os.Chmod(locked, 0755)

	opts := DefaultOptions()
	opts.Sort = true

	opts.ErrorHandling = ErrorHandlingStop
	if _, err := opts.Build(root).Files(context.Background()); err == nil {
		t.Error("Expected error with ErrorHandlingStop")
	} else if !errors.Is(err, os.ErrPermission) {
		t.Errorf("Expected permission error, got %v", err)
	}

	opts.ErrorHandling = ErrorHandlingSkip
	files, err := opts.Build(root).Files(context.Background())
	if err != nil {
		t.Errorf("Expected no error with ErrorHandlingSkip, got %v", err)
	}
	if got := relPaths(t, root, files); !reflect.DeepEqual(got, []string{"a", "z"}) {
		t.Errorf("Expected [a z], got %v", got)
	}

	opts.ErrorHandling = ErrorHandlingContinue
	w := opts.Build(root)
	files, err = w.Files(context.Background())
	if err == nil {
		t.Error("Expected joined error with ErrorHandlingContinue")
	}
	if got := relPaths(t, root, files); !reflect.DeepEqual(got, []string{"a", "z"}) {
		t.Errorf("Expected partial result [a z], got %v", got)
	}
	if w.Stats().ErrorCount != 1 {
		t.Errorf("Expected 1 error counted, got %d", w.Stats().ErrorCount)
	}
}

// TestWalkCallbackError tests that an error from the callback aborts the walk
func TestWalkCallbackError(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "a", "b", "c")

	customErr := errors.New("custom error")
	var calls int
	err := DefaultOptions().Build(root).Walk(context.Background(), func(path string) error {
		calls++
		return customErr
	})

	if !errors.Is(err, customErr) {
		t.Errorf("Expected custom error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before abort, got %d", calls)
	}
}

// TestWalkContextCanceled tests that a canceled context stops the walk
func TestWalkContextCanceled(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "a", "dir/b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultOptions().Build(root).Files(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestWalkStats tests the traversal counters
func TestWalkStats(t *testing.T) {
	root := t.TempDir()
	createTree(t, root, "a", ".hidden", "dir/b", "dir/sub/c")

	w := DefaultOptions().Build(root)
	if _, err := w.Files(context.Background()); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	stats := w.Stats()
	if stats.FilesEmitted != 3 {
		t.Errorf("Expected 3 files, got %d", stats.FilesEmitted)
	}
	if stats.DirsRead != 3 {
		t.Errorf("Expected 3 directories read, got %d", stats.DirsRead)
	}
	if stats.EntriesSkipped != 1 {
		t.Errorf("Expected 1 skipped entry, got %d", stats.EntriesSkipped)
	}
	if stats.ElapsedTime <= 0 {
		t.Errorf("Expected positive elapsed time, got %v", stats.ElapsedTime)
	}
}

// TestJoinPath tests that roots are not cleaned when joining
func TestJoinPath(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		dir, name, want string
	}{
		{".", "a", "." + sep + "a"},
		{"dir", "a", "dir" + sep + "a"},
		{"dir" + sep, "a", "dir" + sep + "a"},
	}
	for _, tt := range tests {
		if got := joinPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}
