// Package walk provides the recursive directory traversal behind filelist.
//
// A walk is configured with an Options value and instantiated for a root with
// Build. Only regular files are reported; directories are descended subject to
// the depth bounds, hidden entries and symbolic links are governed by
// SkipHidden and FollowLinks, and Sort orders the children of each directory.
//
//	opts := walk.DefaultOptions()
//	opts.Sort = true
//	files, err := opts.Build("/path/to/root").Files(ctx)
//
// Directory listings can be read by a worker pool (see Parallelism). The
// callback order is always depth-first, so parallel and sequential walks of an
// unchanged tree report the same sequence.
//
// Watch Functionality
//
// Watch follows the same trees with fsnotify and reports regular files that
// appear after it starts:
//
//	err := walk.Watch(ctx, []string{"/path/to/root"}, opts, func(path string) error {
//		fmt.Println(path)
//		return nil
//	})
package walk
