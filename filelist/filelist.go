// Package filelist resolves command-line style path arguments into a flat,
// ordered list of regular files.
//
// It re-exports the expansion engine and the directory walker so that other
// programs can embed the same behavior as the filelist command.
package filelist

import (
	"context"
	"io"

	"go.uber.org/zap"

	internal "github.com/TFMV/filelist/internal/filelist"
	"github.com/TFMV/filelist/internal/walk"
)

// Re-export the argument and expansion types from the internal packages
type (
	// Argument is either a Path or a Stream of delimiter-separated paths.
	Argument = internal.Argument

	// Path names a single filesystem entry.
	Path = internal.Path

	// Stream supplies delimiter-separated paths.
	Stream = internal.Stream

	// Delimiter is the single byte that separates paths in a stream.
	Delimiter = internal.Delimiter

	// Expander turns arguments into regular file paths.
	Expander = internal.Expander

	// PartialError is returned in continue mode alongside partial results.
	PartialError = internal.PartialError

	// Writer prints expanded paths.
	Writer = internal.Writer

	// OutputOptions configures a Writer.
	OutputOptions = internal.OutputOptions

	// Format selects text or JSON output.
	Format = internal.Format

	// WalkOptions configures directory recursion.
	WalkOptions = walk.Options

	// Parallelism selects how many directory listings may be read ahead.
	Parallelism = walk.Parallelism

	// ErrorHandling selects how per-entry I/O errors are treated.
	ErrorHandling = walk.ErrorHandling

	// Stats holds counters from a finished walk.
	Stats = walk.Stats
)

// Re-export all the constants
const (
	Sentinel = internal.Sentinel

	// Delimiters
	Newline = internal.Newline
	Null    = internal.Null
	Tab     = internal.Tab

	// Output formats
	FormatText = internal.FormatText
	FormatJSON = internal.FormatJSON

	// Error handling modes
	ErrorHandlingStop     = walk.ErrorHandlingStop
	ErrorHandlingSkip     = walk.ErrorHandlingSkip
	ErrorHandlingContinue = walk.ErrorHandlingContinue
)

// Re-export the sentinel errors
var (
	ErrInvalidDelimiter    = internal.ErrInvalidDelimiter
	ErrCannotOpenListFile  = internal.ErrCannotOpenListFile
	ErrReadStream          = internal.ErrReadStream
	ErrUnrepresentablePath = internal.ErrUnrepresentablePath
)

// NewStream wraps r as a stream argument.
func NewStream(r io.Reader) Stream {
	return internal.NewStream(r)
}

// ParseDelimiter accepts a single byte or one of the escapes \n, \t and \0.
func ParseDelimiter(token string) (Delimiter, error) {
	return internal.ParseDelimiter(token)
}

// Classify maps raw tokens to arguments. The first "-" reads from stdin.
func Classify(tokens []string, stdin io.Reader) []Argument {
	return internal.Classify(tokens, stdin)
}

// NewWalkOptions returns the default recursion settings: unlimited depth,
// hidden entries skipped, links not followed, and a default worker pool.
func NewWalkOptions() WalkOptions {
	return walk.DefaultOptions()
}

// NewExpander creates an Expander. A nil opts disables directory recursion.
func NewExpander(delim Delimiter, opts *WalkOptions, logger *zap.Logger) *Expander {
	return internal.NewExpander(delim, opts, logger)
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, opts OutputOptions) *Writer {
	return internal.NewWriter(w, opts)
}

// Expand resolves tokens, reading stdin for the first "-", without recursion.
func Expand(ctx context.Context, tokens []string, stdin io.Reader) ([]string, error) {
	return internal.NewExpander(Newline, nil, nil).ExpandTokens(ctx, tokens, stdin)
}

// ExpandRecursive resolves tokens like Expand but walks directories using opts.
func ExpandRecursive(ctx context.Context, tokens []string, stdin io.Reader, opts WalkOptions) ([]string, error) {
	return internal.NewExpander(Newline, &opts, opts.Logger).ExpandTokens(ctx, tokens, stdin)
}

// Walk calls fn for every regular file below root in depth-first order.
func Walk(ctx context.Context, root string, opts WalkOptions, fn func(path string) error) error {
	return opts.Build(root).Walk(ctx, fn)
}

// Watch reports regular files created below roots until ctx is cancelled.
func Watch(ctx context.Context, roots []string, opts WalkOptions, fn func(path string) error) error {
	return walk.Watch(ctx, roots, opts, fn)
}
