// Package filelist expands command-line arguments into the regular files they name.
package filelist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/logging"
	"github.com/TFMV/filelist/internal/walk"
)

// ErrReadStream is returned when a stream of path fragments cannot be read.
var ErrReadStream = errors.New("cannot read path stream")

// PartialError collects the walk errors that walk.ErrorHandlingContinue
// downgraded. Results returned alongside it are complete except for the
// entries it names.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *PartialError) Unwrap() []error {
	return e.Errs
}

// Expander turns Arguments into regular-file paths.
//
// Walk is optional: when nil, directory arguments yield nothing; otherwise
// they are walked with those options and every regular file is yielded.
type Expander struct {
	Delimiter Delimiter
	Walk      *walk.Options
	Logger    *zap.Logger
}

// NewExpander returns an Expander splitting streams on delim and walking
// directories with opts when opts is non-nil.
func NewExpander(delim Delimiter, opts *walk.Options, logger *zap.Logger) *Expander {
	return &Expander{
		Delimiter: delim,
		Walk:      opts,
		Logger:    logger,
	}
}

// Expand expands a single argument.
func (e *Expander) Expand(ctx context.Context, arg Argument) ([]string, error) {
	return e.ExpandArguments(ctx, []Argument{arg})
}

// ExpandArguments expands args in order and concatenates the results.
// When walk errors are downgraded by walk.ErrorHandlingContinue, the result
// is returned together with a *PartialError.
func (e *Expander) ExpandArguments(ctx context.Context, args []Argument) ([]string, error) {
	var out []string
	err := e.Each(ctx, args, func(path string) error {
		out = append(out, path)
		return nil
	})
	return out, err
}

// Each expands args in order and calls fn for every resulting path as soon as
// it is found. An error returned by fn aborts the expansion.
func (e *Expander) Each(ctx context.Context, args []Argument, fn func(path string) error) error {
	x := e.start(ctx, fn)
	for _, arg := range args {
		if err := x.argument(arg); err != nil {
			return err
		}
	}
	return x.finish()
}

// expansion is the state of a single Each call.
type expansion struct {
	*Expander
	ctx    context.Context
	logger *zap.Logger
	fn     func(string) error
	fnErr  error
	errs   []error
}

func (e *Expander) start(ctx context.Context, fn func(string) error) *expansion {
	x := &expansion{
		Expander: e,
		ctx:      ctx,
		logger:   logging.OrNop(e.Logger),
	}
	x.fn = func(path string) error {
		if err := fn(path); err != nil {
			x.fnErr = err
			return err
		}
		return nil
	}
	return x
}

func (x *expansion) finish() error {
	if len(x.errs) == 0 {
		return nil
	}
	return &PartialError{Errs: x.errs}
}

func (x *expansion) argument(arg Argument) error {
	switch a := arg.(type) {
	case Stream:
		return x.stream(a)
	case Path:
		return x.path(string(a))
	default:
		return fmt.Errorf("unsupported argument type %T", arg)
	}
}

// stream splits s on the delimiter and expands every fragment as a Path.
// A final fragment without a trailing delimiter is kept; a trailing delimiter
// does not produce an extra empty fragment.
func (x *expansion) stream(s Stream) error {
	if s.Reader == nil {
		return nil
	}
	if c, ok := s.Reader.(io.Closer); ok {
		defer c.Close()
	}

	delim := x.Delimiter.Byte()
	r := bufio.NewReader(s.Reader)
	for {
		if err := x.ctx.Err(); err != nil {
			return err
		}

		frag, readErr := r.ReadBytes(delim)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("%w: %w", ErrReadStream, readErr)
		}

		if n := len(frag); n > 0 && frag[n-1] == delim {
			frag = frag[:n-1]
			if err := x.fragment(frag); err != nil {
				return err
			}
		} else if n > 0 {
			if err := x.fragment(frag); err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			return nil
		}
	}
}

// fragment expands one split run. Empty runs, produced by consecutive
// delimiters, never reach the filesystem.
func (x *expansion) fragment(frag []byte) error {
	if len(frag) == 0 {
		x.logger.Debug("dropping empty path fragment")
		return nil
	}
	return x.path(string(frag))
}

// path yields p if it is a regular file, walks it if walking is enabled, and
// yields nothing otherwise.
func (x *expansion) path(p string) error {
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		return x.fn(p)
	}

	if x.Walk == nil {
		x.logger.Debug("skipping argument that is not a regular file", zap.String("path", p))
		return nil
	}

	opts := *x.Walk
	if opts.Logger == nil {
		opts.Logger = x.Logger
	}

	err := opts.Build(p).Walk(x.ctx, x.fn)
	if err == nil {
		return nil
	}
	if x.tolerate(err) {
		x.errs = append(x.errs, err)
		return nil
	}
	return err
}

// tolerate reports whether a walk error was already downgraded by the
// continue policy and should not stop the remaining arguments.
func (x *expansion) tolerate(err error) bool {
	if x.Walk.ErrorHandling != walk.ErrorHandlingContinue || x.fnErr != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
