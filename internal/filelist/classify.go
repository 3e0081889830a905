package filelist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/logging"
)

// Sentinel is the token that requests reading path fragments from stdin.
const Sentinel = "-"

// ErrCannotOpenListFile is returned when a list file cannot be opened.
var ErrCannotOpenListFile = errors.New("cannot open list file")

// Classify turns command-line tokens into arguments. Every token other than
// the sentinel becomes a Path, in order. The first sentinel is replaced by a
// Stream over stdin at its position; later sentinels are dropped, so stdin is
// read at most once. A nil stdin means os.Stdin.
func Classify(tokens []string, stdin io.Reader) []Argument {
	args := make([]Argument, 0, len(tokens))
	first := -1
	for i, tok := range tokens {
		if tok == Sentinel {
			if first < 0 {
				first = i
			}
			continue
		}
		args = append(args, Path(tok))
	}

	if first >= 0 {
		if stdin == nil {
			stdin = os.Stdin
		}
		args = slices.Insert(args, first, Argument(NewStream(stdin)))
	}
	return args
}

// ExpandTokens classifies tokens and expands the resulting arguments in order.
func (e *Expander) ExpandTokens(ctx context.Context, tokens []string, stdin io.Reader) ([]string, error) {
	if n := countSentinels(tokens); n > 1 {
		logging.OrNop(e.Logger).Debug("ignoring repeated stdin sentinel", zap.Int("ignored", n-1))
	}
	return e.ExpandArguments(ctx, Classify(tokens, stdin))
}

// ExpandListFiles opens each list file in order and expands its contents as a
// stream. A list file that cannot be opened fails the whole expansion.
func (e *Expander) ExpandListFiles(ctx context.Context, paths []string) ([]string, error) {
	var out []string
	x := e.start(ctx, func(path string) error {
		out = append(out, path)
		return nil
	})

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return out, fmt.Errorf("%w %s: %w", ErrCannotOpenListFile, path, err)
		}
		logging.OrNop(e.Logger).Debug("reading list file", zap.String("path", path))
		if err := x.argument(NewStream(f)); err != nil {
			return out, err
		}
	}
	return out, x.finish()
}

func countSentinels(tokens []string) int {
	var n int
	for _, tok := range tokens {
		if tok == Sentinel {
			n++
		}
	}
	return n
}
