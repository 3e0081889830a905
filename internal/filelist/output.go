package filelist

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrUnrepresentablePath is returned when a path is not valid UTF-8 and lossy
// output was not requested.
var ErrUnrepresentablePath = errors.New("path cannot be represented as text")

// Format selects how results are written.
type Format int

const (
	FormatText Format = iota // One path per delimiter
	FormatJSON               // A JSON array of paths
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid format: %s", s)
	}
}

// OutputOptions configures a Writer.
type OutputOptions struct {
	Format    Format
	Delimiter Delimiter // Separator written after each path in text format
	NFC       bool      // Normalize paths to Unicode NFC before writing
	Lossy     bool      // Replace invalid UTF-8 instead of failing
}

// Writer renders expansion results.
type Writer struct {
	w    io.Writer
	opts OutputOptions
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer, opts OutputOptions) *Writer {
	return &Writer{w: w, opts: opts}
}

// WriteAll renders every path. All paths are checked before anything is
// written, so an unrepresentable path produces no partial output.
func (w *Writer) WriteAll(paths []string) error {
	rendered := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := w.render(p)
		if err != nil {
			return err
		}
		rendered = append(rendered, r)
	}

	if w.opts.Format == FormatJSON {
		enc := json.NewEncoder(w.w)
		enc.SetEscapeHTML(false)
		return enc.Encode(rendered)
	}

	bw := bufio.NewWriter(w.w)
	for _, r := range rendered {
		if _, err := bw.WriteString(r); err != nil {
			return err
		}
		if err := bw.WriteByte(w.opts.Delimiter.Byte()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePath renders a single path in text format, for streaming output.
func (w *Writer) WritePath(p string) error {
	r, err := w.render(p)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w.w, r+string([]byte{w.opts.Delimiter.Byte()}))
	return err
}

func (w *Writer) render(p string) (string, error) {
	if !utf8.ValidString(p) {
		if !w.opts.Lossy {
			return "", fmt.Errorf("%w: %q", ErrUnrepresentablePath, p)
		}
		p = strings.ToValidUTF8(p, string(utf8.RuneError))
	}
	if w.opts.NFC {
		p = norm.NFC.String(p)
	}
	return p, nil
}
