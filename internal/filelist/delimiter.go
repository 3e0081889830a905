package filelist

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidDelimiter is returned when a delimiter token cannot be parsed.
var ErrInvalidDelimiter = errors.New("invalid delimiter")

// Delimiter is the single byte separating path fragments in a stream.
type Delimiter byte

// Named delimiters. Any other byte is an "other" delimiter.
const (
	Newline Delimiter = '\n'
	Null    Delimiter = 0
	Tab     Delimiter = '\t'
)

// DelimiterKind classifies a Delimiter.
type DelimiterKind int

const (
	KindNewline DelimiterKind = iota
	KindNull
	KindTab
	KindOther
)

// ParseDelimiter parses a delimiter token. The two-character escapes `\n`,
// `\t` and `\0` name the newline, tab and NUL bytes; otherwise the token must
// be valid UTF-8 and exactly one byte long.
func ParseDelimiter(token string) (Delimiter, error) {
	if !utf8.ValidString(token) {
		return Newline, fmt.Errorf("%w: %q is not valid text", ErrInvalidDelimiter, token)
	}

	switch token {
	case `\n`:
		return Newline, nil
	case `\t`:
		return Tab, nil
	case `\0`:
		return Null, nil
	}

	if len(token) != 1 {
		return Newline, fmt.Errorf(`%w: %q (expected a single byte or one of \n, \t, \0)`, ErrInvalidDelimiter, token)
	}
	return Delimiter(token[0]), nil
}

// Byte returns the separator byte.
func (d Delimiter) Byte() byte {
	return byte(d)
}

// Kind reports whether d is one of the named delimiters.
func (d Delimiter) Kind() DelimiterKind {
	switch d {
	case Newline:
		return KindNewline
	case Null:
		return KindNull
	case Tab:
		return KindTab
	default:
		return KindOther
	}
}

// String renders the delimiter in the form ParseDelimiter accepts.
func (d Delimiter) String() string {
	switch d {
	case Newline:
		return `\n`
	case Null:
		return `\0`
	case Tab:
		return `\t`
	default:
		return string([]byte{byte(d)})
	}
}

// Set implements pflag.Value.
func (d *Delimiter) Set(s string) error {
	parsed, err := ParseDelimiter(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Type implements pflag.Value.
func (d *Delimiter) Type() string {
	return "delimiter"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Delimiter) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

// MarshalText implements encoding.TextMarshaler.
func (d Delimiter) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
