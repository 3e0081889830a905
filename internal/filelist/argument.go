package filelist

import "io"

// Argument is one input unit to expand: either a Path or a Stream of
// delimiter-separated path fragments.
type Argument interface {
	argument()
}

// Path is a single filesystem path, not yet checked to exist.
type Path string

// Stream is a byte source of path fragments. The expansion that receives a
// Stream reads it to the end and closes it if it implements io.Closer.
type Stream struct {
	io.Reader
}

// NewStream wraps r as a Stream argument.
func NewStream(r io.Reader) Stream {
	return Stream{Reader: r}
}

func (Path) argument()   {}
func (Stream) argument() {}
