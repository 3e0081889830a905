package walk

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Configuration types
// --------------------------------------------------------------------------

// ErrorHandling defines how per-entry I/O errors are handled during traversal.
type ErrorHandling int

const (
	ErrorHandlingStop     ErrorHandling = iota // Abort the walk on the first error
	ErrorHandlingSkip                          // Log the error and skip the entry
	ErrorHandlingContinue                      // Log, skip, and return all errors after the walk
)

// String returns the flag spelling of the mode.
func (e ErrorHandling) String() string {
	switch e {
	case ErrorHandlingStop:
		return "stop"
	case ErrorHandlingSkip:
		return "skip"
	case ErrorHandlingContinue:
		return "continue"
	default:
		return fmt.Sprintf("ErrorHandling(%d)", int(e))
	}
}

// ParseErrorHandling parses "stop", "skip" or "continue".
func ParseErrorHandling(s string) (ErrorHandling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return ErrorHandlingStop, nil
	case "skip":
		return ErrorHandlingSkip, nil
	case "continue":
		return ErrorHandlingContinue, nil
	default:
		return ErrorHandlingStop, fmt.Errorf("invalid error-mode: %s", s)
	}
}

type parallelMode int

const (
	parallelDefault parallelMode = iota
	parallelSerial
	parallelFixed
)

// Parallelism selects how many goroutines read directory listings.
// The zero value is the default pool.
type Parallelism struct {
	mode    parallelMode
	workers int
}

// Sequential reads every directory on the walking goroutine.
func Sequential() Parallelism {
	return Parallelism{mode: parallelSerial}
}

// FixedPool reads directories with n workers. n < 2 is the same as Sequential.
func FixedPool(n int) Parallelism {
	if n < 2 {
		return Sequential()
	}
	return Parallelism{mode: parallelFixed, workers: n}
}

// DefaultPool reads directories with one worker per CPU.
func DefaultPool() Parallelism {
	return Parallelism{mode: parallelDefault}
}

// Workers returns the number of goroutines reading directories.
func (p Parallelism) Workers() int {
	switch p.mode {
	case parallelSerial:
		return 1
	case parallelFixed:
		return p.workers
	default:
		return runtime.NumCPU()
	}
}

// String returns the flag spelling of the strategy.
func (p Parallelism) String() string {
	switch p.mode {
	case parallelSerial:
		return "serial"
	case parallelFixed:
		return strconv.Itoa(p.workers)
	default:
		return "default"
	}
}

// ParseParallelism parses "default", "serial" (or "sequential"), or a worker count.
func ParseParallelism(s string) (Parallelism, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return DefaultPool(), nil
	case "serial", "sequential":
		return Sequential(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return DefaultPool(), fmt.Errorf("invalid parallelism value: %s", s)
	}
	return FixedPool(n), nil
}

// Options configures a directory walk. Options is a plain value: copy it and
// change fields to derive a new configuration.
//
// MinDepth <= MaxDepth is the caller's responsibility; a walk with
// MinDepth > MaxDepth reports nothing.
type Options struct {
	Sort          bool          // Visit children in byte-lexicographic order
	MinDepth      uint          // Do not report entries shallower than this (root is depth 0)
	MaxDepth      uint          // Do not descend deeper than this
	SkipHidden    bool          // Skip dot entries below the root
	FollowLinks   bool          // Follow symbolic links to files and directories
	Parallelism   Parallelism   // Directory read strategy
	ErrorHandling ErrorHandling // Policy for per-entry I/O errors
	Logger        *zap.Logger   // Optional; a no-op logger is used when nil
}

// DefaultOptions returns the default walk configuration: unsorted, no depth
// bounds, hidden entries skipped, links not followed, default pool, stop on error.
func DefaultOptions() Options {
	return Options{
		Sort:          false,
		MinDepth:      0,
		MaxDepth:      math.MaxUint,
		SkipHidden:    true,
		FollowLinks:   false,
		Parallelism:   DefaultPool(),
		ErrorHandling: ErrorHandlingStop,
	}
}
