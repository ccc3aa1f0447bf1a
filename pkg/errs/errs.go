package errs

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
)

const (
	traceSkip     = 3
	trackPrealloc = 50
)

type sFrame struct {
	filename string
	method   string
	line     int
}

func (f sFrame) String() string {
	return f.method + " " + f.filename + ":" + strconv.Itoa(f.line)
}

type stack []sFrame

func (s stack) String() string {
	frames := make([]string, 0, len(s))
	for _, frame := range s {
		frames = append(frames, frame.String())
	}

	return strings.Join(frames, "\n")
}

type errorWithTrace struct {
	error

	trace stack
}

func (e *errorWithTrace) Unwrap() error {
	return e.error
}

// NewStack attaches the caller's stack trace to err and logs it once.
// Errors that already carry a trace are returned untouched.
func NewStack(err error) error {
	if err == nil {
		return nil
	}

	var errWT *errorWithTrace

	// Add trace only once
	if errors.As(err, &errWT) {
		return err
	}

	stack := stackTrace(traceSkip)

	log.Error("error with trace", zap.Error(err), zap.Stringer("trace", stack))

	return &errorWithTrace{
		error: err,
		trace: stack,
	}
}

// Wrapf is NewStack over fmt.Errorf; use %w in format to keep the cause.
func Wrapf(format string, args ...any) error {
	return NewStack(fmt.Errorf(format, args...))
}

// Trace returns the recorded stack of err, if any.
func Trace(err error) string {
	var errWT *errorWithTrace
	if errors.As(err, &errWT) {
		return errWT.trace.String()
	}

	return ""
}

func stackTrace(skip int) stack {
	pc := make([]uintptr, trackPrealloc)
	n := runtime.Callers(skip, pc)
	pc = pc[:n]

	frames := runtime.CallersFrames(pc)
	stack := make(stack, 0, n)

	for {
		frame, more := frames.Next()

		stack = append(stack, sFrame{filename: frame.File, method: frame.Function, line: frame.Line})

		if !more {
			break
		}
	}

	return stack
}
