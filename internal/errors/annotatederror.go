// Package errors annotates errors with structured [slog.Attr] and the source location where they were
// created or wrapped so that a single log line tells where things went wrong.
//
// It re-exports the standard library helpers so that callers only need to import this package.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// Join is [errors.Join].
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is is [errors.Is].
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is [errors.As].
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

type annotatedError struct {
	msg    string
	cause  error
	attrs  []slog.Attr
	source string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates an error without source location. Use it for package level sentinel errors
// that are compared with [Is].
func NewSentinel(text string) error {
	return errors.New(text) //nolint:err113 // this is the sentinel constructor.
}

// New creates an error that remembers the caller's source location.
func New(text string, attrs ...slog.Attr) error {
	return &annotatedError{
		msg:    text,
		cause:  nil,
		attrs:  attrs,
		source: callerSource(),
	}
}

// Wrap wraps err with msg and optional attributes that are logged with [SlogError].
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		msg:    msg,
		cause:  err,
		attrs:  attrs,
		source: callerSource(),
	}
}

// DecoratePanic converts a recovered panic value into an error pointing to the panicking line.
func DecoratePanic(excp any) error {
	if excp == nil {
		return nil
	}
	var cause error
	if err, ok := excp.(error); ok {
		cause = err
	} else {
		cause = NewSentinel(fmt.Sprint(excp))
	}
	return &annotatedError{
		msg:    "panic",
		cause:  cause,
		attrs:  nil,
		source: panicSource(),
	}
}

// SlogError flattens err into a slog group containing the message, all annotations in the chain,
// and the source of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("<nil>")}
	}

	var (
		annotations []any
		source      string
	)
	walk(err, func(ae *annotatedError) {
		for _, a := range ae.attrs {
			annotations = append(annotations, a)
		}
		if ae.source != "" {
			source = ae.source
		}
	})

	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// walk visits every annotated error in the tree, outermost first.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // we walk the tree manually.
		visit(ae)
	}
	switch u := err.(type) { //nolint:errorlint // we walk the tree manually.
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), visit)
	}
}

func callerSource() string {
	// Skip callerSource and the constructor.
	_, file, line, ok := runtime.Caller(2) //nolint:mnd // see above.
	if !ok {
		return ""
	}
	return file + ":" + strconv.Itoa(line)
}

func panicSource() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and panicSource.
	frames := runtime.CallersFrames(pcs[:n])
	afterPanic := false
	for {
		frame, more := frames.Next()
		if afterPanic {
			return frame.File + ":" + strconv.Itoa(frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			return ""
		}
	}
}
