// Package skerr wraps errors with the call stack at the point they were
// created or passed through, so a single error returned from deep inside
// the store can still be traced back to its origin without a debugger.
package skerr

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// StackTrace is a single call-stack frame captured by CallStack.
type StackTrace struct {
	File string
	Line int
}

// String formats a frame as "file.go:line".
func (s StackTrace) String() string {
	return s.File + ":" + strconv.Itoa(s.Line)
}

// CallStack returns up to n frames of the caller's call stack, skipping the
// first `skip` frames (0 = CallStack's own caller).
func CallStack(n, skip int) []StackTrace {
	pc := make([]uintptr, n+skip+1)
	got := runtime.Callers(skip+2, pc)
	if got == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:got])
	out := make([]StackTrace, 0, n)
	for i := 0; i < got && len(out) < n; i++ {
		f, more := frames.Next()
		file := f.File
		if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
			file = file[idx+1:]
		}
		out = append(out, StackTrace{File: file, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

// withStack is an error decorated with the location it was wrapped at.
type withStack struct {
	cause error
	msg   string
	frame StackTrace
}

func (e *withStack) Error() string {
	var b strings.Builder
	if e.msg != "" {
		b.WriteString(e.msg)
		b.WriteString(": ")
	}
	b.WriteString(e.cause.Error())
	b.WriteString(". At ")
	b.WriteString(e.frame.String())
	if inner, ok := e.cause.(*withStack); ok {
		_ = inner // chained message already appended via Error() above
	}
	return b.String()
}

func (e *withStack) Unwrap() error { return e.cause }

func frameAt(skip int) StackTrace {
	f := CallStack(1, skip+1)
	if len(f) == 0 {
		return StackTrace{File: "unknown", Line: 0}
	}
	return f[0]
}

// Wrap annotates err with the caller's location. Returns nil if err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &withStack{cause: err, frame: frameAt(1)}
}

// Wrapf annotates err with a message and the caller's location.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &withStack{cause: err, msg: fmt.Sprintf(format, args...), frame: frameAt(1)}
}

// Fmt creates a new error from a format string, annotated with the caller's
// location, the same way Wrapf annotates an existing error.
func Fmt(format string, args ...interface{}) error {
	return &withStack{cause: fmt.Errorf(format, args...), frame: frameAt(1)}
}

// Unwrap returns the innermost, non-skerr error in the chain.
func Unwrap(err error) error {
	for {
		ws, ok := err.(*withStack)
		if !ok {
			return err
		}
		err = ws.cause
	}
}
