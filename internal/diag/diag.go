// Package diag provides the error representation used at the request
// boundary. Errors carry an HTTP status code, suggested client actions, and
// a trace of the call sites that wrapped them, so the web layer can render
// the same failure as an HTML fragment or a structured JSON document.
package diag

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Frame records the call site captured when an error was created or wrapped.
type Frame struct {
	ModulePath string `json:"module_path"`
	Name       string `json:"name"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Fields     string `json:"fields"`
}

// Actions are the client actions a failure suggests. SignOut is set when the
// caller's cached credential should be discarded.
type Actions struct {
	SignOut bool
}

// Error is a single link in a failure chain. Use [New] and [Wrap] to
// construct it; the zero value is not meaningful.
type Error struct {
	msg     string
	status  int // 0 means inherit from the cause
	signOut bool
	frame   Frame
	cause   error
}

// New creates a root error with the given status code. Key/value pairs are
// recorded on the captured frame.
func New(status int, msg string, kv ...any) *Error {
	return &Error{
		msg:    msg,
		status: status,
		frame:  newFrame(2, kv),
	}
}

// Wrap annotates err with a message and a captured frame. The status code is
// inherited from the cause unless overridden with [Error.WithStatus].
func Wrap(err error, msg string, kv ...any) *Error {
	return &Error{
		msg:   msg,
		frame: newFrame(2, kv),
		cause: err,
	}
}

// WithStatus sets the status code reported for this error and returns it.
func (e *Error) WithStatus(status int) *Error {
	e.status = status
	return e
}

// SuggestSignOut marks the failure as one after which the client should
// discard its cached credential.
func (e *Error) SuggestSignOut() *Error {
	e.signOut = true
	return e
}

// Error satisfies [error].
func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// StatusOf returns the status code of the outermost link that set one.
// Errors that never pass through this package report 500.
func StatusOf(err error) int {
	for err != nil {
		if de, ok := err.(*Error); ok && de.status != 0 {
			return de.status
		}
		err = unwrap(err)
	}
	return http.StatusInternalServerError
}

// ActionsOf collects the suggested client actions from the whole chain.
func ActionsOf(err error) Actions {
	var actions Actions
	for err != nil {
		if de, ok := err.(*Error); ok && de.signOut {
			actions.SignOut = true
		}
		err = unwrap(err)
	}
	return actions
}

// Chain returns the failure messages ordered outermost first, root cause
// last. Non-diag errors terminate the chain with their full message.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		de, ok := err.(*Error)
		if !ok {
			chain = append(chain, err.Error())
			break
		}
		chain = append(chain, de.msg)
		err = de.cause
	}
	return chain
}

// Trace returns the captured frames ordered outermost first.
func Trace(err error) []Frame {
	var frames []Frame
	for err != nil {
		if de, ok := err.(*Error); ok {
			frames = append(frames, de.frame)
		}
		err = unwrap(err)
	}
	return frames
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func newFrame(skip int, kv []any) Frame {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Frame{Fields: formatFields(kv)}
	}

	frame := Frame{
		File:   file,
		Line:   line,
		Fields: formatFields(kv),
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		frame.ModulePath, frame.Name = splitFuncName(fn.Name())
	}
	return frame
}

// splitFuncName splits a runtime function name like
// "github.com/swapshelf/swapshelf/internal/sec.Resolve" into the package
// path and the bare function name.
func splitFuncName(full string) (modulePath, name string) {
	slash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[slash+1:], '.')
	if dot < 0 {
		return "", full
	}
	dot += slash + 1
	return full[:dot], full[dot+1:]
}

func formatFields(kv []any) string {
	if len(kv) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%v=%v", kv[i], kv[i+1])
	}
	return sb.String()
}
