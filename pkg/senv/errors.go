package senv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/senvtool/senv/pkg/config"
	"github.com/senvtool/senv/pkg/crypt"
	"github.com/senvtool/senv/pkg/paths"
)

var (
	// ErrNoKeyFound is returned when encrypted content is requested and no
	// passphrase is available from any source.
	ErrNoKeyFound = errors.New("no key found")

	// ErrRecursionRefused signals that a profile tried to import itself while
	// it was already loading. The import is a no-op; Load never returns it.
	ErrRecursionRefused = errors.New("refusing to recursively load profile")

	// ErrNoRootFound is returned when no configuration root can be located.
	ErrNoRootFound = paths.ErrNoRootFound

	// ErrDecrypt is returned when a cipher operation fails.
	ErrDecrypt = crypt.ErrDecrypt

	// ErrUnknownFormat is returned for a data fragment in no known format.
	ErrUnknownFormat = config.ErrUnknownFormat

	// ErrInvalidFragment is returned when a data fragment is not a mapping.
	ErrInvalidFragment = config.ErrInvalidFragment
)

// ErrorKind classifies engine errors for callers that report them.
type ErrorKind string

const (
	KindNoRootFound      ErrorKind = "no_root_found"
	KindNoKeyFound       ErrorKind = "no_key_found"
	KindDecrypt          ErrorKind = "decrypt_error"
	KindUnknownFormat    ErrorKind = "unknown_format"
	KindInvalidFragment  ErrorKind = "invalid_fragment"
	KindRecursionRefused ErrorKind = "recursion_refused"
	KindInternal         ErrorKind = "internal"
)

// KindOf returns the classification of err, or "" for nil.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoRootFound):
		return KindNoRootFound
	case errors.Is(err, ErrNoKeyFound):
		return KindNoKeyFound
	case errors.Is(err, ErrDecrypt):
		return KindDecrypt
	case errors.Is(err, ErrUnknownFormat):
		return KindUnknownFormat
	case errors.Is(err, ErrInvalidFragment):
		return KindInvalidFragment
	case errors.Is(err, ErrRecursionRefused):
		return KindRecursionRefused
	default:
		return KindInternal
	}
}

// Error adds operation context to a failure.
type Error struct {
	// Op is the operation being performed (load, read, write, ...).
	Op string

	// Profile is the profile being loaded, if any.
	Profile string

	// Path is the file involved, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[SENV] ")
	b.WriteString(e.Op)
	if e.Profile != "" {
		fmt.Fprintf(&b, " %s", e.Profile)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the classification of the underlying error.
func (e *Error) Kind() ErrorKind {
	return KindOf(e.Err)
}

func wrapError(op, profile, path string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Profile: profile, Path: path, Err: err}
}
