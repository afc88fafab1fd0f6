package updater

import (
	"errors"
	"fmt"
)

// Kind classifies updater failures. All kinds are recoverable by the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindManifest
	KindVersionParse
	KindDownload
	KindIntegrity
	KindSwap
	KindConcurrentUpdate
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindManifest:
		return "ManifestError"
	case KindVersionParse:
		return "VersionParseError"
	case KindDownload:
		return "DownloadError"
	case KindIntegrity:
		return "IntegrityError"
	case KindSwap:
		return "SwapError"
	case KindConcurrentUpdate:
		return "ConcurrentUpdateError"
	default:
		return "UnknownError"
	}
}

// Error is the error type returned by Checker operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrNetwork) works for
// any wrapped *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil || t.Op != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for use with errors.Is.
var (
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrManifest         = &Error{Kind: KindManifest}
	ErrVersionParse     = &Error{Kind: KindVersionParse}
	ErrDownload         = &Error{Kind: KindDownload}
	ErrIntegrity        = &Error{Kind: KindIntegrity}
	ErrSwap             = &Error{Kind: KindSwap}
	ErrConcurrentUpdate = &Error{Kind: KindConcurrentUpdate}
)

// ErrNotActivated is returned when a Checker is used before Activate.
var ErrNotActivated = errors.New("updater: checker not activated")

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
