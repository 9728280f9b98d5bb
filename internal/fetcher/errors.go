package fetcher

import (
	"errors"
	"fmt"

	"github.com/nao1215/mailharvest/internal/model"
)

// Fetch failure classes. Use errors.Is on an *Error to test the class.
var (
	// ErrFetchTimeout is returned when the fetch exceeded its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrFetchConnection is returned when the host or proxy could not be reached.
	ErrFetchConnection = errors.New("fetch connection failed")

	// ErrFetchProtocol is returned when the server answered with something
	// unusable: a non-2xx status, an unreadable body or a content type
	// that is not text.
	ErrFetchProtocol = errors.New("fetch protocol error")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnexpectedStatus is wrapped when the response status is not 2xx.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrUnsupportedContent is wrapped when the content type cannot carry links.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Error describes one failed fetch.
type Error struct {
	// URL is the URL that was requested.
	URL string

	// Kind is the failure class.
	Kind model.FailureKind

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func sentinelFor(kind model.FailureKind) error {
	switch kind {
	case model.FailureTimeout:
		return ErrFetchTimeout
	case model.FailureConnection:
		return ErrFetchConnection
	case model.FailureProtocol:
		return ErrFetchProtocol
	default:
		return nil
	}
}
