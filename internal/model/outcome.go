package model

// FailureKind classifies why a fetch did not produce a usable page.
type FailureKind string

const (
	// FailureTimeout means the fetch exceeded its deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureConnection means the host could not be reached
	// (DNS, refused connection, TLS handshake, proxy).
	FailureConnection FailureKind = "connection"

	// FailureProtocol means the server answered but the response was unusable:
	// non-2xx status, unreadable body or a content type we do not parse.
	FailureProtocol FailureKind = "protocol"
)

// FailureKinds lists every kind in a stable order for reports.
var FailureKinds = []FailureKind{FailureTimeout, FailureConnection, FailureProtocol}

// FetchOutcome is the result of one fetch attempt.
// Exactly one of Success (Err == nil) or Failure (Err != nil) holds.
// It is produced by a fetch goroutine and consumed once by the scheduler.
type FetchOutcome struct {
	// URL is the normalized URL that was dispatched.
	URL string

	// FinalURL is the address the body was served from after redirects.
	// Empty when no redirect happened or the fetch failed.
	FinalURL string

	// Body is the decoded response body. Nil on failure.
	Body []byte

	// ContentType is the response Content-Type header.
	ContentType string

	// StatusCode is the HTTP status, zero if no response arrived.
	StatusCode int

	// Kind is set on failure only.
	Kind FailureKind

	// Err is the failure cause, nil on success.
	Err error
}

// Success builds a successful outcome.
func Success(url string, statusCode int, contentType string, body []byte) FetchOutcome {
	return FetchOutcome{
		URL:         url,
		Body:        body,
		ContentType: contentType,
		StatusCode:  statusCode,
	}
}

// Failure builds a failed outcome.
func Failure(url string, kind FailureKind, err error) FetchOutcome {
	return FetchOutcome{
		URL:  url,
		Kind: kind,
		Err:  err,
	}
}

// BaseURL returns the address relative links on the page resolve against.
func (o FetchOutcome) BaseURL() string {
	if o.FinalURL != "" {
		return o.FinalURL
	}
	return o.URL
}

// OK reports whether the outcome is a success.
func (o FetchOutcome) OK() bool {
	return o.Err == nil
}
