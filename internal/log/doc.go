// Package log provides slog loggers that scrub secrets before they are written.
//
// Crawls can be configured with cookies, authorization headers and proxy
// credentials. Those values travel through the same code paths that log
// request details, so every logger built here wraps its handler in a
// SecureHandler:
//   - attributes with sensitive keys (cookie, authorization, token, ...) are masked
//   - values that look like bearer/basic credentials, JWTs or long API keys are masked
//   - user:password@ parts of URLs are replaced, keeping the rest of the URL readable
//
// Harvested email addresses are not treated as secrets.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", "http://user:pw@example.com/") // url=http://***@example.com/
//	slog.SetDefault(logger)
package log
