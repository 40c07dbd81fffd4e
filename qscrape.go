// Package qscrape exposes the session builders.
//
// A plain session keeps no cookies between requests; a cookie session
// stores cookies set by responses and sends them on later requests. Both
// are [session.Session] values configured with [session.Option].
package qscrape

import (
	"slices"

	"github.com/adamwoolhether/qscrape/session"
)

// NewSession instantiates a *session.Session without a cookie jar.
// If not specified, the default headers and http.DefaultTransport are used.
func NewSession(opts ...session.Option) (*session.Session, error) {
	return session.Build(opts...)
}

// NewCookieSession instantiates a *session.Session with a fresh cookie
// jar. Passing session.WithJar shares an existing jar instead.
func NewCookieSession(opts ...session.Option) (*session.Session, error) {
	return session.Build(slices.Concat([]session.Option{session.WithCookieJar()}, opts)...)
}
