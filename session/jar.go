package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is an http.CookieJar that can be emptied in place. Every request
// of a Session goes through the same Jar, so cookies set by one response
// are sent on later requests to matching hosts.
type Jar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

// NewJar returns an empty Jar using the public suffix list to scope
// domain cookies.
func NewJar() *Jar {
	j := &Jar{}
	j.Reset()
	return j
}

// SetCookies stores cookies received in a response from u.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies returns the cookies to send in a request to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Reset discards all stored cookies. The Jar itself stays in use by
// every Session holding it.
func (j *Jar) Reset() {
	// cookiejar.New never returns a non-nil error.
	fresh, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = fresh
}
