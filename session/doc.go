// Package session provides a stateful HTTP fetch session for scraping,
// built on [net/http].
//
// # Building a Session
//
// Use [Build] to create a [Session] with functional options:
//
//	s, err := session.Build(
//		session.WithCookieJar(),
//		session.WithTimeout(10 * time.Second),
//		session.WithHeaders(map[string]string{"Referer": "https://example.com/"}),
//	)
//
// Every request carries [DefaultHeaders] overlaid with the session's own
// headers. Response bodies encoded with gzip or deflate are decoded
// before they are returned.
//
// # Fetching
//
// [Session.Get] and [Session.Post] return the decoded body text. GET
// params go in the query string; POST params are sent as a form body.
// Any status other than 200 OK returns an [*UnexpectedStatusError].
//
//	text, err := s.Get(ctx, "https://example.com/search", map[string]string{"q": "go"})
//
// [Session.GetMarkup] parses the body as HTML and [Session.GetJSON]
// decodes it as JSON after repairing \xHH escapes, which some servers
// emit even though JSON does not allow them:
//
//	var out struct{ Name string `json:"name"` }
//	err = s.GetJSON(ctx, "https://example.com/api", nil, &out)
//
// # Downloading Files
//
// [Session.Download] streams the decoded body to disk. The destination
// may be a file path, an existing directory or empty, in which case the
// last segment of the URI path names the file:
//
//	path, err := s.Download(ctx, "https://example.com/static/app.js", "/tmp",
//		session.WithChecksum(sha256.New(), expectedHex),
//		session.WithProgress(),
//	)
//
// Nothing is left at the destination when a download fails.
//
// # Async Downloads
//
// [Session.DownloadAsync] runs a download in the background. Use
// [WithBatch] to cap concurrency and [DownloadResult.Add] to enqueue
// more files on the same batch:
//
//	r, err := s.DownloadAsync(ctx, "https://example.com/a.bin", dir, session.WithBatch(4))
//	r.Add(ctx, "https://example.com/b.bin", dir)
//	err = r.Wait() // blocks until all downloads finish
//
// # Cookies
//
// Sessions built with [WithCookieJar] or [WithJar] store cookies set by
// responses and send them on later requests. [Session.ClearCookies]
// empties the jar. Use [Session.Supports] to check which operations a
// session can perform.
package session
