package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/adamwoolhether/qscrape/session/download"
	"github.com/adamwoolhether/qscrape/session/encoding"
	"github.com/adamwoolhether/qscrape/session/normalize"
	"github.com/adamwoolhether/qscrape/session/throttle"
	"github.com/adamwoolhether/qscrape/session/tracing"
)

// Session is a configured HTTP client with its own headers and,
// optionally, its own cookie jar. It is safe for concurrent use.
type Session struct {
	c      *http.Client
	jar    *Jar
	logger *slog.Logger

	mu      sync.RWMutex
	headers http.Header
}

// Build creates a [Session]. Headers are merged per session:
// [DefaultHeaders] (or [WithBaseHeaders]) < [WithHeaders].
func Build(optFns ...Option) (*Session, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying session option: %w", err)
		}
	}

	s := &Session{
		c:       &http.Client{},
		jar:     opts.jar,
		logger:  slog.Default(),
		headers: make(http.Header),
	}

	if opts.client != nil {
		cpy := *opts.client
		s.c = &cpy
	}

	if opts.logger != nil {
		s.logger = opts.logger
	}

	if opts.timeout != nil {
		s.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		s.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	// Only a *Jar can be cleared; any other client jar is dropped.
	if opts.jar == nil {
		if j, ok := s.c.Jar.(*Jar); ok {
			s.jar = j
		}
	}
	s.c.Jar = nil
	if s.jar != nil {
		s.c.Jar = s.jar
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.tracer != nil || opts.requestID {
		transport = tracing.NewRoundTripper(opts.tracer, opts.requestID, transport)
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return s.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	s.c.Transport = transport

	base := opts.baseHeaders
	if base == nil {
		base = DefaultHeaders()
	}
	for k, v := range base {
		s.headers.Set(k, v)
	}
	for k, v := range opts.headers {
		s.headers.Set(k, v)
	}

	return s, nil
}

// Jar returns the session's cookie jar, or nil for a session without one.
func (s *Session) Jar() *Jar {
	return s.jar
}

// Headers returns a copy of the headers sent with every request.
func (s *Session) Headers() http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headers.Clone()
}

// AddHeader sets a session header for all subsequent requests,
// replacing any existing value for key.
func (s *Session) AddHeader(key, value string) error {
	if err := checkHeaders(map[string]string{key: value}); err != nil {
		return fmt.Errorf("add header: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Set(key, value)

	return nil
}

// Get fetches uri with params as its query string and returns the
// decoded body text.
func (s *Session) Get(ctx context.Context, uri string, params map[string]string) (string, error) {
	return s.fetch(ctx, http.MethodGet, uri, params)
}

// Post submits params as a form body to uri and returns the decoded
// body text.
func (s *Session) Post(ctx context.Context, uri string, params map[string]string) (string, error) {
	return s.fetch(ctx, http.MethodPost, uri, params)
}

// GetMarkup is [Session.Get] followed by [Parse].
func (s *Session) GetMarkup(ctx context.Context, uri string, params map[string]string) (*Document, error) {
	return s.markup(ctx, http.MethodGet, uri, params)
}

// PostMarkup is [Session.Post] followed by [Parse].
func (s *Session) PostMarkup(ctx context.Context, uri string, params map[string]string) (*Document, error) {
	return s.markup(ctx, http.MethodPost, uri, params)
}

// GetJSON is [Session.Get] followed by unicode repair and JSON decoding
// into dest, which must be a non-nil pointer.
func (s *Session) GetJSON(ctx context.Context, uri string, params map[string]string, dest any, opts ...JSONOption) error {
	return s.json(ctx, http.MethodGet, uri, params, dest, opts)
}

// PostJSON is [Session.Post] followed by unicode repair and JSON
// decoding into dest, which must be a non-nil pointer.
func (s *Session) PostJSON(ctx context.Context, uri string, params map[string]string, dest any, opts ...JSONOption) error {
	return s.json(ctx, http.MethodPost, uri, params, dest, opts)
}

// Download streams the decoded body of uri to disk and returns the path
// written. An empty dest derives the file name from the last segment of
// the URI path; a dest naming an existing directory places that file
// inside it. Data streams to a temp file in the same directory, which is
// renamed to the destination on success or removed on failure.
func (s *Session) Download(ctx context.Context, uri, dest string, opts ...DownloadOption) (string, error) {
	if err := download.Validate(opts...); err != nil {
		return "", fmt.Errorf("download: applying option: %w", err)
	}

	destPath, err := download.ResolvePath(uri, dest)
	if err != nil {
		return "", err
	}

	if err := s.download(ctx, uri, destPath, opts); err != nil {
		return "", err
	}

	return destPath, nil
}

// DownloadAsync starts [Session.Download] in the background and returns
// a [DownloadResult] tracking it. Use [WithBatch] to cap concurrency and
// [DownloadResult.Add] to queue more files on the same batch.
func (s *Session) DownloadAsync(ctx context.Context, uri, dest string, opts ...DownloadOption) (*DownloadResult, error) {
	q, err := download.QueueFor(opts...)
	if err != nil {
		return nil, err
	}

	destPath, err := download.ResolvePath(uri, dest)
	if err != nil {
		return nil, err
	}

	work := func(ctx context.Context) (string, error) {
		if err := s.download(ctx, uri, destPath, opts); err != nil {
			return "", err
		}
		return destPath, nil
	}

	return q.Start(ctx, work, s.DownloadAsync), nil
}

// ClearCookies empties the session's cookie jar in place. Sessions built
// without a jar return a [*NotImplementedError].
func (s *Session) ClearCookies() error {
	if s.jar == nil {
		return &NotImplementedError{Op: CapClearCookies, Reason: "session has no cookie jar"}
	}

	s.jar.Reset()
	return nil
}

// Debug is declared but not implemented; it always returns a
// [*NotImplementedError].
func (s *Session) Debug() error {
	return &NotImplementedError{Op: CapDebug}
}

func (s *Session) markup(ctx context.Context, method, uri string, params map[string]string) (*Document, error) {
	text, err := s.fetch(ctx, method, uri, params)
	if err != nil {
		return nil, err
	}

	return Parse(text)
}

func (s *Session) json(ctx context.Context, method, uri string, params map[string]string, dest any, optFns []JSONOption) error {
	if rv := reflect.ValueOf(dest); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}

	var settings jsonOpts
	for _, opt := range optFns {
		if err := opt(&settings); err != nil {
			return err
		}
	}

	text, err := s.fetch(ctx, method, uri, params)
	if err != nil {
		return err
	}

	repaired := normalize.RepairUnicode(text)

	d := json.NewDecoder(strings.NewReader(repaired))
	if settings.useJSONNum {
		d.UseNumber()
	}
	if settings.disallowFields {
		d.DisallowUnknownFields()
	}

	if err := d.Decode(dest); err != nil {
		return &MalformedResponseError{Body: truncate(repaired), Err: err}
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return &MalformedResponseError{Body: truncate(repaired), Err: errors.New("unexpected data after top-level value")}
	}

	return nil
}

// fetch runs a buffered request and returns the decoded body text.
func (s *Session) fetch(ctx context.Context, method, uri string, params map[string]string) (string, error) {
	req, err := s.newRequest(ctx, method, uri, params)
	if err != nil {
		return "", err
	}

	var text string
	fetchFn := func(resp *http.Response) error {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %w", ErrTransport, err)
		}

		decoded, err := encoding.Decode(resp.Header, raw)
		if err != nil {
			return err
		}

		text = string(decoded)
		return nil
	}

	if err := s.exec(req, fetchFn); err != nil {
		return "", err
	}

	return text, nil
}

func (s *Session) download(ctx context.Context, uri, destPath string, opts []DownloadOption) error {
	req, err := s.newRequest(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}

	dlFunc := func(resp *http.Response) error {
		if err := download.Handle(ctx, resp.Header, resp.Body, resp.ContentLength, destPath, s.logger, opts...); err != nil {
			return fmt.Errorf("download: %w", err)
		}

		return nil
	}

	return s.exec(req, dlFunc)
}

// newRequest builds a request carrying the session headers. For GET,
// params are merged into the query string; for POST they become a
// form-encoded body.
func (s *Session) newRequest(ctx context.Context, method, uri string, params map[string]string) (*http.Request, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing uri: %w", err)
	}

	var body io.Reader
	if len(params) > 0 {
		switch method {
		case http.MethodGet:
			q := u.Query()
			for k, v := range params {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
		default:
			form := make(url.Values, len(params))
			for k, v := range params {
				form.Set(k, v)
			}
			body = strings.NewReader(form.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	s.mu.RLock()
	for k, v := range s.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	s.mu.RUnlock()

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return req, nil
}

// exec runs the request and injected function on success after
// validating the status code is 200 OK.
func (s *Session) exec(req *http.Request, fn execFn) error {
	s.logger.Info("request", "method", req.Method, "uri", req.URL.Redacted())

	resp, err := s.c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Redacted(), err)
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				s.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := fn(resp); err != nil {
		discardBody = false
		return err
	}

	return nil
}

// statusError builds an UnexpectedStatusError carrying up to
// maxErrBodySize bytes of the decoded body.
func statusError(resp *http.Response) error {
	body := "unable to read body"
	if rc, err := encoding.NewReader(resp.Header, resp.Body); err == nil {
		if b, err := io.ReadAll(io.LimitReader(rc, maxErrBodySize)); err == nil {
			body = string(b)
		}
		rc.Close()
	}

	sentinel := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		sentinel = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       body,
		Err:        sentinel,
	}
}
