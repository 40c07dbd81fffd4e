package session

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http/httpguts"

	"github.com/adamwoolhether/qscrape/internal/validate"
	"github.com/adamwoolhether/qscrape/session/throttle"
)

// DefaultHeaders returns the headers every Session starts from unless
// replaced with [WithBaseHeaders]. Each call returns a fresh map.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/31.0.1650.63 Safari/537.36",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Accept-Encoding": "gzip, deflate",
	}
}

// Option is a functional option for configuring a [Session] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	baseHeaders       map[string]string
	headers           map[string]string
	jar               *Jar
	tracer            trace.Tracer
	requestID         bool
}

// headerRecord is checked before a header set is accepted.
type headerRecord struct {
	Headers map[string]string `name:"headers" validate:"dive,keys,required,endkeys"`
}

func checkHeaders(h map[string]string) error {
	if err := validate.Struct(headerRecord{Headers: h}); err != nil {
		return err
	}

	for k, v := range h {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf("invalid header name %q", k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf("invalid value for header %q", k)
		}
	}

	return nil
}

// WithClient uses a copy of hc as the underlying [http.Client]. hc itself
// is never modified. A [*Jar] set on hc becomes the session's jar unless
// [WithJar] or [WithCookieJar] is also given; any other jar type is
// ignored, since the session could not clear it.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return WithHeaders(map[string]string{"User-Agent": ua})
}

// WithThrottle enables token-bucket rate limiting with the given requests
// per second and burst capacity, shared across all hosts.
func WithThrottle(rps, burst int) Option {
	return withThrottle(throttle.Config{RPS: rps, Burst: burst})
}

// WithHostThrottle is like [WithThrottle] with a separate bucket per host.
func WithHostThrottle(rps, burst int) Option {
	return withThrottle(throttle.Config{RPS: rps, Burst: burst, PerHost: true})
}

func withThrottle(cfg throttle.Config) Option {
	return func(o *options) error {
		if err := validate.Struct(cfg); err != nil {
			return fmt.Errorf("rps[%d] and burst[%d] %w: %w", cfg.RPS, cfg.Burst, throttle.ErrMustNotBeZero, err)
		}
		o.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Session] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Session].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithBaseHeaders replaces [DefaultHeaders] as the lowest-precedence
// header set.
func WithBaseHeaders(h map[string]string) Option {
	return func(o *options) error {
		if err := checkHeaders(h); err != nil {
			return fmt.Errorf("base headers: %w", err)
		}
		o.baseHeaders = maps.Clone(h)
		if o.baseHeaders == nil {
			o.baseHeaders = map[string]string{}
		}
		return nil
	}
}

// WithHeaders adds session headers that take precedence over the base
// headers. Repeated use merges, later values winning.
func WithHeaders(h map[string]string) Option {
	return func(o *options) error {
		if err := checkHeaders(h); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if o.headers == nil {
			o.headers = make(map[string]string, len(h))
		}
		maps.Copy(o.headers, h)
		return nil
	}
}

// WithCookieJar gives the Session a fresh cookie jar.
func WithCookieJar() Option {
	return func(o *options) error {
		o.jar = NewJar()
		return nil
	}
}

// WithJar makes the Session use j, which may be shared with other sessions.
func WithJar(j *Jar) Option {
	return func(o *options) error {
		if j == nil {
			return errors.New("jar must not be nil")
		}
		o.jar = j
		return nil
	}
}

// WithTracer records an OpenTelemetry client span for every request.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithRequestID stamps an X-Request-ID header on every request.
func WithRequestID() Option {
	return func(o *options) error {
		o.requestID = true
		return nil
	}
}

// JSONOption is a functional option for [Session.GetJSON] and [Session.PostJSON].
type JSONOption func(options *jsonOpts) error

type jsonOpts struct {
	useJSONNum     bool
	disallowFields bool
}

// WithJSONNumber tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumber() JSONOption {
	return func(opts *jsonOpts) error {
		opts.useJSONNum = true
		return nil
	}
}

// WithStrictFields rejects JSON objects carrying fields dest does not declare.
func WithStrictFields() JSONOption {
	return func(opts *jsonOpts) error {
		opts.disallowFields = true
		return nil
	}
}
