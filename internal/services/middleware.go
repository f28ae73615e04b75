package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/shared"
)

// RequestIDHeader carries a per-request identifier for log correlation.
const RequestIDHeader = "X-Request-ID"

// Doer sends a prepared request. [*http.Client] satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to [Doer].
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware decorates a [Doer].
type Middleware func(next Doer) Doer

// Chain wraps d with mw. The first middleware sees the request first.
func Chain(d Doer, mw ...Middleware) Doer {
	wrapped := d
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}
	return wrapped
}

type requestFlags struct {
	noBearer bool
	noRetry  bool
}

type flagsKey struct{}

func withFlags(ctx context.Context, f requestFlags) context.Context {
	return context.WithValue(ctx, flagsKey{}, f)
}

func flagsFrom(ctx context.Context) requestFlags {
	f, _ := ctx.Value(flagsKey{}).(requestFlags)
	return f
}

// WithoutCredentials marks a request as unauthenticated: no bearer header is
// attached and a 401 response is returned as-is instead of triggering a refresh.
func WithoutCredentials(ctx context.Context) context.Context {
	return withFlags(ctx, requestFlags{noBearer: true, noRetry: true})
}

// WithoutRetry keeps the bearer header but returns a 401 response as-is.
func WithoutRetry(ctx context.Context) context.Context {
	f := flagsFrom(ctx)
	f.noRetry = true
	return withFlags(ctx, f)
}

// RequestID stamps each request with a fresh [RequestIDHeader] unless one is set.
func RequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, shared.GenerateID())
			}
			return next.Do(req)
		})
	}
}

// Logging records method, path, status and duration at debug level.
func Logging(logger *log.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)

			kv := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", req.Header.Get(RequestIDHeader),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Debug("request failed", append(kv, "error", err)...)
				return resp, err
			}
			logger.Debug("request", append(kv, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}

// defaultHeaders copies the client's global default headers onto requests that
// do not already set them.
func (c *Client) defaultHeaders(next Doer) Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		skipAuth := flagsFrom(req.Context()).noBearer

		c.headerMu.RLock()
		for key, values := range c.header {
			if skipAuth && strings.EqualFold(key, "Authorization") {
				continue
			}
			if req.Header.Get(key) == "" {
				for _, v := range values {
					req.Header.Add(key, v)
				}
			}
		}
		c.headerMu.RUnlock()

		return next.Do(req)
	})
}

// bearer attaches the session's current access token.
func (c *Client) bearer(next Doer) Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		if flagsFrom(req.Context()).noBearer {
			req.Header.Del("Authorization")
			return next.Do(req)
		}

		if tok, err := c.session.Token(); err == nil {
			tok.SetAuthHeader(req)
		}
		return next.Do(req)
	})
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
