package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// Backend paths, relative to the API base URL.
const (
	LoginPath   = "/auth/login"
	ConfirmPath = "/auth/confirm"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
	MePath      = "/auth/me"
)

const (
	defaultBaseURL    = "http://127.0.0.1:4000/api"
	defaultTimeout    = 30 * time.Second
	defaultLoginRoute = "/login"
)

// Navigator is the routing collaborator told to show the login screen after a
// forced logout.
type Navigator interface {
	CurrentRoute() string
	Navigate(route string)
}

// ClientOptions configures [NewClient]. Session is required.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    *session.Store
	Cookies    *shared.CookieMirror
	Navigator  Navigator
	LoginRoute string
	Timeout    time.Duration
	Middleware []Middleware
	Logger     *log.Logger
}

type waiter struct {
	resolve func(token string)
	reject  func(err error)
}

// Client is the auth-aware HTTP client for the backend REST API.
//
// Every request passes through a middleware pipeline that attaches the current
// access token. A 401 on a non-exempt request starts a single-flight refresh:
// concurrent 401s queue behind it and are replayed once with the new token.
type Client struct {
	baseURL    string
	http       *http.Client
	session    *session.Store
	cookies    *shared.CookieMirror
	navigator  Navigator
	loginRoute string
	timeout    time.Duration
	logger     *log.Logger

	headerMu sync.RWMutex
	header   http.Header

	credMu sync.Mutex

	refreshMu  sync.Mutex
	refreshing bool
	pending    []waiter

	pipeline Doer
}

// NewClient wires a [Client]. When HTTPClient is nil a client with a cookie jar
// is created so the refresh cookie set by the backend is sent back.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("%w: session store is required", shared.ErrInvalidInput)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = defaultLoginRoute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		opts.HTTPClient = &http.Client{Jar: jar}
	}
	if opts.Cookies == nil && opts.HTTPClient.Jar != nil {
		mirror, err := shared.NewCookieMirror(opts.HTTPClient.Jar, opts.BaseURL)
		if err != nil {
			return nil, err
		}
		opts.Cookies = mirror
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       opts.HTTPClient,
		session:    opts.Session,
		cookies:    opts.Cookies,
		navigator:  opts.Navigator,
		loginRoute: opts.LoginRoute,
		timeout:    opts.Timeout,
		logger:     opts.Logger.With("component", "http"),
		header: http.Header{
			"Accept":       {"application/json"},
			"Content-Type": {"application/json"},
		},
	}

	stages := []Middleware{
		c.retryUnauthorized,
		RequestID(),
		Logging(c.logger),
		c.defaultHeaders,
		c.bearer,
	}
	stages = append(stages, opts.Middleware...)
	c.pipeline = Chain(c.http, stages...)

	return c, nil
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Session returns the store the client reads credentials from.
func (c *Client) Session() *session.Store { return c.session }

// Cookies returns the auth-status cookie mirror, which may be nil.
func (c *Client) Cookies() *shared.CookieMirror { return c.cookies }

// SetDefaultHeader sets a header sent with every subsequent request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	c.header.Set(key, value)
}

// DefaultHeader returns the current default value for key.
func (c *Client) DefaultHeader(key string) string {
	c.headerMu.RLock()
	defer c.headerMu.RUnlock()
	return c.header.Get(key)
}

func (c *Client) deleteDefaultHeader(key string) {
	c.headerMu.Lock()
	defer c.headerMu.Unlock()
	c.header.Del(key)
}

// Do sends a JSON request to path and decodes a JSON response into out.
//
// A nil body sends no payload and a nil out discards the response. Non-2xx
// responses return an [*APIError]; transport failures are returned unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(method, path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s %s: %v", shared.ErrAPIRequest, method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s: %w", shared.ErrTimeout, method, path, err)
		}
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the caller is done with the body.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
