package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

type retriedKey struct{}

type refreshResult struct {
	token string
	err   error
}

// Refresh exchanges the refresh credential for a new access token through the
// same single-flight path used on 401s. A call made while a refresh is in
// flight waits for that refresh instead of starting another.
// Without a refresh token or the auth-status cookie there is nothing to
// exchange and [shared.ErrNoRefreshToken] is returned.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if c.session.RefreshToken() == "" && (c.cookies == nil || !c.cookies.Present()) {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}
	return c.awaitRefresh(ctx, "", true)
}

// IsRefreshing reports whether a refresh cycle is in flight.
func (c *Client) IsRefreshing() bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshing
}

// retryUnauthorized is the response stage: it turns a first 401 into a refresh
// and a single replay of the request.
func (c *Client) retryUnauthorized(next Doer) Doer {
	return DoerFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.Do(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}
		if c.exempt(req) {
			return resp, nil
		}

		carried := bearerToken(req)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		token, err := c.awaitRefresh(req.Context(), carried, false)
		if err != nil {
			return nil, err
		}

		replay, err := replayRequest(req, token)
		if err != nil {
			return nil, err
		}
		return next.Do(replay)
	})
}

func (c *Client) exempt(req *http.Request) bool {
	if flagsFrom(req.Context()).noRetry {
		return true
	}
	if retried, _ := req.Context().Value(retriedKey{}).(bool); retried {
		return true
	}
	return strings.HasSuffix(req.URL.Path, RefreshPath)
}

func replayRequest(req *http.Request, token string) (*http.Request, error) {
	ctx := context.WithValue(req.Context(), retriedKey{}, true)
	replay := req.Clone(ctx)

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		replay.Body = body
	}
	if token != "" {
		replay.Header.Set("Authorization", "Bearer "+token)
	}
	return replay, nil
}

// awaitRefresh returns the access token a failed request should be replayed with.
//
// The refreshing flag is checked and set under refreshMu, so exactly one caller
// starts a cycle and every other caller joins the pending queue. Unless forced,
// a caller whose carried token is already stale skips the refresh and replays
// with the current token.
func (c *Client) awaitRefresh(ctx context.Context, carried string, force bool) (string, error) {
	done := make(chan refreshResult, 1)
	w := waiter{
		resolve: func(token string) { done <- refreshResult{token: token} },
		reject:  func(err error) { done <- refreshResult{err: err} },
	}

	c.refreshMu.Lock()
	if c.refreshing {
		c.pending = append(c.pending, w)
		queued := len(c.pending)
		c.refreshMu.Unlock()
		c.logger.Debug("waiting on in-flight refresh", "queued", queued)
	} else {
		if current := c.session.AccessToken(); !force && current != "" && current != carried {
			c.refreshMu.Unlock()
			return current, nil
		}
		c.refreshing = true
		c.session.SetRefreshing(true)
		epoch := c.session.Epoch()
		c.refreshMu.Unlock()

		go c.refreshCycle(ctx, epoch, w)
	}

	select {
	case r := <-done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refreshCycle runs one refresh on a context detached from the initiating
// caller and drains the pending queue exactly once. The result is only applied
// to the session identified by epoch.
func (c *Client) refreshCycle(parent context.Context, epoch uint64, leader waiter) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.timeout)
	defer cancel()

	pair, err := c.requestRefresh(ctx)
	if err != nil {
		c.failRefresh(epoch, leader, err)
		return
	}

	if !c.commitRefresh(epoch, pair) {
		c.abandonRefresh(leader)
		return
	}

	queued := c.drain()
	c.logger.Info("access token refreshed", "released", len(queued))

	leader.resolve(pair.AccessToken)
	for _, w := range queued {
		w.resolve(pair.AccessToken)
	}
}

// commitRefresh stores pair and mirrors it into the status cookie and the
// default header. It reports false when the session changed since epoch.
func (c *Client) commitRefresh(epoch uint64, pair *models.TokenPair) bool {
	c.credMu.Lock()
	defer c.credMu.Unlock()

	if !c.session.ApplyRefresh(epoch, *pair) {
		return false
	}
	if c.cookies != nil {
		c.cookies.Set(pair.ExpiresIn)
	}
	c.SetDefaultHeader("Authorization", "Bearer "+pair.AccessToken)
	return true
}

func (c *Client) failRefresh(epoch uint64, leader waiter, cause error) {
	c.credMu.Lock()
	current := c.session.Epoch() == epoch
	if current {
		c.clearCredentialsLocked()
	}
	c.credMu.Unlock()

	if !current {
		c.abandonRefresh(leader)
		return
	}

	err := fmt.Errorf("%w: %w", shared.ErrRefreshFailed, cause)
	queued := c.drain()
	c.logger.Warn("refresh failed, session cleared", "error", cause, "rejected", len(queued))

	if c.navigator != nil && c.navigator.CurrentRoute() != c.loginRoute {
		c.navigator.Navigate(c.loginRoute)
	}

	leader.reject(err)
	for _, w := range queued {
		w.reject(err)
	}
}

// abandonRefresh releases a cycle whose session was replaced or cleared while
// it ran. Waiters replay with the new session's token, or fail when there is none.
func (c *Client) abandonRefresh(leader waiter) {
	queued := c.drain()
	token := c.session.AccessToken()
	c.logger.Info("refresh result discarded, session changed", "released", len(queued))

	if token == "" {
		err := fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNotAuthenticated)
		leader.reject(err)
		for _, w := range queued {
			w.reject(err)
		}
		return
	}

	leader.resolve(token)
	for _, w := range queued {
		w.resolve(token)
	}
}

// clearCredentials ends the local session and drops the mirrored credentials.
func (c *Client) clearCredentials() {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	c.clearCredentialsLocked()
}

func (c *Client) clearCredentialsLocked() {
	c.session.Logout()
	if c.cookies != nil {
		c.cookies.Clear()
	}
	c.deleteDefaultHeader("Authorization")
}

// drain ends the cycle. The session flag is cleared under refreshMu so it
// cannot overwrite the flag of a cycle started right after.
func (c *Client) drain() []waiter {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	queued := c.pending
	c.pending = nil
	c.refreshing = false
	c.session.SetRefreshing(false)
	return queued
}

// requestRefresh calls the refresh endpoint without the stale bearer header.
// With no refresh token held the body is empty and the cookie jar carries the
// refresh cookie.
func (c *Client) requestRefresh(ctx context.Context) (*models.TokenPair, error) {
	var body any
	if rt := c.session.RefreshToken(); rt != "" {
		body = map[string]string{"refreshToken": rt}
	}

	var pair models.TokenPair
	if err := c.Do(WithoutCredentials(ctx), http.MethodPost, RefreshPath, body, &pair); err != nil {
		return nil, err
	}
	if err := models.Validate(pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// startSession establishes a new session and sets the status cookie.
func (c *Client) startSession(res models.LoginResult) error {
	c.credMu.Lock()
	defer c.credMu.Unlock()

	if err := c.session.SetAuth(res); err != nil {
		return err
	}
	if c.cookies != nil {
		c.cookies.Set(res.ExpiresIn)
	}
	return nil
}
