package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 5 * time.Second
)

// Session is the part of the session store the manager needs. [*session.Store] satisfies it.
type Session interface {
	AccessToken() string
	State() session.State
	Subscribe(fn func(session.State)) (unsubscribe func())
}

// Inbox receives pushed notifications and liveness. [*notifications.Store] satisfies it.
type Inbox interface {
	Add(n models.Notification) bool
	IncrementUnread()
	SetConnected(v bool)
	Reset()
}

// Invalidator marks paginated notification caches stale.
type Invalidator interface {
	InvalidateNotifications()
}

// Options configures [NewManager]. MaxAttempts bounds reconnects after a drop
// or failed dial; zero selects [DefaultMaxAttempts] and a negative value
// disables reconnecting.
type Options struct {
	URL         string
	Session     Session
	Inbox       Inbox
	Invalidator Invalidator
	Dialer      Dialer
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *log.Logger
}

// Manager owns the channel connection for the current session.
type Manager struct {
	url         string
	session     Session
	inbox       Inbox
	invalidator Invalidator
	dial        Dialer
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *log.Logger

	mu          sync.Mutex
	base        context.Context
	initialized bool
	cancel      context.CancelFunc
	conn        Conn
	done        chan struct{}
	dials       int
	unsubscribe func()
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Session == nil || opts.Inbox == nil {
		return nil, fmt.Errorf("%w: session and inbox are required", shared.ErrInvalidInput)
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: realtime url", shared.ErrMissingConfig)
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer(nil)
	}
	switch {
	case opts.MaxAttempts == 0:
		opts.MaxAttempts = DefaultMaxAttempts
	case opts.MaxAttempts < 0:
		opts.MaxAttempts = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		url:         opts.URL,
		session:     opts.Session,
		inbox:       opts.Inbox,
		invalidator: opts.Invalidator,
		dial:        opts.Dialer,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		logger:      opts.Logger.With("component", "realtime"),
		base:        context.Background(),
	}, nil
}

// Start binds the manager to the session: it syncs with the current state and
// with every later change. The returned function is equivalent to [Manager.Stop].
func (m *Manager) Start(ctx context.Context) (stop func()) {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()

	unsubscribe := m.session.Subscribe(m.Sync)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.Sync(m.session.State())
	return m.Stop
}

// Stop detaches from the session and tears the connection down.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.teardown()
}

// Sync reconciles the channel with the session: without authentication or a
// token the channel is torn down; otherwise a connection is opened unless one
// is already initialised.
//
// The delivered state is only a trigger and may be stale; the current state is
// read under the manager lock.
func (m *Manager) Sync(session.State) {
	m.mu.Lock()
	st := m.session.State()
	if !st.IsAuthenticated || st.AccessToken == "" {
		m.mu.Unlock()
		m.teardown()
		return
	}
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	ctx, cancel := context.WithCancel(m.base)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, done)
}

// Dials returns how many connection attempts have been made.
func (m *Manager) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// Wait blocks until the current connection loop has exited, either after
// teardown or after reconnect attempts are exhausted.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Manager) teardown() {
	m.mu.Lock()
	wasInitialized := m.initialized
	m.initialized = false
	cancel, conn, done := m.cancel, m.conn, m.done
	m.cancel, m.conn = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}

	m.inbox.Reset()
	if wasInitialized {
		m.logger.Info("channel closed")
	}
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		token := m.session.AccessToken()
		if token == "" {
			m.release(done)
			return
		}

		m.mu.Lock()
		m.dials++
		m.mu.Unlock()

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		conn, err := m.dial(ctx, m.url, header)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}

		if err != nil {
			m.logger.Warn("connect failed", "attempt", attempt, "error", err)
		} else {
			attempt = 0
			if !m.attach(ctx, conn) {
				return
			}
			m.inbox.SetConnected(true)
			m.logger.Info("connected", "url", m.url)

			err = m.read(ctx, conn)
			m.detach(conn)
			if ctx.Err() != nil {
				return
			}
			m.inbox.SetConnected(false)
			m.logger.Warn("disconnected", "error", err)
		}

		if attempt >= m.maxAttempts {
			m.inbox.SetConnected(false)
			m.logger.Error("giving up on channel", "error", shared.ErrChannelExhausted, "attempts", attempt)
			return
		}

		delay := Backoff(attempt, m.baseDelay, m.maxDelay)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// release clears the guard when the loop that owns done is still current, so
// the next authenticated state opens a fresh connection.
func (m *Manager) release(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.initialized = false
	m.cancel, m.done = nil, nil
}

// attach records conn as current. It reports false, closing conn, when the
// loop was cancelled in the meantime.
func (m *Manager) attach(ctx context.Context, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return false
	}
	m.conn = conn
	return true
}

func (m *Manager) detach(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	conn.Close()
}

func (m *Manager) read(ctx context.Context, conn Conn) error {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				m.logger.Warn("dropping malformed frame", "error", err)
				continue
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.handle(env)
	}
}

func (m *Manager) handle(env Envelope) {
	switch env.Event {
	case EventNotificationNew:
		var n models.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil || n.ID == "" {
			m.logger.Warn("dropping malformed notification", "error", err)
			return
		}

		if m.inbox.Add(n) && !n.Read {
			m.inbox.IncrementUnread()
		}
		if m.invalidator != nil {
			m.invalidator.InvalidateNotifications()
		}
		m.logger.Debug("notification received", "id", n.ID, "type", n.Type)
	default:
		m.logger.Debug("ignoring event", "event", env.Event)
	}
}

// Backoff returns the delay before reconnect attempt n: base doubled n times, capped at limit.
func Backoff(n int, base, limit time.Duration) time.Duration {
	d := base
	for range n {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}
