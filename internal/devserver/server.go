package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/realtime"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	DefaultAddr       = "127.0.0.1:4000"
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// RefreshCookie carries the refresh token for clients that keep it out of the body.
	RefreshCookie = "refreshToken"

	userIDKey = "user_id"
)

// Config configures [New].
type Config struct {
	Addr       string
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *log.Logger
}

// ConfigFrom converts the [devserver] section of config.toml.
func ConfigFrom(c shared.DevServerConfig) Config {
	return Config{
		Addr:       c.Addr,
		Secret:     c.JWTSecret,
		AccessTTL:  time.Duration(c.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(c.RefreshTTLSeconds) * time.Second,
	}
}

// Server is the development backend.
type Server struct {
	echo     *echo.Echo
	addr     string
	state    *state
	tokens   *signer
	hub      *hub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New builds a server with no accounts. A missing secret is an error; zero
// TTLs select the defaults.
func New(cfg Config) (*Server, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: devserver jwt secret", shared.ErrMissingConfig)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}
	logger := cfg.Logger.With("component", "devserver")

	s := &Server{
		echo:     echo.New(),
		addr:     cfg.Addr,
		state:    newState(),
		tokens:   &signer{secret: []byte(cfg.Secret), accessTTL: cfg.AccessTTL, refreshTTL: cfg.RefreshTTL, now: time.Now},
		hub:      newHub(logger),
		upgrader: newUpgrader(),
		logger:   logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(s.logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())

	api := e.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/confirm", s.confirm)
	api.POST("/auth/login", s.login)
	api.POST("/auth/refresh", s.refresh)
	api.POST("/auth/logout", s.logout)

	authed := api.Group("", s.requireAuth)
	authed.GET("/auth/me", s.me)
	authed.GET("/notifications", s.listNotifications)
	authed.PATCH("/notifications/read-all", s.markAllRead)
	authed.PATCH("/notifications/:id/read", s.markRead)
	authed.GET("/notifications/preferences", s.getPreferences)
	authed.PUT("/notifications/preferences", s.putPreferences)

	e.GET("/ws", s.socket)

	dev := e.Group("/dev")
	dev.POST("/notifications", s.pushNotification)
	dev.POST("/expire", s.expire)
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errs <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// AddUser registers a confirmed account.
func (s *Server) AddUser(email, password, name string, role models.Role) (models.User, error) {
	if err := models.Validate(registration{Email: email, Password: password, Name: name}); err != nil {
		return models.User{}, err
	}
	return s.state.addAccount(models.User{Email: email, Name: name, Role: role, IsVerified: true}, password)
}

// Notify stores a notification for userID and pushes it to any open sockets.
func (s *Server) Notify(userID string, n models.Notification) models.Notification {
	n = s.state.addNotification(userID, n)
	s.hub.send(userID, realtime.EventNotificationNew, n)
	return n
}

// ExpireAccessTokens revokes every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	gen := s.state.expireAccess()
	s.logger.Info("access tokens expired", "generation", gen)
}

// Refreshes counts successful refresh rotations.
func (s *Server) Refreshes() int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.refreshes
}

// Connections counts open sockets for userID.
func (s *Server) Connections(userID string) int {
	return s.hub.count(userID)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			s.logger.Debug("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := s.authorize(c.Request())
		if err != nil {
			return err
		}
		c.Set(userIDKey, claims.Subject)
		return next(c)
	}
}

// authorize validates the bearer access token against the current generation.
func (s *Server) authorize(r *http.Request) (*Claims, error) {
	token, ok := strings.CutPrefix(r.Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return nil, shared.ErrUnauthorized
	}

	claims, err := s.tokens.parse(token, kindAccess)
	if err != nil {
		return nil, err
	}
	if claims.Generation < s.state.currentGeneration() {
		return nil, fmt.Errorf("%w: access token revoked", shared.ErrUnauthorized)
	}
	if _, ok := s.state.user(claims.Subject); !ok {
		return nil, fmt.Errorf("%w: unknown user", shared.ErrUnauthorized)
	}
	return claims, nil
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
