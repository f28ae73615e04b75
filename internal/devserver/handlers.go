package devserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

type registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type devNotification struct {
	UserID  string                  `json:"userId"`
	Email   string                  `json:"email" validate:"omitempty,email"`
	Type    models.NotificationType `json:"type"`
	Title   string                  `json:"title" validate:"required"`
	Message string                  `json:"message"`
	Data    map[string]any          `json:"data"`
}

func (s *Server) register(c echo.Context) error {
	var req registration
	if err := bindValid(c, &req); err != nil {
		return err
	}

	u, err := s.state.addAccount(models.User{Email: req.Email, Name: req.Name}, req.Password)
	if err != nil {
		return err
	}
	token := s.state.addPending(u.ID)
	s.logger.Info("registered", "email", u.Email, "confirmation", token)

	return c.JSON(http.StatusCreated, map[string]any{"user": u, "confirmationToken": token})
}

func (s *Server) confirm(c echo.Context) error {
	var req confirmRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	u, err := s.state.confirm(req.Token)
	if err != nil {
		return err
	}
	return s.issue(c, u)
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	u, err := s.state.authenticate(req.Email, req.Password)
	if err != nil {
		return err
	}
	return s.issue(c, u)
}

// issue signs a fresh token pair for u and sets the refresh cookie.
func (s *Server) issue(c echo.Context, u models.User) error {
	access, refresh, err := s.pair(u.ID)
	if err != nil {
		return err
	}
	s.setRefreshCookie(c, refresh)

	return c.JSON(http.StatusOK, models.LoginResult{
		User:         &u,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokens.accessTTL.Seconds()),
	})
}

func (s *Server) pair(userID string) (access, refresh string, err error) {
	access, _, err = s.tokens.sign(kindAccess, userID, s.state.currentGeneration())
	if err != nil {
		return "", "", err
	}
	refresh, jti, err := s.tokens.sign(kindRefresh, userID, 0)
	if err != nil {
		return "", "", err
	}
	s.state.storeRefresh(jti, userID)
	return access, refresh, nil
}

func (s *Server) refresh(c echo.Context) error {
	token := s.refreshToken(c)
	if token == "" {
		return fmt.Errorf("%w: no refresh token", shared.ErrUnauthorized)
	}

	claims, err := s.tokens.parse(token, kindRefresh)
	if err != nil {
		return err
	}
	userID, err := s.state.rotateRefresh(claims.ID)
	if err != nil {
		return err
	}
	if _, ok := s.state.user(userID); !ok {
		return fmt.Errorf("%w: unknown user", shared.ErrUnauthorized)
	}

	access, refresh, err := s.pair(userID)
	if err != nil {
		return err
	}
	s.setRefreshCookie(c, refresh)

	return c.JSON(http.StatusOK, models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokens.accessTTL.Seconds()),
	})
}

func (s *Server) logout(c echo.Context) error {
	if token := s.refreshToken(c); token != "" {
		if claims, err := s.tokens.parse(token, kindRefresh); err == nil {
			s.state.revokeRefresh(claims.ID)
		}
	}
	s.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// refreshToken reads the token from the JSON body, falling back to the cookie.
func (s *Server) refreshToken(c echo.Context) string {
	var req refreshRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		return ck.Value
	}
	return ""
}

func (s *Server) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(s.tokens.refreshTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) me(c echo.Context) error {
	u, ok := s.state.user(userID(c))
	if !ok {
		return shared.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) listNotifications(c echo.Context) error {
	page, limit, unreadOnly := 1, 20, false
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		Bool("unreadOnly", &unreadOnly).
		BindError()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if page < 1 || limit < 1 || limit > 100 {
		return fmt.Errorf("%w: page must be >= 1 and limit within 1..100", shared.ErrInvalidInput)
	}

	return c.JSON(http.StatusOK, s.state.page(userID(c), page, limit, unreadOnly))
}

func (s *Server) markRead(c echo.Context) error {
	if err := s.state.markRead(userID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) markAllRead(c echo.Context) error {
	n := s.state.markAllRead(userID(c))
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) getPreferences(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state.preferences(userID(c)))
}

func (s *Server) putPreferences(c echo.Context) error {
	var prefs models.Preferences
	if err := bindValid(c, &prefs); err != nil {
		return err
	}
	s.state.setPreferences(userID(c), prefs)
	return c.JSON(http.StatusOK, prefs)
}

// socket upgrades an authenticated request and holds it until the peer goes away.
// Browsers cannot set headers on the handshake, so a token query parameter is
// accepted as well.
func (s *Server) socket(c echo.Context) error {
	r := c.Request()
	if t := c.QueryParam("token"); t != "" && r.Header.Get(echo.HeaderAuthorization) == "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+t)
	}
	claims, err := s.authorize(r)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return nil
	}

	sock := &socket{conn: conn}
	s.hub.add(claims.Subject, sock)
	s.logger.Info("socket opened", "user", claims.Subject)
	defer func() {
		s.hub.remove(claims.Subject, sock)
		conn.Close()
		s.logger.Info("socket closed", "user", claims.Subject)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (s *Server) pushNotification(c echo.Context) error {
	var req devNotification
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		req.Type = models.NotificationSystem
	}

	var targets []string
	switch {
	case req.UserID != "":
		if _, ok := s.state.user(req.UserID); !ok {
			return fmt.Errorf("%w: unknown user %s", shared.ErrInvalidInput, req.UserID)
		}
		targets = []string{req.UserID}
	case req.Email != "":
		u, ok := s.state.userByEmail(req.Email)
		if !ok {
			return fmt.Errorf("%w: unknown user %s", shared.ErrInvalidInput, req.Email)
		}
		targets = []string{u.ID}
	default:
		targets = s.state.userIDs()
	}

	created := make([]models.Notification, 0, len(targets))
	for _, id := range targets {
		created = append(created, s.Notify(id, models.Notification{
			Type:    req.Type,
			Title:   req.Title,
			Message: req.Message,
			Data:    req.Data,
		}))
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) expire(c echo.Context) error {
	s.ExpireAccessTokens()
	return c.NoContent(http.StatusNoContent)
}
