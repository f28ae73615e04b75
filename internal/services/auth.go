package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// AuthService runs the login, registration-confirmation and logout flows
// against the backend and records their outcome in the session store.
type AuthService struct {
	client *Client
	logger *log.Logger
}

func NewAuthService(client *Client) *AuthService {
	return &AuthService{client: client, logger: client.logger.With("component", "auth")}
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type confirmation struct {
	Token string `json:"token" validate:"required"`
}

// Login exchanges credentials for a session. Bad credentials wrap [shared.ErrAuthFailed].
func (a *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	body := credentials{Email: email, Password: password}
	if err := models.Validate(body); err != nil {
		return nil, err
	}
	return a.establish(ctx, LoginPath, body)
}

// ConfirmRegistration redeems a registration token; the backend signs the user in on success.
func (a *AuthService) ConfirmRegistration(ctx context.Context, token string) (*models.LoginResult, error) {
	body := confirmation{Token: token}
	if err := models.Validate(body); err != nil {
		return nil, err
	}
	return a.establish(ctx, ConfirmPath, body)
}

func (a *AuthService) establish(ctx context.Context, path string, body any) (*models.LoginResult, error) {
	var res models.LoginResult
	if err := a.client.Do(WithoutCredentials(ctx), http.MethodPost, path, body, &res); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, apiErr.Message)
		}
		return nil, err
	}
	if err := models.Validate(res); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if err := a.client.startSession(res); err != nil {
		return nil, err
	}

	a.logger.Info("signed in", "user", res.User.Email, "role", res.User.Role)
	return &res, nil
}

// Logout tells the backend to revoke the refresh credential and clears local
// state. A failed server call is logged and does not prevent the local logout.
func (a *AuthService) Logout(ctx context.Context) error {
	var serverErr error
	if a.client.session.IsAuthenticated() || a.client.session.RefreshToken() != "" {
		var body any
		if rt := a.client.session.RefreshToken(); rt != "" {
			body = map[string]string{"refreshToken": rt}
		}
		serverErr = a.client.Do(WithoutRetry(ctx), http.MethodPost, LogoutPath, body, nil)
		if serverErr != nil {
			a.logger.Warn("server logout failed, clearing local session anyway", "error", serverErr)
		}
	}

	a.client.clearCredentials()
	a.logger.Info("signed out")
	return serverErr
}

// Me fetches the current identity and stores it in the session.
func (a *AuthService) Me(ctx context.Context) (*models.User, error) {
	if !a.client.session.IsAuthenticated() {
		return nil, shared.ErrNotAuthenticated
	}

	var user models.User
	if err := a.client.Do(ctx, http.MethodGet, MePath, nil, &user); err != nil {
		return nil, err
	}
	a.client.session.SetUser(&user)
	return &user, nil
}
