package devserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// ErrorBody is the JSON shape of every error response. The client reads Message.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// requestValidator adapts the shared validator to [echo.Validator].
type requestValidator struct {
	v *validator.Validate
}

func (rv requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %q", shared.ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func newValidator() echo.Validator {
	return requestValidator{v: models.Validator()}
}

func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := mapError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}
		if jsonErr := c.JSON(status, body); jsonErr != nil {
			logger.Error("failed to send error response", "error", jsonErr)
		}
	}
}

func mapError(err error) (int, ErrorBody) {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, ErrorBody{Error: http.StatusText(echoErr.Code), Message: msg}
	}

	switch {
	case errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized, ErrorBody{Error: "auth_failed", Message: err.Error()}
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: "Authentication is required"}
	case errors.Is(err, shared.ErrNotificationNotFound):
		return http.StatusNotFound, ErrorBody{Error: "not_found", Message: err.Error()}
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Error: "invalid_input", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal_error", Message: "An unexpected error occurred"}
	}
}

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return c.Validate(dst)
}
