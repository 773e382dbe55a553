package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/gateway"
	"github.com/verdantlabs/plantdash/internal/utils"
)

const loginPath string = "/login"

type errorResponse struct {
	Error string `json:"error"`
}

// respondWithError turns errors of the backend calls into responses. An expired session sends the
// user to the login page without an error message since the logout already happened.
func respondWithError(c echo.Context, err error) error {
	if gateway.IsSessionExpiredError(err) {
		slog.Info(
			"DASHBOARD",
			"message",
			"session expired, redirecting to login",
			"requestID",
			utils.GetRequestID(c),
		)
		return c.Redirect(http.StatusSeeOther, loginPath)
	}
	if errors.Is(err, api.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if apiErr, ok := api.AsError(err); ok {
		return c.JSON(apiErr.Status, errorResponse{Error: apiErr.Message})
	}
	slog.Error(
		"DASHBOARD",
		"message",
		"backend call failed",
		"error",
		err,
		"requestID",
		utils.GetRequestID(c),
		"traceID",
		utils.GetTraceID(c),
	)
	return c.JSON(http.StatusBadGateway, errorResponse{Error: "the backend could not be reached"})
}
