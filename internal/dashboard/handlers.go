package dashboard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
	"github.com/verdantlabs/plantdash/internal/session"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type sessionResponse struct {
	Subject   string     `json:"subject"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	// the backend still decides, an expired token is refreshed on the next call
	Expired bool `json:"expired"`
}

type wateringRequest struct {
	Seconds int `json:"seconds" form:"seconds"`
}

func wantsJSON(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) ||
		strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func toSessionResponse(token models.AccessToken) sessionResponse {
	res := sessionResponse{Subject: token.Subject, Expired: token.Expired()}
	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		res.ExpiresAt = &expiresAt
	}
	return res
}

func (s *Server) GetLogin(c echo.Context) error {
	return c.Render(http.StatusOK, "login", map[string]any{"expired": s.sessions.Expired()})
}

func (s *Server) PostLogin(c echo.Context) error {
	var body loginRequest
	err := c.Bind(&body)
	if err != nil || body.Email == "" || body.Password == "" {
		if wantsJSON(c) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		}
		return c.Render(http.StatusBadRequest, "login", map[string]any{
			"email": body.Email,
			"error": "Please enter your email and password.",
		})
	}
	token, err := s.sessions.Login(
		c.Request().Context(),
		session.Credentials{Email: body.Email, Password: body.Password},
	)
	if err != nil {
		status, message := http.StatusBadGateway, "The login service is not available, please try again later."
		if errors.Is(err, gwerrors.ErrInvalidCredentials) {
			status, message = http.StatusUnauthorized, "The email or password is not correct."
		}
		if wantsJSON(c) {
			return c.JSON(status, errorResponse{Error: message})
		}
		return c.Render(status, "login", map[string]any{"email": body.Email, "error": message})
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, toSessionResponse(token))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) PostLogout(c echo.Context) error {
	err := s.sessions.Logout(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Redirect(http.StatusSeeOther, loginPath)
}

func (s *Server) GetSession(c echo.Context) error {
	token, err := s.sessions.Whoami(c.Request().Context())
	if err != nil {
		if errors.Is(err, gwerrors.ErrTokenNotFound) {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "not logged in"})
		}
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(token))
}

func (s *Server) GetOverview(c echo.Context) error {
	overview, ready := s.overview.Snapshot()
	if !ready {
		err := s.overview.Refresh(c.Request().Context())
		if err != nil {
			return respondWithError(c, err)
		}
		overview, _ = s.overview.Snapshot()
	}
	return c.JSON(http.StatusOK, overview)
}

func (s *Server) ListPlants(c echo.Context) error {
	plants, err := s.api.Plants.List(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, plants)
}

func (s *Server) GetPlant(c echo.Context) error {
	plant, err := s.api.Plants.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, plant)
}

func (s *Server) CreatePlant(c echo.Context) error {
	var input api.PlantInput
	err := c.Bind(&input)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "the plant could not be parsed"})
	}
	plant, err := s.api.Plants.Create(c.Request().Context(), input)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusCreated, plant)
}

func (s *Server) UpdatePlant(c echo.Context) error {
	var input api.PlantInput
	err := c.Bind(&input)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "the plant could not be parsed"})
	}
	plant, err := s.api.Plants.Update(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, plant)
}

func (s *Server) DeletePlant(c echo.Context) error {
	err := s.api.Plants.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListDevices(c echo.Context) error {
	devices, err := s.api.Devices.List(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}

func (s *Server) ListSensors(c echo.Context) error {
	sensors, err := s.api.Sensors.List(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, sensors)
}

func (s *Server) ListReadings(c echo.Context) error {
	var limit int
	err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "the limit must be a number"})
	}
	readings, err := s.api.Sensors.Readings(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, readings)
}

func (s *Server) ListPumps(c echo.Context) error {
	pumps, err := s.api.Pumps.List(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusOK, pumps)
}

func (s *Server) WaterPump(c echo.Context) error {
	var body wateringRequest
	err := c.Bind(&body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "the watering duration must be a number"})
	}
	run, err := s.api.Pumps.Water(c.Request().Context(), c.Param("id"), body.Seconds)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(http.StatusAccepted, run)
}
