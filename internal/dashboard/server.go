// Package dashboard serves the pages and JSON endpoints of the dashboard shell.
package dashboard

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/models"
	"github.com/verdantlabs/plantdash/internal/poller"
	"github.com/verdantlabs/plantdash/internal/session"
)

// SessionManager is the part of the session manager used by the handlers
type SessionManager interface {
	Login(context.Context, session.Credentials) (models.AccessToken, error)
	Logout(context.Context) error
	Whoami(context.Context) (models.AccessToken, error)
	Expired() bool
}

// OverviewSource provides the overview shown on the start page
type OverviewSource interface {
	Snapshot() (poller.Overview, bool)
	Refresh(context.Context) error
}

type Server struct {
	sessions SessionManager
	api      *api.Client
	overview OverviewSource
}

func (s *Server) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	e := server.Group("")
	e.Use(commonMiddlewares...)
	e.Use(NoCaching)

	e.GET("/login", s.GetLogin)
	e.POST("/login", s.PostLogin)
	e.POST("/logout", s.PostLogout)
	e.GET("/session", s.GetSession)

	a := e.Group("/api")
	a.GET("/overview", s.GetOverview)
	a.GET("/plants", s.ListPlants)
	a.POST("/plants", s.CreatePlant)
	a.GET("/plants/:id", s.GetPlant)
	a.PUT("/plants/:id", s.UpdatePlant)
	a.DELETE("/plants/:id", s.DeletePlant)
	a.GET("/devices", s.ListDevices)
	a.GET("/sensors", s.ListSensors)
	a.GET("/sensors/:id/readings", s.ListReadings)
	a.GET("/pumps", s.ListPumps)
	a.POST("/pumps/:id/water", s.WaterPump)
}

type ServerOption func(*Server) error

func WithSessionManager(sessions SessionManager) ServerOption {
	return func(s *Server) error {
		s.sessions = sessions
		return nil
	}
}

func WithAPIClient(client *api.Client) ServerOption {
	return func(s *Server) error {
		s.api = client
		return nil
	}
}

func WithOverviewSource(overview OverviewSource) ServerOption {
	return func(s *Server) error {
		s.overview = overview
		return nil
	}
}

// NewServer creates the dashboard server, all options are required.
func NewServer(options ...ServerOption) (*Server, error) {
	server := Server{}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return nil, err
		}
	}
	if server.sessions == nil {
		return nil, fmt.Errorf("session manager not initialized")
	}
	if server.api == nil {
		return nil, fmt.Errorf("api client not initialized")
	}
	if server.overview == nil {
		return nil, fmt.Errorf("overview source not initialized")
	}
	return &server, nil
}
