// Package api exposes the operational HTTP surface: liveness and store
// statistics. It sits outside the chat flow entirely.
package api

import (
	"net/http"

	"github.com/dyatelok/secret-santa/internal/models"
	"github.com/dyatelok/secret-santa/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) HandleHealthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := s.store.CountPrefix(c.Request().Context(), models.KeyPrefixUser); err != nil {
			logrus.Errorf("healthz store probe failed: %v", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "store unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}

func (s *Service) HandleStats() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		users, err := s.store.CountPrefix(ctx, models.KeyPrefixUser)
		if err != nil {
			logrus.Errorf("counting users: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count users"})
		}

		games, err := s.store.CountPrefix(ctx, models.KeyPrefixGame)
		if err != nil {
			logrus.Errorf("counting games: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count games"})
		}

		return c.JSON(http.StatusOK, echo.Map{
			"registered_users": users,
			"open_games":       games,
		})
	}
}
