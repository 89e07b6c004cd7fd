// internal/api/v2/api.go
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo         *echo.Echo
	Group        *echo.Group
	DS           datastore.Interface
	Settings     *conf.Settings
	Aggregator   *accuracy.Aggregator
	DriftMonitor *accuracy.DriftMonitor
	Correlator   *accuracy.Correlator

	apiLogger *slog.Logger
}

// New creates a new API controller and registers its routes on the given echo
// instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	aggregator *accuracy.Aggregator, driftMonitor *accuracy.DriftMonitor,
	correlator *accuracy.Correlator) *Controller {

	apiLogger, _, err := logging.NewFileLogger("logs/api.log", "api", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize API file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
		apiLogger = slog.New(fbHandler).With("service", "api")
	}

	c := &Controller{
		Echo:         e,
		Group:        e.Group("/api/v2"),
		DS:           ds,
		Settings:     settings,
		Aggregator:   aggregator,
		DriftMonitor: driftMonitor,
		Correlator:   correlator,
		apiLogger:    apiLogger,
	}

	e.Use(middleware.Recover())
	c.initAccuracyRoutes()

	return c
}

// ErrorResponse is the uniform error body returned by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleError logs the error and returns the uniform error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	c.apiLogger.Error(message,
		"path", ctx.Request().URL.Path,
		"error", err)
	return ctx.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
