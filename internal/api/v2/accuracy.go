// internal/api/v2/accuracy.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkfan/waitwatch-go/internal/datastore"
	"github.com/parkfan/waitwatch-go/internal/errors"
)

const defaultWindowDays = 7

// initAccuracyRoutes registers all accuracy-related API endpoints
func (c *Controller) initAccuracyRoutes() {
	accuracyGroup := c.Group.Group("/accuracy")

	accuracyGroup.GET("/summary", c.GetAccuracySummary)
	accuracyGroup.GET("/patterns", c.GetErrorPatterns)
	accuracyGroup.GET("/performers", c.GetPerformers)
	accuracyGroup.GET("/daily", c.GetDailyTrend)
	accuracyGroup.GET("/drift", c.GetDriftStatus)
	accuracyGroup.GET("/correlation", c.GetCorrelation)
	accuracyGroup.GET("/errors", c.GetCompletedErrors)
	accuracyGroup.GET("/model", c.GetActiveModel)
}

// windowStart resolves the optional days query parameter into a window start
func (c *Controller) windowStart(ctx echo.Context) time.Time {
	days := defaultWindowDays
	if v := ctx.QueryParam("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	return time.Now().AddDate(0, 0, -days)
}

// GetAccuracySummary handles GET /api/v2/accuracy/summary
// Returns MAE/RMSE/MAPE/R2, coverage and the accuracy badge for the window,
// system wide or for a single entity via entity_id.
func (c *Controller) GetAccuracySummary(ctx echo.Context) error {
	summary, err := c.Aggregator.Summarize(c.windowStart(ctx), ctx.QueryParam("entity_id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute accuracy summary", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, summary)
}

// GetErrorPatterns handles GET /api/v2/accuracy/patterns
// Returns error statistics bucketed by hour of day and day of week.
func (c *Controller) GetErrorPatterns(ctx echo.Context) error {
	patterns, err := c.Aggregator.ErrorPatterns(c.windowStart(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute error patterns", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, patterns)
}

// GetPerformers handles GET /api/v2/accuracy/performers
// Returns the best and worst predicted entities by MAE.
func (c *Controller) GetPerformers(ctx echo.Context) error {
	topN := 5
	if v := ctx.QueryParam("top"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			topN = parsed
		}
	}

	performers, err := c.Aggregator.TopPerformers(c.windowStart(ctx), topN)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute performer rankings", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, performers)
}

// GetDailyTrend handles GET /api/v2/accuracy/daily
// Returns one MAE value per day over the window.
func (c *Controller) GetDailyTrend(ctx echo.Context) error {
	trend, err := c.Aggregator.DailyTrend(c.windowStart(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute daily trend", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, trend)
}

// GetDriftStatus handles GET /api/v2/accuracy/drift
// Runs a drift evaluation and returns the snapshot.
func (c *Controller) GetDriftStatus(ctx echo.Context) error {
	snapshot, err := c.DriftMonitor.Evaluate(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to evaluate drift", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

// GetCorrelation handles GET /api/v2/accuracy/correlation
// Returns the feature-error correlation report, optionally scoped to one
// entity via entity_id and with a threshold override.
func (c *Controller) GetCorrelation(ctx echo.Context) error {
	var threshold float64
	if v := ctx.QueryParam("threshold"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			threshold = parsed
		}
	}

	report, err := c.Correlator.Correlate(c.windowStart(ctx), ctx.QueryParam("entity_id"), threshold)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute feature correlation", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, report)
}

// GetCompletedErrors handles GET /api/v2/accuracy/errors
// Returns (entity, target time, error) tuples for the training pipeline.
// Accepts RFC3339 start and end parameters, defaulting to the last window.
func (c *Controller) GetCompletedErrors(ctx echo.Context) error {
	end := time.Now()
	start := end.AddDate(0, 0, -defaultWindowDays)

	if v := ctx.QueryParam("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid start parameter, expected RFC3339", http.StatusBadRequest)
		}
		start = parsed
	}
	if v := ctx.QueryParam("end"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid end parameter, expected RFC3339", http.StatusBadRequest)
		}
		end = parsed
	}
	if end.Before(start) {
		err := errors.Newf("end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
		return c.HandleError(ctx, err, "Invalid time range", http.StatusBadRequest)
	}

	rows, err := c.DS.GetCompletedErrors(start, end)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch completed errors", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rows)
}

// ModelResponse is the registry row returned by GetActiveModel.
type ModelResponse struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	TrainingMAE  float64   `json:"training_mae"`
	TrainingRMSE float64   `json:"training_rmse"`
	TrainingMAPE float64   `json:"training_mape"`
	TrainingR2   float64   `json:"training_r2"`
}

// GetActiveModel handles GET /api/v2/accuracy/model
// Returns the active forecasting model and its training baseline.
func (c *Controller) GetActiveModel(ctx echo.Context) error {
	model, err := c.DS.GetActiveModel()
	if err != nil {
		if errors.Is(err, datastore.ErrModelNotFound) {
			return c.HandleError(ctx, err, "No active model registered", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to fetch active model", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, ModelResponse{
		Version:      model.Version,
		TrainedAt:    model.TrainedAt,
		TrainingMAE:  model.TrainingMAE,
		TrainingRMSE: model.TrainingRMSE,
		TrainingMAPE: model.TrainingMAPE,
		TrainingR2:   model.TrainingR2,
	})
}
