package http

import (
	stderrors "errors"
	"io"
	"net/http"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/pkg/errors"
	"eclairia/pkg/validation"

	"github.com/gin-gonic/gin"
)

// EventStream upgrades a request into a live validation event subscription.
type EventStream interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

type StationHandler struct {
	stationService ports.StationService
	events         EventStream
}

func NewStationHandler(stationService ports.StationService, events EventStream) *StationHandler {
	return &StationHandler{
		stationService: stationService,
		events:         events,
	}
}

func (h *StationHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/stations", h.ListStations)
		api.GET("/stations/:id", h.GetStation)

		api.POST("/validations", h.StartValidation)
		api.GET("/validations/latest", h.LatestValidation)
		api.GET("/validations/:run_id", h.GetValidation)
		if h.events != nil {
			api.GET("/validations/events", gin.WrapF(h.events.HandleWebSocket))
		}
	}
}

func (h *StationHandler) ListStations(c *gin.Context) {
	stations, err := h.stationService.ListStations(c.Request.Context())
	if err != nil {
		_ = c.Error(toAppError(err))
		return
	}
	c.JSON(http.StatusOK, stations)
}

func (h *StationHandler) GetStation(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateStationID(id); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	station, err := h.stationService.GetStation(c.Request.Context(), domain.StationID(id))
	if err != nil {
		_ = c.Error(toAppError(err).WithDetail("station_id", id))
		return
	}
	c.JSON(http.StatusOK, station)
}

// StartValidation accepts an optional JSON body of ValidationOverrides.
func (h *StationHandler) StartValidation(c *gin.Context) {
	var overrides domain.ValidationOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil && !stderrors.Is(err, io.EOF) {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	for _, id := range overrides.StationIDs {
		if err := validation.ValidateStationID(string(id)); err != nil {
			_ = c.Error(errors.NewInvalidInputError(err.Error()).WithDetail("station_id", id))
			return
		}
	}

	runID, err := h.stationService.StartValidation(c.Request.Context(), overrides)
	if err != nil {
		_ = c.Error(toAppError(err))
		return
	}

	c.Header("Location", "/api/validations/"+runID)
	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": domain.RunStateRunning,
	})
}

func (h *StationHandler) LatestValidation(c *gin.Context) {
	snapshot, err := h.stationService.Latest()
	if err != nil {
		_ = c.Error(toAppError(err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetValidation serves the snapshot of runID. Only the latest run is kept,
// so an older id is reported as not found.
func (h *StationHandler) GetValidation(c *gin.Context) {
	runID := c.Param("run_id")
	if err := validation.ValidateRunID(runID); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	snapshot, err := h.stationService.Latest()
	if err != nil && !stderrors.Is(err, domain.ErrNoRun) {
		_ = c.Error(toAppError(err))
		return
	}
	if snapshot == nil || snapshot.RunID != runID {
		_ = c.Error(errors.NewNotFoundError("validation run").WithDetail("run_id", runID))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

var domainErrors = []errors.Mapping{
	{Target: domain.ErrStationNotFound, Code: errors.ErrCodeNotFound, Message: "station not found"},
	{Target: domain.ErrNoRun, Code: errors.ErrCodeNotFound, Message: "no validation run yet"},
	{Target: domain.ErrRunInProgress, Code: errors.ErrCodeConflict, Message: "a validation run is already in progress"},
	{Target: domain.ErrInvalidOptions, Code: errors.ErrCodeInvalidInput},
	{Target: domain.ErrInvalidStation, Code: errors.ErrCodeInvalidInput},
	{Target: domain.ErrDuplicateStation, Code: errors.ErrCodeInvalidInput},
}

func toAppError(err error) *errors.AppError {
	return errors.Map(err, domainErrors...)
}
