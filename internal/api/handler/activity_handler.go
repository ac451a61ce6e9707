package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

const defaultRecentLimit = 20

// ActivityTracker records a named user action against the live session.
type ActivityTracker interface {
	RecordActivity(ctx context.Context, action, details string)
}

// UpdateSource reads the last data-change hint published by any sibling
// station.
type UpdateSource interface {
	LatestSlot(ctx context.Context) (*domain.Activity, error)
}

// ActivityHandler handles activity reporting and the recent-activity feed.
type ActivityHandler struct {
	tracker ActivityTracker
	log     ports.ActivityLog
	updates UpdateSource
}

func NewActivityHandler(tracker ActivityTracker, log ports.ActivityLog, updates UpdateSource) *ActivityHandler {
	return &ActivityHandler{tracker: tracker, log: log, updates: updates}
}

type activityRequest struct {
	Action  string `json:"action"  validate:"required"`
	Details string `json:"details"`
}

type activityResponse struct {
	ID        string    `json:"id,omitempty"`
	Username  string    `json:"username"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

func toActivityResponse(a domain.Activity) activityResponse {
	return activityResponse{
		ID:        a.ID,
		Username:  a.Username,
		Actor:     a.Actor,
		Action:    a.Action,
		Details:   a.Details,
		Timestamp: a.Timestamp,
	}
}

// Report handles POST /v1/activity — records a user action, returns 202.
//
// @Summary      Report a user action
// @Tags         activity
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      activityRequest  true  "Action"
// @Success      202   {object}  acceptedResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/activity [post]
func (h *ActivityHandler) Report(c echo.Context) error {
	var req activityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	h.tracker.RecordActivity(c.Request().Context(), req.Action, req.Details)
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "activity recorded"})
}

// Recent handles GET /v1/activity/recent.
//
// @Summary      Recent activity feed
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max events to return"
// @Success      200    {array}   activityResponse
// @Router       /v1/activity/recent [get]
func (h *ActivityHandler) Recent(c echo.Context) error {
	limit := defaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	events, err := h.log.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]activityResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toActivityResponse(ev))
	}
	return c.JSON(http.StatusOK, out)
}

// Latest handles GET /v1/activity/latest — the single most recent event, for
// header widgets. 204 when nothing has happened yet.
//
// @Summary      Most recent activity event
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  activityResponse
// @Success      204
// @Router       /v1/activity/latest [get]
func (h *ActivityHandler) Latest(c echo.Context) error {
	latest, err := h.log.Latest(c.Request().Context())
	if err != nil {
		return err
	}
	if latest == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, toActivityResponse(*latest))
}

// Updates handles GET /v1/activity/updates — the last data-change hint from
// any station, for clients that reconnect and want to know whether to
// refresh. 204 when no change has been broadcast yet.
//
// @Summary      Last broadcast data-change hint
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  activityResponse
// @Success      204
// @Router       /v1/activity/updates [get]
func (h *ActivityHandler) Updates(c echo.Context) error {
	hint, err := h.updates.LatestSlot(c.Request().Context())
	if err != nil {
		return err
	}
	if hint == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, toActivityResponse(*hint))
}
