package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// RecordHandler handles household record CRUD and export.
type RecordHandler struct {
	records ports.RecordService
}

func NewRecordHandler(records ports.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

type householdResponse struct {
	DataID  string       `json:"data_id"`
	Head    domain.Row   `json:"head"`
	Members []domain.Row `json:"members,omitempty"`
}

type recordListResponse struct {
	Header     []string            `json:"header"`
	Households []householdResponse `json:"households"`
	Stale      bool                `json:"stale"`
	FetchedAt  time.Time           `json:"fetched_at"`
}

type recordWriteRequest struct {
	Fields map[string]string `json:"fields" validate:"required,min=1"`
}

func queryFromRequest(c echo.Context) ports.RecordQuery {
	return ports.RecordQuery{
		Barangay: c.QueryParam("barangay"),
		Search:   c.QueryParam("q"),
	}
}

// List handles GET /v1/records. A listing served from the local cache while
// the backend is unreachable carries stale=true.
//
// @Summary      List households
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        barangay  query     string  false  "Filter by barangay"
// @Param        q         query     string  false  "Search term"
// @Success      200       {object}  recordListResponse
// @Failure      502       {object}  errorResponse
// @Router       /v1/records [get]
func (h *RecordHandler) List(c echo.Context) error {
	listing, err := h.records.List(c.Request().Context(), queryFromRequest(c))
	if err != nil {
		return err
	}

	households := make([]householdResponse, 0, len(listing.Households))
	for _, hh := range listing.Households {
		households = append(households, householdResponse{
			DataID:  hh.DataID,
			Head:    hh.Head,
			Members: hh.Members,
		})
	}
	return c.JSON(http.StatusOK, recordListResponse{
		Header:     listing.Header,
		Households: households,
		Stale:      listing.Stale,
		FetchedAt:  listing.FetchedAt,
	})
}

// Create handles POST /v1/records.
//
// @Summary      Create a household record
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recordWriteRequest  true  "Sheet fields"
// @Success      201   {object}  acceptedResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/records [post]
func (h *RecordHandler) Create(c echo.Context) error {
	var req recordWriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.records.Create(c.Request().Context(), req.Fields); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, acceptedResponse{Message: "record created"})
}

// Update handles PUT /v1/records/:data_id.
//
// @Summary      Update a household
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        data_id  path      string              true  "Household Data ID"
// @Param        body     body      recordWriteRequest  true  "Sheet fields"
// @Success      200      {object}  acceptedResponse
// @Failure      422      {object}  errorResponse
// @Failure      502      {object}  errorResponse
// @Router       /v1/records/{data_id} [put]
func (h *RecordHandler) Update(c echo.Context) error {
	dataID := c.Param("data_id")
	if dataID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing data id")
	}

	var req recordWriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.records.Update(c.Request().Context(), dataID, req.Fields); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acceptedResponse{Message: "record updated"})
}

// Delete handles DELETE /v1/records/:data_id — removes the whole household,
// head and members.
//
// @Summary      Delete a household
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        data_id  path      string  true  "Household Data ID"
// @Success      200      {object}  acceptedResponse
// @Failure      403      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/records/{data_id} [delete]
func (h *RecordHandler) Delete(c echo.Context) error {
	dataID := c.Param("data_id")
	if dataID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing data id")
	}

	if err := h.records.Delete(c.Request().Context(), dataID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acceptedResponse{Message: "household deleted"})
}

// Export handles GET /v1/records/export — the full grouped listing as CSV.
//
// @Summary      Export households as CSV
// @Tags         records
// @Produce      text/csv
// @Security     BearerAuth
// @Param        barangay  query  string  false  "Filter by barangay"
// @Success      200
// @Failure      502  {object}  errorResponse
// @Router       /v1/records/export [get]
func (h *RecordHandler) Export(c echo.Context) error {
	body, filename, err := h.records.ExportCSV(c.Request().Context(), queryFromRequest(c))
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", body)
}
