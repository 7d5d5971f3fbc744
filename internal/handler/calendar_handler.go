package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/service"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/response"
)

// CalendarHandler wires the academic calendar endpoints.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler creates a new handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

func calendarFilterFromQuery(c *gin.Context) (models.CalendarFilter, error) {
	filter := models.CalendarFilter{
		TermID:     c.Query("term_id"),
		EventType:  models.CalendarEventType(c.Query("event_type")),
		GradeLevel: c.Query("grade_level"),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be formatted as YYYY-MM-DD")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be formatted as YYYY-MM-DD")
		}
		filter.To = &to
	}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "published must be a boolean")
		}
		filter.Published = &published
	}
	return filter, nil
}

// List godoc
// @Summary      List calendar events
// @Tags         calendar
// @Produce      json
// @Param        term_id query string false "Filter by term"
// @Param        event_type query string false "ACADEMIC, HOLIDAY, EXAM or ACTIVITY"
// @Param        from query string false "Start of window (YYYY-MM-DD)"
// @Param        to query string false "End of window (YYYY-MM-DD)"
// @Success      200 {object} response.Envelope
// @Router       /calendar [get]
func (h *CalendarHandler) List(c *gin.Context) {
	filter, err := calendarFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// ListPublic returns only published calendar events.
func (h *CalendarHandler) ListPublic(c *gin.Context) {
	filter, err := calendarFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	published := true
	filter.Published = &published

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Get returns one calendar event.
func (h *CalendarHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create adds a calendar event.
func (h *CalendarHandler) Create(c *gin.Context) {
	var req service.CreateCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}

	event, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update rewrites a calendar event.
func (h *CalendarHandler) Update(c *gin.Context) {
	var req service.UpdateCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}

	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete removes a calendar event.
func (h *CalendarHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportPDF godoc
// @Summary      Export the calendar as a PDF
// @Tags         calendar
// @Produce      application/pdf
// @Success      200 {file} file
// @Router       /calendar/export [get]
func (h *CalendarHandler) ExportPDF(c *gin.Context) {
	filter, err := calendarFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	published := true
	filter.Published = &published

	payload, filename, err := h.service.ExportPDF(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}
