package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
)

func calendarTestContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest(http.MethodGet, "/calendar?"+rawQuery, nil)
	return c
}

func TestCalendarFilterFromQueryParsesWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := calendarTestContext(t, "term_id=t1&event_type=EXAM&from=2026-01-05&to=2026-01-30&published=true")

	filter, err := calendarFilterFromQuery(c)
	require.NoError(t, err)
	assert.Equal(t, "t1", filter.TermID)
	assert.Equal(t, models.CalendarEventExam, filter.EventType)
	require.NotNil(t, filter.From)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), *filter.From)
	require.NotNil(t, filter.Published)
	assert.True(t, *filter.Published)
}

func TestCalendarFilterFromQueryRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := calendarTestContext(t, "from=05-01-2026")

	_, err := calendarFilterFromQuery(c)
	assert.Error(t, err)
}

func TestCalendarFilterFromQueryRejectsBadPublished(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := calendarTestContext(t, "published=yes-please")

	_, err := calendarFilterFromQuery(c)
	assert.Error(t, err)
}
