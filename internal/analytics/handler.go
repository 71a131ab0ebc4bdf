// Package analytics serves the dashboard statistics.
package analytics

import (
	"context"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/pkg/response"
)

// TopEvents is how many events PopularEvents lists.
const TopEvents = 5

// DefaultMonths is the default trend window.
const DefaultMonths = 6

// PopularEvent is an event ranked by registrations.
type PopularEvent struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Registrations int       `json:"registrations"`
}

// DepartmentCount is the number of registrations from one department.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// MonthlyTrend counts events held and registrations made in a month (YYYY-MM).
type MonthlyTrend struct {
	Month         string `json:"month"`
	Events        int    `json:"events"`
	Registrations int    `json:"registrations"`
}

// Dashboard is the JSON shape of GET /analytics/dashboard.
type Dashboard struct {
	TotalEvents             int               `json:"total_events"`
	EventsByStatus          map[string]int    `json:"events_by_status"`
	TotalRegistrations      int               `json:"total_registrations"`
	TotalAttendance         int               `json:"total_attendance"`
	AttendanceRate          float64           `json:"attendance_rate"`
	PopularEvents           []PopularEvent    `json:"popular_events"`
	DepartmentParticipation []DepartmentCount `json:"department_participation"`
	MonthlyTrends           []MonthlyTrend    `json:"monthly_trends"`
}

// Rate returns attended as a percentage of registered, rounded to one decimal.
func Rate(attended, registered int) float64 {
	if registered <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(registered)*1000) / 10
}

// Source loads dashboard figures.
type Source interface {
	Dashboard(ctx context.Context, organizerID *uuid.UUID, months int) (*Dashboard, error)
}

// Handler handles GET /analytics/dashboard.
type Handler struct {
	src Source
}

// NewHandler creates an analytics handler.
func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// Dashboard returns the statistics. Admins see every event, organizers their own.
func (h *Handler) Dashboard(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	var scope *uuid.UUID
	if !actor.IsAdmin() {
		scope = &actor.ID
	}
	d, err := h.src.Dashboard(c.Request.Context(), scope, DefaultMonths)
	if err != nil {
		response.Error(c, err, "failed to load analytics")
		return
	}
	response.OK(c, d)
}
