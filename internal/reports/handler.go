package reports

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/pkg/response"
)

// Handler serves report downloads.
type Handler struct {
	svc *Service
}

// NewHandler creates a reports handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Events handles GET /reports/events?format=csv|xlsx|pdf&date_from=&date_to=&status=&category=&archive=.
// With archive=true the file is stored and a download link is returned instead of the file.
func (h *Handler) Events(c *gin.Context) {
	req := Request{
		Format: Format(c.DefaultQuery("format", string(FormatCSV))),
		Filter: models.EventFilter{
			Status:   models.EventStatus(c.Query("status")),
			Category: models.EventCategory(c.Query("category")),
			DateFrom: c.Query("date_from"),
			DateTo:   c.Query("date_to"),
		},
		Archive: c.Query("archive") == "true",
	}
	file, err := h.svc.Export(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		response.Error(c, err, "failed to export report")
		return
	}
	if req.Archive {
		response.OK(c, file)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
