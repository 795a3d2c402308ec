package v1

import (
	"net/http"

	"github.com/cellarlot/backend/internal/httputil"
	"github.com/cellarlot/backend/internal/models"
	"github.com/gin-gonic/gin"
	google_uuid "github.com/google/uuid"
	"github.com/ryanuber/go-glob"
)

type EventListResponse struct {
	Data []models.AuditEvent `json:"data"`
}

// RegisterEventRoutes registers the routes for the audit event listing
// with the RouterGroup that is passed.
func (co Controller) RegisterEventRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", co.GetEvents)
}

// @Summary		List audit events
// @Description	Returns the recorded state transitions, newest first. The entity filter supports * globbing.
// @Tags			Events
// @Produce		json
// @Success		200	{object}	EventListResponse
// @Param			entity		query	string	false	"Filter by entity type, supports * globbing"
// @Param			entityId	query	string	false	"Filter by entity ID"
// @Param			kind		query	string	false	"Filter by event kind"
// @Router			/v1/events [get]
func (co Controller) GetEvents(c *gin.Context) {
	q := co.DB.Order("timestamp DESC, created_at DESC")

	if entityID := c.Query("entityId"); entityID != "" {
		id, err := google_uuid.Parse(entityID)
		if err != nil {
			abortError(c, httputil.ErrInvalidBody)
			return
		}
		q = q.Where("entity_id = ?", id)
	}

	if kind := c.Query("kind"); kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var events []models.AuditEvent
	if err := q.Find(&events).Error; err != nil {
		abortError(c, err)
		return
	}

	// The entity filter globs, so it is applied after the query.
	if pattern := c.Query("entity"); pattern != "" {
		filtered := make([]models.AuditEvent, 0, len(events))
		for _, event := range events {
			if glob.Glob(pattern, event.EntityType) {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	if events == nil {
		events = []models.AuditEvent{}
	}

	c.JSON(http.StatusOK, EventListResponse{Data: events})
}
