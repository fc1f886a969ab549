package appointment

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicore/booking-api/internal/middleware"
	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/service/lifecycle"
	"github.com/clinicore/booking-api/pkg/httputil"
)

// DefaultActor is recorded when the caller does not identify itself via
// the X-Actor header.
const DefaultActor = "staff"

// policyPreviewTTL keeps cancel-dialog previews fresh enough that the
// displayed tier cannot drift across a tier boundary unnoticed for long.
const policyPreviewTTL = 30 * time.Second

type Handler struct {
	service      *lifecycle.Service
	previewCache *cache.Cache
}

func NewHandler(service *lifecycle.Service) *Handler {
	return &Handler{
		service:      service,
		previewCache: cache.New(policyPreviewTTL, 5*time.Minute),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.GET("/:id", h.GetAppointment)
		appointments.GET("/:id/cancellation-policy", h.GetCancellationPolicy)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.POST("/:id/complete", h.MarkCompleted)
		appointments.POST("/:id/no-show", h.MarkNoShow)
		appointments.POST("/:id/payment", h.MarkPaid)
		appointments.POST("/:id/refresh", h.RefreshStatus)
	}
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

// GetCancellationPolicy returns the refund tier the client would get if
// they cancelled right now. The cancel dialog polls this, so previews are
// cached briefly per appointment.
func (h *Handler) GetCancellationPolicy(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	cacheKey := fmt.Sprintf("policy:%s", id)
	if cached, ok := h.previewCache.Get(cacheKey); ok {
		httputil.RespondWithSuccess(c, cached)
		return
	}

	decision, err := h.service.PreviewCancellation(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.previewCache.Set(cacheKey, decision, cache.DefaultExpiration)
	httputil.RespondWithSuccess(c, decision)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id, req.Reason, actorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.previewCache.Delete(fmt.Sprintf("policy:%s", id))
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, req.StartTime, req.EndTime, actorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.previewCache.Delete(fmt.Sprintf("policy:%s", id))
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) MarkCompleted(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.MarkCompleted(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.MarkNoShow(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	apt, err := h.service.MarkPaid(c.Request.Context(), id, req.Method, actorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

// RefreshStatus runs the status derivation for one appointment on demand.
func (h *Handler) RefreshStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.RefreshStatus(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func respondBindError(c *gin.Context, err error) {
	if fields := middleware.FormatValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
}

func actorFrom(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return DefaultActor
}
