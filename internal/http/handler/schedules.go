package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/http/dto"
	"github.com/picamctl/picamctl/internal/schedule"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// SchedulesHandler manages the unattended capture schedule.
//
// Supported operations:
//   - GET    /api/schedules      → list all entries
//   - POST   /api/schedules      → create a new entry
//   - DELETE /api/schedules/:id  → remove an entry
type SchedulesHandler struct {
	log   *zap.Logger
	store *schedule.Store
}

func NewSchedulesHandler(log *zap.Logger, store *schedule.Store) *SchedulesHandler {
	return &SchedulesHandler{
		log:   log.Named("schedules"),
		store: store,
	}
}

// List handles GET /api/schedules. Adds `X-Total-Count`.
func (h *SchedulesHandler) List(c *gin.Context) {
	tasks := h.store.List()
	c.Header("X-Total-Count", strconv.Itoa(len(tasks)))
	c.JSON(http.StatusOK, tasks)
}

// Create handles POST /api/schedules.
func (h *SchedulesHandler) Create(c *gin.Context) {
	var req dto.ScheduleCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	res := cammodel.Settings{CaptureWidth: req.Width, CaptureHeight: req.Height}.CaptureResolution()
	task, err := schedule.NewTask(req.Type, req.Start, req.End, req.IntervalSec, req.DurationSec, res)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}

	h.store.Add(task)
	h.log.Info("schedule created",
		zap.String("task", task.ID),
		zap.String("type", string(task.Type)),
		zap.Time("start", task.Start),
		zap.Time("end", task.End))
	c.JSON(http.StatusCreated, task)
}

// Delete handles DELETE /api/schedules/:id.
func (h *SchedulesHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	h.store.Remove(id)
	c.JSON(http.StatusOK, gin.H{"message": "schedule removed", "id": id})
}
