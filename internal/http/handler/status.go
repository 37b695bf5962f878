package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/service"
)

// StatusHandler serves the cached dashboard snapshot.
//
// Supported operations:
//   - GET /api/status → system status (cached, `X-Cache` header)
type StatusHandler struct {
	log *zap.Logger
	svc *service.StatusService
}

func NewStatusHandler(log *zap.Logger, svc *service.StatusService) *StatusHandler {
	return &StatusHandler{
		log: log.Named("status"),
		svc: svc,
	}
}

// Get handles GET /api/status.
func (h *StatusHandler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}

	if res.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, res.Data)
}
