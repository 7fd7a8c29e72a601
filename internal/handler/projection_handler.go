package handler

import (
	"context"

	"dapp-core/internal/handler/response"
	"dapp-core/internal/model"

	"github.com/gin-gonic/gin"
)

type ProjectionService interface {
	Get() (*model.Projection, bool)
	Refresh(ctx context.Context) (*model.Projection, error)
}

type ProjectionHandler struct {
	projection ProjectionService
}

func NewProjectionHandler(projection ProjectionService) *ProjectionHandler {
	return &ProjectionHandler{projection: projection}
}

// Get returns the last projection, loading it on first use.
func (h *ProjectionHandler) Get(c *gin.Context) {
	if p, ok := h.projection.Get(); ok {
		response.Success(c, p)
		return
	}
	h.Refresh(c)
}

func (h *ProjectionHandler) Refresh(c *gin.Context) {
	p, err := h.projection.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}
