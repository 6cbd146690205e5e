package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dreamlog/internal/pkg/errcode"
	"github.com/xxxsen/dreamlog/internal/pkg/response"
	"github.com/xxxsen/dreamlog/internal/service"
)

type DreamHandler struct {
	dreams *service.DreamService
}

func NewDreamHandler(dreams *service.DreamService) *DreamHandler {
	return &DreamHandler{dreams: dreams}
}

type dreamRequest struct {
	Content      string `json:"content"`
	DateOccurred string `json:"date_occurred"`
}

func (h *DreamHandler) Create(c *gin.Context) {
	var req dreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	view, err := h.dreams.Create(c.Request.Context(), service.DreamCreateInput{
		Content:      req.Content,
		DateOccurred: req.DateOccurred,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *DreamHandler) List(c *gin.Context) {
	views, err := h.dreams.List(c.Request.Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, views)
}

func (h *DreamHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return
	}
	view, err := h.dreams.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *DreamHandler) Stats(c *gin.Context) {
	stats, err := h.dreams.DailyStats(c.Request.Context(), c.Param("date"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
