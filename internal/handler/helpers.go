package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dreamlog/internal/middleware"
	"github.com/xxxsen/dreamlog/internal/pkg/errcode"
	appErr "github.com/xxxsen/dreamlog/internal/pkg/errors"
	"github.com/xxxsen/dreamlog/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.RequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrContentTooShort):
		response.Error(c, errcode.ErrContentTooShort, err.Error())
	case errors.Is(err, appErr.ErrContentTooLong):
		response.Error(c, errcode.ErrContentTooLong, err.Error())
	case errors.Is(err, appErr.ErrInvalidDate):
		response.Error(c, errcode.ErrInvalidDate, err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func queryInt(c *gin.Context, name string, def int) int {
	value := c.Query(name)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
