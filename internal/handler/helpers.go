package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/middleware"
	"github.com/paperbotai/paperbot/internal/pkg/errcode"
	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
	"github.com/paperbotai/paperbot/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrNoActiveModel):
		response.Error(c, errcode.ErrNoActiveModel, "no active model configured")
	case errors.Is(err, appErr.ErrModelUnavailable), errors.Is(err, appErr.ErrUnsupportedProvider):
		response.Error(c, errcode.ErrProviderUnavailable, "model provider unavailable")
	default:
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path),
			zap.String("user_id", getUserID(c)), zap.Error(err))
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
