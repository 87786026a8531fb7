package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/dndscribe/scribe/internal/errors"
)

// dataResponse is the standard success envelope.
type dataResponse struct {
	Data any `json:"data"`
}

// respondWithError inspects err: an *apperr.AppError yields its status and
// structured body; anything else is reported as a generic 500.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, apperr.Internal(err).ToResponse())
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dataResponse{Data: data})
}

func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dataResponse{Data: data})
}
