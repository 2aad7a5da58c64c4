package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
)

// ErrorHandler writes a response for handlers that recorded an error with
// c.Error but wrote nothing themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := httputil.StatusFor(err)
		message := "internal server error"
		if status != http.StatusInternalServerError {
			message = err.Error()
		}
		c.JSON(status, httputil.Response{
			Status:  "error",
			Message: message,
			Code:    apperrors.CodeOf(err).String(),
		})
	}
}
