package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

// Bind decodes the JSON body into req and validates it. On failure the error
// response is written and false is returned.
func Bind(c *gin.Context, v validator.Validator, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid request body", err))
		return false
	}
	if err := v.Validate(req); err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	return true
}

// BindQuery decodes query parameters into f.
func BindQuery(c *gin.Context, f interface{}) bool {
	if err := c.ShouldBindQuery(f); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid query parameters", err))
		return false
	}
	return true
}

// Limit reads the "limit" query parameter, falling back to def and capping
// at max.
func Limit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
