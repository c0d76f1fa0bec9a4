// Package response writes the JSON envelope shared by every handler.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Fail sends an error envelope with the given status code.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Success: false, Error: msg})
}

func OK(c *gin.Context, data any) { ok(c, http.StatusOK, data) }

func Created(c *gin.Context, data any) { ok(c, http.StatusCreated, data) }

// Accepted is used for work handed to the background worker.
func Accepted(c *gin.Context, data any) { ok(c, http.StatusAccepted, data) }

func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// Invalid reports a request body or query that failed binding.
func Invalid(c *gin.Context, err error) {
	Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
}

func BadRequest(c *gin.Context, msg string) { Fail(c, http.StatusBadRequest, msg) }

func Unauthorized(c *gin.Context, msg string) { Fail(c, http.StatusUnauthorized, msg) }

func Forbidden(c *gin.Context, msg string) { Fail(c, http.StatusForbidden, msg) }

func NotFound(c *gin.Context, msg string) { Fail(c, http.StatusNotFound, msg) }

func Conflict(c *gin.Context, msg string) { Fail(c, http.StatusConflict, msg) }

func ServiceUnavailable(c *gin.Context, msg string) { Fail(c, http.StatusServiceUnavailable, msg) }

func Internal(c *gin.Context, msg string) { Fail(c, http.StatusInternalServerError, msg) }
