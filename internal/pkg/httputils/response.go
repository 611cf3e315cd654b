// Package httputils provides HTTP response helpers.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应信封。code 为 0 表示成功。
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess writes a success response with the given data.
func WriteSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// WriteError writes an error response with the given HTTP status.
func WriteError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Code:    status,
		Message: message,
	})
}
