package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
	"github.com/taoyao-code/ipixel-server/internal/service"
	"github.com/taoyao-code/ipixel-server/internal/storage"
)

// StandardResponse 标准响应格式
type StandardResponse struct {
	Code      int         `json:"code"`           // 0=成功, >0=错误码
	Message   string      `json:"message"`        // 消息
	Data      interface{} `json:"data,omitempty"` // 业务数据
	RequestID string      `json:"request_id"`     // 请求追踪ID
	Timestamp int64       `json:"timestamp"`      // 时间戳
}

func respond(c *gin.Context, status int, code int, message string, data interface{}) {
	c.JSON(status, StandardResponse{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now().Unix(),
	})
}

func success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, 0, "成功", data)
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, http.StatusBadRequest, message, nil)
}

// statusFor 将错误映射为 HTTP 状态码
// 编码器的参数类错误一律视为请求错误；资源不可读单独返回 422。
func statusFor(err error) int {
	switch {
	case errors.Is(err, ipixel.ErrResourceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ipixel.ErrInvalidInput),
		errors.Is(err, ipixel.ErrOutOfRange),
		errors.Is(err, ipixel.ErrNotAllowed),
		errors.Is(err, ipixel.ErrInvalidDate),
		errors.Is(err, ipixel.ErrUnsupportedAnimation),
		errors.Is(err, ipixel.ErrBitmapSizeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	respond(c, status, status, err.Error(), nil)
}
