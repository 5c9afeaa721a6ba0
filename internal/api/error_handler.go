package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusForKind 领域错误类型对应的 HTTP 状态码
func StatusForKind(kind checklist.ErrorKind) int {
	switch kind {
	case checklist.KindPermissionDenied:
		return http.StatusForbidden
	case checklist.KindInvalidTransition:
		return http.StatusConflict
	case checklist.KindMissingRequiredField, checklist.KindInvalidValue:
		return http.StatusBadRequest
	case checklist.KindNotFound:
		return http.StatusNotFound
	case checklist.KindDataIntegrity:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// ErrorHandlerMiddleware 错误处理中间件
// 控制器通过 c.Error 上报的错误在这里统一转换为响应
func ErrorHandlerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		if kind, ok := checklist.KindOf(err); ok {
			status := StatusForKind(kind)
			if status >= http.StatusInternalServerError {
				logger.WithError(err).WithFields(logrus.Fields{
					"error_kind": string(kind),
					"request_id": c.GetString(requestIDKey),
				}).Error("request failed")
			}
			Error(c, status, string(kind), err.Error())
			return
		}

		logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("request failed")
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
}
