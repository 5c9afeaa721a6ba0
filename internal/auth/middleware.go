package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 认证模式
const (
	ModeKeycloak = "keycloak"
	ModeHeader   = "header"
)

// HeaderUserID 网关转发的用户标识头
const HeaderUserID = "X-User-ID"

const contextUserID = "user_id"

// KeycloakAuthMiddleware Keycloak JWT 认证中间件
func KeycloakAuthMiddleware(validator *KeycloakTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			unauthorized(c, "missing authorization header", "")
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, "invalid token", err.Error())
			return
		}

		c.Set(contextUserID, claims.Sub)
		c.Set("username", claims.PreferredUsername)
		c.Set("email", claims.Email)
		c.Set("name", claims.Name)
		c.Set("roles", claims.RealmAccess.Roles)

		c.Next()
	}
}

// HeaderAuthMiddleware 信任上游网关写入的 X-User-ID
func HeaderAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			unauthorized(c, "missing "+HeaderUserID+" header", "")
			return
		}
		c.Set(contextUserID, userID)
		c.Next()
	}
}

// Middleware 按认证模式返回中间件
func Middleware(mode string, validator *KeycloakTokenValidator) gin.HandlerFunc {
	if mode == ModeKeycloak && validator != nil {
		return KeycloakAuthMiddleware(validator)
	}
	return HeaderAuthMiddleware()
}

// UserID 读取当前请求的用户 ID
func UserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

func unauthorized(c *gin.Context, message string, detail string) {
	body := gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	}
	if detail != "" {
		body["detail"] = detail
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
