package middleware

import (
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/response"
	"Realty/internal/pkg/security"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 负责验证 JWT 并将客服身份注入 Context，缺失或无效直接 401
func AuthMiddleware(tm *security.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := security.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Fail(c, response.Unauthorized, "missing or malformed token")
			c.Abort()
			return
		}

		claims, err := tm.ValidateToken(token)
		if err != nil {
			response.Fail(c, response.Unauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(consts.StaffIDKey, claims.StaffID)
		c.Set(consts.RolesKey, claims.Roles)
		c.Set(consts.SessionKey, security.NewStaffSession(claims))

		c.Next()
	}
}

// SessionMiddleware 可选鉴权：Token 有效则按角色签发会话，缺失或无效视为访客
func SessionMiddleware(tm *security.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(consts.SessionKey); exists {
			c.Next()
			return
		}

		sess := security.NewVisitorSession()
		if token := security.BearerToken(c.GetHeader("Authorization")); token != "" {
			if claims, err := tm.ValidateToken(token); err == nil {
				sess = security.NewStaffSession(claims)
				c.Set(consts.StaffIDKey, claims.StaffID)
				c.Set(consts.RolesKey, claims.Roles)
			}
		}
		c.Set(consts.SessionKey, sess)

		c.Next()
	}
}
