package middleware

import (
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/response"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// CheckRoles 令牌中至少带有一个指定角色才放行，需挂在 AuthMiddleware 之后
func CheckRoles(requiredRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(requiredRoles))
	for _, r := range requiredRoles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		roles := c.GetStringSlice(consts.RolesKey)
		for _, r := range roles {
			if _, ok := allowed[r]; ok {
				c.Next()
				return
			}
		}

		log.WarnContext(c.Request.Context(), "role check failed",
			"path", c.FullPath(),
			"staff_id", c.GetString(consts.StaffIDKey),
			"roles", roles)
		response.Fail(c, response.Forbidden, "forbidden")
		c.Abort()
	}
}
